package domain

import (
	"time"

	"github.com/geowatch/zonewatch-go/internal/geo"
)

// ZoneImage is the single "last known good" image record for a zone.
// At most one live record exists per zone; a record is replaced wholesale
// only by a strictly more recently sensed candidate.
type ZoneImage struct {
	ZoneID            string
	SensedDate        time.Time // capture date of the source scene, the freshness key
	LocalPath         string
	CloudCoverPercent float64
	DownloadedAt      time.Time
	BBox              geo.BBox // the box actually requested
	Collection        string
	Resolution        string
	FileSize          int64
	ProviderMetadata  []byte // opaque provider payload kept for audit
}

// IsNewerThan reports whether this candidate may replace the given current
// record. Equal sensed dates do not qualify.
func (i *ZoneImage) IsNewerThan(current *ZoneImage) bool {
	if current == nil {
		return true
	}
	return i.SensedDate.After(current.SensedDate)
}
