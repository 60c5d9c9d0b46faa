// Package storage provides storage abstractions for the zone monitoring
// system.
package storage

import (
	"context"
	"time"

	"github.com/geowatch/zonewatch-go/internal/domain"
)

// Store is the interface for persistent zone and image storage.
type Store interface {
	// Zone management
	SaveZone(ctx context.Context, zone *domain.Zone) error
	UpsertZoneByName(ctx context.Context, zone *domain.Zone) error
	GetZone(ctx context.Context, id string) (*domain.Zone, error)
	GetZoneByName(ctx context.Context, name string) (*domain.Zone, error)
	ListActiveZones(ctx context.Context, priorityOnly bool) ([]*domain.Zone, error)
	SetZoneActive(ctx context.Context, id string, active bool) error
	TouchZoneChecked(ctx context.Context, id string, at time.Time) error
	CountZones(ctx context.Context) (total, priority int, err error)

	// Zone images (one live record per zone)
	GetCurrentImage(ctx context.Context, zoneID string) (*domain.ZoneImage, error)
	UpsertImageIfNewer(ctx context.Context, img *domain.ZoneImage) (applied bool, err error)
	DeleteImagesOlderThan(ctx context.Context, cutoff time.Time) (zoneIDs []string, err error)
	ImageStats(ctx context.Context, recentSince time.Time) (*ImageStats, error)

	// Lifecycle
	Close() error
}

// ImageStats summarizes the stored image inventory.
type ImageStats struct {
	Count       int
	RecentCount int // downloaded at or after the requested cutoff
	TotalBytes  int64
}

// ErrNotFound is returned when a record is not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e ErrNotFound) Error() string {
	return e.Resource + " not found: " + e.ID
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
