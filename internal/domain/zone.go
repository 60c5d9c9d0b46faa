// Package domain holds the core zone monitoring types.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RiskLevel classifies the severity of the events behind a zone.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Priority tiers. Tier 1 zones are checked on the short cadence, tier 2 only
// on the full cadence.
const (
	TierPriority = 1
	TierStandard = 2
)

// ParseRiskLevel normalizes a risk level string. Unknown values map to
// RiskLow so a noisy feed cannot inflate a zone's tier.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return RiskHigh
	case "medium", "med":
		return RiskMedium
	default:
		return RiskLow
	}
}

// TierForRisk maps a risk level to a priority tier.
func TierForRisk(r RiskLevel) int {
	if r == RiskHigh {
		return TierPriority
	}
	return TierStandard
}

// Zone is a named geographic area of interest.
type Zone struct {
	ID            string
	Name          string
	Geometry      string // WKT polygon
	RiskLevel     RiskLevel
	PriorityTier  int
	Active        bool
	LastCheckedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewZone creates an active zone with a generated ID. The priority tier is
// derived from the risk level.
func NewZone(name, geometry string, risk RiskLevel) *Zone {
	now := time.Now().UTC()
	return &Zone{
		ID:           uuid.NewString(),
		Name:         name,
		Geometry:     geometry,
		RiskLevel:    risk,
		PriorityTier: TierForRisk(risk),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// MarkChecked records a completed update attempt.
func (z *Zone) MarkChecked(at time.Time) {
	t := at.UTC()
	z.LastCheckedAt = &t
	z.UpdatedAt = t
}
