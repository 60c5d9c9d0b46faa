// Package zones derives and manages the zones of interest watched by the
// scheduler.
package zones

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/geowatch/zonewatch-go/internal/domain"
	"github.com/geowatch/zonewatch-go/internal/feed"
	"github.com/geowatch/zonewatch-go/internal/geo"
	"github.com/geowatch/zonewatch-go/internal/storage"
)

// Derivation defaults.
const (
	// DefaultLookback discards feed events older than this window.
	DefaultLookback = 30 * 24 * time.Hour

	// DefaultHalfWidthDegrees is the half-width of a derived zone's bounding
	// box, about 5.5 km at the equator.
	DefaultHalfWidthDegrees = 0.05

	// gridStep snaps event coordinates to a ~1.1 km grid so nearby events
	// collapse into one zone.
	gridStep = 0.01
)

// Registry derives zones from feed events and answers due-zone queries.
type Registry struct {
	store     storage.Store
	lookback  time.Duration
	halfWidth float64
}

// Option customizes a Registry.
type Option func(*Registry)

// WithLookback overrides the event discard window.
func WithLookback(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.lookback = d
		}
	}
}

// WithHalfWidth overrides the derived bounding box half-width in degrees.
func WithHalfWidth(degrees float64) Option {
	return func(r *Registry) {
		if degrees > 0 {
			r.halfWidth = degrees
		}
	}
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store storage.Store, opts ...Option) *Registry {
	r := &Registry{
		store:     store,
		lookback:  DefaultLookback,
		halfWidth: DefaultHalfWidthDegrees,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookback returns the configured event discard window.
func (r *Registry) Lookback() time.Duration {
	return r.lookback
}

// cluster accumulates the events snapped to one grid cell.
type cluster struct {
	lat  float64
	lon  float64
	risk domain.RiskLevel
}

// snap rounds a coordinate to the dedup grid.
func snap(v float64) float64 {
	return math.Round(v/gridStep) * gridStep
}

// gridKey builds a stable derived zone name from the snapped position and an
// optional country label, e.g. "UA_50.00N_30.00E".
func gridKey(lat, lon float64, country string) string {
	latHem, lonHem := "N", "E"
	if lat < 0 {
		latHem = "S"
	}
	if lon < 0 {
		lonHem = "W"
	}
	key := fmt.Sprintf("%.2f%s_%.2f%s", math.Abs(lat), latHem, math.Abs(lon), lonHem)
	if country = strings.TrimSpace(country); country != "" {
		key = strings.ToUpper(country) + "_" + key
	}
	return key
}

// riskRank orders risk levels for cluster escalation.
func riskRank(r domain.RiskLevel) int {
	switch r {
	case domain.RiskHigh:
		return 2
	case domain.RiskMedium:
		return 1
	default:
		return 0
	}
}

// UpsertZonesFromEvents derives zones from the given events and upserts them
// keyed by grid cell. It returns the number of zones created or refreshed.
// Population only adds or refreshes; it never deactivates existing zones.
func (r *Registry) UpsertZonesFromEvents(ctx context.Context, events []feed.Event) (int, error) {
	cutoff := time.Now().Add(-r.lookback)

	clusters := make(map[string]*cluster)
	order := make([]string, 0)
	for _, e := range events {
		if !e.HasCoordinates() || e.ObservedAt.Before(cutoff) {
			continue
		}
		lat, lon := snap(e.Lat), snap(e.Lon)
		key := gridKey(lat, lon, e.Country)
		risk := domain.ParseRiskLevel(e.RiskLevel)

		c, ok := clusters[key]
		if !ok {
			clusters[key] = &cluster{lat: lat, lon: lon, risk: risk}
			order = append(order, key)
			continue
		}
		if riskRank(risk) > riskRank(c.risk) {
			c.risk = risk
		}
	}

	count := 0
	for _, key := range order {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		c := clusters[key]
		box := geo.BoundingBoxAround(c.lat, c.lon, r.halfWidth)
		zone := domain.NewZone(key, box.WKT(), c.risk)
		if err := r.store.UpsertZoneByName(ctx, zone); err != nil {
			return count, fmt.Errorf("failed to upsert zone %s: %w", key, err)
		}
		count++
	}

	if count > 0 {
		log.Printf("[Registry] Upserted %d zones from %d events", count, len(events))
	}
	return count, nil
}

// ListActiveZones returns active zones ordered by priority tier, then longest
// unchecked first (never-checked zones lead).
func (r *Registry) ListActiveZones(ctx context.Context, priorityOnly bool) ([]*domain.Zone, error) {
	return r.store.ListActiveZones(ctx, priorityOnly)
}

// GetZone returns a zone by id.
func (r *Registry) GetZone(ctx context.Context, id string) (*domain.Zone, error) {
	return r.store.GetZone(ctx, id)
}

// Deactivate soft-deletes a zone. Deactivated zones are skipped by the
// scheduler but keep their history.
func (r *Registry) Deactivate(ctx context.Context, id string) error {
	return r.store.SetZoneActive(ctx, id, false)
}
