package zones

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geowatch/zonewatch-go/internal/domain"
	"github.com/geowatch/zonewatch-go/internal/feed"
	"github.com/geowatch/zonewatch-go/internal/geo"
	"github.com/geowatch/zonewatch-go/internal/storage/sqlite"
)

func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	store, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewRegistry(store, opts...)
}

func event(id string, lat, lon float64, risk string, observed time.Time) feed.Event {
	return feed.Event{ID: id, Lat: lat, Lon: lon, RiskLevel: risk, ObservedAt: observed}
}

func TestUpsertZonesDedupsWithinGridCell(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	now := time.Now()

	// Both events fall in the same 0.01-degree grid cell.
	count, err := reg.UpsertZonesFromEvents(ctx, []feed.Event{
		event("e1", 50.001, 30.002, "medium", now),
		event("e2", 50.003, 30.001, "medium", now),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	zones, err := reg.ListActiveZones(ctx, false)
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, "50.00N_30.00E", zones[0].Name)
}

func TestUpsertZonesSeparateCells(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	now := time.Now()

	count, err := reg.UpsertZonesFromEvents(ctx, []feed.Event{
		event("e1", 50.001, 30.002, "low", now),
		event("e2", 50.101, 30.002, "low", now),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestUpsertZonesCountrySeparatesClusters(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	now := time.Now()

	count, err := reg.UpsertZonesFromEvents(ctx, []feed.Event{
		{ID: "e1", Lat: 50.001, Lon: 30.002, RiskLevel: "low", Country: "UA", ObservedAt: now},
		{ID: "e2", Lat: 50.001, Lon: 30.002, RiskLevel: "low", Country: "MD", ObservedAt: now},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestUpsertZonesHighRiskWinsTier(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	now := time.Now()

	_, err := reg.UpsertZonesFromEvents(ctx, []feed.Event{
		event("e1", 50.001, 30.002, "low", now),
		event("e2", 50.003, 30.001, "high", now),
		event("e3", 50.002, 30.004, "medium", now),
	})
	require.NoError(t, err)

	zones, err := reg.ListActiveZones(ctx, false)
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, domain.RiskHigh, zones[0].RiskLevel)
	assert.Equal(t, domain.TierPriority, zones[0].PriorityTier)
}

func TestUpsertZonesDiscardsStaleAndUnlocated(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	count, err := reg.UpsertZonesFromEvents(ctx, []feed.Event{
		event("stale", 50.0, 30.0, "high", time.Now().AddDate(0, 0, -45)),
		event("unlocated", 0, 0, "high", time.Now()),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	zones, err := reg.ListActiveZones(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, zones)
}

func TestUpsertZonesCustomLookback(t *testing.T) {
	reg := newTestRegistry(t, WithLookback(7*24*time.Hour))
	ctx := context.Background()

	count, err := reg.UpsertZonesFromEvents(ctx, []feed.Event{
		event("e1", 50.0, 30.0, "high", time.Now().AddDate(0, 0, -10)),
		event("e2", 51.0, 30.0, "high", time.Now().AddDate(0, 0, -3)),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsertZonesRefreshKeepsZoneCount(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	now := time.Now()

	_, err := reg.UpsertZonesFromEvents(ctx, []feed.Event{event("e1", 50.001, 30.002, "low", now)})
	require.NoError(t, err)

	// Same cell on a later populate pass.
	count, err := reg.UpsertZonesFromEvents(ctx, []feed.Event{event("e9", 50.002, 30.003, "high", now)})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	zones, err := reg.ListActiveZones(ctx, false)
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, domain.RiskHigh, zones[0].RiskLevel)
}

func TestDerivedZoneGeometry(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.UpsertZonesFromEvents(ctx, []feed.Event{event("e1", 50.001, 30.002, "low", time.Now())})
	require.NoError(t, err)

	zones, err := reg.ListActiveZones(ctx, false)
	require.NoError(t, err)
	require.Len(t, zones, 1)

	box, err := geo.ParseGeometry(zones[0].Geometry)
	require.NoError(t, err)
	assert.True(t, box.Valid())

	lat, lon := box.Center()
	assert.InDelta(t, 50.0, lat, 1e-6)
	assert.InDelta(t, 30.0, lon, 1e-6)
}

func TestDeactivate(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.UpsertZonesFromEvents(ctx, []feed.Event{event("e1", 50.0, 30.0, "high", time.Now())})
	require.NoError(t, err)

	zones, err := reg.ListActiveZones(ctx, false)
	require.NoError(t, err)
	require.Len(t, zones, 1)

	zoneID := zones[0].ID
	require.NoError(t, reg.Deactivate(ctx, zoneID))

	zones, err = reg.ListActiveZones(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, zones)

	// Soft delete: still retrievable by id.
	got, err := reg.GetZone(ctx, zoneID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}
