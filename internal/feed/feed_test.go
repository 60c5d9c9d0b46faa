package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `id,lat,lon,risk_level,country,observed_at
evt-1,50.001,30.002,high,UA,2024-06-10T08:00:00Z
evt-2,50.003,30.001,medium,UA,2024-06-12T09:30:00Z
evt-3,0,0,high,,2024-06-12T10:00:00Z
evt-4,33.51,36.29,low,SY,2024-01-01T00:00:00Z
`

func writeFeed(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestCSVSourceEvents(t *testing.T) {
	src := NewCSVSource(writeFeed(t, sampleCSV))

	events, err := src.Events(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// evt-4 falls before the window.
	require.Len(t, events, 3)
	assert.Equal(t, "evt-1", events[0].ID)
	assert.Equal(t, 50.001, events[0].Lat)
	assert.Equal(t, 30.002, events[0].Lon)
	assert.Equal(t, "high", events[0].RiskLevel)
	assert.Equal(t, "UA", events[0].Country)
	assert.Equal(t, time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC), events[0].ObservedAt)
}

func TestCSVSourceWindowFiltersAll(t *testing.T) {
	src := NewCSVSource(writeFeed(t, sampleCSV))

	events, err := src.Events(context.Background(), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCSVSourceMissingFile(t *testing.T) {
	src := NewCSVSource(filepath.Join(t.TempDir(), "nope.csv"))

	_, err := src.Events(context.Background(), time.Time{})
	assert.Error(t, err)
}

func TestCSVSourceMalformed(t *testing.T) {
	src := NewCSVSource(writeFeed(t, "id,lat\nevt-1,not-a-number\n"))

	_, err := src.Events(context.Background(), time.Time{})
	assert.Error(t, err)
}

func TestHasCoordinates(t *testing.T) {
	assert.True(t, Event{Lat: 50, Lon: 30}.HasCoordinates())
	assert.True(t, Event{Lat: 0, Lon: 30}.HasCoordinates())
	assert.False(t, Event{}.HasCoordinates())
}
