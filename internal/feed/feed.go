// Package feed consumes the risk-scored event feed that drives zone
// derivation. The feed is pull-based; the scheduler asks for events within a
// recency window and never subscribes.
package feed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jszwec/csvutil"
)

// Event is a single risk-scored geopolitical event from the feed.
type Event struct {
	ID         string    `csv:"id"`
	Lat        float64   `csv:"lat"`
	Lon        float64   `csv:"lon"`
	RiskLevel  string    `csv:"risk_level"`
	Country    string    `csv:"country,omitempty"`
	ObservedAt time.Time `csv:"observed_at"`
}

// HasCoordinates reports whether the event carries usable coordinates.
// The feed emits 0,0 for events it could not geocode.
func (e Event) HasCoordinates() bool {
	return e.Lat != 0 || e.Lon != 0
}

// Source supplies events observed at or after a given time.
type Source interface {
	Events(ctx context.Context, since time.Time) ([]Event, error)
}

// CSVSource reads events from a CSV export file. Expected columns:
// id, lat, lon, risk_level, country, observed_at (RFC3339).
type CSVSource struct {
	Path string
}

// NewCSVSource creates a source reading the given CSV file.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

// Events decodes the file and returns events observed at or after since.
func (s *CSVSource) Events(ctx context.Context, since time.Time) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event feed: %w", err)
	}

	var all []Event
	if err := csvutil.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse event feed: %w", err)
	}

	events := make([]Event, 0, len(all))
	for _, e := range all {
		if e.ObservedAt.Before(since) {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

var _ Source = (*CSVSource)(nil)
