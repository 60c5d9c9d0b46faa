// Package provider defines the imagery provider capability and its
// implementations. The scheduler only depends on the Client interface so it
// can run against the real API, a disabled stub, or a test fake.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/geowatch/zonewatch-go/internal/geo"
)

var errProviderDisabled = errors.New("provider not configured")

// Scene is a single dated satellite image candidate offered by the provider.
type Scene struct {
	ID                string
	Collection        string
	SensedDate        time.Time
	CloudCoverPercent float64
	Resolution        string
	RawMetadata       []byte // provider payload, kept verbatim for audit
}

// Client is the imagery provider capability.
type Client interface {
	// Configured reports whether credentials are present. A false value is a
	// configuration state, not a fault.
	Configured() bool

	// Authenticate establishes or refreshes credentials. It is idempotent.
	// Missing configuration returns (false, nil).
	Authenticate(ctx context.Context) (bool, error)

	// SearchLatestScene returns the most recent scene within maxAgeDays whose
	// cloud cover is below maxCloudCoverPercent, or nil when nothing
	// qualifies. A nil scene with a nil error is a normal outcome.
	SearchLatestScene(ctx context.Context, box geo.BBox, maxAgeDays int, maxCloudCoverPercent float64) (*Scene, error)

	// FetchScenePixels retrieves rendered imagery for the requested area at
	// targetSize pixels per side.
	FetchScenePixels(ctx context.Context, scene *Scene, box geo.BBox, targetSize int) ([]byte, error)
}

// AuthError reports a failed credential exchange.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "provider auth failed: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// SearchError reports a failed catalog search.
type SearchError struct {
	Err error
}

func (e *SearchError) Error() string { return "scene search failed: " + e.Err.Error() }
func (e *SearchError) Unwrap() error { return e.Err }

// FetchError reports a failed pixel retrieval.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "scene fetch failed: " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// Disabled is the no-op client used when credentials are absent. Every cycle
// against it is a fast no-op rather than a failure.
type Disabled struct{}

// NewDisabled creates a disabled provider client.
func NewDisabled() *Disabled {
	return &Disabled{}
}

func (*Disabled) Configured() bool { return false }

func (*Disabled) Authenticate(context.Context) (bool, error) {
	return false, nil
}

func (*Disabled) SearchLatestScene(context.Context, geo.BBox, int, float64) (*Scene, error) {
	return nil, nil
}

func (*Disabled) FetchScenePixels(context.Context, *Scene, geo.BBox, int) ([]byte, error) {
	return nil, &FetchError{Err: errProviderDisabled}
}

var _ Client = (*Disabled)(nil)
