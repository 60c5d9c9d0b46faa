// Package scheduler runs the periodic zone monitoring cycles: it selects due
// zones, asks the imagery provider for fresher scenes, and keeps the single
// current image per zone up to date.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/geowatch/zonewatch-go/internal/config"
	"github.com/geowatch/zonewatch-go/internal/domain"
	"github.com/geowatch/zonewatch-go/internal/feed"
	"github.com/geowatch/zonewatch-go/internal/geo"
	"github.com/geowatch/zonewatch-go/internal/imagery"
	"github.com/geowatch/zonewatch-go/internal/provider"
	"github.com/geowatch/zonewatch-go/internal/storage"
	"github.com/geowatch/zonewatch-go/internal/zones"
)

// Scheduler owns the two update cadences and the per-zone update pipeline.
type Scheduler struct {
	cfg      *config.Config
	store    storage.Store
	registry *zones.Registry
	client   provider.Client
	blobs    *imagery.BlobStore
	source   feed.Source

	mu                 sync.Mutex
	running            bool
	cancel             context.CancelFunc
	wg                 sync.WaitGroup
	providerConfigured bool
	lastPriorityRun    time.Time
	lastFullRun        time.Time
}

// Statistics is the observability snapshot consumed by the UI layer. It is
// always well-formed; fields degrade to zero values rather than failing.
type Statistics struct {
	TotalZones         int
	PriorityZones      int
	ImagesStored       int
	RecentDownloads24h int
	TotalStorageBytes  int64
	Running            bool
	ProviderConfigured bool
	LastPriorityCycle  time.Time
	LastFullCycle      time.Time
}

// New creates a scheduler. It does not start any background work.
func New(cfg *config.Config, store storage.Store, registry *zones.Registry, client provider.Client, blobs *imagery.BlobStore, source feed.Source) *Scheduler {
	return &Scheduler{
		cfg:                cfg,
		store:              store,
		registry:           registry,
		client:             client,
		blobs:              blobs,
		source:             source,
		providerConfigured: client.Configured(),
	}
}

// Start installs the two periodic triggers. It is idempotent. A provider
// authentication failure is logged and reflected in GetStatistics, but the
// scheduler still starts; every cycle then degrades to a fast no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	authCtx, authCancel := context.WithTimeout(ctx, s.cfg.Timeout())
	ok, err := s.client.Authenticate(authCtx)
	authCancel()
	s.mu.Lock()
	s.providerConfigured = ok
	s.mu.Unlock()
	switch {
	case err != nil:
		log.Printf("[Scheduler] Provider authentication failed: %v", err)
	case !ok:
		log.Printf("[Scheduler] Provider not configured; cycles will be no-ops")
	}

	s.wg.Add(2)
	go s.runCadence(ctx, s.cfg.PriorityCadence(), true)
	go s.runCadence(ctx, s.cfg.FullCadence(), false)

	log.Printf("[Scheduler] Started (priority every %s, full every %s)",
		s.cfg.PriorityCadence(), s.cfg.FullCadence())
}

// Stop signals cancellation and blocks until in-flight cycles have observed
// it. It is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	log.Printf("[Scheduler] Stopped")
}

// Running reports whether the periodic triggers are installed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// runCadence runs one update cycle immediately, then on every tick until
// cancelled. The two cadences share the cancellation signal but never block
// on each other.
func (s *Scheduler) runCadence(ctx context.Context, interval time.Duration, priorityOnly bool) {
	defer s.wg.Done()

	s.runCycle(ctx, priorityOnly)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx, priorityOnly)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context, priorityOnly bool) {
	label := "full"
	if priorityOnly {
		label = "priority"
	}

	stats := s.UpdateAllZones(ctx, priorityOnly)

	s.mu.Lock()
	if priorityOnly {
		s.lastPriorityRun = time.Now()
	} else {
		s.lastFullRun = time.Now()
	}
	s.mu.Unlock()

	log.Printf("[Scheduler] %s cycle done: processed=%d updated=%d skipped=%d errors=%d",
		label, stats.Processed, stats.Updated, stats.Skipped, stats.Errors)
}

// UpdateAllZones runs one synchronous update cycle over the due zones,
// sequentially within fixed-size batches with a pacing pause between batches.
// Per-zone failures are folded into Stats.Errors and never propagate.
// Cancellation is observed between every zone and returns partial stats.
func (s *Scheduler) UpdateAllZones(ctx context.Context, priorityOnly bool) Stats {
	var stats Stats

	due, err := s.registry.ListActiveZones(ctx, priorityOnly)
	if err != nil {
		log.Printf("[Scheduler] Failed to list zones: %v", err)
		stats.Errors++
		return stats
	}

	batchSize := s.cfg.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	for start := 0; start < len(due); start += batchSize {
		if start > 0 {
			// Pacing between batches keeps the provider's implicit rate
			// limits honored.
			select {
			case <-ctx.Done():
				return stats
			case <-time.After(s.cfg.BatchPause()):
			}
		}

		end := start + batchSize
		if end > len(due) {
			end = len(due)
		}
		for _, zone := range due[start:end] {
			select {
			case <-ctx.Done():
				return stats
			default:
			}
			outcome := s.UpdateZone(ctx, zone)
			stats.record(outcome)
		}
	}
	return stats
}

// UpdateZone runs one update attempt for a zone. Zones are processed
// sequentially by the caller; the imagery provider's rate limits rule out
// per-zone fan-out.
func (s *Scheduler) UpdateZone(ctx context.Context, zone *domain.Zone) Outcome {
	box, err := geo.ParseGeometry(zone.Geometry)
	if err != nil {
		log.Printf("[Scheduler] Zone %s has unusable geometry: %v", zone.Name, err)
		return OutcomeFetchFailed
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout())
	scene, err := s.client.SearchLatestScene(callCtx, box, s.cfg.MaxSceneAgeDays, s.cfg.MaxCloudCoverPercent)
	cancel()
	if err != nil {
		return s.failureOutcome(zone, "search", err)
	}
	if scene == nil {
		s.markChecked(ctx, zone)
		return OutcomeNoCandidate
	}

	// Cheap freshness check before the expensive download.
	current, err := s.store.GetCurrentImage(ctx, zone.ID)
	if err != nil && !storage.IsNotFound(err) {
		log.Printf("[Scheduler] Zone %s: failed to read current image: %v", zone.Name, err)
		return OutcomeFetchFailed
	}
	candidate := &domain.ZoneImage{ZoneID: zone.ID, SensedDate: scene.SensedDate}
	if !candidate.IsNewerThan(current) {
		s.markChecked(ctx, zone)
		return OutcomeSkippedNotNewer
	}

	callCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout())
	pixels, err := s.client.FetchScenePixels(callCtx, scene, box, s.cfg.TargetImageSize)
	cancel()
	if err != nil {
		return s.failureOutcome(zone, "fetch", err)
	}

	path, size, err := s.blobs.Save(zone.ID, pixels)
	if err != nil {
		// Storage failure: do not mark the zone checked so the next cycle
		// retries it.
		log.Printf("[Scheduler] Zone %s: failed to store blob: %v", zone.Name, err)
		return OutcomeFetchFailed
	}

	img := &domain.ZoneImage{
		ZoneID:            zone.ID,
		SensedDate:        scene.SensedDate,
		LocalPath:         path,
		CloudCoverPercent: scene.CloudCoverPercent,
		DownloadedAt:      time.Now().UTC(),
		BBox:              box,
		Collection:        scene.Collection,
		Resolution:        scene.Resolution,
		FileSize:          size,
		ProviderMetadata:  scene.RawMetadata,
	}
	applied, err := s.store.UpsertImageIfNewer(ctx, img)
	if err != nil {
		log.Printf("[Scheduler] Zone %s: failed to persist image record: %v", zone.Name, err)
		return OutcomeFetchFailed
	}
	if !applied {
		// The other cadence won the race with an equal-or-newer scene; the
		// freshness invariant makes this interleaving safe.
		s.markChecked(ctx, zone)
		return OutcomeSkippedNotNewer
	}

	s.markChecked(ctx, zone)
	log.Printf("[Scheduler] Zone %s: stored scene %s (sensed %s, %.1f%% cloud)",
		zone.Name, scene.ID, scene.SensedDate.Format("2006-01-02"), scene.CloudCoverPercent)
	return OutcomeApplied
}

// failureOutcome classifies a provider error and logs it.
func (s *Scheduler) failureOutcome(zone *domain.Zone, op string, err error) Outcome {
	var authErr *provider.AuthError
	if errors.As(err, &authErr) {
		log.Printf("[Scheduler] Zone %s: provider auth failed during %s: %v", zone.Name, op, err)
		return OutcomeAuthFailed
	}
	log.Printf("[Scheduler] Zone %s: %s failed: %v", zone.Name, op, err)
	return OutcomeFetchFailed
}

// markChecked advances the zone's last-checked timestamp. Only successful or
// benign outcomes reach here; error outcomes leave the zone due.
func (s *Scheduler) markChecked(ctx context.Context, zone *domain.Zone) {
	now := time.Now().UTC()
	if err := s.store.TouchZoneChecked(ctx, zone.ID, now); err != nil {
		log.Printf("[Scheduler] Zone %s: failed to record check time: %v", zone.Name, err)
		return
	}
	zone.MarkChecked(now)
}

// ListActiveZones exposes the registry's active-zone listing in schedule
// order.
func (s *Scheduler) ListActiveZones(ctx context.Context, priorityOnly bool) ([]*domain.Zone, error) {
	return s.registry.ListActiveZones(ctx, priorityOnly)
}

// PopulateZonesFromFeed pulls recent events from the feed and derives or
// refreshes zones. It is synchronous and callable outside the schedule.
func (s *Scheduler) PopulateZonesFromFeed(ctx context.Context) (int, error) {
	since := time.Now().Add(-s.registry.Lookback())
	events, err := s.source.Events(ctx, since)
	if err != nil {
		return 0, err
	}
	return s.registry.UpsertZonesFromEvents(ctx, events)
}

// GetStatistics returns the observability snapshot. Individual store
// failures degrade the affected fields to zero instead of erroring, so
// operators can always see the current state at a glance.
func (s *Scheduler) GetStatistics(ctx context.Context) Statistics {
	s.mu.Lock()
	stats := Statistics{
		Running:            s.running,
		ProviderConfigured: s.providerConfigured,
		LastPriorityCycle:  s.lastPriorityRun,
		LastFullCycle:      s.lastFullRun,
	}
	s.mu.Unlock()

	total, priority, err := s.store.CountZones(ctx)
	if err != nil {
		log.Printf("[Scheduler] Failed to count zones: %v", err)
	} else {
		stats.TotalZones = total
		stats.PriorityZones = priority
	}

	imgStats, err := s.store.ImageStats(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		log.Printf("[Scheduler] Failed to read image stats: %v", err)
	} else {
		stats.ImagesStored = imgStats.Count
		stats.RecentDownloads24h = imgStats.RecentCount
		stats.TotalStorageBytes = imgStats.TotalBytes
	}

	return stats
}
