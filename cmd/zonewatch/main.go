// Package main is the entry point for the zone monitoring scheduler.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geowatch/zonewatch-go/internal/config"
	"github.com/geowatch/zonewatch-go/internal/feed"
	"github.com/geowatch/zonewatch-go/internal/imagery"
	"github.com/geowatch/zonewatch-go/internal/provider"
	"github.com/geowatch/zonewatch-go/internal/scheduler"
	"github.com/geowatch/zonewatch-go/internal/storage/sqlite"
	"github.com/geowatch/zonewatch-go/internal/zones"
)

func main() {
	fmt.Println("ZoneWatch - Geospatial Zone Monitoring Scheduler")
	fmt.Println("Version: 0.1.0-dev")
	fmt.Println()

	if len(os.Args) < 2 {
		showUsage()
		return
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "populate":
		populateZones(cfg)
	case "update":
		priorityOnly := len(os.Args) > 2 && os.Args[2] == "priority"
		updateZones(cfg, priorityOnly)
	case "monitor":
		monitorMode(cfg)
	case "zones":
		listZones(cfg)
	case "stats":
		showStats(cfg)
	case "cleanup":
		days := cfg.RetentionDays
		if len(os.Args) > 2 {
			n, err := strconv.Atoi(os.Args[2])
			if err != nil || n < 1 {
				fmt.Printf("Error: invalid retention days %q\n", os.Args[2])
				os.Exit(1)
			}
			days = n
		}
		cleanupImages(cfg, days)
	default:
		showUsage()
	}
}

func showUsage() {
	fmt.Println("Usage:")
	fmt.Println("  zonewatch populate          - Derive zones from the event feed")
	fmt.Println("  zonewatch update [priority] - Run one update cycle (optionally priority zones only)")
	fmt.Println("  zonewatch monitor           - Continuous mode (priority and full cadences)")
	fmt.Println("  zonewatch zones             - List active zones")
	fmt.Println("  zonewatch stats             - Show zone and imagery statistics")
	fmt.Println("  zonewatch cleanup [days]    - Delete images older than the retention window")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  SENTINEL_CLIENT_ID      - Imagery provider OAuth client id (optional)")
	fmt.Println("  SENTINEL_CLIENT_SECRET  - Imagery provider OAuth client secret (optional)")
	fmt.Println("  ZONEWATCH_DB_PATH       - SQLite database path (default zonewatch.db)")
	fmt.Println("  ZONEWATCH_IMAGES_DIR    - Image blob directory (default images)")
	fmt.Println("  EVENT_FEED_PATH         - CSV event feed path (default events.csv)")
	fmt.Println()
	fmt.Println("Without provider credentials, zones are still tracked but no imagery")
	fmt.Println("is downloaded.")
}

// buildScheduler wires the full stack. The returned close function releases
// the database handle.
func buildScheduler(cfg *config.Config) (*scheduler.Scheduler, func(), error) {
	store, err := sqlite.NewFileStore(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}

	blobs, err := imagery.NewBlobStore(cfg.ImagesDir)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("open image directory %s: %w", cfg.ImagesDir, err)
	}

	var client provider.Client
	if cfg.ProviderConfigured() {
		client = provider.NewSentinelClient(cfg.SentinelClientID, cfg.SentinelClientSecret,
			provider.WithTimeout(cfg.Timeout()),
			provider.WithRetryAttempts(cfg.RetryAttempts),
		)
	} else {
		client = provider.NewDisabled()
	}

	registry := zones.NewRegistry(store, zones.WithLookback(cfg.Lookback()))
	source := feed.NewCSVSource(cfg.EventFeedPath)

	sched := scheduler.New(cfg, store, registry, client, blobs, source)
	return sched, func() { _ = store.Close() }, nil
}

func populateZones(cfg *config.Config) {
	sched, closeStore, err := buildScheduler(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	fmt.Printf("Deriving zones from %s (last %d days)...\n", cfg.EventFeedPath, cfg.LookbackDays)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := sched.PopulateZonesFromFeed(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Upserted %d zone(s).\n", count)
}

func updateZones(cfg *config.Config, priorityOnly bool) {
	sched, closeStore, err := buildScheduler(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	scope := "all"
	if priorityOnly {
		scope = "priority"
	}
	fmt.Printf("Running one update cycle (%s zones)...\n", scope)

	// Let Ctrl+C abort the cycle between zones.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats := sched.UpdateAllZones(ctx, priorityOnly)

	fmt.Println()
	fmt.Printf("Processed: %d\n", stats.Processed)
	fmt.Printf("Updated:   %d\n", stats.Updated)
	fmt.Printf("Skipped:   %d\n", stats.Skipped)
	fmt.Printf("Errors:    %d\n", stats.Errors)
}

func monitorMode(cfg *config.Config) {
	sched, closeStore, err := buildScheduler(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	if cfg.ProviderConfigured() {
		fmt.Println("Provider credentials found - imagery downloads enabled")
	} else {
		fmt.Println("No provider credentials - zone tracking only")
	}
	fmt.Printf("Cadences: priority every %dh, full sweep every %dh\n",
		cfg.PriorityCadenceHours, cfg.FullCadenceHours)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sched.Start()
	<-sigChan

	fmt.Println("\nStopping...")
	sched.Stop()
	fmt.Println("Stopped.")
}

func listZones(cfg *config.Config) {
	sched, closeStore, err := buildScheduler(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	active, err := sched.ListActiveZones(ctx, false)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if len(active) == 0 {
		fmt.Println("No active zones. Run 'zonewatch populate' first.")
		return
	}

	fmt.Printf("%d active zone(s):\n", len(active))
	fmt.Println()
	for _, z := range active {
		checked := "never"
		if z.LastCheckedAt != nil {
			checked = z.LastCheckedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("  [tier %d] %-24s risk=%-6s checked=%s\n",
			z.PriorityTier, z.Name, z.RiskLevel, checked)
	}
}

func showStats(cfg *config.Config) {
	sched, closeStore, err := buildScheduler(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats := sched.GetStatistics(ctx)

	fmt.Printf("Zones:            %d (%d priority)\n", stats.TotalZones, stats.PriorityZones)
	fmt.Printf("Images stored:    %d\n", stats.ImagesStored)
	fmt.Printf("Downloads (24h):  %d\n", stats.RecentDownloads24h)
	fmt.Printf("Storage used:     %.1f MB\n", float64(stats.TotalStorageBytes)/(1024*1024))
	fmt.Printf("Provider:         %s\n", onOff(stats.ProviderConfigured, "configured", "disabled"))
}

func cleanupImages(cfg *config.Config, days int) {
	sched, closeStore, err := buildScheduler(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	fmt.Printf("Deleting images older than %d days...\n", days)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted := sched.CleanupOldImages(ctx, days)
	fmt.Printf("Deleted %d image(s).\n", deleted)
}

func onOff(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}
