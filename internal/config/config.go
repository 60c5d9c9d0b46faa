// Package config loads runtime configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime knob for the monitoring scheduler.
type Config struct {
	// Storage
	DBPath    string // sqlite database file
	ImagesDir string // blob storage root

	// Event feed
	EventFeedPath string
	LookbackDays  int // event discard window for zone derivation

	// Provider credentials; when absent the provider degrades to a no-op.
	SentinelClientID     string
	SentinelClientSecret string

	// Scene selection
	MaxCloudCoverPercent float64
	MaxSceneAgeDays      int
	TargetImageSize      int

	// Cadences and pacing
	PriorityCadenceHours int
	FullCadenceHours     int
	BatchSize            int
	BatchPauseSeconds    int

	// Provider call resilience
	RetryAttempts  int
	TimeoutSeconds int

	// Retention
	RetentionDays int
}

// Load reads a .env file when present, then the environment, applying
// defaults for anything unset.
func Load() *Config {
	// Missing .env is fine; plain environment variables still apply.
	_ = godotenv.Load()

	return &Config{
		DBPath:    envStr("ZONEWATCH_DB_PATH", "zonewatch.db"),
		ImagesDir: envStr("ZONEWATCH_IMAGES_DIR", "images"),

		EventFeedPath: envStr("EVENT_FEED_PATH", "events.csv"),
		LookbackDays:  envInt("EVENT_LOOKBACK_DAYS", 30),

		SentinelClientID:     os.Getenv("SENTINEL_CLIENT_ID"),
		SentinelClientSecret: os.Getenv("SENTINEL_CLIENT_SECRET"),

		MaxCloudCoverPercent: envFloat("MAX_CLOUD_COVER_PERCENT", 20),
		MaxSceneAgeDays:      envInt("MAX_SCENE_AGE_DAYS", 30),
		TargetImageSize:      envInt("TARGET_IMAGE_SIZE", 512),

		PriorityCadenceHours: envInt("PRIORITY_CADENCE_HOURS", 6),
		FullCadenceHours:     envInt("FULL_CADENCE_HOURS", 24),
		BatchSize:            envInt("BATCH_SIZE", 10),
		BatchPauseSeconds:    envInt("BATCH_PAUSE_SECONDS", 5),

		RetryAttempts:  envInt("RETRY_ATTEMPTS", 3),
		TimeoutSeconds: envInt("TIMEOUT_SECONDS", 30),

		RetentionDays: envInt("RETENTION_DAYS", 90),
	}
}

// ProviderConfigured reports whether both provider credentials are set.
func (c *Config) ProviderConfigured() bool {
	return c.SentinelClientID != "" && c.SentinelClientSecret != ""
}

// PriorityCadence returns the short cadence as a duration.
func (c *Config) PriorityCadence() time.Duration {
	return time.Duration(c.PriorityCadenceHours) * time.Hour
}

// FullCadence returns the long cadence as a duration.
func (c *Config) FullCadence() time.Duration {
	return time.Duration(c.FullCadenceHours) * time.Hour
}

// BatchPause returns the inter-batch pacing delay.
func (c *Config) BatchPause() time.Duration {
	return time.Duration(c.BatchPauseSeconds) * time.Second
}

// Timeout returns the per-provider-call timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Lookback returns the event discard window.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
