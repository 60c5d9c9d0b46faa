package sqlite

// schema contains the database schema DDL.
const schema = `
-- Zones of interest
CREATE TABLE IF NOT EXISTS zones (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    geometry TEXT NOT NULL,
    risk_level TEXT NOT NULL DEFAULT 'low',
    priority_tier INTEGER NOT NULL DEFAULT 2,
    active INTEGER NOT NULL DEFAULT 1,
    last_checked_at DATETIME,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_zones_tier_active ON zones(priority_tier, active);
CREATE INDEX IF NOT EXISTS idx_zones_last_checked ON zones(last_checked_at);

-- Current image per zone (single live row per zone)
CREATE TABLE IF NOT EXISTS zone_images (
    zone_id TEXT PRIMARY KEY REFERENCES zones(id),
    sensed_date DATETIME NOT NULL,
    local_path TEXT NOT NULL,
    cloud_cover_percent REAL NOT NULL DEFAULT 0,
    downloaded_at DATETIME NOT NULL,
    bbox TEXT NOT NULL,
    collection TEXT,
    resolution TEXT,
    file_size INTEGER NOT NULL DEFAULT 0,
    provider_metadata BLOB
);
CREATE INDEX IF NOT EXISTS idx_zone_images_downloaded ON zone_images(downloaded_at);
`
