// Package sqlite provides a SQLite implementation of the storage.Store
// interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/geowatch/zonewatch-go/internal/domain"
	"github.com/geowatch/zonewatch-go/internal/geo"
	"github.com/geowatch/zonewatch-go/internal/storage"

	_ "modernc.org/sqlite"
)

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db *sql.DB
}

// NewMemoryStore creates an in-memory SQLite store.
func NewMemoryStore() (*Store, error) {
	return newStore(":memory:")
}

// NewFileStore creates a file-based SQLite store.
func NewFileStore(path string) (*Store, error) {
	return newStore(path)
}

func newStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The two scheduler cadences share this handle; a single connection keeps
	// the in-memory DSN coherent and serializes writer access.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Zone methods

func (s *Store) SaveZone(ctx context.Context, zone *domain.Zone) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO zones
			(id, name, geometry, risk_level, priority_tier, active, last_checked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, zone.ID, zone.Name, zone.Geometry, string(zone.RiskLevel), zone.PriorityTier,
		zone.Active, zone.LastCheckedAt, zone.CreatedAt, zone.UpdatedAt)
	return err
}

// UpsertZoneByName inserts the zone or, when a zone with the same derived
// name exists, refreshes its geometry, risk level and tier while preserving
// the existing id, created_at, active flag and check history.
func (s *Store) UpsertZoneByName(ctx context.Context, zone *domain.Zone) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO zones
			(id, name, geometry, risk_level, priority_tier, active, last_checked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			geometry = excluded.geometry,
			risk_level = excluded.risk_level,
			priority_tier = excluded.priority_tier,
			updated_at = excluded.updated_at
	`, zone.ID, zone.Name, zone.Geometry, string(zone.RiskLevel), zone.PriorityTier,
		zone.Active, zone.LastCheckedAt, zone.CreatedAt, zone.UpdatedAt)
	return err
}

const zoneColumns = "id, name, geometry, risk_level, priority_tier, active, last_checked_at, created_at, updated_at"

func scanZone(row interface{ Scan(...any) error }) (*domain.Zone, error) {
	var zone domain.Zone
	var risk string
	var lastChecked sql.NullTime
	err := row.Scan(&zone.ID, &zone.Name, &zone.Geometry, &risk, &zone.PriorityTier,
		&zone.Active, &lastChecked, &zone.CreatedAt, &zone.UpdatedAt)
	if err != nil {
		return nil, err
	}
	zone.RiskLevel = domain.RiskLevel(risk)
	if lastChecked.Valid {
		t := lastChecked.Time
		zone.LastCheckedAt = &t
	}
	return &zone, nil
}

func (s *Store) GetZone(ctx context.Context, id string) (*domain.Zone, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+zoneColumns+" FROM zones WHERE id = ?", id)
	zone, err := scanZone(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "zone", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return zone, nil
}

func (s *Store) GetZoneByName(ctx context.Context, name string) (*domain.Zone, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+zoneColumns+" FROM zones WHERE name = ?", name)
	zone, err := scanZone(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "zone", ID: name}
	}
	if err != nil {
		return nil, err
	}
	return zone, nil
}

// ListActiveZones returns active zones ordered by priority tier, then longest
// unchecked first. SQLite sorts NULL first on ASC, so never-checked zones
// lead the queue.
func (s *Store) ListActiveZones(ctx context.Context, priorityOnly bool) ([]*domain.Zone, error) {
	query := "SELECT " + zoneColumns + " FROM zones WHERE active = 1"
	args := []any{}
	if priorityOnly {
		query += " AND priority_tier = ?"
		args = append(args, domain.TierPriority)
	}
	query += " ORDER BY priority_tier ASC, last_checked_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []*domain.Zone
	for rows.Next() {
		zone, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, zone)
	}
	return zones, rows.Err()
}

func (s *Store) SetZoneActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE zones SET active = ?, updated_at = ? WHERE id = ?
	`, active, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound{Resource: "zone", ID: id}
	}
	return nil
}

func (s *Store) TouchZoneChecked(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE zones SET last_checked_at = ?, updated_at = ? WHERE id = ?
	`, at.UTC(), at.UTC(), id)
	return err
}

func (s *Store) CountZones(ctx context.Context) (total, priority int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(priority_tier = ?), 0) FROM zones WHERE active = 1
	`, domain.TierPriority).Scan(&total, &priority)
	return total, priority, err
}

// Zone image methods

const imageColumns = "zone_id, sensed_date, local_path, cloud_cover_percent, downloaded_at, bbox, collection, resolution, file_size, provider_metadata"

func scanImage(row interface{ Scan(...any) error }) (*domain.ZoneImage, error) {
	var img domain.ZoneImage
	var bbox string
	var collection, resolution sql.NullString
	err := row.Scan(&img.ZoneID, &img.SensedDate, &img.LocalPath, &img.CloudCoverPercent,
		&img.DownloadedAt, &bbox, &collection, &resolution, &img.FileSize, &img.ProviderMetadata)
	if err != nil {
		return nil, err
	}
	img.Collection = collection.String
	img.Resolution = resolution.String
	if box, err := geo.ParseBBox(bbox); err == nil {
		img.BBox = box
	}
	return &img, nil
}

func (s *Store) GetCurrentImage(ctx context.Context, zoneID string) (*domain.ZoneImage, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+imageColumns+" FROM zone_images WHERE zone_id = ?", zoneID)
	img, err := scanImage(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "zone_image", ID: zoneID}
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

// UpsertImageIfNewer replaces the zone's image record in a single transaction
// when the candidate is strictly newer than the stored one (or none is
// stored). It returns applied=false without mutating anything otherwise.
// This is the central idempotency guarantee of the subsystem.
func (s *Store) UpsertImageIfNewer(ctx context.Context, img *domain.ZoneImage) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var current time.Time
	err = tx.QueryRowContext(ctx,
		"SELECT sensed_date FROM zone_images WHERE zone_id = ?", img.ZoneID).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		// First image for this zone.
	case err != nil:
		return false, err
	case !img.SensedDate.After(current):
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO zone_images
			(zone_id, sensed_date, local_path, cloud_cover_percent, downloaded_at,
			 bbox, collection, resolution, file_size, provider_metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, img.ZoneID, img.SensedDate.UTC(), img.LocalPath, img.CloudCoverPercent,
		img.DownloadedAt.UTC(), img.BBox.String(), img.Collection, img.Resolution,
		img.FileSize, img.ProviderMetadata)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteImagesOlderThan removes image records downloaded before the cutoff
// and returns the affected zone ids. Blob removal is the caller's job, which
// keeps the transaction small.
func (s *Store) DeleteImagesOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		"SELECT zone_id FROM zone_images WHERE downloaded_at < ?", cutoff.UTC())
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM zone_images WHERE downloaded_at < ?", cutoff.UTC()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) ImageStats(ctx context.Context, recentSince time.Time) (*storage.ImageStats, error) {
	var stats storage.ImageStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(downloaded_at >= ?), 0),
		       COALESCE(SUM(file_size), 0)
		FROM zone_images
	`, recentSince.UTC()).Scan(&stats.Count, &stats.RecentCount, &stats.TotalBytes)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Verify interface compliance
var _ storage.Store = (*Store)(nil)
