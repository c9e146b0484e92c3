package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"photosphere/internal/logging"
	"photosphere/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database is the catalog store: photos, tags, and their associations
// in a single SQLite file. It is the only component that touches the
// schema; writes are serialized through the mutex.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (creating if needed) the catalog at dbPath.
// The path is explicit configuration: dbPath must be the full path to
// the database FILE and the parent directory must already exist and be
// writable. Use startup.LoadConfig() for directory validation.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Catalog database path: %s", dbPath)

	if err := diagnosePermissions(dbPath); err != nil {
		logging.Warn("Catalog permission diagnostics: %v", err)
	}

	// WAL with a busy timeout keeps readers responsive during import
	// batches; foreign keys enforce the photo_tags invariants.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	logging.Info("Catalog initialized at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	done := observeQuery("initialize_schema")

	schema := `
	CREATE TABLE IF NOT EXISTS photos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		filepath TEXT NOT NULL UNIQUE,
		file_size INTEGER NOT NULL DEFAULT 0,
		date_added INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		date_taken INTEGER,
		camera_make TEXT,
		camera_model TEXT,
		lens_model TEXT,
		focal_length REAL,
		aperture REAL,
		shutter_speed TEXT,
		iso INTEGER,
		flash TEXT,
		orientation INTEGER NOT NULL DEFAULT 1,
		width INTEGER,
		height INTEGER,
		gps_latitude REAL,
		gps_longitude REAL,
		gps_altitude REAL,
		gps_location_name TEXT,
		metadata_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_photos_date_added ON photos(date_added);
	CREATE INDEX IF NOT EXISTS idx_photos_date_taken ON photos(date_taken);
	CREATE INDEX IF NOT EXISTS idx_photos_filename ON photos(filename COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_photos_camera ON photos(camera_make, camera_model);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		color TEXT,
		created_date INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS photo_tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		photo_id INTEGER NOT NULL,
		tag_id INTEGER NOT NULL,
		assigned_date INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (photo_id) REFERENCES photos(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE,
		UNIQUE(photo_id, tag_id)
	);

	CREATE INDEX IF NOT EXISTS idx_photo_tags_photo ON photo_tags(photo_id);
	CREATE INDEX IF NOT EXISTS idx_photo_tags_tag ON photo_tags(tag_id);
	`

	_, err := d.db.ExecContext(ctx, schema)
	if err != nil {
		done(err)
		return err
	}

	err = d.runMigrations(ctx)
	done(err)
	return err
}

// runMigrations applies schema migrations for catalogs created before
// the current schema.
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: GPS columns. Early catalogs predate location
	// support.
	gpsColumns := map[string]string{
		"gps_latitude":      "REAL",
		"gps_longitude":     "REAL",
		"gps_altitude":      "REAL",
		"gps_location_name": "TEXT",
	}

	for column, colType := range gpsColumns {
		var columnExists bool
		err := d.db.QueryRowContext(ctx, `
			SELECT COUNT(*) > 0
			FROM pragma_table_info('photos')
			WHERE name = ?
		`, column).Scan(&columnExists)
		if err != nil {
			return fmt.Errorf("failed to check for %s column: %w", column, err)
		}

		if !columnExists {
			logging.Info("Migrating catalog: adding %s column to photos table", column)
			_, err = d.db.ExecContext(ctx,
				fmt.Sprintf("ALTER TABLE photos ADD COLUMN %s %s", column, colType))
			if err != nil {
				return fmt.Errorf("failed to add %s column: %w", column, err)
			}
		}
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Info returns the catalog's location and on-disk size (main file plus
// WAL), the data behind the database-information dialog.
func (d *Database) Info() Info {
	info := Info{Path: d.dbPath}
	for _, path := range []string{d.dbPath, d.dbPath + "-wal"} {
		if fi, err := os.Stat(path); err == nil {
			info.SizeBytes += fi.Size()
		}
	}
	return info
}

// GetStats implements metrics.StatsProvider for the periodic collector.
func (d *Database) GetStats() metrics.Stats {
	d.UpdateDBMetrics()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var stats metrics.Stats
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM photos").Scan(&stats.TotalPhotos); err != nil {
		logging.Debug("stats photo count failed: %v", err)
	}
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags").Scan(&stats.TotalTags); err != nil {
		logging.Debug("stats tag count failed: %v", err)
	}
	return stats
}

// UpdateDBMetrics exports connection-pool gauges.
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// Vacuum optimizes the database.
func (d *Database) Vacuum() error {
	done := observeQuery("vacuum")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err := d.db.ExecContext(ctx, "VACUUM")
	done(err)
	return err
}

// observeQuery starts a query observation; call the returned func with
// the query's final error.
func observeQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
		metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// diagnosePermissions checks catalog directory and file permissions.
func diagnosePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat catalog directory: %w", err)
	}
	logging.Debug("Catalog directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("catalog directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Catalog file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Catalog file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		sidecar := dbPath + suffix
		info, err := os.Stat(sidecar)
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s file is read-only! Mode: %v - this will cause write failures", sidecar, info.Mode())
			if chmodErr := os.Chmod(sidecar, 0o600); chmodErr != nil {
				logging.Error("Failed to fix %s permissions: %v", sidecar, chmodErr)
			} else {
				logging.Info("Fixed %s permissions", sidecar)
			}
		}
	}

	return nil
}
