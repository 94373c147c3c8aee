package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"photo-archive/internal/logging"
	"photo-archive/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database manages all catalog storage for the photo archive.
type Database struct {
	db      *sql.DB
	dbPath  string
	mu      sync.RWMutex
	txStart time.Time // transaction start time for metrics
}

// New creates a new Database instance.
// dbPath must be the full path to the database file (e.g. "/database/catalog.db")
// and the parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// WAL mode and busy_timeout prevent "database is locked" errors when
	// a maintenance run writes while pollers read.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
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
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	-- Catalog of known photo files. Rows are soft-deleted (deleted_at set)
	-- when the source file disappears so they can be restored if it returns.
	CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		filename TEXT NOT NULL,
		ext TEXT NOT NULL,
		mime TEXT,
		size INTEGER NOT NULL DEFAULT 0,
		mod_time INTEGER NOT NULL,
		width INTEGER,
		height INTEGER,
		orientation TEXT NOT NULL DEFAULT 'unknown',
		shot_at INTEGER,
		shot_at_checked_at INTEGER,
		title TEXT,
		description TEXT,
		keywords_text TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		last_seen INTEGER NOT NULL DEFAULT 0,
		deleted_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_files_deleted_at ON files(deleted_at);
	CREATE INDEX IF NOT EXISTS idx_files_mod_time ON files(mod_time);
	CREATE INDEX IF NOT EXISTS idx_files_last_seen ON files(last_seen);
	CREATE INDEX IF NOT EXISTS idx_files_shot_at ON files(shot_at);

	-- Keyword dictionary with usage counts for ranked suggestions
	CREATE TABLE IF NOT EXISTS keywords (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		value_norm TEXT NOT NULL UNIQUE,
		value_display TEXT NOT NULL,
		usage_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_keywords_norm ON keywords(value_norm);
	CREATE INDEX IF NOT EXISTS idx_keywords_usage ON keywords(usage_count);

	CREATE TABLE IF NOT EXISTS file_keywords (
		file_id TEXT NOT NULL,
		keyword_id INTEGER NOT NULL,
		FOREIGN KEY (keyword_id) REFERENCES keywords(id) ON DELETE CASCADE,
		UNIQUE(file_id, keyword_id)
	);

	CREATE INDEX IF NOT EXISTS idx_file_keywords_file ON file_keywords(file_id);
	CREATE INDEX IF NOT EXISTS idx_file_keywords_keyword ON file_keywords(keyword_id);

	-- Preview artifacts per file (thumb + medium JPEG keys on disk)
	CREATE TABLE IF NOT EXISTS previews (
		file_id TEXT PRIMARY KEY,
		thumb_key TEXT NOT NULL,
		medium_key TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Full-text keyword index over the denormalized keywords_text column.
	-- This is the query-and-rank primitive the search executor consumes.
	CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
		filename,
		title,
		description,
		keywords_text,
		content='files',
		content_rowid='rowid'
	);

	CREATE TRIGGER IF NOT EXISTS files_ai AFTER INSERT ON files BEGIN
		INSERT INTO files_fts(rowid, filename, title, description, keywords_text)
		VALUES (new.rowid, new.filename, new.title, new.description, new.keywords_text);
	END;

	CREATE TRIGGER IF NOT EXISTS files_ad AFTER DELETE ON files BEGIN
		INSERT INTO files_fts(files_fts, rowid, filename, title, description, keywords_text)
		VALUES('delete', old.rowid, old.filename, old.title, old.description, old.keywords_text);
	END;

	CREATE TRIGGER IF NOT EXISTS files_au AFTER UPDATE ON files BEGIN
		INSERT INTO files_fts(files_fts, rowid, filename, title, description, keywords_text)
		VALUES('delete', old.rowid, old.filename, old.title, old.description, old.keywords_text);
		INSERT INTO files_fts(rowid, filename, title, description, keywords_text)
		VALUES (new.rowid, new.filename, new.title, new.description, new.keywords_text);
	END;
	`

	_, err := d.db.ExecContext(ctx, schema)
	if err != nil {
		return err
	}

	return d.runMigrations(ctx)
}

// runMigrations applies database schema migrations
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: add shot_at_checked_at column if it doesn't exist
	// (backfill progress was originally tracked outside the catalog)
	var columnExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('files')
		WHERE name='shot_at_checked_at'
	`).Scan(&columnExists)

	if err != nil {
		return fmt.Errorf("failed to check for shot_at_checked_at column: %w", err)
	}

	if !columnExists {
		logging.Info("Migrating database: adding shot_at_checked_at column to files table")

		_, err = d.db.ExecContext(ctx, `
			ALTER TABLE files ADD COLUMN shot_at_checked_at INTEGER
		`)
		if err != nil {
			return fmt.Errorf("failed to add shot_at_checked_at column: %w", err)
		}

		// Files that already have shot_at were clearly checked
		_, err = d.db.ExecContext(ctx, `
			UPDATE files SET shot_at_checked_at = updated_at WHERE shot_at IS NOT NULL
		`)
		if err != nil {
			return fmt.Errorf("failed to initialize shot_at_checked_at values: %w", err)
		}

		logging.Info("Migration complete: shot_at_checked_at column added and initialized")
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// BeginBatch starts a transaction for batch operations.
// The caller is responsible for calling EndBatch when done.
func (d *Database) BeginBatch() (*sql.Tx, error) {
	// Only protect transaction creation; holding the lock for the whole
	// batch would starve pollers reading run status counts.
	d.mu.Lock()
	txStart := time.Now()

	// Background context - transaction lifetime is managed by EndBatch,
	// not a timeout. A deferred cancel here would kill the transaction
	// the moment this function returns.
	tx, err := d.db.BeginTx(context.Background(), nil)
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}

	d.txStart = txStart
	return tx, nil
}

// EndBatch commits or rolls back a transaction.
func (d *Database) EndBatch(tx *sql.Tx, err error) error {
	duration := time.Since(d.txStart).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		rbErr := tx.Rollback()
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// Vacuum optimizes the database.
func (d *Database) Vacuum() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}
