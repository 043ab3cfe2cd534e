package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-prep/internal/logging"
	"media-prep/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when the outbox has no record for a lookup.
var ErrNotFound = errors.New("not found")

// Outbox stores prepared media, failures and completed albums.
type Outbox struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (creating if needed) the outbox database.
// dbPath is the full path to the database FILE; its parent directory must
// already exist and be writable.
func New(ctx context.Context, dbPath string) (*Outbox, error) {
	logging.Info("Outbox database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

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

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	o := &Outbox{
		db:     db,
		dbPath: dbPath,
	}

	if err := o.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Outbox initialized successfully at %s", dbPath)
	return o, nil
}

func (o *Outbox) initialize(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	-- Results handed over by finished tasks
	CREATE TABLE IF NOT EXISTS prepared_media (
		uuid TEXT PRIMARY KEY,
		task_id INTEGER NOT NULL UNIQUE,
		media_id TEXT NOT NULL,
		peer TEXT NOT NULL DEFAULT '',
		reply_to INTEGER NOT NULL DEFAULT 0,
		type TEXT NOT NULL,
		filename TEXT NOT NULL DEFAULT '',
		mime TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL,
		md5 TEXT NOT NULL DEFAULT '',
		part_count INTEGER NOT NULL DEFAULT 0,
		thumb_name TEXT NOT NULL DEFAULT '',
		thumb_md5 TEXT NOT NULL DEFAULT '',
		thumb_part_count INTEGER NOT NULL DEFAULT 0,
		caption TEXT NOT NULL DEFAULT '',
		group_id TEXT NOT NULL DEFAULT '',
		attributes TEXT NOT NULL DEFAULT '[]',
		photo_sizes TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_prepared_media_group ON prepared_media(group_id);

	-- Upload parts, 32 KiB each
	CREATE TABLE IF NOT EXISTS media_parts (
		media_uuid TEXT NOT NULL REFERENCES prepared_media(uuid) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		idx INTEGER NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (media_uuid, kind, idx)
	);

	-- Failures shown to the sender
	CREATE TABLE IF NOT EXISTS failures (
		uuid TEXT PRIMARY KEY,
		task_id INTEGER NOT NULL,
		filename TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_failures_task ON failures(task_id);

	-- Albums whose items all received media
	CREATE TABLE IF NOT EXISTS albums (
		group_id TEXT PRIMARY KEY,
		items TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	`

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = o.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (o *Outbox) Close() error {
	return o.db.Close()
}

// Path returns the database file path.
func (o *Outbox) Path() string {
	return o.dbPath
}

// withTx runs fn in a transaction, committing when it returns nil.
func (o *Outbox) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	txStart := time.Now()
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(txStart).Seconds())
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(time.Since(txStart).Seconds())
	return tx.Commit()
}

// Vacuum optimizes the database.
func (o *Outbox) Vacuum(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("vacuum", start, err) }()

	o.mu.Lock()
	defer o.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err = o.db.ExecContext(ctx, "VACUUM")
	return err
}

// UpdateDBMetrics updates database connection metrics
func (o *Outbox) UpdateDBMetrics() {
	stats := o.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	// Check if directory is writable by testing
	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file %s is read-only! Mode: %v - this will cause write failures", path, info.Mode())
			if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
				logging.Error("Failed to fix permissions of %s: %v", path, chmodErr)
			} else {
				logging.Info("Fixed permissions of %s", path)
			}
		}
	}

	return nil
}
