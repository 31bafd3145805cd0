package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteIndex implements Index on a SQLite database so the processed-event
// set survives restarts.
type SQLiteIndex struct {
	db *sql.DB

	seenStmt *sql.Stmt
	markStmt *sql.Stmt
}

// SQLiteIndexConfig contains configuration for the SQLite index.
type SQLiteIndexConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteIndex creates a SQLite-backed processed-event index.
func NewSQLiteIndex(cfg SQLiteIndexConfig) (*SQLiteIndex, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	idx := &SQLiteIndex{db: db}

	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := idx.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return idx, nil
}

// initSchema creates the database schema if it doesn't exist.
func (i *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS processed_events (
		event_id TEXT PRIMARY KEY,
		processed_at INTEGER NOT NULL
	);
	`
	_, err := i.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (i *SQLiteIndex) prepareStatements() error {
	var err error

	i.seenStmt, err = i.db.Prepare(`SELECT 1 FROM processed_events WHERE event_id = ?`)
	if err != nil {
		return err
	}

	i.markStmt, err = i.db.Prepare(`
		INSERT INTO processed_events (event_id, processed_at) VALUES (?, ?)
		ON CONFLICT (event_id) DO NOTHING`)
	return err
}

// Seen reports whether the event ID has been marked processed.
func (i *SQLiteIndex) Seen(ctx context.Context, eventID string) (bool, error) {
	var one int
	err := i.seenStmt.QueryRowContext(ctx, eventID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup seen: %w", err)
	}
	return true, nil
}

// Mark records the event ID as processed.
func (i *SQLiteIndex) Mark(ctx context.Context, eventID string) error {
	_, err := i.markStmt.ExecContext(ctx, eventID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("dedup mark: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (i *SQLiteIndex) Close() error {
	if i.seenStmt != nil {
		i.seenStmt.Close()
	}
	if i.markStmt != nil {
		i.markStmt.Close()
	}
	return i.db.Close()
}
