package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"governor-hq/ganymede/pkg/audit"
)

// SQLiteConfig contains configuration for the SQLite audit storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// WALMode enables Write-Ahead Logging mode for better read concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/audit.db",
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStorage implements audit.Storage using SQLite. It is the engine's
// pluggable durable log: one writer, many concurrent readers under WAL mode.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage creates a new SQLite audit storage backend.
// It initializes the database schema and enables WAL mode if configured.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "audit.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}

	// The log serializes appends; a single connection keeps SQLite's own
	// writer locking out of the picture.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite audit storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up the database schema and enables WAL mode.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return audit.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Append persists an entry, enforcing contiguous sequence numbers.
func (s *SQLiteStorage) Append(ctx context.Context, entry *audit.Entry) error {
	last, err := s.LastSequence(ctx)
	if err != nil {
		return err
	}
	if entry.Sequence != last+1 {
		return &audit.CorruptLogError{Expected: last + 1, Got: entry.Sequence}
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return audit.NewStorageError("sqlite", "marshal", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_entries (sequence, timestamp, kind, payload) VALUES (?, ?, ?, ?)`,
		entry.Sequence, entry.Timestamp.UTC(), string(entry.Kind), string(payload),
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "append", err)
	}
	return nil
}

// LastSequence returns the highest persisted sequence number.
func (s *SQLiteStorage) LastSequence(ctx context.Context) (uint64, error) {
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM audit_entries`).Scan(&last)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "last_sequence", err)
	}
	if !last.Valid {
		return 0, nil
	}
	return uint64(last.Int64), nil
}

// Range returns entries with from <= sequence <= to in order.
func (s *SQLiteStorage) Range(ctx context.Context, from, to uint64) ([]*audit.Entry, error) {
	if from == 0 {
		from = 1
	}

	query := `SELECT payload FROM audit_entries WHERE sequence >= ?`
	args := []any{from}
	if to > 0 {
		query += ` AND sequence <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY sequence ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "range", err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "range", err)
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	return entries, nil
}

// Stream returns all entries in sequence order.
func (s *SQLiteStorage) Stream(ctx context.Context) (<-chan *audit.Entry, <-chan error, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM audit_entries ORDER BY sequence ASC`)
	if err != nil {
		return nil, nil, audit.NewStorageError("sqlite", "stream", err)
	}

	entriesCh := make(chan *audit.Entry, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(entriesCh)
		defer close(errCh)
		defer rows.Close()

		for rows.Next() {
			entry, err := scanEntry(rows)
			if err != nil {
				errCh <- err
				return
			}

			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case entriesCh <- entry:
			}
		}
		if err := rows.Err(); err != nil {
			errCh <- audit.NewStorageError("sqlite", "stream", err)
		}
	}()

	return entriesCh, errCh, nil
}

// Count returns the number of persisted entries.
func (s *SQLiteStorage) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_entries`).Scan(&count)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// scanEntry decodes a payload row back into an Entry.
func scanEntry(rows *sql.Rows) (*audit.Entry, error) {
	var payload string
	if err := rows.Scan(&payload); err != nil {
		return nil, audit.NewStorageError("sqlite", "scan", err)
	}

	var entry audit.Entry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		return nil, audit.NewStorageError("sqlite", "unmarshal", err)
	}
	return &entry, nil
}
