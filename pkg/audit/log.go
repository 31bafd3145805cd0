package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Log is the append-only audit log. It owns sequence number assignment and
// serializes all appends (single-writer semantics); entries are immutable
// once appended.
type Log struct {
	storage Storage

	// mu serializes appends so sequence numbers are assigned and persisted
	// without interleaving.
	mu sync.Mutex

	// lastSeq is the sequence number of the most recently appended entry.
	lastSeq uint64

	// corrupt latches once a sequence violation is observed; all further
	// appends are refused.
	corrupt atomic.Bool

	logger *slog.Logger
}

// New creates a Log over the given storage backend, recovering the last
// persisted sequence number so appends continue where a previous process
// left off.
func New(storage Storage, logger *slog.Logger) (*Log, error) {
	if storage == nil {
		return nil, fmt.Errorf("audit storage cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	last, err := storage.LastSequence(context.Background())
	if err != nil {
		return nil, fmt.Errorf("recover last sequence: %w", err)
	}

	l := &Log{
		storage: storage,
		lastSeq: last,
		logger:  logger.With("component", "audit.log"),
	}

	l.logger.Info("audit log opened", "last_sequence", last)
	return l, nil
}

// AppendEvent appends a KindEventEmitted entry.
func (l *Log) AppendEvent(ctx context.Context, rec EventRecord) (Entry, error) {
	return l.append(ctx, Entry{Kind: KindEventEmitted, Event: &rec})
}

// AppendTransition appends a KindStateTransitioned entry.
func (l *Log) AppendTransition(ctx context.Context, rec TransitionRecord) (Entry, error) {
	return l.append(ctx, Entry{Kind: KindStateTransitioned, Transition: &rec})
}

// AppendModeChange appends a KindPolicyModeChanged entry.
func (l *Log) AppendModeChange(ctx context.Context, rec ModeChangeRecord) (Entry, error) {
	return l.append(ctx, Entry{Kind: KindPolicyModeChanged, ModeChange: &rec})
}

// append assigns the next sequence number and persists the entry.
func (l *Log) append(ctx context.Context, entry Entry) (Entry, error) {
	if l.corrupt.Load() {
		return Entry{}, ErrLogHalted
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Sequence = l.lastSeq + 1
	entry.Timestamp = time.Now().UTC()

	if err := l.storage.Append(ctx, &entry); err != nil {
		if ce, ok := err.(*CorruptLogError); ok {
			l.corrupt.Store(true)
			l.logger.Error("audit log corruption detected, halting appends",
				"expected", ce.Expected,
				"got", ce.Got,
			)
			return Entry{}, ce
		}
		return Entry{}, err
	}

	l.lastSeq = entry.Sequence
	return entry, nil
}

// LastSequence returns the sequence number of the most recent entry, or 0
// for an empty log.
func (l *Log) LastSequence() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}

// Corrupt reports whether a sequence violation has been observed. A corrupt
// log refuses all further appends.
func (l *Log) Corrupt() bool {
	return l.corrupt.Load()
}

// Count returns the number of entries in the log.
func (l *Log) Count(ctx context.Context) (int64, error) {
	return l.storage.Count(ctx)
}

// Range returns entries with from <= sequence <= to in order. A to of 0
// means "through the end of the log".
func (l *Log) Range(ctx context.Context, from, to uint64) ([]*Entry, error) {
	return l.storage.Range(ctx, from, to)
}

// Replay streams every entry in sequence order through apply, verifying that
// sequence numbers are contiguous and strictly increasing. On a sequence
// violation the log is marked corrupt and a CorruptLogError is returned.
// Replay is read-only with respect to the log itself and may run concurrently
// with appends; it observes the entries committed before it started draining.
func (l *Log) Replay(ctx context.Context, apply func(Entry) error) error {
	entries, errCh, err := l.storage.Stream(ctx)
	if err != nil {
		return err
	}

	var expected uint64 = 1
	for entry := range entries {
		if entry.Sequence != expected {
			l.corrupt.Store(true)
			// Drain so the storage goroutine can exit.
			for range entries {
			}
			<-errCh
			return &CorruptLogError{Expected: expected, Got: entry.Sequence}
		}
		expected++

		if err := apply(*entry); err != nil {
			for range entries {
			}
			<-errCh
			return fmt.Errorf("replay apply at sequence %d: %w", entry.Sequence, err)
		}
	}

	if err := <-errCh; err != nil {
		return err
	}
	return nil
}

// Close closes the underlying storage backend.
func (l *Log) Close() error {
	return l.storage.Close()
}
