package storage

import (
	"context"
	"sync"

	"governor-hq/ganymede/pkg/audit"
)

// MemoryStorage implements audit.Storage with an in-memory slice.
// Entries are copied on the way in and out so callers can never mutate
// what the log has committed.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

// NewMemoryStorage creates a new in-memory audit storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Append persists an entry, enforcing contiguous sequence numbers.
func (s *MemoryStorage) Append(ctx context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expected := uint64(len(s.entries)) + 1
	if entry.Sequence != expected {
		return &audit.CorruptLogError{Expected: expected, Got: entry.Sequence}
	}

	s.entries = append(s.entries, *entry)
	return nil
}

// LastSequence returns the highest persisted sequence number.
func (s *MemoryStorage) LastSequence(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.entries)), nil
}

// Range returns entries with from <= sequence <= to in order.
func (s *MemoryStorage) Range(ctx context.Context, from, to uint64) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if from == 0 {
		from = 1
	}
	last := uint64(len(s.entries))
	if to == 0 || to > last {
		to = last
	}
	if from > to {
		return []*audit.Entry{}, nil
	}

	out := make([]*audit.Entry, 0, to-from+1)
	for seq := from; seq <= to; seq++ {
		entry := s.entries[seq-1]
		out = append(out, &entry)
	}
	return out, nil
}

// Stream returns all entries in sequence order.
func (s *MemoryStorage) Stream(ctx context.Context) (<-chan *audit.Entry, <-chan error, error) {
	// Snapshot under the read lock so the stream is consistent even if
	// appends continue while the consumer drains.
	s.mu.RLock()
	snapshot := make([]audit.Entry, len(s.entries))
	copy(snapshot, s.entries)
	s.mu.RUnlock()

	entriesCh := make(chan *audit.Entry, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(entriesCh)
		defer close(errCh)

		for i := range snapshot {
			entry := snapshot[i]
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case entriesCh <- &entry:
			}
		}
	}()

	return entriesCh, errCh, nil
}

// Count returns the number of persisted entries.
func (s *MemoryStorage) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// Close releases no resources for the memory backend.
func (s *MemoryStorage) Close() error {
	return nil
}
