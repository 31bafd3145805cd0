package dedup

import (
	"context"
	"sync"
)

// Index records which event IDs have already been processed.
// Implementations must be safe for concurrent use.
type Index interface {
	// Seen reports whether the event ID has been marked processed.
	Seen(ctx context.Context, eventID string) (bool, error)

	// Mark records the event ID as processed. Marking an already-marked
	// ID is a no-op.
	Mark(ctx context.Context, eventID string) error

	// Close releases any resources held by the index.
	Close() error
}

// MemoryIndex implements Index with an in-memory set.
type MemoryIndex struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewMemoryIndex creates a new in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{seen: make(map[string]struct{})}
}

// Seen reports whether the event ID has been marked processed.
func (i *MemoryIndex) Seen(ctx context.Context, eventID string) (bool, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.seen[eventID]
	return ok, nil
}

// Mark records the event ID as processed.
func (i *MemoryIndex) Mark(ctx context.Context, eventID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seen[eventID] = struct{}{}
	return nil
}

// Close releases no resources for the memory index.
func (i *MemoryIndex) Close() error {
	return nil
}
