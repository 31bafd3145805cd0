package dedup

import (
	"context"
	"path/filepath"
	"testing"
)

// indexContract exercises the Index behavior shared by all backends.
func indexContract(t *testing.T, idx Index) {
	t.Helper()
	ctx := context.Background()

	seen, err := idx.Seen(ctx, "ev-1")
	if err != nil {
		t.Fatalf("Seen() failed: %v", err)
	}
	if seen {
		t.Error("fresh index reports ev-1 as seen")
	}

	if err := idx.Mark(ctx, "ev-1"); err != nil {
		t.Fatalf("Mark() failed: %v", err)
	}
	seen, err = idx.Seen(ctx, "ev-1")
	if err != nil {
		t.Fatalf("Seen() failed: %v", err)
	}
	if !seen {
		t.Error("marked ID not reported as seen")
	}

	// Marking again is a no-op, not an error.
	if err := idx.Mark(ctx, "ev-1"); err != nil {
		t.Fatalf("repeated Mark() failed: %v", err)
	}

	seen, err = idx.Seen(ctx, "ev-2")
	if err != nil {
		t.Fatalf("Seen() failed: %v", err)
	}
	if seen {
		t.Error("unmarked ID reported as seen")
	}
}

func TestMemoryIndex(t *testing.T) {
	idx := NewMemoryIndex()
	defer idx.Close()
	indexContract(t, idx)
}

func TestSQLiteIndex(t *testing.T) {
	idx, err := NewSQLiteIndex(SQLiteIndexConfig{
		Path: filepath.Join(t.TempDir(), "dedup.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteIndex() failed: %v", err)
	}
	defer idx.Close()
	indexContract(t, idx)
}

// TestSQLiteIndex_SurvivesReopen tests that the processed set persists.
func TestSQLiteIndex_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup.db")
	ctx := context.Background()

	idx, err := NewSQLiteIndex(SQLiteIndexConfig{Path: path})
	if err != nil {
		t.Fatalf("NewSQLiteIndex() failed: %v", err)
	}
	if err := idx.Mark(ctx, "ev-1"); err != nil {
		t.Fatalf("Mark() failed: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reopened, err := NewSQLiteIndex(SQLiteIndexConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	seen, err := reopened.Seen(ctx, "ev-1")
	if err != nil {
		t.Fatalf("Seen() failed: %v", err)
	}
	if !seen {
		t.Error("processed set lost across reopen")
	}
}

// TestNewSQLiteIndex_RequiresPath tests the path validation.
func TestNewSQLiteIndex_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteIndex(SQLiteIndexConfig{}); err == nil {
		t.Fatal("NewSQLiteIndex with empty path succeeded, want error")
	}
}
