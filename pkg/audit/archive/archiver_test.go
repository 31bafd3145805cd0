package archive

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"governor-hq/ganymede/pkg/audit"
	"governor-hq/ganymede/pkg/audit/export"
	"governor-hq/ganymede/pkg/audit/storage"
)

func newTestArchiver(t *testing.T, dir string) (*Archiver, *audit.Log) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	log, err := audit.New(storage.NewMemoryStorage(), logger)
	if err != nil {
		t.Fatalf("audit.New() failed: %v", err)
	}
	a, err := NewArchiver(log, Config{Dir: dir}, logger)
	if err != nil {
		t.Fatalf("NewArchiver() failed: %v", err)
	}
	return a, log
}

func appendEvents(t *testing.T, log *audit.Log, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := log.AppendEvent(context.Background(), audit.EventRecord{
			EventID: "ev", Type: "deal.lost", EntityID: "e-1",
		}); err != nil {
			t.Fatalf("AppendEvent() failed: %v", err)
		}
	}
}

// TestArchiver_Run tests that a run exports exactly the entries appended
// since the previous run.
func TestArchiver_Run(t *testing.T) {
	dir := t.TempDir()
	a, log := newTestArchiver(t, dir)
	ctx := context.Background()

	appendEvents(t, log, 3)
	count, err := a.Run(ctx)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Run() archived %d entries, want 3", count)
	}
	if a.LastArchived() != 3 {
		t.Errorf("LastArchived() = %d, want 3", a.LastArchived())
	}

	// A second run with nothing new writes no file.
	count, err = a.Run(ctx)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("empty Run() archived %d entries, want 0", count)
	}

	// Two more entries: only those land in the second file.
	appendEvents(t, log, 2)
	count, err = a.Run(ctx)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Run() archived %d entries, want 2", count)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("archive dir has %d files, want 2", len(files))
	}
	for _, f := range files {
		if !strings.HasPrefix(f.Name(), "audit-") || !strings.HasSuffix(f.Name(), ".jsonl") {
			t.Errorf("unexpected archive file name %q", f.Name())
		}
	}
}

// TestArchiver_FilesReplay tests that concatenated archive files replay into
// a contiguous sequence.
func TestArchiver_FilesReplay(t *testing.T) {
	dir := t.TempDir()
	a, log := newTestArchiver(t, dir)
	ctx := context.Background()

	appendEvents(t, log, 4)
	if _, err := a.Run(ctx); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	appendEvents(t, log, 2)
	if _, err := a.Run(ctx); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}

	var expected uint64 = 1
	for _, fi := range files {
		f, err := os.Open(filepath.Join(dir, fi.Name()))
		if err != nil {
			t.Fatalf("Open(%q) failed: %v", fi.Name(), err)
		}
		_, err = export.ReadLines(ctx, f, func(e audit.Entry) error {
			if e.Sequence != expected {
				t.Errorf("sequence gap in archives: got %d, want %d", e.Sequence, expected)
			}
			expected++
			return nil
		})
		f.Close()
		if err != nil {
			t.Fatalf("ReadLines(%q) failed: %v", fi.Name(), err)
		}
	}
	if expected != 7 {
		t.Errorf("replayed %d entries across archives, want 6", expected-1)
	}
}

// TestNewArchiver_Validation tests constructor argument checks.
func TestNewArchiver_Validation(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	log, err := audit.New(storage.NewMemoryStorage(), logger)
	if err != nil {
		t.Fatalf("audit.New() failed: %v", err)
	}

	if _, err := NewArchiver(nil, Config{Dir: "x"}, logger); err == nil {
		t.Error("NewArchiver(nil log) succeeded, want error")
	}
	if _, err := NewArchiver(log, Config{}, logger); err == nil {
		t.Error("NewArchiver with empty dir succeeded, want error")
	}
}

// TestScheduler_InvalidSchedule tests that a bad cron expression fails Start.
func TestScheduler_InvalidSchedule(t *testing.T) {
	a, _ := newTestArchiver(t, t.TempDir())
	a.config.Schedule = "not a cron line"

	s := NewScheduler(a)
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("Start() with invalid schedule succeeded, want error")
	}
	if s.IsRunning() {
		t.Error("scheduler reports running after failed Start")
	}
}

// TestScheduler_EmptyScheduleIsNoop tests that an empty schedule disables
// the scheduler without error.
func TestScheduler_EmptyScheduleIsNoop(t *testing.T) {
	a, _ := newTestArchiver(t, t.TempDir())

	s := NewScheduler(a)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if s.IsRunning() {
		t.Error("scheduler should not run with empty schedule")
	}
}
