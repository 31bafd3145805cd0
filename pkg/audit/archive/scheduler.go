package archive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the archiver at scheduled intervals using cron syntax.
type Scheduler struct {
	archiver *Archiver
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewScheduler creates a new archive scheduler.
func NewScheduler(archiver *Archiver) *Scheduler {
	return &Scheduler{
		archiver: archiver,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "audit.archive.scheduler"),
	}
}

// Start begins scheduled archiving based on the archiver's cron expression.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "0 */6 * * *"  - Every 6 hours
//   - "@hourly"      - Every hour
//
// If the schedule is empty, the scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule := s.archiver.config.Schedule
	if schedule == "" {
		s.logger.Info("archive schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.runArchive(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule archiving: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("archive scheduler started",
		"schedule", schedule,
		"dir", s.archiver.config.Dir,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runArchive executes one archive cycle.
func (s *Scheduler) runArchive(ctx context.Context) {
	count, err := s.archiver.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled archiving failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("scheduled archiving completed", "archived_count", count)
	} else {
		s.logger.Debug("scheduled archiving completed, nothing new")
	}
}

// Stop stops the scheduler and waits for any running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("archive scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
