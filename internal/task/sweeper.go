package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesleonard/upscaler/internal/config"
	"github.com/jonesleonard/upscaler/internal/store"
)

// sweepTimeout bounds one scheduled sweep pass.
const sweepTimeout = time.Minute

// Sweeper periodically deletes expired correlation records and logs the ones
// that expired while still PENDING. A PENDING record past its expiry means
// the external job never delivered a recognizable callback; the parked
// execution has long since timed out on its own, so the sweep only reports,
// it does not resume.
type Sweeper struct {
	callbacks store.CallbackStore
	logger    *slog.Logger
	schedule  string
	limit     int

	cron    *cron.Cron
	entryID cron.EntryID
}

// NewSweeper creates a Sweeper from the given store and config.
func NewSweeper(
	callbacks store.CallbackStore,
	cfg config.SweeperConfig,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		callbacks: callbacks,
		logger:    logger.With("component", "sweeper"),
		schedule:  cfg.Schedule,
		limit:     cfg.OrphanReportLimit,
	}
}

// Start schedules the sweep and begins running it. The schedule is a
// standard 5-field cron expression.
func (s *Sweeper) Start() error {
	s.cron = cron.New()

	entryID, err := s.cron.AddFunc(s.schedule, s.runScheduled)
	if err != nil {
		return fmt.Errorf("failed to schedule sweep %q: %w", s.schedule, err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.logger.Info("sweeper started", "schedule", s.schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("sweeper stopped")
}

// runScheduled executes one cron-triggered pass under the sweep deadline, so
// a stalled store call cannot pin the cron goroutine forever.
func (s *Sweeper) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if err := s.Sweep(ctx); err != nil {
		s.logger.Error("sweep failed", "error", err)
	}
}

// Sweep runs one pass: report orphans, then delete every expired record.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := time.Now().UTC()

	orphans, err := s.callbacks.ListExpiredPending(ctx, now, s.limit)
	if err != nil {
		return fmt.Errorf("failed to list expired pending records: %w", err)
	}
	for _, record := range orphans {
		s.logger.Warn("job never called back before record expiry",
			"job_id", record.JobID,
			"exec_id", record.ExecID,
			"segment_filename", record.SegmentFilename,
			"created_at", record.CreatedAt,
			"expires_at", record.ExpiresAt)
	}

	deleted, err := s.callbacks.DeleteExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to delete expired records: %w", err)
	}

	if deleted > 0 || len(orphans) > 0 {
		s.logger.Info("sweep completed",
			"deleted", deleted,
			"orphans_reported", len(orphans))
	}
	return nil
}
