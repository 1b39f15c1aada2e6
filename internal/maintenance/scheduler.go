package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/edgedesk/scanforge/internal/config"
	"github.com/edgedesk/scanforge/internal/registry"
)

// Scheduler runs background housekeeping: pruning aged-out scan sessions and
// flushing registry snapshots through the store.
type Scheduler struct {
	logger    *slog.Logger
	cfg       config.CleanupConfig
	cron      *cron.Cron
	params    *registry.ParameterRegistry
	columns   *registry.ColumnRegistry
	sessions  *registry.SessionRegistry
	flushBusy chan struct{}
}

// NewScheduler constructs the maintenance scheduler.
func NewScheduler(
	logger *slog.Logger,
	cfg config.CleanupConfig,
	params *registry.ParameterRegistry,
	columns *registry.ColumnRegistry,
	sessions *registry.SessionRegistry,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger:    logger,
		cfg:       cfg,
		cron:      cron.New(),
		params:    params,
		columns:   columns,
		sessions:  sessions,
		flushBusy: make(chan struct{}, 1),
	}
}

// Start registers the cleanup job and begins the cron loop.
func (s *Scheduler) Start() error {
	schedule := s.cfg.Schedule
	if schedule == "" {
		schedule = "@every 5m"
	}
	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("maintenance scheduler started", slog.String("schedule", schedule))
	return nil
}

// Stop halts the cron loop and runs one final flush so state survives a
// restart.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.flush(ctx)
}

// runOnce prunes terminal sessions past retention and flushes snapshots.
// Overlapping runs are skipped.
func (s *Scheduler) runOnce() {
	select {
	case s.flushBusy <- struct{}{}:
		defer func() { <-s.flushBusy }()
	default:
		return
	}

	retention := s.cfg.SessionRetention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if s.sessions != nil {
		s.sessions.PruneOlderThan(time.Now().Add(-retention))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.flush(ctx)
}

func (s *Scheduler) flush(ctx context.Context) {
	if s.params != nil {
		if err := s.params.Flush(ctx); err != nil {
			s.logger.Warn("parameter snapshot flush failed", slog.Any("error", err))
		}
	}
	if s.columns != nil {
		if err := s.columns.Flush(ctx); err != nil {
			s.logger.Warn("column snapshot flush failed", slog.Any("error", err))
		}
	}
	if s.sessions != nil {
		if err := s.sessions.Flush(ctx); err != nil {
			s.logger.Warn("session snapshot flush failed", slog.Any("error", err))
		}
	}
}
