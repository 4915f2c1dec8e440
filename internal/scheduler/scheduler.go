// Package scheduler runs the day rollover: once at startup and then on a cron
// schedule in the business timezone.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/observability"
)

const (
	OutcomeCreated = "created"
	OutcomeNoop    = "noop"
	OutcomeError   = "error"

	runTimeout = 30 * time.Second
)

// Rollover makes sure today has a session. Implementations must be
// idempotent: a second call on the same day changes nothing.
type Rollover interface {
	EnsureToday(ctx context.Context) (*domain.BusinessSession, bool, error)
}

type Scheduler struct {
	cron    *cron.Cron
	job     Rollover
	logger  *slog.Logger
	metrics *observability.Metrics
}

func New(job Rollover, loc *time.Location, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		job:     job,
		logger:  logger,
		metrics: metrics,
	}
}

// RunOnce performs one rollover check and reports its outcome. Failures are
// logged and returned, never fatal.
func (s *Scheduler) RunOnce(ctx context.Context) (string, error) {
	session, created, err := s.job.EnsureToday(ctx)
	switch {
	case err != nil:
		s.metrics.RecordRollover(OutcomeError)
		s.logger.ErrorContext(ctx, "day rollover failed", "error", err)
		return OutcomeError, err
	case created:
		s.metrics.RecordRollover(OutcomeCreated)
		s.logger.InfoContext(ctx, "day rollover opened session", "session_id", session.ID, "date", session.Date, "name", session.Name)
		return OutcomeCreated, nil
	default:
		s.metrics.RecordRollover(OutcomeNoop)
		s.logger.DebugContext(ctx, "day rollover: session already exists", "date", session.Date)
		return OutcomeNoop, nil
	}
}

// Start registers the rollover under spec (standard cron syntax or
// descriptors such as "@every 1m") and starts the cron loop.
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		_, _ = s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("day rollover scheduled", "spec", spec)
	return nil
}

// Stop halts the schedule and waits for a running job, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("day rollover still running at shutdown")
	}
}
