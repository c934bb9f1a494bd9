package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultBatchRunTimeout = 30 * time.Minute

// BatchRunner is anything that runs one notification batch.
type BatchRunner interface {
	RunBatch(ctx context.Context) (*BatchResult, error)
}

// Scheduler triggers the notification batch on a cron schedule. Overlapping
// runs are skipped.
type Scheduler struct {
	cron     *cron.Cron
	runner   BatchRunner
	schedule string
	timeout  time.Duration
	logger   *zap.Logger
}

func NewScheduler(runner BatchRunner, schedule string, timeout time.Duration, loc *time.Location, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("batch runner is required")
	}
	schedule = strings.TrimSpace(schedule)
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid notification schedule %q: %w", schedule, err)
	}
	if timeout <= 0 {
		timeout = defaultBatchRunTimeout
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:     c,
		runner:   runner,
		schedule: schedule,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

// Start blocks until ctx is cancelled, then waits for a running batch to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule notification batch: %w", err)
	}
	s.logger.Info("notification batch scheduled", zap.String("schedule", s.schedule))

	s.cron.Start()
	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.logger.Info("notification scheduler stopped")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	s.logger.Info("scheduled notification batch started")

	result, err := s.runner.RunBatch(runCtx)
	if err != nil {
		s.logger.Error("scheduled notification batch failed", zap.Error(err))
		return
	}

	s.logger.Info("scheduled notification batch finished",
		zap.Int("sent", result.Sent),
		zap.Int("omitted", result.Omitted),
		zap.Int("total", result.Total),
		zap.Duration("took", time.Since(started)),
	)
}
