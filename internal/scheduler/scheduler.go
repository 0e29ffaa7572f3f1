// Package scheduler runs full index rebuilds on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hyperjump/searchsync/internal/indexer"
)

// Runner performs one rebuild.
type Runner interface {
	Run(ctx context.Context, opts indexer.RebuildOptions) (indexer.BulkReport, error)
}

// Scheduler wraps a cron instance running the rebuild job.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler. schedule uses the standard five-field cron syntax
// or a descriptor such as "@daily".
func New(schedule string, runner Runner, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("system", "cron"))
	c := cron.New(
		cron.WithChain(
			recoverWrapper(logger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		),
	)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, runner: runner, logger: logger, ctx: ctx, cancel: cancel}
	if _, err := c.AddJob(schedule, rebuildJob{s: s}); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid rebuild schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start starts the cron scheduler in the background.
func (s *Scheduler) Start() {
	s.logger.Info("Cron scheduler started")
	s.cron.Start()
}

// Stop cancels a running rebuild and waits for it to return.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping cron scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
}

// Next returns the next scheduled run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

type rebuildJob struct {
	s *Scheduler
}

func (j rebuildJob) Run() {
	log := j.s.logger.With(zap.String("execution_id", uuid.New().String()))
	log.Info("Scheduled rebuild started")
	report, err := j.s.runner.Run(j.s.ctx, indexer.RebuildOptions{})
	switch {
	case errors.Is(err, indexer.ErrBuildRunning):
		log.Info("Scheduled rebuild skipped, another build holds the lock")
	case err != nil:
		log.Error("Scheduled rebuild failed", zap.Error(err))
	default:
		log.Info("Scheduled rebuild finished",
			zap.Int("total", report.Total),
			zap.Int("failed", report.Failed()),
			zap.Duration("duration", report.Duration))
	}
}

func recoverWrapper(logger *zap.Logger) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Job panicked",
						zap.Any("panic", r),
						zap.String("stack_trace", string(debug.Stack())))
				}
			}()
			j.Run()
		})
	}
}
