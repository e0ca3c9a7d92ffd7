// Package jobs runs the periodic maintenance work of the agent: the overdue
// sweep and the eager purge of expired conversation memory.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"invoice-agent/internal/metrics"

	rcron "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	OverdueSweep = "overdue_sweep"
	MemoryPurge  = "memory_purge"

	DefaultSweepSpec = "@hourly"
	PurgeSpec        = "@every 10m"

	runTimeout = time.Minute
)

// Runner is the maintenance surface of the application service.
type Runner interface {
	SweepOverdue(ctx context.Context) (int, error)
	PurgeMemory(ctx context.Context) (int, error)
}

type Scheduler struct {
	runner  Runner
	metrics *metrics.Metrics
	log     *zap.Logger

	mu     sync.Mutex
	cron   *rcron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(runner Runner, m *metrics.Metrics, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("jobs")
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:  runner,
		metrics: m,
		log:     log,
		cron: rcron.New(rcron.WithChain(
			rcron.Recover(cronLogger{log}),
			rcron.SkipIfStillRunning(cronLogger{log}),
		)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register schedules the overdue sweep on sweepSpec and the memory purge every
// ten minutes. An empty sweepSpec selects DefaultSweepSpec.
func (s *Scheduler) Register(sweepSpec string) error {
	if sweepSpec == "" {
		sweepSpec = DefaultSweepSpec
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.cron.AddFunc(sweepSpec, func() { _ = s.run(s.ctx, OverdueSweep) }); err != nil {
		return fmt.Errorf("schedule %s (%s): %w", OverdueSweep, sweepSpec, err)
	}
	if _, err := s.cron.AddFunc(PurgeSpec, func() { _ = s.run(s.ctx, MemoryPurge) }); err != nil {
		return fmt.Errorf("schedule %s: %w", MemoryPurge, err)
	}
	return nil
}

// Entries returns how many jobs are scheduled.
func (s *Scheduler) Entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", s.Entries()))
}

// Stop halts scheduling and waits up to five seconds for running jobs.
func (s *Scheduler) Stop() {
	s.cancel()
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn("stop timed out waiting for running jobs")
	}
	s.log.Info("scheduler stopped")
}

// RunOnce executes the named job immediately.
func (s *Scheduler) RunOnce(ctx context.Context, name string) (int, error) {
	switch name {
	case OverdueSweep, MemoryPurge:
	default:
		return 0, fmt.Errorf("unknown job %q", name)
	}
	return s.runCount(ctx, name)
}

func (s *Scheduler) run(ctx context.Context, name string) error {
	_, err := s.runCount(ctx, name)
	return err
}

func (s *Scheduler) runCount(ctx context.Context, name string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	start := time.Now()
	var (
		n   int
		err error
	)
	switch name {
	case OverdueSweep:
		n, err = s.runner.SweepOverdue(ctx)
	case MemoryPurge:
		n, err = s.runner.PurgeMemory(ctx)
	}
	s.metrics.RecordJob(name, err)

	fields := []zap.Field{
		zap.String("job", name),
		zap.Int("affected", n),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	}
	if err != nil {
		s.log.Error("job failed", append(fields, zap.Error(err))...)
		return n, err
	}
	s.log.Info("job finished", fields...)
	return n, nil
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct{ log *zap.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
