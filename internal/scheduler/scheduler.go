package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job represents a scheduled job
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler manages background jobs. A run that is still going when its
// next tick fires makes that tick skip.
type Scheduler struct {
	cron    *cron.Cron
	log     *zap.Logger
	timeout time.Duration
}

// New creates a new scheduler. Each run gets at most timeout; zero means no limit.
func New(log *zap.Logger, timeout time.Duration) *Scheduler {
	log = log.With(zap.String("component", "scheduler"))
	cl := cronLogger{log: log.Sugar()}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		log:     log,
		timeout: timeout,
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Scheduler stopped")
}

// AddJob registers a job on a standard five-field cron spec or a descriptor:
//   - "*/15 9-16 * * MON-FRI" - every 15 minutes during US market hours
//   - "@hourly"               - every hour
//   - "@every 30s"            - every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if _, err := s.cron.AddFunc(schedule, s.wrap(job)); err != nil {
		return err
	}

	s.log.Info("Job registered",
		zap.String("schedule", schedule),
		zap.String("job", job.Name()))

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	s.log.Info("Running job immediately", zap.String("job", job.Name()))
	return job.Run(ctx)
}

func (s *Scheduler) wrap(job Job) func() {
	return func() {
		ctx := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		start := time.Now()
		s.log.Debug("Running job", zap.String("job", job.Name()))

		if err := job.Run(ctx); err != nil {
			s.log.Error("Job failed",
				zap.String("job", job.Name()),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return
		}
		s.log.Debug("Job completed", zap.String("job", job.Name()), zap.Duration("elapsed", time.Since(start)))
	}
}

// cronLogger adapts zap to cron's logger for the recover and skip wrappers.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
