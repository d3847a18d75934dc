// Package expiry removes definitions whose expires time has passed.
package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-logger/glog"
	"github.com/robfig/cron/v3"

	"github.com/roach88/taskq/internal/logging"
	"github.com/roach88/taskq/internal/store"
)

// Sweeper deletes expired records on a cron schedule.
type Sweeper struct {
	store    store.Store
	schedule cron.Schedule
	logger   glog.Logger
	now      func() time.Time
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// New returns a sweeper for s running on expr, a standard five-field cron
// expression or descriptor such as "@every 1h".
func New(s store.Store, expr string, logger glog.Logger, opts ...Option) (*Sweeper, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cron expression %q: %w", expr, err)
	}

	sw := &Sweeper{
		store:    s,
		schedule: schedule,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sw)
		}
	}
	return sw, nil
}

// Sweep deletes every record that expired before now.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	n, err := s.store.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.Error("expiry sweep failed", "error", err)
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired definitions removed", "count", n, "before", now.Format(time.RFC3339))
	} else {
		s.logger.Debug("expiry sweep found nothing", "before", now.Format(time.RFC3339))
	}
	return n, nil
}

// Next returns the next scheduled sweep after t.
func (s *Sweeper) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run sweeps on schedule until ctx is cancelled. Overlapping runs are
// skipped.
func (s *Sweeper) Run(ctx context.Context) error {
	lg := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(lg),
		cron.WithChain(cron.Recover(lg), cron.SkipIfStillRunning(lg)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() {
		_, _ = s.Sweep(ctx)
	}))

	s.logger.Info("expiry sweeper started", "next", s.Next(time.Now()).Format(time.RFC3339))
	c.Start()

	<-ctx.Done()

	<-c.Stop().Done()
	s.logger.Info("expiry sweeper stopped")
	return nil
}

// cronLogger adapts glog to cron.Logger.
type cronLogger struct {
	lg glog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.lg.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.lg.Error(msg, append(keysAndValues, "error", err)...)
}
