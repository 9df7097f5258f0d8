// Package scheduler drives borg-scheduler: wait for the next cron trigger,
// make sure the repository exists, create an archive, report, repeat.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/raoulx24/borg-scheduler/internal/borg"
	"github.com/raoulx24/borg-scheduler/internal/config"
	"github.com/raoulx24/borg-scheduler/internal/logging"
	"github.com/raoulx24/borg-scheduler/internal/repository"
)

// Clock yields trigger instants strictly after ref.
type Clock interface {
	Next(ref time.Time) (time.Time, error)
}

// Guard makes sure the repository exists before each archive.
type Guard interface {
	Ensure(ctx context.Context, cfg config.ScheduleConfig) (repository.State, error)
}

// Invoker creates one archive.
type Invoker interface {
	Create(ctx context.Context, cfg config.ScheduleConfig) (*borg.ArchiveResult, error)
}

// Retention prunes after a successful archive. Apply is skipped when
// Enabled is false.
type Retention interface {
	Enabled() bool
	Apply(ctx context.Context, repository, passphrase string) error
}

// Reporter receives every outcome of an iteration. It decides what is
// logged and whether an error ends the process.
type Reporter interface {
	ReportRepository(state repository.State, err error)
	ReportArchive(res *borg.ArchiveResult, err error)
	ReportPrune(err error)
	ReportNext(next time.Time, wait time.Duration)
}

// Notifier receives lifecycle events, e.g. for systemd.
type Notifier interface {
	Ready()
	Next(next time.Time)
	Stopping()
}

// Loop is single-threaded: one wait, then one synchronous iteration.
type Loop struct {
	cfg       config.ScheduleConfig
	clock     Clock
	guard     Guard
	invoker   Invoker
	reporter  Reporter
	retention Retention
	notifier  Notifier
	log       logging.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Loop.
type Option func(*Loop)

// WithRetention prunes after each successful creation.
func WithRetention(r Retention) Option { return func(l *Loop) { l.retention = r } }

// WithNotifier forwards lifecycle events, e.g. to systemd.
func WithNotifier(n Notifier) Option { return func(l *Loop) { l.notifier = n } }

// WithLogger sets the logger for start and stop messages.
func WithLogger(log logging.Logger) Option { return func(l *Loop) { l.log = log } }

// WithClock replaces the wall clock and the wait, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Loop) {
		l.now = now
		l.sleep = sleep
	}
}

// New builds a loop over cfg. Without options it waits on the wall clock
// and notifies nobody.
func New(cfg config.ScheduleConfig, clock Clock, guard Guard, invoker Invoker, reporter Reporter, opts ...Option) *Loop {
	l := &Loop{
		cfg:      cfg,
		clock:    clock,
		guard:    guard,
		invoker:  invoker,
		reporter: reporter,
		notifier: nopNotifier{},
		now:      time.Now,
		sleep:    sleep,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Run loops until ctx is cancelled, which only interrupts the wait: an
// iteration that already started runs to completion. It returns nil on
// cancellation and an error only when no next trigger can be computed.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("scheduler started", logging.String("config", l.cfg.String()))
	l.notifier.Ready()
	defer l.notifier.Stopping()

	for {
		// always from the current instant, so missed slots are skipped
		now := l.now()
		next, err := l.clock.Next(now)
		if err != nil {
			return fmt.Errorf("computing next trigger: %w", err)
		}

		wait := next.Sub(now)
		l.reporter.ReportNext(next, wait)
		l.notifier.Next(next)

		if err := l.sleep(ctx, wait); err != nil {
			l.log.Info("scheduler stopped", logging.Err(err))
			return nil
		}

		_, _ = l.RunOnce(context.WithoutCancel(ctx))
	}
}

// RunOnce performs one iteration and reports every outcome. Errors are
// returned for callers that run a single iteration; Run ignores them.
func (l *Loop) RunOnce(ctx context.Context) (*borg.ArchiveResult, error) {
	state, err := l.guard.Ensure(ctx, l.cfg)
	l.reporter.ReportRepository(state, err)

	res, err := l.invoker.Create(ctx, l.cfg)
	l.reporter.ReportArchive(res, err)
	if err != nil {
		return nil, err
	}

	if l.retention != nil && l.retention.Enabled() {
		l.reporter.ReportPrune(l.retention.Apply(ctx, l.cfg.RepositoryLocation, l.cfg.Passphrase))
	}
	return res, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nopNotifier struct{}

func (nopNotifier) Ready()         {}
func (nopNotifier) Next(time.Time) {}
func (nopNotifier) Stopping()      {}
