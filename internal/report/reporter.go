// Package report routes the outcome of each scheduler iteration to the log.
//
// The reporter is built with an explicit Mode. ModeContinue is used when an
// operator configured a log sink: errors are logged and the scheduler keeps
// going. ModeFatal is used for plain console runs: any error-level event ends
// the process with status 1, so a misconfigured unattended run fails loudly
// instead of silently retrying forever.
package report

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/raoulx24/borg-scheduler/internal/borg"
	"github.com/raoulx24/borg-scheduler/internal/logging"
	"github.com/raoulx24/borg-scheduler/internal/repository"
)

type Mode int

const (
	ModeContinue Mode = iota
	ModeFatal
)

func (m Mode) String() string {
	if m == ModeFatal {
		return "fatal"
	}
	return "continue"
}

// ExitCode is used when ModeFatal terminates the process.
const ExitCode = 1

type Reporter struct {
	log     logging.Logger
	verbose bool
	mode    Mode
	exit    func(int)
}

type Option func(*Reporter)

// WithExit replaces os.Exit, for tests.
func WithExit(fn func(int)) Option { return func(r *Reporter) { r.exit = fn } }

func New(log logging.Logger, verbose bool, mode Mode, opts ...Option) *Reporter {
	r := &Reporter{log: log, verbose: verbose, mode: mode, exit: os.Exit}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Reporter) Mode() Mode { return r.mode }

// ReportArchive reports one creation attempt. Failures are only written when
// verbose; the scheduler continues either way.
func (r *Reporter) ReportArchive(res *borg.ArchiveResult, err error) {
	if err != nil {
		if r.verbose {
			r.error("archive creation failed", logging.Err(err))
		}
		return
	}
	if res == nil {
		return
	}

	if !r.verbose {
		r.log.Info("archive created")
		return
	}

	a := res.Archive
	r.log.Info("archive created",
		logging.String("repository", res.Repository.Location),
		logging.String("archive", a.Name),
		logging.Time("started", a.Start.Time),
		logging.Time("ended", a.End.Time),
		logging.Duration("took", a.Duration.Duration()),
		logging.String("command", strings.Join(a.CommandLine, " ")))
	for _, w := range res.Warnings {
		r.log.Warn("borg warning", logging.String("archive", a.Name), logging.String("warning", w))
	}
}

// ReportRepository reports the guard's outcome. An "already exists" init
// failure is benign and only warned about.
func (r *Reporter) ReportRepository(state repository.State, err error) {
	var rerr *repository.Error
	switch {
	case err == nil && state == repository.Initialized:
		r.log.Info("repository initialized")
	case err == nil:
		r.log.Debug("repository is valid")
	case errors.As(err, &rerr) && rerr.Benign():
		r.log.Warn("listing the repository failed but it already exists; continuing (check the passphrase if creation fails)", logging.Err(err))
	case r.verbose:
		r.error("repository check failed", logging.Err(err))
	}
}

// ReportPrune reports a retention run.
func (r *Reporter) ReportPrune(err error) {
	if err == nil {
		r.log.Debug("retention applied")
		return
	}
	if r.verbose {
		r.error("retention failed", logging.Err(err))
	}
}

// ReportDaemon reports a daemonization failure. It stays at warn level so it
// never ends the process: scheduling continues in the foreground.
func (r *Reporter) ReportDaemon(err error) {
	if err == nil {
		r.log.Info("running as daemon", logging.Int("pid", os.Getpid()))
		return
	}
	r.log.Warn("daemonization failed, continuing in the foreground", logging.Err(err))
}

// ReportNext announces the next trigger instant.
func (r *Reporter) ReportNext(next time.Time, wait time.Duration) {
	r.log.Debug("waiting for next trigger", logging.Time("next", next), logging.Duration("in", wait))
}

func (r *Reporter) error(msg string, fields ...logging.Field) {
	r.log.Error(msg, fields...)
	if r.mode == ModeFatal {
		r.exit(ExitCode)
	}
}
