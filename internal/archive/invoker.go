// Package archive performs one archive creation against the backup engine.
package archive

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/raoulx24/borg-scheduler/internal/borg"
	"github.com/raoulx24/borg-scheduler/internal/config"
)

// Engine is the part of the backup engine the invoker needs.
type Engine interface {
	CreateArchive(ctx context.Context, o borg.CreateOptions) (*borg.ArchiveResult, error)
}

// ClockError means the system clock is set before the Unix epoch, so no
// default archive name can be derived.
type ClockError struct {
	Now time.Time
}

func (e *ClockError) Error() string {
	return fmt.Sprintf("system clock %s is before the unix epoch", e.Now.Format(time.RFC3339))
}

// Error wraps a failed creation. errors.Is still matches the borg sentinels.
type Error struct {
	Archive string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("creating archive %q: %v", e.Archive, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Invoker struct {
	engine Engine
	now    func() time.Time
}

type Option func(*Invoker)

// WithNow replaces the clock used for default names.
func WithNow(now func() time.Time) Option { return func(i *Invoker) { i.now = now } }

func NewInvoker(engine Engine, opts ...Option) *Invoker {
	i := &Invoker{engine: engine, now: time.Now}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Name returns cfg.ArchiveName, or the current Unix time in seconds when it is
// empty. Two calls within the same second produce the same name; borg then
// rejects the second archive as already existing.
func (i *Invoker) Name(cfg config.ScheduleConfig) (string, error) {
	if cfg.ArchiveName != "" {
		return cfg.ArchiveName, nil
	}
	now := i.now()
	secs := now.Unix()
	if secs < 0 {
		return "", &ClockError{Now: now}
	}
	return strconv.FormatInt(secs, 10), nil
}

// Create runs one archive creation for cfg.
func (i *Invoker) Create(ctx context.Context, cfg config.ScheduleConfig) (*borg.ArchiveResult, error) {
	name, err := i.Name(cfg)
	if err != nil {
		return nil, err
	}

	res, err := i.engine.CreateArchive(ctx, borg.CreateOptions{
		Repository: cfg.RepositoryLocation,
		Archive:    name,
		Passphrase: cfg.Passphrase,
		Paths:      cfg.Paths,
		Patterns:   borg.PatternsFrom(cfg.IncludePatterns, cfg.ExcludePatterns),
	})
	if err != nil {
		return nil, &Error{Archive: name, Err: err}
	}
	return res, nil
}
