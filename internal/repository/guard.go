// Package repository makes sure the configured borg repository exists before
// an archive is written to it.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/raoulx24/borg-scheduler/internal/borg"
	"github.com/raoulx24/borg-scheduler/internal/config"
)

// State is the outcome of Ensure.
type State int

const (
	AlreadyValid State = iota
	Initialized
)

func (s State) String() string {
	switch s {
	case AlreadyValid:
		return "already-valid"
	case Initialized:
		return "initialized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Engine is the part of the backup engine the guard needs.
type Engine interface {
	ListRepository(ctx context.Context, o borg.ListOptions) (*borg.RepoInfo, error)
	InitRepository(ctx context.Context, o borg.InitOptions) error
}

type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindAlreadyExists
)

// Error reports a failed initialization. ListErr is the listing error that led
// to the attempt.
type Error struct {
	Kind    ErrorKind
	ListErr error
	Err     error
}

func (e *Error) Error() string {
	if e.Kind == KindAlreadyExists {
		return fmt.Sprintf("listing the repository failed (%v) but init reports it already exists: %v", e.ListErr, e.Err)
	}
	return fmt.Sprintf("initializing repository: %v (list: %v)", e.Err, e.ListErr)
}

func (e *Error) Unwrap() error { return e.Err }

// Benign reports whether the repository can be presumed usable.
func (e *Error) Benign() bool { return e.Kind == KindAlreadyExists }

// Guard lists the repository and initializes it when listing fails.
type Guard struct {
	engine Engine
}

func NewGuard(engine Engine) *Guard {
	return &Guard{engine: engine}
}

// Ensure lists the repository and, if that fails for any reason, tries to
// initialize it with the same location and passphrase.
//
// A wrong passphrase looks exactly like a missing repository to the listing. The
// following init then fails with "already exists", which Ensure treats as
// benign: it returns AlreadyValid together with a *Error of KindAlreadyExists
// so the caller can surface it. The later create call is what reveals a bad
// passphrase.
func (g *Guard) Ensure(ctx context.Context, cfg config.ScheduleConfig) (State, error) {
	_, listErr := g.engine.ListRepository(ctx, borg.ListOptions{
		Repository: cfg.RepositoryLocation,
		Passphrase: cfg.Passphrase,
	})
	if listErr == nil {
		return AlreadyValid, nil
	}

	err := g.engine.InitRepository(ctx, borg.InitOptions{
		Repository: cfg.RepositoryLocation,
		Passphrase: cfg.Passphrase,
	})
	switch {
	case err == nil:
		return Initialized, nil
	case errors.Is(err, borg.ErrAlreadyExists):
		return AlreadyValid, &Error{Kind: KindAlreadyExists, ListErr: listErr, Err: err}
	default:
		return AlreadyValid, &Error{Kind: KindOther, ListErr: listErr, Err: err}
	}
}
