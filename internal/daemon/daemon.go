// Package daemon detaches borg-scheduler from its terminal and talks to a
// service manager when one supervises the process.
//
// The Go runtime cannot fork, so Daemonize re-executes the current binary in a
// new session. The child sees ChildEnv in its environment and treats the
// second Daemonize call as a no-op.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/raoulx24/borg-scheduler/internal/fs"
)

// ChildEnv marks the re-executed child.
const ChildEnv = "BORG_SCHEDULER_DAEMON_CHILD"

// OriginEnv carries the parent's working directory to the child, which runs
// in Options.WorkDir but must resolve relative paths the way the user meant.
const OriginEnv = "BORG_SCHEDULER_ORIGIN_DIR"

// DefaultGrace is how long the parent watches the child before trusting it.
const DefaultGrace = time.Second

var (
	// ErrUnsupported is returned where sessions cannot be detached.
	ErrUnsupported = errors.New("daemonize: not supported on this platform")
	// ErrAlreadyRunning means the pid file names a live process.
	ErrAlreadyRunning = errors.New("already running")
	// ErrChildExited means the child died during the grace period.
	ErrChildExited = errors.New("child exited during startup")
)

type Options struct {
	PIDFile string
	Stdout  string
	Stderr  string
	WorkDir string

	// Args replaces os.Args[1:] for the child. Nil keeps the current ones.
	Args []string
}

// Result tells the caller what happened. Detached means this is the parent
// and it should exit 0; Child means this process is the detached one.
type Result struct {
	Detached bool
	Child    bool
	PID      int
}

// Error reports which step of detaching failed.
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("daemonize: %s: %v", e.Step, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// IsChild reports whether this process was started by Daemonize.
func IsChild() bool {
	return os.Getenv(ChildEnv) == "1"
}

// BaseDir is the directory relative paths are resolved against: the
// parent's working directory in a detached child, the current one otherwise.
func BaseDir() (string, error) {
	if IsChild() {
		if dir := os.Getenv(OriginEnv); dir != "" {
			return dir, nil
		}
	}
	return os.Getwd()
}

type Daemonizer struct {
	fs         fs.FS
	executable func() (string, error)
	getwd      func() (string, error)
	isChild    func() bool
	running    func(pidFile string) (bool, error)
	start      func(l launch) (int, error)
	grace      time.Duration
}

type Option func(*Daemonizer)

// WithFS replaces the filesystem used for the pid file and stream files.
func WithFS(f fs.FS) Option { return func(d *Daemonizer) { d.fs = f } }

// WithGrace sets how long the parent waits for the child to survive startup.
func WithGrace(grace time.Duration) Option { return func(d *Daemonizer) { d.grace = grace } }

func New(opts ...Option) *Daemonizer {
	d := &Daemonizer{
		fs:         fs.New(),
		executable: os.Executable,
		getwd:      os.Getwd,
		isChild:    IsChild,
		running:    IsRunning,
		start:      startDetached,
		grace:      DefaultGrace,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Daemonize detaches the process once. Calling it from the child is a no-op.
// It refuses to start a second daemon while the pid file names a live
// process; an unreadable or stale pid file is overwritten.
func (d *Daemonizer) Daemonize(ctx context.Context, o Options) (Result, error) {
	if d.isChild() {
		return Result{Child: true, PID: os.Getpid()}, nil
	}

	if running, err := d.running(o.PIDFile); err == nil && running {
		return Result{}, &Error{Step: "checking pid file " + o.PIDFile, Err: ErrAlreadyRunning}
	}

	exe, err := d.executable()
	if err != nil {
		return Result{}, &Error{Step: "locating executable", Err: err}
	}
	origin, err := d.getwd()
	if err != nil {
		return Result{}, &Error{Step: "reading working directory", Err: err}
	}
	if err := d.fs.MkdirAll(o.WorkDir); err != nil {
		return Result{}, &Error{Step: "preparing working directory", Err: err}
	}

	stdout, err := d.fs.OpenTruncate(o.Stdout)
	if err != nil {
		return Result{}, &Error{Step: "opening stdout file", Err: err}
	}
	defer stdout.Close()
	stderr, err := d.fs.OpenTruncate(o.Stderr)
	if err != nil {
		return Result{}, &Error{Step: "opening stderr file", Err: err}
	}
	defer stderr.Close()

	args := o.Args
	if args == nil {
		args = os.Args[1:]
	}

	pid, err := d.start(launch{
		path:   exe,
		args:   args,
		dir:    o.WorkDir,
		env:    append(os.Environ(), ChildEnv+"=1", OriginEnv+"="+origin),
		stdout: stdout,
		stderr: stderr,
		grace:  d.grace,
	})
	if err != nil {
		return Result{}, &Error{Step: "starting child", Err: err}
	}

	if err := fs.WritePID(ctx, d.fs, o.PIDFile, pid); err != nil {
		if p, ferr := os.FindProcess(pid); ferr == nil {
			_ = p.Kill()
		}
		return Result{}, &Error{Step: "recording pid", Err: err}
	}
	return Result{Detached: true, PID: pid}, nil
}

// Release removes the pid file when it still names this process. The child
// calls it on the way out.
func (d *Daemonizer) Release(o Options) error {
	pid, err := fs.ReadPID(o.PIDFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	return d.fs.Remove(o.PIDFile)
}

// Daemonize detaches with the default Daemonizer.
func Daemonize(ctx context.Context, o Options) (Result, error) {
	return New().Daemonize(ctx, o)
}

// Release removes the pid file with the default Daemonizer.
func Release(o Options) error {
	return New().Release(o)
}

// IsRunning reports whether the pid recorded in pidFile is alive.
func IsRunning(pidFile string) (bool, error) {
	pid, err := fs.ReadPID(pidFile)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false, nil
	}
	err = proc.Signal(syscall.Signal(0))
	// EPERM: alive, owned by someone else
	return err == nil || errors.Is(err, syscall.EPERM), nil
}

type launch struct {
	path   string
	args   []string
	dir    string
	env    []string
	stdout *os.File
	stderr *os.File
	grace  time.Duration
}
