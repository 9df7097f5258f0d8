// Package borg drives the BorgBackup command line client. Every call runs
// borg with --json/--log-json and maps its message ids to Go errors; the
// passphrase travels in the environment only.
package borg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/raoulx24/borg-scheduler/internal/logging"
)

// Runner executes one borg process. exitCode is meaningful when err is nil.
type Runner interface {
	Run(ctx context.Context, env []string, name string, args ...string) (stdout, stderr []byte, exitCode int, err error)
}

// ExecRunner runs borg as a child process.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, env []string, name string, args ...string) ([]byte, []byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return nil, nil, -1, fmt.Errorf("running %s: %w", name, err)
	}
	return stdout.Bytes(), stderr.Bytes(), 0, nil
}

// Client talks to one borg binary.
type Client struct {
	binary string
	common CommonOptions
	runner Runner
	log    logging.Logger
}

type Option func(*Client)

func WithRunner(r Runner) Option { return func(c *Client) { c.runner = r } }

func WithLogger(l logging.Logger) Option { return func(c *Client) { c.log = l } }

func WithCommonOptions(o CommonOptions) Option { return func(c *Client) { c.common = o } }

// New returns a client for binary ("borg" when empty).
func New(binary string, opts ...Option) *Client {
	if binary == "" {
		binary = "borg"
	}
	c := &Client{binary: binary, runner: ExecRunner{}, log: logging.Nop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

func passphraseEnv(passphrase string) []string {
	return []string{
		"BORG_PASSPHRASE=" + passphrase,
		// never block on an interactive prompt
		"BORG_DISPLAY_PASSPHRASE=no",
		"BORG_RELOCATED_REPO_ACCESS_IS_OK=no",
		"BORG_UNKNOWN_UNENCRYPTED_REPO_ACCESS_IS_OK=no",
	}
}

func (c *Client) commonArgs() []string {
	args := []string{"--log-json"}
	if c.common.RemotePath != "" {
		args = append(args, "--remote-path", c.common.RemotePath)
	}
	if c.common.LockWait > 0 {
		args = append(args, "--lock-wait", strconv.Itoa(c.common.LockWait))
	}
	return args
}

// run executes `borg <op> <common> <args>`. rc 1 (warning) is not a failure.
func (c *Client) run(ctx context.Context, op, passphrase string, args ...string) ([]byte, []string, error) {
	full := append([]string{op}, c.commonArgs()...)
	full = append(full, args...)

	c.log.Debug("running borg", logging.String("op", op), logging.Strings("args", full))
	start := time.Now()

	stdout, stderr, rc, err := c.runner.Run(ctx, passphraseEnv(passphrase), c.binary, full...)
	if err != nil {
		return nil, nil, &EngineError{Op: op, Message: err.Error(), ExitCode: rc, Kind: ErrCommand}
	}

	c.log.Debug("borg finished", logging.String("op", op), logging.Int("rc", rc), logging.Duration("took", time.Since(start)))

	switch rc {
	case 0:
		return stdout, nil, nil
	case 1:
		_, _, warns := parseLog(stderr)
		return stdout, warns, nil
	default:
		return nil, nil, classify(op, rc, stderr)
	}
}
