//go:build !windows

package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// startDetached starts the child in a new session and watches it for
// s.grace. A child that exits in that window is reported, not trusted.
func startDetached(s launch) (int, error) {
	devnull, err := os.Open(os.DevNull)
	if err != nil {
		return 0, err
	}
	defer devnull.Close()

	cmd := exec.Command(s.path, s.args...)
	cmd.Dir = s.dir
	cmd.Env = s.env
	cmd.Stdin = devnull
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err == nil {
			err = errors.New("exit status 0")
		}
		return 0, fmt.Errorf("%w: %v (see %s)", ErrChildExited, err, s.stderr.Name())
	case <-time.After(s.grace):
		return cmd.Process.Pid, nil
	}
}
