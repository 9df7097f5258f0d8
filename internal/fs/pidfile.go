package fs

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// WritePID records pid at path, replacing any stale file.
func WritePID(ctx context.Context, f FS, path string, pid int) error {
	if err := f.WriteFileAtomic(ctx, path, []byte(strconv.Itoa(pid)+"\n")); err != nil {
		return fmt.Errorf("writing pid file %s: %w", path, err)
	}
	return nil
}

// ReadPID returns the pid stored at path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid in %s: %w", path, err)
	}
	return pid, nil
}
