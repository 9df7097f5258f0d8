package fs

import (
	"context"
	"os"
)

// renameWithRetry wraps os.Rename so a briefly busy target (EBUSY on some
// network filesystems) does not lose the pid file.
func renameWithRetry(ctx context.Context, oldPath, newPath string) error {
	return retry(ctx, "rename", func() error {
		return os.Rename(oldPath, newPath)
	})
}
