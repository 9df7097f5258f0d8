// Package fs defines the filesystem operations borg-scheduler needs for its
// process lifecycle files: the pid file and the redirected output streams.
package fs

import (
	"context"
	"os"
)

type FS interface {
	// WriteFileAtomic replaces path with data via a temp file and rename.
	WriteFileAtomic(ctx context.Context, path string, data []byte) error
	// OpenTruncate opens path for writing, creating or truncating it.
	OpenTruncate(path string) (*os.File, error)
	Rename(ctx context.Context, oldPath, newPath string) error
	MkdirAll(path string) error
	Remove(path string) error
}
