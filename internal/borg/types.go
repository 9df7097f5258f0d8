package borg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp accepts both the naive local ISO timestamps of borg 1.2 and the
// offset-carrying ones of later releases.
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = ts
		return nil
	}
	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = ts
			return nil
		}
	}
	return fmt.Errorf("unrecognised borg timestamp %q", s)
}

// Seconds is a float duration as emitted by borg.
type Seconds float64

func (s Seconds) Duration() time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}

type Repository struct {
	ID           string    `json:"id"`
	Location     string    `json:"location"`
	LastModified Timestamp `json:"last_modified"`
}

type Encryption struct {
	Mode    string `json:"mode"`
	Keyfile string `json:"keyfile,omitempty"`
}

type ArchiveStats struct {
	OriginalSize     int64 `json:"original_size"`
	CompressedSize   int64 `json:"compressed_size"`
	DeduplicatedSize int64 `json:"deduplicated_size"`
	NFiles           int64 `json:"nfiles"`
}

type CreatedArchive struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Start       Timestamp    `json:"start"`
	End         Timestamp    `json:"end"`
	Duration    Seconds      `json:"duration"`
	CommandLine []string     `json:"command_line"`
	Stats       ArchiveStats `json:"stats"`
}

// ArchiveResult is the outcome of `borg create --json`.
type ArchiveResult struct {
	Repository Repository     `json:"repository"`
	Archive    CreatedArchive `json:"archive"`
	Encryption *Encryption    `json:"encryption,omitempty"`

	// Warnings collects log messages of a run that exited with rc 1.
	Warnings []string `json:"-"`
}

type ArchiveEntry struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Start Timestamp `json:"start"`
}

// RepoInfo is the outcome of `borg list --json` on a repository.
type RepoInfo struct {
	Repository Repository     `json:"repository"`
	Encryption *Encryption    `json:"encryption,omitempty"`
	Archives   []ArchiveEntry `json:"archives"`
}

// CommonOptions apply to every borg invocation.
type CommonOptions struct {
	RemotePath string // --remote-path
	LockWait   int    // --lock-wait seconds, 0 = borg default
}

type InitOptions struct {
	Repository     string
	Passphrase     string
	Encryption     string // defaults to keyfile-blake2
	AppendOnly     bool
	MakeParentDirs bool
	StorageQuota   string
}

type ListOptions struct {
	Repository string
	Passphrase string
}

type CreateOptions struct {
	Repository string
	Archive    string
	Passphrase string
	Paths      []string
	Patterns   []Pattern
}

type PruneOptions struct {
	Repository  string
	Passphrase  string
	KeepLast    int
	KeepHourly  int
	KeepDaily   int
	KeepWeekly  int
	KeepMonthly int
	KeepYearly  int
}

// Empty reports whether no keep rule is set.
func (p PruneOptions) Empty() bool {
	return p.KeepLast == 0 && p.KeepHourly == 0 && p.KeepDaily == 0 &&
		p.KeepWeekly == 0 && p.KeepMonthly == 0 && p.KeepYearly == 0
}
