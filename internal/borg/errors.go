package borg

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAlreadyExists      = errors.New("repository already exists")
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrPassphraseWrong    = errors.New("passphrase incorrect")
	ErrArchiveExists      = errors.New("archive already exists")
	ErrLocked             = errors.New("repository locked")
	ErrConnection         = errors.New("connection to repository failed")
	ErrCommand            = errors.New("borg command failed")
)

// msgid -> sentinel, see `borg --log-json` output.
var msgIDErrors = map[string]error{
	"Repository.AlreadyExists":          ErrAlreadyExists,
	"Repository.DoesNotExist":           ErrRepositoryNotFound,
	"Repository.InvalidRepository":      ErrRepositoryNotFound,
	"Repository.ParentPathDoesNotExist": ErrRepositoryNotFound,
	"PassphraseWrong":                   ErrPassphraseWrong,
	"PasscommandFailure":                ErrPassphraseWrong,
	"Archive.AlreadyExists":             ErrArchiveExists,
	"LockTimeout":                       ErrLocked,
	"LockFailed":                        ErrLocked,
	"LockError":                         ErrLocked,
	"ConnectionClosed":                  ErrConnection,
	"ConnectionClosedWithHint":          ErrConnection,
}

// EngineError describes a failed borg invocation.
type EngineError struct {
	Op       string // "create", "init", "list", "prune"
	MsgID    string
	Message  string
	ExitCode int
	Kind     error
}

func (e *EngineError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.MsgID != "" {
		return fmt.Sprintf("borg %s: %s (%s, rc=%d)", e.Op, msg, e.MsgID, e.ExitCode)
	}
	return fmt.Sprintf("borg %s: %s (rc=%d)", e.Op, msg, e.ExitCode)
}

func (e *EngineError) Unwrap() error { return e.Kind }

type logLine struct {
	Type      string `json:"type"`
	LevelName string `json:"levelname"`
	Message   string `json:"message"`
	MsgID     string `json:"msgid"`
}

// parseLog splits --log-json stderr into error and warning messages, keeping
// the first msgid that maps to a known failure. Non-JSON lines count as errors.
func parseLog(stderr []byte) (msgID string, errs, warns []string) {
	sc := bufio.NewScanner(bytes.NewReader(stderr))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var l logLine
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			errs = append(errs, raw)
			continue
		}
		if l.Type != "log_message" {
			continue
		}
		switch l.LevelName {
		case "ERROR", "CRITICAL":
			errs = append(errs, l.Message)
			if l.MsgID != "" && msgIDErrors[msgID] == nil {
				msgID = l.MsgID
			}
		case "WARNING":
			warns = append(warns, l.Message)
		}
	}
	return msgID, errs, warns
}

func classify(op string, exitCode int, stderr []byte) *EngineError {
	msgID, errs, _ := parseLog(stderr)
	kind, ok := msgIDErrors[msgID]
	if !ok {
		kind = classifyText(strings.Join(errs, "\n"))
	}
	return &EngineError{
		Op:       op,
		MsgID:    msgID,
		Message:  strings.Join(errs, "; "),
		ExitCode: exitCode,
		Kind:     kind,
	}
}

// classifyText is the fallback for borg builds that print plain text errors.
func classifyText(s string) error {
	low := strings.ToLower(s)
	switch {
	case strings.Contains(low, "already exists") && strings.Contains(low, "archive"):
		return ErrArchiveExists
	case strings.Contains(low, "already exists"):
		return ErrAlreadyExists
	case strings.Contains(low, "passphrase") && strings.Contains(low, "incorrect"):
		return ErrPassphraseWrong
	case strings.Contains(low, "does not exist"), strings.Contains(low, "is not a valid repository"):
		return ErrRepositoryNotFound
	case strings.Contains(low, "failed to create/acquire the lock"):
		return ErrLocked
	case strings.Contains(low, "connection closed"):
		return ErrConnection
	default:
		return ErrCommand
	}
}
