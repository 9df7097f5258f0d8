package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	DefaultExpression = "0 0 * * 1" // Mondays at midnight
	DefaultTimezone   = "Etc/UTC"
	DefaultBorgBinary = "borg"

	DefaultPIDFile    = "/tmp/borg-scheduler.pid"
	DefaultStdoutFile = "/tmp/borg-scheduler.out"
	DefaultStderrFile = "/tmp/borg-scheduler.err"
	DefaultWorkDir    = "/tmp"
)

// ScheduleConfig is the single value the scheduler core runs on. It is built
// once at startup and passed by value; nothing mutates it afterwards.
type ScheduleConfig struct {
	RepositoryLocation string
	Passphrase         string
	ArchiveName        string
	Paths              []string
	IncludePatterns    []string
	ExcludePatterns    []string
	CronExpression     string
	Timezone           string
	Daemonize          bool
	Verbose            bool

	BorgBinary string
	RemotePath string
	LockWait   int
	Daemon     DaemonConfig
	Retention  RetentionConfig
}

// ValidationError reports a ScheduleConfig field that breaks an invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Reason)
}

// Build flattens a loaded Config into a ScheduleConfig. Slices are copied so
// later edits to cfg never leak into the result.
func (c *Config) Build() ScheduleConfig {
	binary := c.Repository.Binary
	if binary == "" {
		binary = DefaultBorgBinary
	}
	expr := strings.TrimSpace(c.Schedule.Expression)
	if expr == "" {
		expr = DefaultExpression
	}
	tz := strings.TrimSpace(c.Schedule.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}

	return ScheduleConfig{
		RepositoryLocation: strings.TrimSpace(c.Repository.Location),
		Passphrase:         c.Repository.Passphrase,
		ArchiveName:        strings.TrimSpace(c.Archive.Name),
		Paths:              slices.Clone(c.Archive.Paths),
		IncludePatterns:    slices.Clone(c.Archive.IncludePatterns),
		ExcludePatterns:    slices.Clone(c.Archive.ExcludePatterns),
		CronExpression:     expr,
		Timezone:           tz,
		Daemonize:          c.Daemon.Enabled,
		Verbose:            c.Verbose,
		BorgBinary:         binary,
		RemotePath:         c.Repository.RemotePath,
		LockWait:           c.Repository.LockWait,
		Daemon:             c.Daemon,
		Retention: RetentionConfig{
			LastCount: c.Retention.LastCount,
			Rules:     slices.Clone(c.Retention.Rules),
		},
	}
}

// Validate checks the invariants that do not need the cron parser.
// Expression and timezone are checked by cronclock.New at startup.
func (s ScheduleConfig) Validate() error {
	var errs []error
	if s.RepositoryLocation == "" {
		errs = append(errs, &ValidationError{Field: "repository location", Reason: "must not be empty"})
	}
	if s.Passphrase == "" {
		errs = append(errs, &ValidationError{Field: "passphrase", Reason: "must not be empty"})
	}
	if s.CronExpression == "" {
		errs = append(errs, &ValidationError{Field: "cron expression", Reason: "must not be empty"})
	}
	if s.Timezone == "" {
		errs = append(errs, &ValidationError{Field: "timezone", Reason: "must not be empty"})
	}
	if s.LockWait < 0 {
		errs = append(errs, &ValidationError{Field: "lock wait", Reason: "must not be negative"})
	}
	if s.Retention.LastCount < 0 {
		errs = append(errs, &ValidationError{Field: "retention lastCount", Reason: "must not be negative"})
	}
	for _, r := range s.Retention.Rules {
		if r.Count < 0 {
			errs = append(errs, &ValidationError{Field: "retention rule " + r.Name, Reason: "count must not be negative"})
		}
	}
	return errors.Join(errs...)
}

// String renders the config for logs with the passphrase redacted.
func (s ScheduleConfig) String() string {
	name := s.ArchiveName
	if name == "" {
		name = "<epoch>"
	}
	return fmt.Sprintf("repository=%s archive=%s paths=%v schedule=%q tz=%s daemonize=%t verbose=%t passphrase=***",
		s.RepositoryLocation, name, s.Paths, s.CronExpression, s.Timezone, s.Daemonize, s.Verbose)
}
