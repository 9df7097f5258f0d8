// Package cronclock turns a cron expression and an IANA timezone into trigger
// instants.
package cronclock

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrScheduleExhausted is returned when no occurrence follows the reference
// instant within the cron library's search horizon.
var ErrScheduleExhausted = errors.New("schedule has no future occurrence")

// ConfigError reports an expression or timezone that cannot be used.
type ConfigError struct {
	Field string // "expression" or "timezone"
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// 5 fields with an optional leading seconds field, plus @hourly style descriptors.
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Clock computes trigger instants for one parsed schedule.
type Clock struct {
	expr     string
	schedule cron.Schedule
	loc      *time.Location
}

// New parses expression and resolves timezone once.
func New(expression, timezone string) (*Clock, error) {
	expression = strings.TrimSpace(expression)
	if strings.HasPrefix(expression, "TZ=") || strings.HasPrefix(expression, "CRON_TZ=") {
		return nil, &ConfigError{Field: "expression", Value: expression, Err: errors.New("set the timezone separately, not inline")}
	}

	loc, err := time.LoadLocation(strings.TrimSpace(timezone))
	if err != nil {
		return nil, &ConfigError{Field: "timezone", Value: timezone, Err: err}
	}

	sched, err := parser.Parse(expression)
	if err != nil {
		return nil, &ConfigError{Field: "expression", Value: expression, Err: err}
	}

	return &Clock{expr: expression, schedule: sched, loc: loc}, nil
}

// Location returns the timezone triggers are evaluated in.
func (c *Clock) Location() *time.Location { return c.loc }

func (c *Clock) String() string {
	return fmt.Sprintf("%s (%s)", c.expr, c.loc)
}

// Next returns the earliest scheduled instant strictly after ref, expressed in
// the clock's location.
func (c *Clock) Next(ref time.Time) (time.Time, error) {
	next := c.schedule.Next(ref.In(c.loc))
	if next.IsZero() || !next.After(ref) {
		return time.Time{}, fmt.Errorf("after %s: %w", ref.Format(time.RFC3339), ErrScheduleExhausted)
	}
	return next, nil
}

// Validate checks that the schedule yields at least one occurrence after now.
// Call it at startup so a dead schedule is a configuration error.
func (c *Clock) Validate(now time.Time) error {
	if _, err := c.Next(now); err != nil {
		return &ConfigError{Field: "expression", Value: c.expr, Err: err}
	}
	return nil
}
