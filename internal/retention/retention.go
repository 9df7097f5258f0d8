// Package retention thins out old archives after a successful run by
// translating the configured keep rules into a borg prune call.
package retention

import (
	"context"
	"fmt"
	"strings"

	"github.com/raoulx24/borg-scheduler/internal/borg"
	"github.com/raoulx24/borg-scheduler/internal/config"
	"github.com/raoulx24/borg-scheduler/internal/logging"
)

// Pruner is the part of the backup engine retention needs.
type Pruner interface {
	Prune(ctx context.Context, o borg.PruneOptions) error
}

type Engine struct {
	pruner Pruner
	policy borg.PruneOptions
	log    logging.Logger
}

// New builds the engine from the retention section. Unknown rule names are a
// configuration error.
func New(cfg config.RetentionConfig, pruner Pruner, log logging.Logger) (*Engine, error) {
	policy, err := Policy(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{pruner: pruner, policy: policy, log: log}, nil
}

// Policy maps lastCount and the named rules onto borg's --keep-* flags.
func Policy(cfg config.RetentionConfig) (borg.PruneOptions, error) {
	p := borg.PruneOptions{KeepLast: cfg.LastCount}
	for _, rule := range cfg.Rules {
		var slot *int
		switch strings.ToLower(strings.TrimSpace(rule.Name)) {
		case "hourly":
			slot = &p.KeepHourly
		case "daily":
			slot = &p.KeepDaily
		case "weekly":
			slot = &p.KeepWeekly
		case "monthly":
			slot = &p.KeepMonthly
		case "yearly":
			slot = &p.KeepYearly
		default:
			return borg.PruneOptions{}, fmt.Errorf("retention: unknown rule %q (want hourly, daily, weekly, monthly or yearly)", rule.Name)
		}
		if rule.Count < 0 {
			return borg.PruneOptions{}, fmt.Errorf("retention: rule %s has negative count", rule.Name)
		}
		*slot = rule.Count
	}
	return p, nil
}

// Enabled reports whether any keep rule is configured.
func (e *Engine) Enabled() bool {
	return e != nil && !e.policy.Empty()
}

// Apply prunes the repository. It is a no-op without rules, since borg
// refuses a prune that keeps nothing.
func (e *Engine) Apply(ctx context.Context, repository, passphrase string) error {
	if !e.Enabled() {
		return nil
	}
	opts := e.policy
	opts.Repository = repository
	opts.Passphrase = passphrase

	e.log.Debug("applying retention",
		logging.Int("last", opts.KeepLast),
		logging.Int("daily", opts.KeepDaily),
		logging.Int("weekly", opts.KeepWeekly),
		logging.Int("monthly", opts.KeepMonthly))

	if err := e.pruner.Prune(ctx, opts); err != nil {
		return fmt.Errorf("retention: %w", err)
	}
	return nil
}
