package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raoulx24/borg-scheduler/internal/archive"
	"github.com/raoulx24/borg-scheduler/internal/config"
	"github.com/raoulx24/borg-scheduler/internal/cronclock"
	"github.com/raoulx24/borg-scheduler/internal/daemon"
	"github.com/raoulx24/borg-scheduler/internal/logging"
	"github.com/raoulx24/borg-scheduler/internal/repository"
	"github.com/raoulx24/borg-scheduler/internal/retention"
	"github.com/raoulx24/borg-scheduler/internal/scheduler"
)

func newScheduleCmd(g *globalOptions, d deps) *cobra.Command {
	f := &commandFlags{}
	cmd := &cobra.Command{
		Use:   "schedule [repository]",
		Short: "Create an archive every time the cron expression fires",
		Long: `schedule runs until interrupted. Before each archive it checks the
repository and initializes it (keyfile-blake2) when the check fails.
Missed triggers are skipped, never replayed.

Without a configured log sink (logging.level, --log-level or ` + LogEnv + `)
any error-level event ends the process with status 1.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args, g, f)
			if err != nil {
				return err
			}
			return runSchedule(cmd, args, cfg, d)
		},
	}
	f.bindRepository(cmd)
	f.bindArchive(cmd)
	f.bindSchedule(cmd)
	return cmd
}

func runSchedule(cmd *cobra.Command, args []string, cfg *config.Config, d deps) error {
	ctx := cmd.Context()

	// everything that can be wrong with the configuration fails here,
	// before daemonizing
	sc := cfg.Build()
	if err := sc.Validate(); err != nil {
		return err
	}
	clock, err := cronclock.New(sc.CronExpression, sc.Timezone)
	if err != nil {
		return err
	}
	if err := clock.Validate(d.now()); err != nil {
		return err
	}

	rt, err := newRuntime(cmd, cfg, d, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	ret, err := retention.New(sc.Retention, rt.engine, rt.log)
	if err != nil {
		return err
	}

	if sc.Daemonize {
		argv, err := childArgs(cmd, args)
		if err != nil {
			return err
		}
		opts := daemon.Options{
			PIDFile: sc.Daemon.PIDFile,
			Stdout:  sc.Daemon.Stdout,
			Stderr:  sc.Daemon.Stderr,
			WorkDir: sc.Daemon.WorkDir,
			Args:    argv,
		}
		res, err := d.daemonize(ctx, opts)
		switch {
		case errors.Is(err, daemon.ErrAlreadyRunning):
			// a second loop against the same repository is never started
			return err
		case err != nil:
			rt.reporter.ReportDaemon(err)
		case res.Detached:
			fmt.Fprintf(cmd.OutOrStdout(), "borg-scheduler running in the background (pid %d, pid file %s)\n", res.PID, sc.Daemon.PIDFile)
			return nil
		default:
			rt.reporter.ReportDaemon(nil)
			defer func() {
				if err := d.release(opts); err != nil {
					rt.log.Warn("removing pid file", logging.Err(err))
				}
			}()
		}
	}

	rt.log.Info("schedule loaded",
		logging.String("schedule", clock.String()),
		logging.String("mode", rt.reporter.Mode().String()),
		logging.Bool("retention", ret.Enabled()))

	opts := append([]scheduler.Option{
		scheduler.WithRetention(ret),
		scheduler.WithNotifier(daemon.NewNotifier(rt.log)),
		scheduler.WithLogger(rt.log),
	}, d.loopOpts...)

	loop := scheduler.New(sc, clock,
		repository.NewGuard(rt.engine),
		archive.NewInvoker(rt.engine, archive.WithNow(d.now)),
		rt.reporter, opts...)

	if err := loop.Run(ctx); err != nil {
		rt.log.Error("scheduler stopped", logging.Err(err))
		return err
	}
	return nil
}
