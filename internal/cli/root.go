// Package cli wires the borg-scheduler commands.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/raoulx24/borg-scheduler/internal/borg"
	"github.com/raoulx24/borg-scheduler/internal/config"
	"github.com/raoulx24/borg-scheduler/internal/daemon"
	"github.com/raoulx24/borg-scheduler/internal/logging"
	"github.com/raoulx24/borg-scheduler/internal/scheduler"
)

// LogEnv configures the log level when neither the config file nor
// --log-level does.
const LogEnv = "BORG_SCHEDULER_LOG"

// Engine is everything the commands ask of borg.
type Engine interface {
	ListRepository(ctx context.Context, o borg.ListOptions) (*borg.RepoInfo, error)
	InitRepository(ctx context.Context, o borg.InitOptions) error
	CreateArchive(ctx context.Context, o borg.CreateOptions) (*borg.ArchiveResult, error)
	Prune(ctx context.Context, o borg.PruneOptions) error
}

type deps struct {
	newEngine func(cfg config.ScheduleConfig, log logging.Logger) Engine
	daemonize func(ctx context.Context, o daemon.Options) (daemon.Result, error)
	release   func(o daemon.Options) error
	now       func() time.Time
	exit      func(int)
	loopOpts  []scheduler.Option
}

func defaultDeps() deps {
	return deps{
		newEngine: func(cfg config.ScheduleConfig, log logging.Logger) Engine {
			return borg.New(cfg.BorgBinary,
				borg.WithLogger(log),
				borg.WithCommonOptions(borg.CommonOptions{RemotePath: cfg.RemotePath, LockWait: cfg.LockWait}))
		},
		daemonize: daemon.Daemonize,
		release:   daemon.Release,
		now:       time.Now,
	}
}

type globalOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
	logFile    string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultDeps())
}

func newRootCmd(d deps) *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "borg-scheduler",
		Short: "Create BorgBackup archives on a cron schedule",
		Long: `borg-scheduler creates an archive in a BorgBackup repository every time a
cron expression fires, initializing the repository first if needed.

Examples:
  # every Monday at midnight UTC, in the background
  borg-scheduler schedule -r /srv/borg/repo -p "$BORG_PASSPHRASE" --paths /home,/etc -d

  # one archive now
  borg-scheduler create -r /srv/borg/repo -p "$BORG_PASSPHRASE" --paths /home

  # settings from a file, secrets from a dotenv file
  borg-scheduler schedule --config /etc/borg-scheduler.yaml --env-file /etc/borg-scheduler.env`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SuggestionsMinimumDistance = 2

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&g.envFile, "env-file", "", "dotenv file loaded before the config is read")
	pf.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error); setting it configures a log sink (env "+LogEnv+")")
	pf.StringVar(&g.logFormat, "log-format", "", "log format: json or text")
	pf.StringVar(&g.logFile, "log-file", "", "append logs to this file")

	root.AddCommand(
		newScheduleCmd(g, d),
		newCreateCmd(g, d),
		newInitCmd(g, d),
		newListCmd(g, d),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
