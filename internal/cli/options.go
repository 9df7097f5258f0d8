package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/raoulx24/borg-scheduler/internal/config"
	"github.com/raoulx24/borg-scheduler/internal/daemon"
)

// commandFlags are the per-command settings. Only flags the user actually
// set override the config file.
type commandFlags struct {
	repository      string
	passphrase      string
	archive         string
	paths           []string
	includePatterns []string
	excludePatterns []string
	expression      string
	timezone        string
	daemonize       bool
	verbose         bool
	binary          string
	remotePath      string
	lockWait        int
}

func (f *commandFlags) bindRepository(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.repository, "repository", "r", "", "repository location (path or ssh://user@host/path)")
	fl.StringVarP(&f.passphrase, "passphrase", "p", "", "repository passphrase")
	fl.StringVar(&f.binary, "borg", "", "borg binary (default \"borg\")")
	fl.StringVar(&f.remotePath, "remote-path", "", "borg executable on the remote host")
	fl.IntVar(&f.lockWait, "lock-wait", 0, "seconds to wait for a repository lock (default: borg's)")
}

func (f *commandFlags) bindArchive(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.archive, "archive", "a", "", "archive name (default: seconds since the epoch)")
	fl.StringSliceVar(&f.paths, "paths", nil, "paths to back up")
	fl.StringSliceVar(&f.includePatterns, "include-patterns", nil, "shell-style include patterns")
	fl.StringSliceVar(&f.excludePatterns, "exclude-patterns", nil, "shell-style exclude patterns")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "report full archive details and errors")
}

func (f *commandFlags) bindSchedule(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.expression, "expression", "e", "", "cron expression (default \""+config.DefaultExpression+"\")")
	fl.StringVarP(&f.timezone, "timezone", "t", "", "IANA timezone (default \""+config.DefaultTimezone+"\")")
	fl.BoolVarP(&f.daemonize, "daemonize", "d", false, "detach and run in the background")
}

// resolver makes relative local paths absolute against a fixed base, so a
// detached child running in another directory sees the same files.
type resolver struct {
	base string
}

func newResolver() (resolver, error) {
	base, err := daemon.BaseDir()
	if err != nil {
		return resolver{}, fmt.Errorf("resolving working directory: %w", err)
	}
	return resolver{base: base}, nil
}

func (r resolver) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.base, p)
}

func (r resolver) paths(ps []string) []string {
	if ps == nil {
		return nil
	}
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = r.path(p)
	}
	return out
}

// repository leaves ssh:// URLs and scp-style user@host:path locations alone.
func (r resolver) repository(loc string) string {
	if strings.Contains(loc, "://") {
		return loc
	}
	if colon := strings.Index(loc, ":"); colon >= 0 {
		if slash := strings.Index(loc, "/"); slash < 0 || colon < slash {
			return loc
		}
	}
	return r.path(loc)
}

// loadConfig reads the env file and config file, then applies changed flags.
// A single positional argument names the repository. Relative local paths
// come back absolute.
func loadConfig(cmd *cobra.Command, args []string, g *globalOptions, f *commandFlags) (*config.Config, error) {
	res, err := newResolver()
	if err != nil {
		return nil, err
	}

	if err := config.LoadEnvFile(res.path(g.envFile)); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if g.configPath != "" {
		loaded, err := config.Load(res.path(g.configPath))
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	set := func(name string, dst *string, v string) {
		if changed(name) {
			*dst = v
		}
	}
	set("repository", &cfg.Repository.Location, f.repository)
	set("passphrase", &cfg.Repository.Passphrase, f.passphrase)
	set("borg", &cfg.Repository.Binary, f.binary)
	set("remote-path", &cfg.Repository.RemotePath, f.remotePath)
	set("archive", &cfg.Archive.Name, f.archive)
	set("expression", &cfg.Schedule.Expression, f.expression)
	set("timezone", &cfg.Schedule.Timezone, f.timezone)
	if changed("lock-wait") {
		cfg.Repository.LockWait = f.lockWait
	}
	if changed("paths") {
		cfg.Archive.Paths = f.paths
	}
	if changed("include-patterns") {
		cfg.Archive.IncludePatterns = f.includePatterns
	}
	if changed("exclude-patterns") {
		cfg.Archive.ExcludePatterns = f.excludePatterns
	}
	if changed("daemonize") {
		cfg.Daemon.Enabled = f.daemonize
	}
	if changed("verbose") {
		cfg.Verbose = f.verbose
	}

	if len(args) > 0 {
		if changed("repository") && args[0] != f.repository {
			return nil, fmt.Errorf("repository given twice: %q and %q", args[0], f.repository)
		}
		cfg.Repository.Location = args[0]
	}
	if cfg.Repository.Passphrase == "" {
		cfg.Repository.Passphrase = os.Getenv("BORG_PASSPHRASE")
	}

	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	} else if cfg.Logging.Level == "" {
		cfg.Logging.Level = os.Getenv(LogEnv)
	}
	if g.logFormat != "" {
		cfg.Logging.Format = g.logFormat
	}
	if g.logFile != "" {
		cfg.Logging.File = g.logFile
	}

	cfg.Repository.Location = res.repository(cfg.Repository.Location)
	cfg.Archive.Paths = res.paths(cfg.Archive.Paths)
	cfg.Logging.File = res.path(cfg.Logging.File)
	cfg.Daemon.PIDFile = res.path(cfg.Daemon.PIDFile)
	cfg.Daemon.Stdout = res.path(cfg.Daemon.Stdout)
	cfg.Daemon.Stderr = res.path(cfg.Daemon.Stderr)
	cfg.Daemon.WorkDir = res.path(cfg.Daemon.WorkDir)
	return cfg, nil
}

var pathFlags = map[string]bool{
	"config":   true,
	"env-file": true,
	"log-file": true,
	"paths":    true,
}

// childArgs rebuilds the command line for a detached child from the flags
// the user set, with every local path made absolute.
func childArgs(cmd *cobra.Command, args []string) ([]string, error) {
	res, err := newResolver()
	if err != nil {
		return nil, err
	}

	out := []string{cmd.Name()}
	cmd.Flags().Visit(func(fl *pflag.Flag) {
		resolve := func(v string) string {
			switch {
			case pathFlags[fl.Name]:
				return res.path(v)
			case fl.Name == "repository":
				return res.repository(v)
			default:
				return v
			}
		}
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			for _, v := range sv.GetSlice() {
				out = append(out, "--"+fl.Name+"="+resolve(v))
			}
			return
		}
		out = append(out, "--"+fl.Name+"="+resolve(fl.Value.String()))
	})
	for _, a := range args {
		out = append(out, res.repository(a))
	}
	return out, nil
}
