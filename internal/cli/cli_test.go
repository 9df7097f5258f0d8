package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raoulx24/borg-scheduler/internal/borg"
	"github.com/raoulx24/borg-scheduler/internal/config"
	"github.com/raoulx24/borg-scheduler/internal/cronclock"
	"github.com/raoulx24/borg-scheduler/internal/daemon"
	"github.com/raoulx24/borg-scheduler/internal/logging"
	"github.com/raoulx24/borg-scheduler/internal/scheduler"
)

var fixedNow = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

type fakeEngine struct {
	passphrase string
	info       *borg.RepoInfo
	lists      []borg.ListOptions
	inits      []borg.InitOptions
	creates    []borg.CreateOptions
	prunes     []borg.PruneOptions
}

func (e *fakeEngine) check(op, passphrase string) error {
	if e.passphrase != "" && passphrase != e.passphrase {
		return &borg.EngineError{Op: op, MsgID: "PassphraseWrong", ExitCode: 2, Kind: borg.ErrPassphraseWrong}
	}
	return nil
}

func (e *fakeEngine) ListRepository(_ context.Context, o borg.ListOptions) (*borg.RepoInfo, error) {
	e.lists = append(e.lists, o)
	if err := e.check("list", o.Passphrase); err != nil {
		return nil, err
	}
	if e.info == nil {
		return &borg.RepoInfo{}, nil
	}
	return e.info, nil
}

func (e *fakeEngine) InitRepository(_ context.Context, o borg.InitOptions) error {
	e.inits = append(e.inits, o)
	return nil
}

func (e *fakeEngine) CreateArchive(_ context.Context, o borg.CreateOptions) (*borg.ArchiveResult, error) {
	e.creates = append(e.creates, o)
	if err := e.check("create", o.Passphrase); err != nil {
		return nil, err
	}
	return &borg.ArchiveResult{
		Repository: borg.Repository{Location: o.Repository},
		Archive: borg.CreatedArchive{
			Name:        o.Archive,
			Start:       borg.Timestamp{Time: fixedNow},
			End:         borg.Timestamp{Time: fixedNow.Add(time.Second)},
			Duration:    1,
			CommandLine: []string{"borg", "create", o.Repository + "::" + o.Archive},
		},
	}, nil
}

func (e *fakeEngine) Prune(_ context.Context, o borg.PruneOptions) error {
	e.prunes = append(e.prunes, o)
	return nil
}

type testEnv struct {
	engine     *fakeEngine
	engineCfg  config.ScheduleConfig
	released   []daemon.Options
	daemonized []daemon.Options
	daemonRes  daemon.Result
	daemonErr  error
	exits      []int
	sleeps     int
	stdout     bytes.Buffer
	stderr     bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv(LogEnv, "")
	t.Setenv("BORG_PASSPHRASE", "")
	return &testEnv{engine: &fakeEngine{}}
}

func (e *testEnv) deps() deps {
	return deps{
		newEngine: func(cfg config.ScheduleConfig, _ logging.Logger) Engine {
			e.engineCfg = cfg
			return e.engine
		},
		daemonize: func(_ context.Context, o daemon.Options) (daemon.Result, error) {
			e.daemonized = append(e.daemonized, o)
			return e.daemonRes, e.daemonErr
		},
		release: func(o daemon.Options) error {
			e.released = append(e.released, o)
			return nil
		},
		now:  func() time.Time { return fixedNow },
		exit: func(code int) { e.exits = append(e.exits, code) },
		loopOpts: []scheduler.Option{scheduler.WithClock(
			func() time.Time { return fixedNow },
			func(context.Context, time.Duration) error {
				// stop at the first wait
				e.sleeps++
				return context.Canceled
			},
		)},
	}
}

func (e *testEnv) run(args ...string) error {
	root := newRootCmd(e.deps())
	root.SetArgs(args)
	root.SetOut(&e.stdout)
	root.SetErr(&e.stderr)
	return root.ExecuteContext(context.Background())
}

func TestSchedule_InvalidExpressionFailsBeforeDaemonizing(t *testing.T) {
	env := newTestEnv(t)

	err := env.run("schedule", "-r", "/repo", "-p", "pw", "-e", "not a cron", "-d")
	require.Error(t, err)

	var cerr *cronclock.ConfigError
	assert.True(t, errors.As(err, &cerr))
	assert.Empty(t, env.daemonized)
	assert.Zero(t, env.sleeps)
}

func TestSchedule_UnknownTimezone(t *testing.T) {
	env := newTestEnv(t)

	err := env.run("schedule", "-r", "/repo", "-p", "pw", "-t", "Mars/Olympus_Mons")
	var cerr *cronclock.ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "timezone", cerr.Field)
}

func TestSchedule_MissingPassphrase(t *testing.T) {
	env := newTestEnv(t)

	err := env.run("schedule", "-r", "/repo")
	var verr *config.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "passphrase", verr.Field)
}

func TestSchedule_DetachedParentReturns(t *testing.T) {
	env := newTestEnv(t)
	env.daemonRes = daemon.Result{Detached: true, PID: 4242}

	require.NoError(t, env.run("schedule", "/repo", "-p", "pw", "--paths", "/data", "-d"))

	require.Len(t, env.daemonized, 1)
	assert.Equal(t, config.DefaultPIDFile, env.daemonized[0].PIDFile)
	assert.Equal(t, config.DefaultWorkDir, env.daemonized[0].WorkDir)
	assert.Contains(t, env.stdout.String(), "pid 4242")
	assert.Zero(t, env.sleeps, "the parent must not run the loop")
}

func TestSchedule_DaemonizeFailureRunsInForeground(t *testing.T) {
	env := newTestEnv(t)
	env.daemonErr = &daemon.Error{Step: "starting child", Err: daemon.ErrChildExited}

	require.NoError(t, env.run("schedule", "/repo", "-p", "pw", "--paths", "/data", "-d"))

	assert.Contains(t, env.stderr.String(), "daemonization failed")
	assert.Equal(t, 1, env.sleeps)
	assert.Empty(t, env.exits, "a daemonize failure is never fatal")
	assert.Empty(t, env.released)
}

func TestSchedule_ForegroundWithoutDaemonFlag(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.run("schedule", "/repo", "-p", "pw", "--paths", "/data"))
	assert.Empty(t, env.daemonized)
	assert.Equal(t, 1, env.sleeps)
}

func TestLoadConfig_FileValuesWithoutFlags(t *testing.T) {
	t.Setenv("TEST_REPO_PASS", "from-env")
	t.Setenv(LogEnv, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
repository:
  location: /from/file
  passphrase: $(TEST_REPO_PASS)
archive:
  paths: [/home]
schedule:
  expression: "0 3 * * *"
  timezone: Europe/Berlin
`), 0o644))

	g := &globalOptions{configPath: path}
	f := &commandFlags{}
	cmd := newScheduleCmd(g, deps{})
	cmd.ResetFlags()
	f.bindRepository(cmd)
	f.bindArchive(cmd)
	f.bindSchedule(cmd)
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, err := loadConfig(cmd, nil, g, f)
	require.NoError(t, err)

	assert.Equal(t, "/from/file", cfg.Repository.Location)
	assert.Equal(t, "from-env", cfg.Repository.Passphrase)
	assert.Equal(t, []string{"/home"}, cfg.Archive.Paths)
	assert.Equal(t, "0 3 * * *", cfg.Schedule.Expression)
	assert.Equal(t, "Europe/Berlin", cfg.Schedule.Timezone)
	assert.False(t, cfg.Daemon.Enabled)
	assert.False(t, cfg.Logging.Configured())
}

func TestLoadConfig_ChangedFlagsWin(t *testing.T) {
	t.Setenv(LogEnv, "warn")
	t.Setenv("BORG_PASSPHRASE", "env-pass")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
repository:
  location: /from/file
schedule:
  expression: "0 3 * * *"
`), 0o644))

	g := &globalOptions{configPath: path}
	f := &commandFlags{}
	cmd := newScheduleCmd(g, deps{})
	cmd.ResetFlags()
	f.bindRepository(cmd)
	f.bindArchive(cmd)
	f.bindSchedule(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"-e", "*/5 * * * *", "--paths", "/srv,/etc", "-v"}))

	cfg, err := loadConfig(cmd, []string{"/from/arg"}, g, f)
	require.NoError(t, err)

	assert.Equal(t, "/from/arg", cfg.Repository.Location)
	assert.Equal(t, "env-pass", cfg.Repository.Passphrase)
	assert.Equal(t, "*/5 * * * *", cfg.Schedule.Expression)
	assert.Equal(t, config.DefaultTimezone, cfg.Schedule.Timezone)
	assert.Equal(t, []string{"/srv", "/etc"}, cfg.Archive.Paths)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Configured())
}

func TestLoadConfig_RepositoryGivenTwice(t *testing.T) {
	t.Setenv(LogEnv, "")
	g := &globalOptions{}
	f := &commandFlags{}
	cmd := newScheduleCmd(g, deps{})
	cmd.ResetFlags()
	f.bindRepository(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"-r", "/a"}))

	_, err := loadConfig(cmd, []string{"/b"}, g, f)
	assert.Error(t, err)
}

func TestCreate_PrintsArchiveWithEpochName(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.run("create", "/repo", "-p", "pw", "--paths", "/data", "--exclude-patterns", "*.tmp"))

	require.Len(t, env.engine.creates, 1)
	c := env.engine.creates[0]
	want := strconv.FormatInt(fixedNow.Unix(), 10)
	assert.Equal(t, want, c.Archive)
	assert.Equal(t, []string{"/data"}, c.Paths)
	assert.Equal(t, []borg.Pattern{{Kind: borg.Exclude, Expr: "*.tmp"}}, c.Patterns)
	assert.Empty(t, env.engine.lists, "plain create does not list the repository")

	out := env.stdout.String()
	assert.Contains(t, out, "Archive:    "+want)
	assert.Contains(t, out, "Repository: /repo")
}

func TestCreate_EnsureListsFirst(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.run("create", "/repo", "-p", "pw", "--paths", "/data", "--ensure"))
	assert.Len(t, env.engine.lists, 1)
	assert.Len(t, env.engine.creates, 1)
}

func TestCreate_WrongPassphrase(t *testing.T) {
	env := newTestEnv(t)
	env.engine.passphrase = "right"

	err := env.run("create", "/repo", "-p", "wrong", "--paths", "/data", "-v")
	require.Error(t, err)
	assert.ErrorIs(t, err, borg.ErrPassphraseWrong)
	assert.Contains(t, err.Error(), "BORG_PASSPHRASE")
	assert.Empty(t, env.exits, "one-shot commands return errors instead of exiting")
}

func TestCreate_RequiresPaths(t *testing.T) {
	env := newTestEnv(t)

	err := env.run("create", "/repo", "-p", "pw")
	var verr *config.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "paths", verr.Field)
}

func TestInit_DefaultsToKeyfileBlake2(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.run("init", "/repo", "-p", "pw"))
	require.Len(t, env.engine.inits, 1)
	assert.Equal(t, borg.DefaultEncryption, env.engine.inits[0].Encryption)
	assert.Equal(t, "/repo", env.engine.inits[0].Repository)
	assert.Contains(t, env.stdout.String(), "Initialized repository /repo")
}

func TestList_Renders(t *testing.T) {
	t.Run("empty repository", func(t *testing.T) {
		env := newTestEnv(t)
		env.engine.info = &borg.RepoInfo{
			Repository: borg.Repository{LastModified: borg.Timestamp{Time: fixedNow}},
			Encryption: &borg.Encryption{Mode: "keyfile-blake2", Keyfile: "/root/.config/borg/keys/repo"},
		}

		require.NoError(t, env.run("list", "/repo", "-p", "pw"))
		out := env.stdout.String()
		assert.Contains(t, out, "Last modified: 2024-01-08T00:00:00Z")
		assert.Contains(t, out, "Encryption mode: keyfile-blake2")
		assert.Contains(t, out, "Path of keyfile: /root/.config/borg/keys/repo")
		assert.Contains(t, out, "Repository has no archives")
	})

	t.Run("archives", func(t *testing.T) {
		env := newTestEnv(t)
		env.engine.info = &borg.RepoInfo{
			Archives: []borg.ArchiveEntry{{ID: "abc", Name: "1704672000", Start: borg.Timestamp{Time: fixedNow}}},
		}

		require.NoError(t, env.run("list", "/repo", "-p", "pw"))
		out := env.stdout.String()
		assert.Contains(t, out, "Repository includes no encryption!")
		assert.Contains(t, out, "ID: abc, Name: 1704672000, Start: 2024-01-08T00:00:00Z")
	})
}

func writeScheduleConfig(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cfg.yaml"), []byte(`
repository:
  location: repo
  passphrase: pw
archive:
  paths: [data]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vars.env"), []byte("BORG_SCHEDULER_UNUSED=1\n"), 0o644))
}

func TestSchedule_DaemonChildGetsAbsolutePaths(t *testing.T) {
	env := newTestEnv(t)
	env.daemonRes = daemon.Result{Detached: true, PID: 4242}
	t.Setenv(daemon.ChildEnv, "")
	chdir(t, t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	writeScheduleConfig(t, wd)

	require.NoError(t, env.run("schedule", "--config", "cfg.yaml", "--env-file", "vars.env",
		"--log-file", "logs/scheduler.log", "--paths", "data,etc", "-d"))

	require.Len(t, env.daemonized, 1)
	argv := env.daemonized[0].Args
	require.NotEmpty(t, argv)
	assert.Equal(t, "schedule", argv[0])
	assert.Contains(t, argv, "--config="+filepath.Join(wd, "cfg.yaml"))
	assert.Contains(t, argv, "--env-file="+filepath.Join(wd, "vars.env"))
	assert.Contains(t, argv, "--log-file="+filepath.Join(wd, "logs", "scheduler.log"))
	assert.Contains(t, argv, "--paths="+filepath.Join(wd, "data"))
	assert.Contains(t, argv, "--paths="+filepath.Join(wd, "etc"))
	assert.Contains(t, argv, "--daemonize=true")

	assert.Equal(t, filepath.Join(wd, "repo"), env.engineCfg.RepositoryLocation)
	assert.True(t, filepath.IsAbs(env.daemonized[0].PIDFile))
}

func TestSchedule_DaemonChildResolvesAgainstOrigin(t *testing.T) {
	env := newTestEnv(t)
	env.daemonRes = daemon.Result{Child: true, PID: os.Getpid()}

	origin := t.TempDir()
	writeScheduleConfig(t, origin)
	t.Setenv(daemon.ChildEnv, "1")
	t.Setenv(daemon.OriginEnv, origin)
	chdir(t, t.TempDir())

	require.NoError(t, env.run("schedule", "--config", "cfg.yaml", "--env-file", "vars.env", "-d"))

	assert.Equal(t, filepath.Join(origin, "repo"), env.engineCfg.RepositoryLocation)
	assert.Equal(t, []string{filepath.Join(origin, "data")}, env.engineCfg.Paths)
	assert.Equal(t, 1, env.sleeps, "the child runs the loop")
	require.Len(t, env.released, 1, "the child removes its pid file on exit")
	assert.Equal(t, config.DefaultPIDFile, env.released[0].PIDFile)
}

func TestSchedule_RefusesSecondDaemon(t *testing.T) {
	env := newTestEnv(t)
	env.daemonErr = &daemon.Error{Step: "checking pid file", Err: daemon.ErrAlreadyRunning}

	err := env.run("schedule", "/repo", "-p", "pw", "--paths", "/data", "-d")
	require.Error(t, err)
	assert.ErrorIs(t, err, daemon.ErrAlreadyRunning)
	assert.Zero(t, env.sleeps, "no foreground loop next to the running daemon")
}

func TestRepositoryLocations(t *testing.T) {
	r := resolver{base: "/work"}
	assert.Equal(t, "/work/repo", r.repository("repo"))
	assert.Equal(t, "/srv/repo", r.repository("/srv/repo"))
	assert.Equal(t, "ssh://backup@host:22/./repo", r.repository("ssh://backup@host:22/./repo"))
	assert.Equal(t, "backup@host:repo", r.repository("backup@host:repo"))
	assert.Equal(t, "/work/odd:name", r.repository("./odd:name"))
}

func TestCreate_LockWaitReachesEngine(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.run("create", "/repo", "-p", "pw", "--paths", "/data", "--lock-wait", "30"))
	assert.Equal(t, 30, env.engineCfg.LockWait)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes
// the working directory and restores it when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Setenv("PWD", dir)
	t.Cleanup(func() { _ = os.Chdir(old) })
}
