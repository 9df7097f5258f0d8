package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/raoulx24/borg-scheduler/internal/config"
	"github.com/raoulx24/borg-scheduler/internal/logging"
	"github.com/raoulx24/borg-scheduler/internal/report"
)

type runtime struct {
	sc       config.ScheduleConfig
	log      logging.Logger
	closer   io.Closer
	reporter *report.Reporter
	engine   Engine
}

func (r *runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// newRuntime opens the log sink and the engine for cfg. Without a configured
// sink, logs go to stderr and the reporter runs in ModeFatal. One-shot
// commands pass oneShot so failures come back as errors instead.
func newRuntime(cmd *cobra.Command, cfg *config.Config, d deps, oneShot bool) (*runtime, error) {
	sc := cfg.Build()

	var (
		log    logging.Logger
		closer io.Closer
		mode   = report.ModeContinue
	)
	if cfg.Logging.Configured() {
		l, c, err := logging.New(logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			File:   cfg.Logging.File,
		})
		if err != nil {
			return nil, err
		}
		log, closer = l, c
	} else {
		log = logging.NewConsole(cmd.ErrOrStderr(), "info")
		if !oneShot {
			mode = report.ModeFatal
		}
	}

	var opts []report.Option
	if d.exit != nil {
		opts = append(opts, report.WithExit(d.exit))
	}

	return &runtime{
		sc:       sc,
		log:      log,
		closer:   closer,
		reporter: report.New(log, sc.Verbose, mode, opts...),
		engine:   d.newEngine(sc, log.With(logging.String("component", "borg"))),
	}, nil
}
