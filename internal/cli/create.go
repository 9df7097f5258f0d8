package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/raoulx24/borg-scheduler/internal/archive"
	"github.com/raoulx24/borg-scheduler/internal/borg"
	"github.com/raoulx24/borg-scheduler/internal/config"
	"github.com/raoulx24/borg-scheduler/internal/repository"
	"github.com/raoulx24/borg-scheduler/internal/retention"
	"github.com/raoulx24/borg-scheduler/internal/scheduler"
)

func newCreateCmd(g *globalOptions, d deps) *cobra.Command {
	f := &commandFlags{}
	var ensure bool
	cmd := &cobra.Command{
		Use:   "create [repository]",
		Short: "Create one archive now",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args, g, f)
			if err != nil {
				return err
			}
			return runCreate(cmd, cfg, d, ensure)
		},
	}
	f.bindRepository(cmd)
	f.bindArchive(cmd)
	cmd.Flags().BoolVar(&ensure, "ensure", false, "initialize the repository first if it cannot be listed, and apply retention")
	return cmd
}

func runCreate(cmd *cobra.Command, cfg *config.Config, d deps, ensure bool) error {
	sc := cfg.Build()
	if err := sc.Validate(); err != nil {
		return err
	}
	if len(sc.Paths) == 0 {
		return &config.ValidationError{Field: "paths", Reason: "must name at least one path"}
	}

	rt, err := newRuntime(cmd, cfg, d, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	inv := archive.NewInvoker(rt.engine, archive.WithNow(d.now))

	var res *borg.ArchiveResult
	if ensure {
		ret, err := retention.New(sc.Retention, rt.engine, rt.log)
		if err != nil {
			return err
		}
		loop := scheduler.New(sc, nil, repository.NewGuard(rt.engine), inv, rt.reporter,
			scheduler.WithRetention(ret), scheduler.WithLogger(rt.log))
		res, err = loop.RunOnce(cmd.Context())
		if err != nil {
			return passphraseHint(err)
		}
	} else {
		res, err = inv.Create(cmd.Context(), sc)
		rt.reporter.ReportArchive(res, err)
		if err != nil {
			return passphraseHint(err)
		}
	}

	printArchive(cmd.OutOrStdout(), res)
	return nil
}

func printArchive(w io.Writer, res *borg.ArchiveResult) {
	if res == nil {
		return
	}
	a := res.Archive
	fmt.Fprintf(w, "Repository: %s\n", res.Repository.Location)
	fmt.Fprintf(w, "Archive:    %s\n", a.Name)
	fmt.Fprintf(w, "Started:    %s\n", formatTime(a.Start.Time))
	fmt.Fprintf(w, "Ended:      %s\n", formatTime(a.End.Time))
	fmt.Fprintf(w, "Duration:   %s\n", a.Duration.Duration())
	if len(a.CommandLine) > 0 {
		fmt.Fprintf(w, "Command:    %s\n", strings.Join(a.CommandLine, " "))
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "Warning:    %s\n", warn)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

// passphraseHint adds a nudge to errors that usually mean a wrong passphrase.
func passphraseHint(err error) error {
	if errors.Is(err, borg.ErrPassphraseWrong) {
		return fmt.Errorf("%w (check --passphrase or BORG_PASSPHRASE)", err)
	}
	return err
}
