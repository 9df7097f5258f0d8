package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/raoulx24/borg-scheduler/internal/borg"
)

func newListCmd(g *globalOptions, d deps) *cobra.Command {
	f := &commandFlags{}
	cmd := &cobra.Command{
		Use:   "list [repository]",
		Short: "Show repository details and its archives",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args, g, f)
			if err != nil {
				return err
			}
			sc := cfg.Build()
			if err := sc.Validate(); err != nil {
				return err
			}

			rt, err := newRuntime(cmd, cfg, d, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			info, err := rt.engine.ListRepository(cmd.Context(), borg.ListOptions{
				Repository: sc.RepositoryLocation,
				Passphrase: sc.Passphrase,
			})
			if err != nil {
				return passphraseHint(err)
			}
			printRepoInfo(cmd.OutOrStdout(), info)
			return nil
		},
	}
	f.bindRepository(cmd)
	return cmd
}

func printRepoInfo(w io.Writer, info *borg.RepoInfo) {
	fmt.Fprintf(w, "Last modified: %s\n", formatTime(info.Repository.LastModified.Time))

	if enc := info.Encryption; enc != nil && enc.Mode != "" && enc.Mode != "none" {
		fmt.Fprintf(w, "Encryption mode: %s\n", enc.Mode)
		if enc.Keyfile != "" {
			fmt.Fprintf(w, "Path of keyfile: %s\n", enc.Keyfile)
		}
	} else {
		fmt.Fprintln(w, "Repository includes no encryption!")
	}

	fmt.Fprintln(w, "\nArchives:")
	if len(info.Archives) == 0 {
		fmt.Fprintln(w, "Repository has no archives")
		return
	}
	for _, a := range info.Archives {
		fmt.Fprintf(w, "ID: %s, Name: %s, Start: %s\n", a.ID, a.Name, formatTime(a.Start.Time))
	}
}
