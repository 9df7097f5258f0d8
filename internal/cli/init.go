package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raoulx24/borg-scheduler/internal/borg"
)

func newInitCmd(g *globalOptions, d deps) *cobra.Command {
	f := &commandFlags{}
	var (
		encryption     string
		appendOnly     bool
		makeParentDirs bool
		storageQuota   string
	)
	cmd := &cobra.Command{
		Use:   "init [repository]",
		Short: "Initialize a new repository",
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

			err = rt.engine.InitRepository(cmd.Context(), borg.InitOptions{
				Repository:     sc.RepositoryLocation,
				Passphrase:     sc.Passphrase,
				Encryption:     encryption,
				AppendOnly:     appendOnly,
				MakeParentDirs: makeParentDirs,
				StorageQuota:   storageQuota,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized repository %s (%s)\n", sc.RepositoryLocation, encryption)
			return nil
		},
	}
	f.bindRepository(cmd)
	fl := cmd.Flags()
	fl.StringVar(&encryption, "encryption", borg.DefaultEncryption, "borg encryption mode")
	fl.BoolVar(&appendOnly, "append-only", false, "create an append-only repository")
	fl.BoolVar(&makeParentDirs, "make-parent-dirs", false, "create missing parent directories")
	fl.StringVar(&storageQuota, "storage-quota", "", "repository quota, e.g. 500G")
	return cmd
}
