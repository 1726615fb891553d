package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/git-pkgs/tfaot/internal/cmdutil"
	"github.com/git-pkgs/tfaot/internal/core"
	"github.com/git-pkgs/tfaot/manifest"
	"github.com/git-pkgs/tfaot/scripts"
)

func newInstallCmd() *cobra.Command {
	var binDir string
	var launcher string
	cmd := &cobra.Command{
		Use:   "install [dir]",
		Short: "Install the project's console scripts",
		Long: "Writes one shim per console script into --bin-dir. Each shim dispatches to the\n" +
			"registered callable through 'cms_tfaot run'.",
		Args: cobra.MaximumNArgs(1),
		Run: cmdutil.RunFunc(func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(appFs, dirFromArgs(args))
			if err != nil {
				return err
			}
			d, err := manifest.Resolve(cmd.Context(), m)
			if err != nil {
				return err
			}

			if binDir == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return errors.Wrap(err, "cannot determine default --bin-dir")
				}
				binDir = filepath.Join(home, ".local", "bin")
			}
			if launcher == "" {
				if launcher, err = os.Executable(); err != nil {
					return errors.Wrap(err, "cannot determine launcher")
				}
			}

			entries := append(append([]core.ScriptEntry(nil), d.Scripts...), d.GUIScripts...)
			paths, err := scripts.Install(appFs, binDir, launcher, entries)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintf(cmd.OutOrStdout(), "installed %s\n", p)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&binDir, "bin-dir", "", "Directory for the shims (default ~/.local/bin)")
	cmd.Flags().StringVar(&launcher, "launcher", "", "Executable the shims call (default this binary)")
	return cmd
}
