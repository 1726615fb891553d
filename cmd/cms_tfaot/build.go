package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/tfaot/dist"
	"github.com/git-pkgs/tfaot/internal/cmdutil"
)

func newBuildCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Build a source distribution of the project",
		Long: "Resolves the project manifest and writes <name>-<version>.tar.gz. Nothing is\n" +
			"written when resolution fails.",
		Args: cobra.MaximumNArgs(1),
		Run: cmdutil.RunFunc(func(cmd *cobra.Command, args []string) error {
			dir := dirFromArgs(args)
			if outDir == "" {
				outDir = filepath.Join(dir, "dist")
			}
			path, d, err := dist.BuildProject(cmd.Context(), appFs, dir, outDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "built %s %s: %s\n", d.Name, d.Version, path)
			return nil
		}),
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory for the archive (default <dir>/dist)")
	return cmd
}
