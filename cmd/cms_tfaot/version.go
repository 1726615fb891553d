package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/tfaot/internal/cmdutil"
	"github.com/git-pkgs/tfaot/internal/meta"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cms_tfaot version number",
		Run: cmdutil.RunFunc(func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "cms_tfaot version %v\n", meta.Version())
			return nil
		}),
	}
}
