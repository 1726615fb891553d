package main

import (
	"github.com/spf13/cobra"

	"github.com/git-pkgs/tfaot/internal/cmdutil"
	"github.com/git-pkgs/tfaot/scripts"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <module.path:function> [-- args...]",
		Short: "Run a registered console script",
		Args:  cobra.MinimumNArgs(1),
		Run: cmdutil.RunFunc(func(cmd *cobra.Command, args []string) error {
			if code := scripts.Run(cmd.Context(), args[0], args[1:], cmd.ErrOrStderr()); code != 0 {
				return &scripts.ExitError{Code: code}
			}
			return nil
		}),
	}
}
