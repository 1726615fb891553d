package main

import (
	"github.com/golang/glog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/git-pkgs/tfaot/aot"
	"github.com/git-pkgs/tfaot/internal/cmdutil"
)

// appFs is the filesystem every command works on.
var appFs = afero.NewOsFs()

// NewTFAOTCmd creates the root command.
func NewTFAOTCmd() *cobra.Command {
	var logToStderr bool
	var verbose int
	cmd := &cobra.Command{
		Use:   "cms_tfaot",
		Short: "Resolve, package and install cms-tfaot style Python projects and compile AOT models",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmdutil.InitLogging(logToStderr, verbose)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			glog.Flush()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().BoolVar(&logToStderr, "logtostderr", false, "Log to stderr instead of to files")
	cmd.PersistentFlags().IntVarP(
		&verbose, "verbose", "v", 0, "Enable verbose logging (e.g., v=3); anything >3 is very verbose")

	compile := aot.NewCompileCommand()
	compile.Use = "compile"

	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(compile)
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func dirFromArgs(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
