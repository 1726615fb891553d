package aot

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/tfaot/scripts"
)

// Console script references served by this package.
const (
	TFAOTCompileRef = "cms_tfaot.scripts.tfaot_compile:main"
	CompileModelRef = "cms_tfaot.scripts.compile_model:main"
)

func init() {
	scripts.Register(TFAOTCompileRef, commandFunc(NewCompileCommand))
	scripts.Register(CompileModelRef, commandFunc(NewCompileModelCommand))
}

// commandFunc adapts a cobra command to a console script.
func commandFunc(newCmd func() *cobra.Command) scripts.Func {
	return func(ctx context.Context, args []string) error {
		cmd := newCmd()
		if args == nil {
			// cobra falls back to os.Args on nil
			args = []string{}
		}
		cmd.SetArgs(args)
		return cmd.ExecuteContext(ctx)
	}
}

// NewCompileCommand returns the cms_tfaot_compile command.
func NewCompileCommand() *cobra.Command {
	return newCompileCommand("cms_tfaot_compile", true)
}

// NewCompileModelCommand returns the reduced command without the dev
// workflow.
func NewCompileModelCommand() *cobra.Command {
	return newCompileCommand("cms_tfaot_compile_model", false)
}

func newCompileCommand(use string, devWorkflow bool) *cobra.Command {
	var opts Options
	cmd := &cobra.Command{
		Use:   use,
		Short: "Compile a model ahead of time and lay out its CMSSW deployment",
		Long: "Takes an AOT configuration file, compiles the referenced model and provides all files\n" +
			"necessary for the production deployment.",
		Args:          usageCheck(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// cobra checks required flags after PreRunE
			if err := cmd.ValidateRequiredFlags(); err != nil {
				return usageError(err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if opts.Dev {
				if warning := TargetArchWarning(opts.ExtraOptions, HostArch()); warning != "" {
					fmt.Fprintln(out, warning)
				}
			}
			opts.Out = out
			_, err := Compile(cmd.Context(), opts)
			return err
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	flags := cmd.Flags()
	flags.StringVarP(&opts.ConfigFile, "aot-config", "c", "", "aot configuration file (yaml or json)")
	flags.StringVarP(&opts.OutputDir, "output-directory", "o", "", "output directory for compile targets")
	flags.StringVar(&opts.ToolName, "tool-name", "", "name of the tool; defaults to 'tfaot-model-<model-name>'")
	flags.StringVar(&opts.ToolBase, "tool-base", "", "base directory of the tool; no default")
	if devWorkflow {
		flags.BoolVar(&opts.Dev, "dev", false,
			"activates the development workflow, setting some variables to sensible defaults")
		flags.StringVar(&opts.ExtraOptions, "additional-flags", "",
			"additional flags to be passed to the underlying aot compiler invocation")
	}
	_ = cmd.MarkFlagRequired("aot-config")
	_ = cmd.MarkFlagRequired("output-directory")

	return cmd
}

// usageError marks command line misuse, which exits with status 2.
func usageError(err error) error {
	return &scripts.ExitError{Code: 2, Err: err}
}

func usageCheck(args cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, a []string) error {
		if err := args(cmd, a); err != nil {
			return usageError(err)
		}
		return nil
	}
}
