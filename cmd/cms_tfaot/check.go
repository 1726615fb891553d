package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/tfaot/index"
	"github.com/git-pkgs/tfaot/internal/cmdutil"
	"github.com/git-pkgs/tfaot/internal/core"
	"github.com/git-pkgs/tfaot/manifest"
)

func newCheckCmd() *cobra.Command {
	var indexURL string
	var concurrency int
	cmd := &cobra.Command{
		Use:   "check [dir]",
		Short: "Check that every declared dependency can be satisfied from the package index",
		Args:  cobra.MaximumNArgs(1),
		Run: cmdutil.RunFunc(func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(appFs, dirFromArgs(args))
			if err != nil {
				return err
			}
			d, err := manifest.Resolve(cmd.Context(), m)
			if err != nil {
				return err
			}

			client := index.New(indexURL, nil)
			results, err := client.Verify(cmd.Context(), allDependencies(d), concurrency)
			out := cmd.OutOrStdout()
			for _, r := range results {
				switch {
				case r.Err != nil:
					fmt.Fprintf(out, "FAIL  %s: %v\n", r.Dependency, r.Err)
				case r.Skipped:
					fmt.Fprintf(out, "SKIP  %s\n", r.Dependency)
				case r.Version != "":
					fmt.Fprintf(out, "OK    %s (%s)\n", r.Dependency, r.Version)
				default:
					fmt.Fprintf(out, "OK    %s\n", r.Dependency)
				}
			}
			return err
		}),
	}
	cmd.Flags().StringVar(&indexURL, "index-url", "", "Base URL of the package index (default https://pypi.org)")
	cmd.Flags().IntVar(&concurrency, "concurrency", index.DefaultConcurrency, "Maximum parallel index requests")
	return cmd
}

// allDependencies lists runtime dependencies followed by those of every
// extra in name order.
func allDependencies(d *core.Descriptor) []core.Dependency {
	deps := append([]core.Dependency(nil), d.Dependencies...)
	extras := make([]string, 0, len(d.OptionalDependencies))
	for extra := range d.OptionalDependencies {
		extras = append(extras, extra)
	}
	sort.Strings(extras)
	for _, extra := range extras {
		deps = append(deps, d.OptionalDependencies[extra]...)
	}
	return deps
}
