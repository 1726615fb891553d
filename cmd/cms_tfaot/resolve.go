package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/git-pkgs/tfaot/internal/cmdutil"
	"github.com/git-pkgs/tfaot/internal/core"
	"github.com/git-pkgs/tfaot/manifest"
)

func newResolveCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "resolve [dir]",
		Short: "Resolve the project manifest and print the descriptor",
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
			return printDescriptor(cmd.OutOrStdout(), d, output)
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or yaml")
	return cmd
}

type descriptorView struct {
	Name                 string              `json:"name" yaml:"name"`
	Version              string              `json:"version" yaml:"version"`
	PURL                 string              `json:"purl" yaml:"purl"`
	Description          string              `json:"description,omitempty" yaml:"description,omitempty"`
	License              string              `json:"license,omitempty" yaml:"license,omitempty"`
	RequiresPython       string              `json:"requires_python,omitempty" yaml:"requires_python,omitempty"`
	Readme               *readmeView         `json:"readme,omitempty" yaml:"readme,omitempty"`
	Classifiers          []string            `json:"classifiers,omitempty" yaml:"classifiers,omitempty"`
	Dependencies         []string            `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	OptionalDependencies map[string][]string `json:"optional_dependencies,omitempty" yaml:"optional_dependencies,omitempty"`
	Scripts              map[string]string   `json:"scripts,omitempty" yaml:"scripts,omitempty"`
	GUIScripts           map[string]string   `json:"gui_scripts,omitempty" yaml:"gui_scripts,omitempty"`
	Packages             []string            `json:"packages,omitempty" yaml:"packages,omitempty"`
	Dynamic              []string            `json:"dynamic,omitempty" yaml:"dynamic,omitempty"`
	URLs                 map[string]string   `json:"urls,omitempty" yaml:"urls,omitempty"`
}

type readmeView struct {
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	ContentType string `json:"content_type" yaml:"content_type"`
	Length      int    `json:"length" yaml:"length"`
}

func newDescriptorView(d *core.Descriptor) descriptorView {
	v := descriptorView{
		Name:           d.Name,
		Version:        d.Version,
		PURL:           d.PURL(),
		Description:    d.Description,
		License:        d.License.Expression,
		RequiresPython: d.RequiresPython,
		Classifiers:    d.Classifiers,
		Packages:       d.Packages,
		Dynamic:        d.Dynamic,
		URLs:           d.URLs,
	}
	if d.Readme != nil {
		v.Readme = &readmeView{Path: d.Readme.Path, ContentType: d.Readme.ContentType, Length: len(d.Readme.Content)}
	}
	for _, dep := range d.Dependencies {
		v.Dependencies = append(v.Dependencies, dep.String())
	}
	if len(d.OptionalDependencies) > 0 {
		v.OptionalDependencies = make(map[string][]string)
		for extra, deps := range d.OptionalDependencies {
			for _, dep := range deps {
				v.OptionalDependencies[extra] = append(v.OptionalDependencies[extra], dep.String())
			}
		}
	}
	v.Scripts = scriptMap(d.Scripts)
	v.GUIScripts = scriptMap(d.GUIScripts)
	return v
}

func scriptMap(entries []core.ScriptEntry) map[string]string {
	if len(entries) == 0 {
		return nil
	}
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[e.Name] = e.Reference
	}
	return m
}

func printDescriptor(w io.Writer, d *core.Descriptor, format string) error {
	v := newDescriptorView(d)
	switch format {
	case "json":
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return errors.Wrap(err, "cannot render descriptor")
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "cannot render descriptor")
		}
		return enc.Close()
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}
