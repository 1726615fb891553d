package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/git-pkgs/spdx"

	"github.com/git-pkgs/tfaot/internal/core"
	"github.com/git-pkgs/tfaot/internal/pep440"
)

// Validate checks the identity and metadata of a resolved descriptor and
// returns every problem found.
func Validate(d *core.Descriptor) []error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &core.ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !core.ValidName(d.Name) {
		add("project.name", "%q is not a valid distribution name", d.Name)
	}
	if d.Version != "" {
		if _, err := pep440.Parse(d.Version); err != nil {
			errs = append(errs, &core.InvalidVersionError{Version: d.Version, Err: err})
		}
	}

	if d.RequiresPython != "" {
		if _, err := pep440.ParseSpecifierSet(d.RequiresPython); err != nil {
			add("project.requires-python", "%v", err)
		}
	}

	if expr := d.License.Expression; expr != "" {
		if _, err := spdx.ParseStrict(expr); err != nil {
			add("project.license", "%q is not a valid SPDX expression: %v", expr, err)
		}
	}

	for _, dep := range d.Dependencies {
		if err := validateDependency(dep); err != nil {
			add("project.dependencies", "%v", err)
		}
	}

	seenExtras := make(map[string]string)
	for _, extra := range sortedKeys(d.OptionalDependencies) {
		if !core.ValidName(extra) {
			add("project.optional-dependencies", "%q is not a valid extra name", extra)
			continue
		}
		norm := core.NormalizeName(extra)
		if prev, ok := seenExtras[norm]; ok {
			add("project.optional-dependencies", "extras %q and %q normalize to the same name", prev, extra)
		}
		seenExtras[norm] = extra
		for _, dep := range d.OptionalDependencies[extra] {
			if err := validateDependency(dep); err != nil {
				add("project.optional-dependencies."+extra, "%v", err)
			}
		}
	}

	errs = append(errs, validateScripts(d)...)
	return errs
}

func validateDependency(dep core.Dependency) error {
	req := dep.Requirements
	if req == "" || req == "*" || strings.HasPrefix(req, " @ ") {
		return nil
	}
	if _, err := pep440.ParseSpecifierSet(req); err != nil {
		return fmt.Errorf("%s: %w", dep.Name, err)
	}
	return nil
}

// validateScripts checks references and that command names are unique across
// console and GUI scripts, which share one namespace once installed.
func validateScripts(d *core.Descriptor) []error {
	var errs []error
	seen := make(map[string]string)

	check := func(table string, entries []core.ScriptEntry) {
		for _, e := range entries {
			field := fmt.Sprintf("project.%s.%s", table, e.Name)
			if !ValidScriptName(e.Name) {
				errs = append(errs, &core.ValidationError{Field: field, Message: "invalid command name"})
			}
			if !core.ValidReference(e.Reference) {
				errs = append(errs, &core.ValidationError{Field: field, Message: fmt.Sprintf("%q is not a module:callable reference", e.Reference)})
			}
			if prev, ok := seen[e.Name]; ok {
				errs = append(errs, &core.ValidationError{Field: field, Message: "command name already defined in project." + prev})
			}
			seen[e.Name] = table
		}
	}
	check("scripts", d.Scripts)
	check("gui-scripts", d.GUIScripts)

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return errs
}

// ValidScriptName reports whether name can be installed as a command.
func ValidScriptName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\ \t\r\n'\"")
}
