package dist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/git-pkgs/spdx"

	"github.com/git-pkgs/tfaot/internal/core"
)

// MetadataVersion is the core metadata version written to PKG-INFO.
const MetadataVersion = "2.1"

// Metadata renders the core metadata (PKG-INFO) of a descriptor.
func Metadata(d *core.Descriptor) string {
	var b strings.Builder
	field := func(name, value string) {
		if value == "" {
			return
		}
		// continuation lines are indented
		value = strings.ReplaceAll(value, "\n", "\n       |")
		fmt.Fprintf(&b, "%s: %s\n", name, value)
	}

	field("Metadata-Version", MetadataVersion)
	field("Name", d.Name)
	field("Version", d.Version)
	field("Summary", d.Description)

	for _, label := range sortedKeys(d.URLs) {
		field("Project-URL", label+", "+d.URLs[label])
	}

	authorNames, authorEmails := contacts(d.Authors)
	field("Author", authorNames)
	field("Author-email", authorEmails)
	maintNames, maintEmails := contacts(d.Maintainers)
	field("Maintainer", maintNames)
	field("Maintainer-email", maintEmails)

	switch {
	case d.License.Expression != "":
		field("License", licenseExpression(d.License.Expression))
	case d.License.Text != "":
		field("License", d.License.Text)
	}
	if len(d.Keywords) > 0 {
		field("Keywords", strings.Join(d.Keywords, ","))
	}
	for _, c := range d.Classifiers {
		field("Classifier", c)
	}
	field("Requires-Python", d.RequiresPython)

	for _, dep := range d.Dependencies {
		field("Requires-Dist", dep.String())
	}
	for _, extra := range sortedKeys(d.OptionalDependencies) {
		field("Provides-Extra", extra)
		for _, dep := range d.OptionalDependencies[extra] {
			field("Requires-Dist", extraRequirement(dep, extra))
		}
	}

	if d.Readme != nil {
		field("Description-Content-Type", d.Readme.ContentType)
		b.WriteString("\n")
		b.WriteString(d.Readme.Content)
		if !strings.HasSuffix(d.Readme.Content, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// licenseExpression returns the canonical spelling of an SPDX expression,
// e.g. "mit or apache-2.0" becomes "MIT OR Apache-2.0".
func licenseExpression(expr string) string {
	parsed, err := spdx.ParseStrict(expr)
	if err != nil {
		return expr
	}
	return parsed.String()
}

// extraRequirement adds the extra condition to a dependency's marker.
func extraRequirement(dep core.Dependency, extra string) string {
	cond := fmt.Sprintf("extra == %q", extra)
	if dep.Marker == "" {
		dep.Marker = cond
	} else {
		dep.Marker = "(" + dep.Marker + ") and " + cond
	}
	return dep.String()
}

// contacts splits people into the name-only and email fields of core metadata.
// People with an email are written as "Name <email>" to the email field.
func contacts(people []core.Person) (names, emails string) {
	var n, e []string
	for _, p := range people {
		switch {
		case p.Email != "" && p.Name != "":
			e = append(e, fmt.Sprintf("%s <%s>", p.Name, p.Email))
		case p.Email != "":
			e = append(e, p.Email)
		case p.Name != "":
			n = append(n, p.Name)
		}
	}
	return strings.Join(n, ", "), strings.Join(e, ", ")
}

// EntryPoints renders entry_points.txt for the console and GUI scripts.
func EntryPoints(d *core.Descriptor) string {
	var b strings.Builder
	section := func(name string, entries []core.ScriptEntry) {
		if len(entries) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s]\n", name)
		for _, e := range entries {
			fmt.Fprintf(&b, "%s = %s\n", e.Name, e.Reference)
		}
	}
	section("console_scripts", d.Scripts)
	section("gui_scripts", d.GUIScripts)
	return b.String()
}

// Requires renders requires.txt: runtime requirements first, then one
// section per extra.
func Requires(d *core.Descriptor) string {
	var b strings.Builder
	for _, dep := range d.Dependencies {
		b.WriteString(dep.String())
		b.WriteString("\n")
	}
	for _, extra := range sortedKeys(d.OptionalDependencies) {
		fmt.Fprintf(&b, "\n[%s]\n", extra)
		for _, dep := range d.OptionalDependencies[extra] {
			b.WriteString(dep.String())
			b.WriteString("\n")
		}
	}
	return b.String()
}

// TopLevel renders top_level.txt, the importable top-level packages.
func TopLevel(d *core.Descriptor) string {
	seen := make(map[string]bool)
	var top []string
	for _, pkg := range d.Packages {
		name, _, _ := strings.Cut(pkg, ".")
		if !seen[name] {
			seen[name] = true
			top = append(top, name)
		}
	}
	sort.Strings(top)
	if len(top) == 0 {
		return ""
	}
	return strings.Join(top, "\n") + "\n"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
