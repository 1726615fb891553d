package manifest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/spf13/cast"

	_ "github.com/git-pkgs/tfaot/all"
	"github.com/git-pkgs/tfaot/internal/core"
	"github.com/git-pkgs/tfaot/internal/pep440"
)

// Resolve turns the manifest into a fully resolved descriptor: dynamic
// fields are loaded through their bindings, packages are discovered and the
// result is validated. Every problem found is reported together; no partial
// descriptor is returned.
//
// Finding no packages is not an error here; the descriptor then has an empty
// package list and callers that need packages check for it.
func Resolve(ctx context.Context, m *Manifest) (*core.Descriptor, error) {
	if m.Project == nil {
		return nil, &core.ValidationError{Field: "project", Message: "missing [project] table"}
	}

	var errs *multierror.Error

	bindings, err := m.Bindings()
	if err != nil {
		return nil, err
	}
	for _, e := range m.checkBindings(bindings) {
		errs = multierror.Append(errs, e)
	}

	filter := m.PackageFilter()
	src := core.Source{Fs: m.fs, Root: m.Root, PackageDirs: filter.Where}

	values, loadErrs := core.ResolveAll(ctx, src, bindings)
	for _, e := range loadErrs {
		if errors.Is(e, context.Canceled) || errors.Is(e, context.DeadlineExceeded) {
			return nil, e
		}
		errs = multierror.Append(errs, e)
	}

	d := &core.Descriptor{
		Name:           m.Project.Name,
		NormalizedName: core.NormalizeName(m.Project.Name),
		Description:    m.Project.Description,
		Authors:        people(m.Project.Authors),
		Maintainers:    people(m.Project.Maintainers),
		RequiresPython: m.Project.RequiresPython,
		Keywords:       m.Project.Keywords,
		Classifiers:    m.Project.Classifiers,
		URLs:           m.Project.URLs,
		Root:           m.Root,
		Dynamic:        append([]string(nil), m.Project.Dynamic...),
	}
	sort.Strings(d.Dynamic)
	if m.BuildSystem != nil {
		d.BuildSystem = core.BuildSystem{Requires: m.BuildSystem.Requires, BuildBackend: m.BuildSystem.BuildBackend}
	}

	resolveErrs := []error{
		m.applyVersion(d, values),
		m.applyDescription(d, values),
		m.applyReadme(ctx, d, values, src),
		m.applyClassifiers(d, values),
		m.applyDependencies(d, values),
		m.applyOptionalDependencies(d, values),
		m.applyLicense(d),
		m.applyPackages(d, filter),
	}
	d.Scripts = scriptEntries(m.Project.Scripts)
	d.GUIScripts = scriptEntries(m.Project.GUIScripts)
	for _, e := range resolveErrs {
		if e != nil {
			errs = multierror.Append(errs, e)
		}
	}

	for _, e := range Validate(d) {
		errs = multierror.Append(errs, e)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	glog.V(1).Infof("resolved %s", d.PURL())
	return d, nil
}

func people(contacts []Contact) []core.Person {
	if len(contacts) == 0 {
		return nil
	}
	out := make([]core.Person, len(contacts))
	for i, c := range contacts {
		out[i] = core.Person{Name: c.Name, Email: c.Email}
	}
	return out
}

func (m *Manifest) applyVersion(d *core.Descriptor, values map[string]*core.Value) error {
	raw := m.Project.Version
	if v, ok := values[FieldVersion]; ok {
		raw = v.Text
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if !m.IsDynamic(FieldVersion) {
			return &core.ValidationError{Field: "project.version", Message: "version is required"}
		}
		// already reported by the binding check or the loader
		return nil
	}

	v, err := pep440.Parse(raw)
	if err != nil {
		return &core.InvalidVersionError{Version: raw, Err: err}
	}
	d.Version = v.String()
	return nil
}

func (m *Manifest) applyDescription(d *core.Descriptor, values map[string]*core.Value) error {
	v, ok := values[FieldDescription]
	if !ok {
		return nil
	}
	desc := strings.TrimSpace(v.Text)
	if strings.ContainsAny(desc, "\r\n") {
		return &core.ValidationError{Field: "project.description", Message: "description must be a single line"}
	}
	d.Description = desc
	return nil
}

func (m *Manifest) applyReadme(ctx context.Context, d *core.Descriptor, values map[string]*core.Value, src core.Source) error {
	if v, ok := values[FieldReadme]; ok {
		d.Readme = &core.Readme{Path: v.Path, ContentType: v.ContentType, Content: v.Text}
		return nil
	}
	if m.Project.Readme == nil {
		return nil
	}

	binding := core.Binding{Field: FieldReadme, Kind: core.SourceFile}
	if path, ok := m.Project.Readme.(string); ok {
		binding.Files = []string{path}
	} else {
		table := cast.ToStringMap(m.Project.Readme)
		contentType := cast.ToString(table["content-type"])
		if text, ok := table["text"]; ok {
			d.Readme = &core.Readme{ContentType: contentType, Content: cast.ToString(text)}
			return nil
		}
		binding.Files = []string{cast.ToString(table["file"])}
		binding.ContentType = contentType
	}

	resolved, err := core.Resolve(ctx, src, []core.Binding{binding})
	if err != nil {
		return err
	}
	v := resolved[FieldReadme]
	d.Readme = &core.Readme{Path: v.Path, ContentType: v.ContentType, Content: v.Text}
	return nil
}

func (m *Manifest) applyClassifiers(d *core.Descriptor, values map[string]*core.Value) error {
	v, ok := values[FieldClassifiers]
	if !ok {
		return nil
	}
	d.Classifiers = nil
	for _, line := range strings.Split(v.Text, "\n") {
		if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
			d.Classifiers = append(d.Classifiers, line)
		}
	}
	return nil
}

func (m *Manifest) applyDependencies(d *core.Descriptor, values map[string]*core.Value) error {
	if v, ok := values[FieldDependencies]; ok {
		deps, err := core.ParseRequirements(strings.NewReader(v.Text), core.Runtime)
		if err != nil {
			return &core.ValidationError{Field: FieldDependencies, Message: fmt.Sprintf("%s: %v", v.Path, err)}
		}
		d.Dependencies = deps
		return nil
	}

	deps, err := parseRequirementList(m.Project.Dependencies, core.Runtime)
	if err != nil {
		return &core.ValidationError{Field: "project.dependencies", Message: err.Error()}
	}
	d.Dependencies = deps
	return nil
}

func (m *Manifest) applyOptionalDependencies(d *core.Descriptor, values map[string]*core.Value) error {
	groups := make(map[string][]core.Dependency)
	var errs []string

	for field, v := range values {
		extra, ok := strings.CutPrefix(field, extraPrefix)
		if !ok {
			continue
		}
		deps, err := core.ParseRequirements(strings.NewReader(v.Text), extraScope(extra))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", v.Path, err))
			continue
		}
		groups[extra] = deps
	}
	for extra, reqs := range m.Project.OptionalDependencies {
		deps, err := parseRequirementList(reqs, extraScope(extra))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", extra, err))
			continue
		}
		groups[extra] = deps
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return &core.ValidationError{Field: FieldOptionalDependencies, Message: strings.Join(errs, "; ")}
	}
	if len(groups) > 0 {
		d.OptionalDependencies = groups
	}
	return nil
}

// extraScope maps conventional extra names to dependency scopes.
func extraScope(extra string) core.Scope {
	switch core.NormalizeName(extra) {
	case "dev", "develop", "development":
		return core.Development
	case "test", "tests", "testing":
		return core.Test
	default:
		return core.Optional
	}
}

func parseRequirementList(reqs []string, scope core.Scope) ([]core.Dependency, error) {
	var deps []core.Dependency
	for _, req := range reqs {
		dep, err := core.ParseRequirement(req)
		if err != nil {
			return nil, err
		}
		dep.Scope = scope
		dep.Optional = scope != core.Runtime
		deps = append(deps, dep)
	}
	return deps, nil
}

func (m *Manifest) applyLicense(d *core.Descriptor) error {
	switch lic := m.Project.License.(type) {
	case nil:
		return nil
	case string:
		d.License.Expression = strings.TrimSpace(lic)
	default:
		table := cast.ToStringMap(lic)
		if text, ok := table["text"]; ok {
			d.License.Text = cast.ToString(text)
		}
		if file, ok := table["file"]; ok {
			d.License.File = cast.ToString(file)
			exists, err := afero.Exists(m.fs, filepath.Join(m.Root, filepath.FromSlash(d.License.File)))
			if err != nil {
				return err
			}
			if !exists {
				return &core.MissingSourceFileError{Field: "license", Path: d.License.File}
			}
		}
	}
	return nil
}

func scriptEntries(scripts map[string]string) []core.ScriptEntry {
	if len(scripts) == 0 {
		return nil
	}
	entries := make([]core.ScriptEntry, 0, len(scripts))
	for _, name := range sortedKeys(scripts) {
		entries = append(entries, core.ScriptEntry{Name: name, Reference: strings.TrimSpace(scripts[name])})
	}
	return entries
}

func (m *Manifest) applyPackages(d *core.Descriptor, filter core.PackageFilter) error {
	if explicit, ok := m.ExplicitPackages(); ok {
		d.Packages = explicit
		d.PackageDirs = make(map[string]string, len(explicit))
		for _, name := range explicit {
			d.PackageDirs[name] = strings.ReplaceAll(name, ".", "/")
		}
		return nil
	}

	found, err := DiscoverPackages(m.fs, m.Root, filter)
	if errors.Is(err, core.ErrNoPackages) {
		glog.Warningf("%s: %v", d.Name, err)
		return nil
	}
	if err != nil {
		return err
	}
	d.Packages = SortedPackages(found)
	d.PackageDirs = found
	return nil
}
