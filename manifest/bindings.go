package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/git-pkgs/tfaot/internal/core"
)

// Dynamic fields that can be bound through [tool.setuptools.dynamic].
const (
	FieldVersion              = "version"
	FieldDescription          = "description"
	FieldReadme               = "readme"
	FieldClassifiers          = "classifiers"
	FieldDependencies         = "dependencies"
	FieldOptionalDependencies = "optional-dependencies"
)

var bindable = map[string]bool{
	FieldVersion:              true,
	FieldDescription:          true,
	FieldReadme:               true,
	FieldClassifiers:          true,
	FieldDependencies:         true,
	FieldOptionalDependencies: true,
}

// extraPrefix prefixes the binding field of each optional dependency group.
const extraPrefix = FieldOptionalDependencies + "."

// Bindings returns the dynamic field bindings declared in
// [tool.setuptools.dynamic], sorted by field. Optional dependency groups
// yield one binding per extra, named "optional-dependencies.<extra>".
func (m *Manifest) Bindings() ([]core.Binding, error) {
	var bindings []core.Binding
	for _, field := range sortedKeys(m.Tool.Setuptools.Dynamic) {
		raw := m.Tool.Setuptools.Dynamic[field]
		if field == FieldOptionalDependencies {
			extras, err := cast.ToStringMapE(raw)
			if err != nil {
				return nil, &core.BindingError{Field: field, Reason: "expected a table of extras"}
			}
			for _, extra := range sortedKeys(extras) {
				b, err := parseBinding(extraPrefix+extra, extras[extra])
				if err != nil {
					return nil, err
				}
				if b.Kind != core.SourceFile {
					return nil, &core.BindingError{Field: b.Field, Reason: "optional dependencies can only be read from files"}
				}
				bindings = append(bindings, b)
			}
			continue
		}

		if !bindable[field] {
			return nil, &core.BindingError{Field: field, Reason: "field cannot be resolved dynamically"}
		}
		b, err := parseBinding(field, raw)
		if err != nil {
			return nil, err
		}
		if b.Kind == core.SourceAttr && field != FieldVersion {
			return nil, &core.BindingError{Field: field, Reason: "only version can be read from an attribute"}
		}
		bindings = append(bindings, b)
	}

	sort.Slice(bindings, func(i, j int) bool { return bindings[i].Field < bindings[j].Field })
	return bindings, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseBinding(field string, raw any) (core.Binding, error) {
	spec, err := cast.ToStringMapE(raw)
	if err != nil {
		return core.Binding{}, &core.BindingError{Field: field, Reason: "expected a table with attr or file"}
	}

	attr, hasAttr := spec["attr"]
	file, hasFile := spec["file"]
	switch {
	case hasAttr && hasFile:
		return core.Binding{}, &core.BindingError{Field: field, Reason: "binding has both attr and file"}
	case hasAttr:
		return core.Binding{Field: field, Kind: core.SourceAttr, Attr: strings.TrimSpace(cast.ToString(attr))}, nil
	case hasFile:
		files, err := fileList(file)
		if err != nil {
			return core.Binding{}, &core.BindingError{Field: field, Reason: err.Error()}
		}
		return core.Binding{
			Field:       field,
			Kind:        core.SourceFile,
			Files:       files,
			ContentType: cast.ToString(spec["content-type"]),
		}, nil
	default:
		return core.Binding{}, &core.BindingError{Field: field, Reason: "binding has neither attr nor file"}
	}
}

func fileList(raw any) ([]string, error) {
	if s, ok := raw.(string); ok {
		return []string{s}, nil
	}
	files, err := cast.ToStringSliceE(raw)
	if err != nil || len(files) == 0 {
		return nil, fmt.Errorf("file must be a path or a non-empty list of paths")
	}
	return files, nil
}

// checkBindings verifies that every field listed in project.dynamic has
// exactly one binding and every binding belongs to a dynamic field.
func (m *Manifest) checkBindings(bindings []core.Binding) []error {
	var errs []error

	bound := make(map[string]bool, len(bindings))
	for _, b := range bindings {
		field := b.Field
		if strings.HasPrefix(field, extraPrefix) {
			field = FieldOptionalDependencies
		}
		bound[field] = true
		if !m.IsDynamic(field) {
			errs = append(errs, &core.BindingError{Field: b.Field, Reason: "has a binding but is not listed in project.dynamic"})
		}
	}

	for _, field := range m.Project.Dynamic {
		if m.declaresStatically(field) {
			errs = append(errs, &core.ValidationError{Field: "project." + field, Message: "declared statically and listed in project.dynamic"})
			continue
		}
		if !bound[field] {
			errs = append(errs, &core.BindingError{Field: field, Reason: "listed in project.dynamic but has no binding"})
		}
	}
	return errs
}

func (m *Manifest) declaresStatically(field string) bool {
	p := m.Project
	switch field {
	case FieldVersion:
		return p.Version != ""
	case FieldDescription:
		return p.Description != ""
	case FieldReadme:
		return p.Readme != nil
	case FieldClassifiers:
		return p.Classifiers != nil
	case FieldDependencies:
		return p.Dependencies != nil
	case FieldOptionalDependencies:
		return p.OptionalDependencies != nil
	case "requires-python":
		return p.RequiresPython != ""
	case "license":
		return p.License != nil
	case "authors":
		return p.Authors != nil
	case "maintainers":
		return p.Maintainers != nil
	case "keywords":
		return p.Keywords != nil
	case "urls":
		return p.URLs != nil
	case "scripts":
		return p.Scripts != nil
	case "gui-scripts":
		return p.GUIScripts != nil
	case "entry-points":
		return p.EntryPoints != nil
	}
	return false
}
