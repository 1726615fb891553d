// Package core provides the shared descriptor types and the loader system.
package core

import (
	"strings"
	"time"
)

// Descriptor is a fully resolved project description, produced once per
// build or install invocation and never mutated afterwards.
type Descriptor struct {
	Name           string
	NormalizedName string
	Version        string
	Description    string
	Authors        []Person
	Maintainers    []Person
	License        License
	RequiresPython string
	Readme         *Readme
	Keywords       []string
	Classifiers    []string
	URLs           map[string]string

	Dependencies         []Dependency
	OptionalDependencies map[string][]Dependency

	Scripts    []ScriptEntry
	GUIScripts []ScriptEntry
	// Packages are dotted package names, PackageDirs maps each of them to
	// its directory relative to Root.
	Packages    []string
	PackageDirs map[string]string
	BuildSystem BuildSystem

	// Dynamic lists the fields whose values came from a Binding.
	Dynamic []string

	// Root is the project directory the descriptor was resolved from.
	Root string
}

// Person is an author or maintainer entry.
type Person struct {
	Name  string
	Email string
}

// License holds a license reference. Expression is an SPDX expression, File
// a path relative to the project root, Text a verbatim license text.
type License struct {
	Expression string
	File       string
	Text       string
}

// Readme is the resolved long description.
type Readme struct {
	Path        string
	ContentType string
	Content     string
}

// BuildSystem names the backend that performs packaging.
type BuildSystem struct {
	Requires     []string
	BuildBackend string
}

// ScriptEntry maps a command name to a callable reference ("module.path:function").
type ScriptEntry struct {
	Name      string
	Reference string
}

// Module returns the module part of the reference.
func (s ScriptEntry) Module() string {
	mod, _ := SplitReference(s.Reference)
	return mod
}

// Callable returns the function part of the reference.
func (s ScriptEntry) Callable() string {
	_, fn := SplitReference(s.Reference)
	return fn
}

// PackageFilter decides which source directories are packaged.
type PackageFilter struct {
	Where   []string
	Include []string
	Exclude []string
}

// SourceKind is the kind of source a dynamic field is resolved from.
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceAttr SourceKind = "attr"
)

// Binding maps one dynamic field to exactly one resolution source.
type Binding struct {
	Field string
	Kind  SourceKind

	// Files is set for SourceFile bindings.
	Files []string
	// ContentType optionally overrides the detected content type of a file.
	ContentType string

	// Attr is set for SourceAttr bindings, e.g. "cms_tfaot.__meta__.__version__".
	Attr string
}

// Value is the result of resolving a Binding.
type Value struct {
	Field string
	// Text holds the raw value: file contents joined by newlines, or the
	// attribute literal.
	Text string
	// Path is the first file a value was read from, empty for attributes.
	Path string
	// ContentType is set for file values.
	ContentType string
}

// Version represents a specific release of a package on an index.
type Version struct {
	Number      string
	PublishedAt time.Time
	Integrity   string        // sha256-...
	Status      VersionStatus // "", "yanked"
	Metadata    map[string]any
}

// VersionStatus represents the status of a package version.
type VersionStatus string

const (
	StatusNone   VersionStatus = ""
	StatusYanked VersionStatus = "yanked"
)

// Dependency represents a package dependency.
type Dependency struct {
	Name         string
	Extras       []string
	Requirements string
	Marker       string
	Scope        Scope
	Optional     bool
}

// String renders the dependency as a PEP 508 requirement.
func (d Dependency) String() string {
	s := d.Name
	if len(d.Extras) > 0 {
		s += "[" + strings.Join(d.Extras, ",") + "]"
	}
	if d.Requirements != "" && d.Requirements != "*" {
		s += d.Requirements
	}
	if d.Marker != "" {
		s += "; " + d.Marker
	}
	return s
}

// Scope indicates when a dependency is required.
type Scope string

const (
	Runtime     Scope = "runtime"
	Development Scope = "development"
	Test        Scope = "test"
	Build       Scope = "build"
	Optional    Scope = "optional"
)
