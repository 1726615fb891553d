// Package tfaot resolves the packaging manifest of the cms-tfaot project and
// drives the tools built on top of it.
//
// Basic usage:
//
//	d, err := tfaot.ResolveDir(context.Background(), afero.NewOsFs(), ".")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(d.Name, d.Version, d.PURL())
//
// Resolving registers the "file" and "attr" loaders. Importing the all
// subpackage does the same for callers working with the loader registry
// directly:
//
//	import (
//		"github.com/git-pkgs/tfaot"
//		_ "github.com/git-pkgs/tfaot/all"
//	)
package tfaot

import (
	"context"

	"github.com/git-pkgs/purl"
	"github.com/spf13/afero"

	"github.com/git-pkgs/tfaot/client"
	"github.com/git-pkgs/tfaot/dist"
	"github.com/git-pkgs/tfaot/index"
	"github.com/git-pkgs/tfaot/internal/core"
	"github.com/git-pkgs/tfaot/manifest"
)

// Re-export types from internal/core
type (
	// Descriptor is the fully resolved package description.
	Descriptor = core.Descriptor

	// Dependency is a single PEP 508 requirement.
	Dependency = core.Dependency

	// ScriptEntry maps a console script name to its callable.
	ScriptEntry = core.ScriptEntry

	// Binding maps a dynamic field to its resolution source.
	Binding = core.Binding

	// Value is a resolved binding.
	Value = core.Value

	// SourceKind names a dynamic field loader.
	SourceKind = core.SourceKind

	// Version is a release published on a package index.
	Version = core.Version

	// VersionStatus represents the status of a published version.
	VersionStatus = core.VersionStatus

	// Scope indicates when a dependency is required.
	Scope = core.Scope
)

// Re-export types from client
type (
	// URLBuilder constructs URLs for a package on an index.
	URLBuilder = client.URLBuilder

	// IndexURLs builds pypi.org style URLs.
	IndexURLs = client.IndexURLs
)

// Re-export constants
const (
	SourceFile = core.SourceFile
	SourceAttr = core.SourceAttr

	Runtime     = core.Runtime
	Development = core.Development
	Test        = core.Test
	Build       = core.Build
	Optional    = core.Optional

	StatusNone   = core.StatusNone
	StatusYanked = core.StatusYanked
)

// Re-export errors
var (
	ErrResolution = core.ErrResolution
	ErrValidation = core.ErrValidation
	ErrEntryPoint = core.ErrEntryPoint
	ErrNoPackages = core.ErrNoPackages
	ErrNotFound   = index.ErrNotFound
)

// Error types
type (
	MissingSourceFileError     = core.MissingSourceFileError
	UnresolvableAttributeError = core.UnresolvableAttributeError
	BindingError               = core.BindingError
	InvalidVersionError        = core.InvalidVersionError
	ValidationError            = core.ValidationError
	EntryPointError            = core.EntryPointError
	NotFoundError              = index.NotFoundError
	NoMatchError               = index.NoMatchError
)

// ResolveDir loads the pyproject.toml in dir and resolves it.
func ResolveDir(ctx context.Context, fsys afero.Fs, dir string) (*Descriptor, error) {
	m, err := manifest.Load(fsys, dir)
	if err != nil {
		return nil, err
	}
	return manifest.Resolve(ctx, m)
}

// BuildSdist resolves the project in dir and writes its source distribution
// to outDir, returning the archive path.
func BuildSdist(ctx context.Context, fsys afero.Fs, dir, outDir string) (string, *Descriptor, error) {
	return dist.BuildProject(ctx, fsys, dir, outDir)
}

// CheckDependencies looks up every runtime dependency of d on the index at
// baseURL, or on pypi.org when baseURL is empty.
func CheckDependencies(ctx context.Context, d *Descriptor, baseURL string) ([]index.Result, error) {
	return index.New(baseURL, nil).Verify(ctx, d.Dependencies, index.DefaultConcurrency)
}

// SupportedKinds returns all registered dynamic field source kinds.
func SupportedKinds() []SourceKind {
	return core.SupportedKinds()
}

// BuildURLs returns a map of all non-empty URLs for a package.
// Keys are "project", "json", "download", and "purl".
func BuildURLs(urls URLBuilder, name, version string) map[string]string {
	return client.BuildURLs(urls, name, version)
}

// DefaultURL returns the default package index URL.
func DefaultURL() string {
	return client.DefaultIndexURL
}

// PURL represents a parsed Package URL.
type PURL = purl.PURL

// ParsePURL parses a Package URL string such as "pkg:pypi/cms-tfaot@0.1.0".
func ParsePURL(purlStr string) (*PURL, error) {
	return purl.Parse(purlStr)
}
