// Package manifest reads pyproject.toml and resolves it into a project
// descriptor.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/golang/glog"
	"github.com/spf13/afero"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "pyproject.toml"

// Pyproject mirrors the tables of pyproject.toml that are understood.
type Pyproject struct {
	BuildSystem *BuildSystem `toml:"build-system"`
	Project     *Project     `toml:"project"`
	Tool        Tool         `toml:"tool"`
}

type BuildSystem struct {
	Requires     []string `toml:"requires"`
	BuildBackend string   `toml:"build-backend"`
	BackendPath  []string `toml:"backend-path"`
}

// Project is the [project] table. Readme and License accept either a string
// or a table and are decoded loosely.
type Project struct {
	Name                 string                       `toml:"name"`
	Version              string                       `toml:"version"`
	Description          string                       `toml:"description"`
	Readme               any                          `toml:"readme"`
	RequiresPython       string                       `toml:"requires-python"`
	License              any                          `toml:"license"`
	LicenseFiles         []string                     `toml:"license-files"`
	Authors              []Contact                    `toml:"authors"`
	Maintainers          []Contact                    `toml:"maintainers"`
	Keywords             []string                     `toml:"keywords"`
	Classifiers          []string                     `toml:"classifiers"`
	URLs                 map[string]string            `toml:"urls"`
	Dependencies         []string                     `toml:"dependencies"`
	OptionalDependencies map[string][]string          `toml:"optional-dependencies"`
	Scripts              map[string]string            `toml:"scripts"`
	GUIScripts           map[string]string            `toml:"gui-scripts"`
	EntryPoints          map[string]map[string]string `toml:"entry-points"`
	Dynamic              []string                     `toml:"dynamic"`
}

type Contact struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type Tool struct {
	Setuptools Setuptools `toml:"setuptools"`
}

// Setuptools is the [tool.setuptools] table.
type Setuptools struct {
	// Packages is either an explicit list or a {find = {...}} table.
	Packages any            `toml:"packages"`
	Dynamic  map[string]any `toml:"dynamic"`
}

// Manifest is a loaded and schema-checked pyproject.toml.
type Manifest struct {
	Pyproject

	// Root is the project directory, Path the manifest file inside it.
	Root string
	Path string
	// Raw holds the file as read, for inclusion in distributions.
	Raw []byte

	fs afero.Fs
}

// Fs returns the filesystem the manifest was loaded from.
func (m *Manifest) Fs() afero.Fs {
	return m.fs
}

// Load reads dir/pyproject.toml from fsys, validates it against the embedded
// schema and decodes it.
func Load(fsys afero.Fs, dir string) (*Manifest, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	path := filepath.Join(dir, FileName)

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no %s found in %s", FileName, dir)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Root = dir
	m.Path = path
	m.fs = fsys
	glog.V(1).Infof("loaded %s for project %q", path, m.Project.Name)
	return m, nil
}

// Parse decodes and validates manifest contents. The returned manifest has
// no root; Load sets it.
func Parse(data []byte) (*Manifest, error) {
	var doc map[string]any
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("decoding TOML: %w", err)
	}

	// The schema validator works on JSON values, so round-trip the document
	// to turn TOML integers, dates and table arrays into their JSON forms.
	normalized, err := toJSONValue(doc)
	if err != nil {
		return nil, err
	}
	if err := ValidateSchema(normalized); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	m := &Manifest{Raw: data, fs: afero.NewOsFs()}
	if _, err := toml.Decode(string(data), &m.Pyproject); err != nil {
		return nil, fmt.Errorf("decoding TOML: %w", err)
	}
	return m, nil
}

func toJSONValue(doc map[string]any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("converting manifest for validation: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("converting manifest for validation: %w", err)
	}
	return out, nil
}

// IsDynamic reports whether field is listed in project.dynamic.
func (m *Manifest) IsDynamic(field string) bool {
	for _, d := range m.Project.Dynamic {
		if d == field {
			return true
		}
	}
	return false
}
