package dist

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/tfaot/internal/core"
)

const pyproject = `[build-system]
requires = ["setuptools>=61"]
build-backend = "setuptools.build_meta"

[project]
name = "cms-tfaot"
description = "Tools for deploying TensorFlow AOT models in CMSSW production code."
authors = [{name = "Marcel Rieger", email = "marcel.rieger@cern.ch"}]
license = {file = "LICENSE"}
requires-python = ">=3.7"
dynamic = ["version", "readme", "dependencies", "optional-dependencies"]

[project.scripts]
cms_tfaot_compile = "cms_tfaot.scripts.tfaot_compile:main"

[tool.setuptools.dynamic]
version = {attr = "cms_tfaot.__meta__.__version__"}
readme = {file = ["README.md"], content-type = "text/markdown"}
dependencies = {file = ["requirements.txt"]}
optional-dependencies = {dev = {file = ["requirements_dev.txt"]}}

[tool.setuptools.packages.find]
include = ["cms_tfaot*"]
`

var buildTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func projectFs(t *testing.T, skip ...string) afero.Fs {
	t.Helper()
	files := map[string]string{
		"/proj/pyproject.toml":                     pyproject,
		"/proj/README.md":                          "# cms-tfaot\n",
		"/proj/LICENSE":                            "BSD 3-Clause License\n",
		"/proj/requirements.txt":                   "numpy>=1.0\n",
		"/proj/requirements_dev.txt":               "flake8\n",
		"/proj/cms_tfaot/__init__.py":              "",
		"/proj/cms_tfaot/__meta__.py":              "__version__ = \"1.2.3\"\n",
		"/proj/cms_tfaot/wrapper.h.in":             "// template\n",
		"/proj/cms_tfaot/scripts/__init__.py":      "",
		"/proj/cms_tfaot/scripts/tfaot_compile.py": "def main(): pass\n",
	}
	for _, name := range skip {
		delete(files, name)
	}
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fsys, name, []byte(content), 0o644))
	}
	return fsys
}

func readArchive(t *testing.T, fsys afero.Fs, path string) map[string]string {
	t.Helper()
	f, err := fsys.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	out := make(map[string]string)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.True(t, hdr.ModTime.Equal(buildTime), "%s has mtime %v", hdr.Name, hdr.ModTime)
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		out[hdr.Name] = string(data)
	}
	return out
}

func TestBuildProject(t *testing.T) {
	fsys := projectFs(t)

	path, d, err := BuildProject(context.Background(), fsys, "/proj", "/proj/dist", WithModTime(buildTime))
	require.NoError(t, err)
	assert.Equal(t, "/proj/dist/cms_tfaot-1.2.3.tar.gz", path)
	assert.Equal(t, "1.2.3", d.Version)

	files := readArchive(t, fsys, path)

	var names []string
	for name := range files {
		names = append(names, name)
	}
	assert.ElementsMatch(t, []string{
		"cms_tfaot-1.2.3/LICENSE",
		"cms_tfaot-1.2.3/PKG-INFO",
		"cms_tfaot-1.2.3/README.md",
		"cms_tfaot-1.2.3/pyproject.toml",
		"cms_tfaot-1.2.3/cms_tfaot/__init__.py",
		"cms_tfaot-1.2.3/cms_tfaot/__meta__.py",
		"cms_tfaot-1.2.3/cms_tfaot/scripts/__init__.py",
		"cms_tfaot-1.2.3/cms_tfaot/scripts/tfaot_compile.py",
		"cms_tfaot-1.2.3/cms_tfaot.egg-info/PKG-INFO",
		"cms_tfaot-1.2.3/cms_tfaot.egg-info/SOURCES.txt",
		"cms_tfaot-1.2.3/cms_tfaot.egg-info/entry_points.txt",
		"cms_tfaot-1.2.3/cms_tfaot.egg-info/requires.txt",
		"cms_tfaot-1.2.3/cms_tfaot.egg-info/top_level.txt",
	}, names)

	pkgInfo := files["cms_tfaot-1.2.3/PKG-INFO"]
	assert.Contains(t, pkgInfo, "Metadata-Version: 2.1\n")
	assert.Contains(t, pkgInfo, "Name: cms-tfaot\n")
	assert.Contains(t, pkgInfo, "Version: 1.2.3\n")
	assert.Contains(t, pkgInfo, "Requires-Dist: numpy>=1.0\n")
	assert.Contains(t, pkgInfo, "Provides-Extra: dev\n")
	assert.Contains(t, pkgInfo, "Requires-Dist: flake8; extra == \"dev\"\n")
	assert.Contains(t, pkgInfo, "Description-Content-Type: text/markdown\n\n# cms-tfaot\n")

	assert.Equal(t, "[console_scripts]\ncms_tfaot_compile = cms_tfaot.scripts.tfaot_compile:main\n",
		files["cms_tfaot-1.2.3/cms_tfaot.egg-info/entry_points.txt"])
	assert.Equal(t, "cms_tfaot\n", files["cms_tfaot-1.2.3/cms_tfaot.egg-info/top_level.txt"])
	assert.Contains(t, files["cms_tfaot-1.2.3/cms_tfaot.egg-info/SOURCES.txt"], "cms_tfaot/scripts/tfaot_compile.py\n")
}

func TestBuildProjectMissingRequirements(t *testing.T) {
	fsys := projectFs(t, "/proj/requirements.txt")

	_, _, err := BuildProject(context.Background(), fsys, "/proj", "/proj/dist", WithModTime(buildTime))
	require.Error(t, err)

	var missing *core.MissingSourceFileError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, "requirements.txt", missing.Path)

	exists, err := afero.DirExists(fsys, "/proj/dist")
	require.NoError(t, err)
	assert.False(t, exists, "no output should be produced")
}

func TestBuildNoPackages(t *testing.T) {
	d := &core.Descriptor{Name: "empty", Version: "1.0", Root: "/proj"}
	_, err := Build(context.Background(), afero.NewMemMapFs(), d, "/out")
	assert.True(t, errors.Is(err, core.ErrNoPackages))
}

type failingRenameFs struct {
	afero.Fs
}

func (f failingRenameFs) Rename(oldname, newname string) error {
	return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: os.ErrPermission}
}

func TestBuildFailureLeavesNoArtifact(t *testing.T) {
	fsys := failingRenameFs{Fs: projectFs(t)}

	_, _, err := BuildProject(context.Background(), fsys, "/proj", "/out", WithModTime(buildTime))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moving archive into place")

	entries, err := afero.ReadDir(fsys, "/out")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMetadata(t *testing.T) {
	d := &core.Descriptor{
		Name:        "cms-tfaot",
		Version:     "0.1.0",
		Description: "Tools for deploying TensorFlow AOT models.",
		Authors: []core.Person{
			{Name: "Marcel Rieger", Email: "marcel.rieger@cern.ch"},
			{Name: "Anonymous"},
		},
		License:        core.License{Expression: "BSD-3-Clause"},
		Keywords:       []string{"tensorflow", "aot"},
		URLs:           map[string]string{"Homepage": "https://example.org"},
		RequiresPython: ">=3.7",
		Dependencies: []core.Dependency{
			{Name: "pyyaml", Requirements: "*"},
			{Name: "numpy", Requirements: ">=1.0", Marker: "python_version >= \"3.8\""},
		},
		OptionalDependencies: map[string][]core.Dependency{
			"dev": {{Name: "pytest", Requirements: ">=7", Marker: "os_name == \"posix\""}},
		},
	}

	want := strings.Join([]string{
		"Metadata-Version: 2.1",
		"Name: cms-tfaot",
		"Version: 0.1.0",
		"Summary: Tools for deploying TensorFlow AOT models.",
		"Project-URL: Homepage, https://example.org",
		"Author: Anonymous",
		"Author-email: Marcel Rieger <marcel.rieger@cern.ch>",
		"License: BSD-3-Clause",
		"Keywords: tensorflow,aot",
		"Requires-Python: >=3.7",
		"Requires-Dist: pyyaml",
		"Requires-Dist: numpy>=1.0; python_version >= \"3.8\"",
		"Provides-Extra: dev",
		"Requires-Dist: pytest>=7; (os_name == \"posix\") and extra == \"dev\"",
		"",
	}, "\n")
	assert.Equal(t, want, Metadata(d))
}

func TestMetadataLicenseNormalized(t *testing.T) {
	d := &core.Descriptor{Name: "cms-tfaot", Version: "0.1.0", License: core.License{Expression: "bsd-3-clause or mit"}}
	assert.Contains(t, Metadata(d), "License: BSD-3-Clause OR MIT\n")
}

func TestEntryPoints(t *testing.T) {
	d := &core.Descriptor{
		Scripts:    []core.ScriptEntry{{Name: "a", Reference: "pkg.cli:a"}},
		GUIScripts: []core.ScriptEntry{{Name: "b", Reference: "pkg.gui:b"}},
	}
	assert.Equal(t, "[console_scripts]\na = pkg.cli:a\n\n[gui_scripts]\nb = pkg.gui:b\n", EntryPoints(d))
	assert.Empty(t, EntryPoints(&core.Descriptor{}))
}

func TestRequires(t *testing.T) {
	d := &core.Descriptor{
		Dependencies:         []core.Dependency{{Name: "numpy", Requirements: ">=1.0"}},
		OptionalDependencies: map[string][]core.Dependency{"dev": {{Name: "flake8", Requirements: "*"}}},
	}
	assert.Equal(t, "numpy>=1.0\n\n[dev]\nflake8\n", Requires(d))
}
