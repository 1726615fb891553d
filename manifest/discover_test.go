package manifest

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/tfaot/internal/core"
)

func discoveryTree(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{
		"/proj/.gitignore":                   "legacy/\n*.egg-info\n",
		"/proj/pkg/__init__.py":              "",
		"/proj/pkg/sub/__init__.py":          "",
		"/proj/pkg/sub/deep/__init__.py":     "",
		"/proj/pkg/tests/__init__.py":        "",
		"/proj/pkg/data/model.pb":            "",
		"/proj/other/__init__.py":            "",
		"/proj/plain/module.py":              "",
		"/proj/plain/nested/__init__.py":     "",
		"/proj/legacy/__init__.py":           "",
		"/proj/pkg.egg-info/__init__.py":     "",
		"/proj/src/srcpkg/__init__.py":       "",
		"/proj/src/srcpkg/inner/__init__.py": "",
	}
}

func TestDiscoverPackages(t *testing.T) {
	fsys := writeTree(t, discoveryTree(t))

	tests := []struct {
		name   string
		filter core.PackageFilter
		want   map[string]string
	}{
		{
			name:   "defaults",
			filter: core.PackageFilter{},
			want: map[string]string{
				"other":        "other",
				"pkg":          "pkg",
				"pkg.sub":      "pkg/sub",
				"pkg.sub.deep": "pkg/sub/deep",
				"pkg.tests":    "pkg/tests",
			},
		},
		{
			name:   "include and exclude",
			filter: core.PackageFilter{Include: []string{"pkg*"}, Exclude: []string{"pkg.tests", "pkg.sub.*"}},
			want: map[string]string{
				"pkg":     "pkg",
				"pkg.sub": "pkg/sub",
			},
		},
		{
			name:   "exact include",
			filter: core.PackageFilter{Include: []string{"pkg"}},
			want:   map[string]string{"pkg": "pkg"},
		},
		{
			name:   "where",
			filter: core.PackageFilter{Where: []string{"src"}, Include: []string{"*"}},
			want: map[string]string{
				"srcpkg":       "src/srcpkg",
				"srcpkg.inner": "src/srcpkg/inner",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := tt.filter
			if filter.Include == nil {
				filter.Include = []string{"*"}
			}
			got, err := DiscoverPackages(fsys, "/proj", filter)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DiscoverPackages() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDiscoverNoPackages(t *testing.T) {
	fsys := writeTree(t, discoveryTree(t))

	_, err := DiscoverPackages(fsys, "/proj", core.PackageFilter{Include: []string{"missing*"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNoPackages))
}

func TestDiscoverMissingWhere(t *testing.T) {
	fsys := writeTree(t, discoveryTree(t))

	got, err := DiscoverPackages(fsys, "/proj", core.PackageFilter{Where: []string{"nope", "src"}, Include: []string{"srcpkg"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"srcpkg": "src/srcpkg"}, got)
}

func TestMatch(t *testing.T) {
	filter := core.PackageFilter{Include: []string{"cms_tfaot*"}, Exclude: []string{"*.tests"}}

	assert.True(t, Match(filter, "cms_tfaot"))
	assert.True(t, Match(filter, "cms_tfaot.scripts"))
	assert.False(t, Match(filter, "cms_tfaot.tests"))
	assert.False(t, Match(filter, "other"))
}

func TestPackageFilter(t *testing.T) {
	m, err := Parse([]byte(`
[project]
name = "x"

[tool.setuptools.packages.find]
where = ["src"]
exclude = ["x.tests*"]
`))
	require.NoError(t, err)

	assert.Equal(t, core.PackageFilter{
		Where:   []string{"src"},
		Include: []string{"*"},
		Exclude: []string{"x.tests*"},
	}, m.PackageFilter())

	_, explicit := m.ExplicitPackages()
	assert.False(t, explicit)
}

func TestExplicitPackages(t *testing.T) {
	m, err := Parse([]byte(`
[project]
name = "x"

[tool.setuptools]
packages = ["x", "x.sub"]
`))
	require.NoError(t, err)

	pkgs, ok := m.ExplicitPackages()
	require.True(t, ok)
	assert.Equal(t, []string{"x", "x.sub"}, pkgs)
}
