package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/glog"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
	"github.com/spf13/cast"

	"github.com/git-pkgs/tfaot/internal/core"
)

const initFile = "__init__.py"

// PackageFilter returns the discovery rule from [tool.setuptools.packages.find].
// Missing keys take the setuptools defaults: where ["."] and include ["*"].
func (m *Manifest) PackageFilter() core.PackageFilter {
	filter := core.PackageFilter{Where: []string{"."}, Include: []string{"*"}}

	table, err := cast.ToStringMapE(m.Tool.Setuptools.Packages)
	if err != nil {
		return filter
	}
	find, err := cast.ToStringMapE(table["find"])
	if err != nil {
		return filter
	}
	if where := cast.ToStringSlice(find["where"]); len(where) > 0 {
		filter.Where = where
	}
	if include := cast.ToStringSlice(find["include"]); len(include) > 0 {
		filter.Include = include
	}
	filter.Exclude = cast.ToStringSlice(find["exclude"])
	return filter
}

// ExplicitPackages returns the package list when tool.setuptools.packages is
// given as a list instead of a find table.
func (m *Manifest) ExplicitPackages() ([]string, bool) {
	if _, ok := m.Tool.Setuptools.Packages.([]any); !ok {
		return nil, false
	}
	return cast.ToStringSlice(m.Tool.Setuptools.Packages), true
}

// Match reports whether a dotted package name is kept by the filter. Patterns
// follow fnmatch rules, so "*" also matches dots.
func Match(filter core.PackageFilter, name string) bool {
	return matchAny(filter.Include, name) && !matchAny(filter.Exclude, name)
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// DiscoverPackages walks every where root below root and returns the
// packages kept by the filter, mapped to their directories relative to root.
// A directory is a package when it holds an __init__.py; the walk only
// descends into packages. Paths ignored by root/.gitignore are skipped.
// An empty result is reported as core.ErrNoPackages.
func DiscoverPackages(fsys afero.Fs, root string, filter core.PackageFilter) (map[string]string, error) {
	ignorer, err := loadGitignore(fsys, root)
	if err != nil {
		return nil, err
	}

	where := filter.Where
	if len(where) == 0 {
		where = []string{"."}
	}

	found := make(map[string]string)
	for _, w := range where {
		base := filepath.Join(root, filepath.FromSlash(w))
		if err := walkPackages(fsys, root, base, "", filter, ignorer, found); err != nil {
			return nil, err
		}
	}

	if len(found) == 0 {
		return nil, fmt.Errorf("searched %s: %w", strings.Join(where, ", "), core.ErrNoPackages)
	}
	return found, nil
}

func walkPackages(fsys afero.Fs, root, dir, prefix string, filter core.PackageFilter, ignorer *ignore.GitIgnore, found map[string]string) error {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			glog.Warningf("package root %s does not exist", dir)
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.Contains(entry.Name(), ".") {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		rel, err := filepath.Rel(root, full)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if ignorer != nil && (ignorer.MatchesPath(rel) || ignorer.MatchesPath(rel+"/")) {
			glog.V(2).Infof("skipping ignored directory %s", rel)
			continue
		}

		ok, err := afero.Exists(fsys, filepath.Join(full, initFile))
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		name := entry.Name()
		if prefix != "" {
			name = prefix + "." + name
		}
		if Match(filter, name) {
			found[name] = rel
		}
		if err := walkPackages(fsys, root, full, name, filter, ignorer, found); err != nil {
			return err
		}
	}
	return nil
}

func loadGitignore(fsys afero.Fs, root string) (*ignore.GitIgnore, error) {
	data, err := afero.ReadFile(fsys, filepath.Join(root, ".gitignore"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...), nil
}

// SortedPackages returns the package names of a discovery result in order.
func SortedPackages(found map[string]string) []string {
	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
