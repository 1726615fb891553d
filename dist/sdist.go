// Package dist builds source distributions from resolved descriptors.
package dist

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/afero"

	"github.com/git-pkgs/tfaot/internal/core"
	"github.com/git-pkgs/tfaot/manifest"
)

// Option configures a build.
type Option func(*options)

type options struct {
	modTime time.Time
}

// WithModTime sets the modification time stored for every archive member.
func WithModTime(t time.Time) Option {
	return func(o *options) {
		o.modTime = t
	}
}

func defaultOptions() options {
	o := options{modTime: time.Now()}
	// reproducible builds
	if epoch := os.Getenv("SOURCE_DATE_EPOCH"); epoch != "" {
		if secs, err := strconv.ParseInt(epoch, 10, 64); err == nil {
			o.modTime = time.Unix(secs, 0)
		}
	}
	return o
}

// member is one file of the archive, relative to the archive root.
type member struct {
	name string
	data []byte
}

// ArchiveName returns the file name of the source distribution.
func ArchiveName(d *core.Descriptor) string {
	return d.DistName() + ".tar.gz"
}

// Build writes the source distribution of d into outDir and returns its
// path. The archive is assembled in a temporary file and renamed into place,
// so a failed build leaves nothing behind.
func Build(ctx context.Context, fsys afero.Fs, d *core.Descriptor, outDir string, opts ...Option) (string, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if d.Version == "" {
		return "", &core.ValidationError{Field: "project.version", Message: "version is required to build"}
	}
	if len(d.Packages) == 0 {
		return "", fmt.Errorf("building %s: %w", d.Name, core.ErrNoPackages)
	}

	members, err := collect(ctx, fsys, d)
	if err != nil {
		return "", err
	}

	if err := fsys.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", outDir, err)
	}
	tmp, err := afero.TempFile(fsys, outDir, ".sdist-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temporary archive: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = fsys.Remove(tmpName)
		}
	}()

	if err := writeArchive(tmp, d.DistName(), members, o.modTime); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	target := filepath.Join(outDir, ArchiveName(d))
	if err := fsys.Rename(tmpName, target); err != nil {
		return "", fmt.Errorf("moving archive into place: %w", err)
	}
	committed = true

	glog.V(1).Infof("wrote %s with %d files", target, len(members))
	return target, nil
}

// BuildProject loads and resolves the project in dir and builds its source
// distribution into outDir.
func BuildProject(ctx context.Context, fsys afero.Fs, dir, outDir string, opts ...Option) (string, *core.Descriptor, error) {
	m, err := manifest.Load(fsys, dir)
	if err != nil {
		return "", nil, err
	}
	d, err := manifest.Resolve(ctx, m)
	if err != nil {
		return "", nil, err
	}
	path, err := Build(ctx, fsys, d, outDir, opts...)
	if err != nil {
		return "", d, err
	}
	return path, d, nil
}

func collect(ctx context.Context, fsys afero.Fs, d *core.Descriptor) ([]member, error) {
	files := make(map[string][]byte)
	addFile := func(rel string) error {
		data, err := afero.ReadFile(fsys, filepath.Join(d.Root, filepath.FromSlash(rel)))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &core.MissingSourceFileError{Field: "sdist", Path: rel}
			}
			return err
		}
		files[path.Clean(filepath.ToSlash(rel))] = data
		return nil
	}

	if err := addFile(manifest.FileName); err != nil {
		return nil, err
	}
	if d.Readme != nil && d.Readme.Path != "" {
		if err := addFile(d.Readme.Path); err != nil {
			return nil, err
		}
	}
	if d.License.File != "" {
		if err := addFile(d.License.File); err != nil {
			return nil, err
		}
	}

	for _, pkg := range d.Packages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir, ok := d.PackageDirs[pkg]
		if !ok {
			dir = strings.ReplaceAll(pkg, ".", "/")
		}
		sources, err := packageSources(fsys, d.Root, dir)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", pkg, err)
		}
		for _, src := range sources {
			if err := addFile(src); err != nil {
				return nil, err
			}
		}
	}

	metadata := Metadata(d)
	files["PKG-INFO"] = []byte(metadata)

	eggInfo := strings.ReplaceAll(core.NormalizeName(d.Name), "-", "_") + ".egg-info"
	files[eggInfo+"/PKG-INFO"] = []byte(metadata)
	files[eggInfo+"/requires.txt"] = []byte(Requires(d))
	files[eggInfo+"/top_level.txt"] = []byte(TopLevel(d))
	if ep := EntryPoints(d); ep != "" {
		files[eggInfo+"/entry_points.txt"] = []byte(ep)
	}

	names := make([]string, 0, len(files)+1)
	for name := range files {
		names = append(names, name)
	}
	names = append(names, eggInfo+"/SOURCES.txt")
	sort.Strings(names)
	files[eggInfo+"/SOURCES.txt"] = []byte(strings.Join(names, "\n") + "\n")

	members := make([]member, 0, len(names))
	for _, name := range names {
		members = append(members, member{name: name, data: files[name]})
	}
	return members, nil
}

// packageSources lists the Python modules directly inside a package
// directory. Subpackages are listed as packages of their own.
func packageSources(fsys afero.Fs, root, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fsys, filepath.Join(root, filepath.FromSlash(dir)))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := path.Ext(e.Name()); ext == ".py" || ext == ".pyi" {
			out = append(out, path.Join(filepath.ToSlash(dir), e.Name()))
		}
	}
	return out, nil
}

func writeArchive(w io.Writer, prefix string, members []member, modTime time.Time) error {
	gz := gzip.NewWriter(w)
	gz.ModTime = modTime
	tw := tar.NewWriter(gz)

	dirs := make(map[string]bool)
	for _, m := range members {
		name := path.Join(prefix, m.name)
		for dir := path.Dir(name); dir != "." && !dirs[dir]; dir = path.Dir(dir) {
			dirs[dir] = true
		}
	}
	dirNames := make([]string, 0, len(dirs))
	for dir := range dirs {
		dirNames = append(dirNames, dir)
	}
	sort.Strings(dirNames)
	for _, dir := range dirNames {
		hdr := &tar.Header{
			Typeflag: tar.TypeDir,
			Name:     dir + "/",
			Mode:     0o755,
			ModTime:  modTime,
			Format:   tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("writing %s: %w", dir, err)
		}
	}

	for _, m := range members {
		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     path.Join(prefix, m.name),
			Mode:     0o644,
			Size:     int64(len(m.data)),
			ModTime:  modTime,
			Format:   tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("writing %s: %w", m.name, err)
		}
		if _, err := tw.Write(m.data); err != nil {
			return fmt.Errorf("writing %s: %w", m.name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}
