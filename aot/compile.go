package aot

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const lockFile = ".tfaot.lock"

const (
	errCreateOutput = "cannot create output directory"
	errLockOutput   = "cannot lock output directory"
	errCreateTemp   = "cannot create temporary directory"
	errListAOT      = "cannot list compiler output"
	errCopyArtifact = "cannot copy compiled artifact"
)

var (
	headerRegex = regexp.MustCompile(`^.*_bs\d+\.h$`)
	objectRegex = regexp.MustCompile(`^.*_bs\d+\.o$`)
)

// CompileModel compiles cfg into a temporary directory and copies the
// per batch size headers and objects into outputDir. It returns their base
// names and fails unless every batch size produced exactly one of each.
// Concurrent compiles into the same outputDir are serialized by a file lock.
func CompileModel(ctx context.Context, c Compiler, cfg *Config, outputDir, extraOptions string) (headers, objects []string, err error) {
	fsys := afero.NewOsFs()
	if err := fsys.MkdirAll(outputDir, 0o755); err != nil {
		return nil, nil, errors.Wrap(err, errCreateOutput)
	}

	lock := flock.New(filepath.Join(outputDir, lockFile))
	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, nil, errors.Wrap(err, errLockOutput)
	}
	if !locked {
		return nil, nil, errors.New(errLockOutput)
	}
	defer func() { _ = lock.Unlock() }()

	tmpDir, err := afero.TempDir(fsys, "", "tfaot-")
	if err != nil {
		return nil, nil, errors.Wrap(err, errCreateTemp)
	}
	defer func() { _ = fsys.RemoveAll(tmpDir) }()

	inv := Invocation{
		SavedModel:   cfg.Model.SavedModel,
		OutputDir:    tmpDir,
		BatchSizes:   cfg.Compilation.BatchSizes,
		ServingKey:   cfg.Model.ServingKey,
		Prefix:       cfg.Prefix(),
		Class:        cfg.CompileClass(),
		ExtraOptions: extraOptions,
	}
	if err := c.Compile(ctx, inv); err != nil {
		return nil, nil, err
	}

	aotDir := filepath.Join(tmpDir, "aot")
	entries, err := afero.ReadDir(fsys, aotDir)
	if err != nil {
		return nil, nil, errors.Wrap(err, errListAOT)
	}
	for _, e := range entries {
		name := e.Name()
		switch {
		case headerRegex.MatchString(name):
			headers = append(headers, name)
		case objectRegex.MatchString(name):
			objects = append(objects, name)
		default:
			glog.V(2).Infof("ignoring compiler output %s", name)
			continue
		}
		if err := copyFile(fsys, filepath.Join(aotDir, name), filepath.Join(outputDir, name)); err != nil {
			return nil, nil, errors.Wrap(err, errCopyArtifact)
		}
	}
	sort.Strings(headers)
	sort.Strings(objects)

	n := len(cfg.Compilation.BatchSizes)
	if len(headers) != n {
		return nil, nil, errors.Errorf("expected %d header files, got %d", n, len(headers))
	}
	if len(objects) != n {
		return nil, nil, errors.Errorf("expected %d object files, got %d", n, len(objects))
	}
	return headers, objects, nil
}

// copyFile copies src to dst keeping its mode and modification time.
func copyFile(fsys afero.Fs, src, dst string) error {
	info, err := fsys.Stat(src)
	if err != nil {
		return err
	}
	data, err := afero.ReadFile(fsys, src)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fsys, dst, data, info.Mode().Perm()); err != nil {
		return err
	}
	if err := fsys.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return fsys.Chtimes(dst, time.Now(), info.ModTime())
}

// moveFiles moves the named files from srcDir into dstDir, recreating dstDir.
func moveFiles(fsys afero.Fs, srcDir, dstDir string, names []string) error {
	if err := fsys.RemoveAll(dstDir); err != nil {
		return err
	}
	if err := fsys.MkdirAll(dstDir, 0o755); err != nil {
		return err
	}
	for _, name := range names {
		if err := fsys.Rename(filepath.Join(srcDir, name), filepath.Join(dstDir, name)); err != nil {
			return err
		}
	}
	return nil
}

func removeIfExists(fsys afero.Fs, path string) error {
	if err := fsys.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
