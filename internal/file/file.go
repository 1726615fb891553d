// Package file provides the loader for dynamic fields backed by project files.
package file

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/afero"

	"github.com/git-pkgs/tfaot/internal/core"
)

const kind = core.SourceFile

func init() {
	core.Register(kind, func(src core.Source) core.Loader {
		return New(src)
	})
}

type Loader struct {
	fs   afero.Fs
	root string
}

func New(src core.Source) *Loader {
	fsys := src.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Loader{fs: fsys, root: src.Root}
}

func (l *Loader) Kind() core.SourceKind {
	return kind
}

// Load reads every file of the binding verbatim and joins their contents
// with a newline. The content type comes from the binding when set, otherwise
// from the extension of the first file.
func (l *Loader) Load(ctx context.Context, b core.Binding) (*core.Value, error) {
	if len(b.Files) == 0 {
		return nil, &core.BindingError{Field: b.Field, Reason: "file binding lists no files"}
	}

	parts := make([]string, 0, len(b.Files))
	for _, name := range b.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path, err := l.path(name)
		if err != nil {
			return nil, &core.BindingError{Field: b.Field, Reason: err.Error()}
		}

		data, err := afero.ReadFile(l.fs, path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &core.MissingSourceFileError{Field: b.Field, Path: name}
			}
			return nil, err
		}
		glog.V(2).Infof("dynamic field %s: read %d bytes from %s", b.Field, len(data), name)
		parts = append(parts, string(data))
	}

	contentType := b.ContentType
	if contentType == "" {
		contentType = ContentType(b.Files[0])
	}

	return &core.Value{
		Field:       b.Field,
		Text:        strings.Join(parts, "\n"),
		Path:        b.Files[0],
		ContentType: contentType,
	}, nil
}

// path resolves name against the project root and rejects paths leaving it.
func (l *Loader) path(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.New("file " + name + " is outside the project root")
	}
	return filepath.Join(l.root, clean), nil
}

// ContentType derives a readme content type from a file name.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".rst":
		return "text/x-rst"
	default:
		return "text/plain"
	}
}
