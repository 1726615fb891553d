package file

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/git-pkgs/tfaot/internal/core"
)

func newFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fsys, name, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return fsys
}

func TestLoadReadme(t *testing.T) {
	fsys := newFs(t, map[string]string{"/proj/README.md": "# cms-tfaot\n"})
	l := New(core.Source{Fs: fsys, Root: "/proj"})

	v, err := l.Load(context.Background(), core.Binding{Field: "readme", Kind: kind, Files: []string{"README.md"}})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v.Text != "# cms-tfaot\n" {
		t.Errorf("unexpected text: %q", v.Text)
	}
	if v.ContentType != "text/markdown" {
		t.Errorf("unexpected content type: %q", v.ContentType)
	}
	if v.Path != "README.md" {
		t.Errorf("unexpected path: %q", v.Path)
	}
}

func TestLoadJoinsFiles(t *testing.T) {
	fsys := newFs(t, map[string]string{
		"/proj/a.txt": "numpy>=1.0",
		"/proj/b.txt": "pyyaml",
	})
	l := New(core.Source{Fs: fsys, Root: "/proj"})

	v, err := l.Load(context.Background(), core.Binding{Field: "dependencies", Kind: kind, Files: []string{"a.txt", "b.txt"}})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v.Text != "numpy>=1.0\npyyaml" {
		t.Errorf("unexpected text: %q", v.Text)
	}
}

func TestLoadExplicitContentType(t *testing.T) {
	fsys := newFs(t, map[string]string{"/proj/README": "plain"})
	l := New(core.Source{Fs: fsys, Root: "/proj"})

	v, err := l.Load(context.Background(), core.Binding{Field: "readme", Kind: kind, Files: []string{"README"}, ContentType: "text/markdown"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v.ContentType != "text/markdown" {
		t.Errorf("unexpected content type: %q", v.ContentType)
	}
}

func TestLoadMissingFile(t *testing.T) {
	l := New(core.Source{Fs: afero.NewMemMapFs(), Root: "/proj"})

	_, err := l.Load(context.Background(), core.Binding{Field: "dependencies", Kind: kind, Files: []string{"requirements.txt"}})
	var missing *core.MissingSourceFileError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSourceFileError, got %v", err)
	}
	if missing.Path != "requirements.txt" {
		t.Errorf("unexpected path: %q", missing.Path)
	}
	if !errors.Is(err, core.ErrResolution) {
		t.Error("expected error to unwrap to ErrResolution")
	}
}

func TestLoadRejectsEscapingPath(t *testing.T) {
	fsys := newFs(t, map[string]string{"/secret.txt": "x"})
	l := New(core.Source{Fs: fsys, Root: "/proj"})

	_, err := l.Load(context.Background(), core.Binding{Field: "readme", Kind: kind, Files: []string{"../secret.txt"}})
	var bindErr *core.BindingError
	if !errors.As(err, &bindErr) {
		t.Fatalf("expected BindingError, got %v", err)
	}
}

func TestLoadNoFiles(t *testing.T) {
	l := New(core.Source{Fs: afero.NewMemMapFs()})
	if _, err := l.Load(context.Background(), core.Binding{Field: "readme", Kind: kind}); err == nil {
		t.Fatal("expected error for empty file list")
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"README.md":  "text/markdown",
		"README.MD":  "text/markdown",
		"README.rst": "text/x-rst",
		"README.txt": "text/plain",
		"README":     "text/plain",
	}
	for name, want := range tests {
		if got := ContentType(name); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestRegistered(t *testing.T) {
	l, err := core.New(core.SourceFile, core.Source{Fs: afero.NewMemMapFs()})
	if err != nil {
		t.Fatalf("core.New failed: %v", err)
	}
	if l.Kind() != core.SourceFile {
		t.Errorf("unexpected kind: %q", l.Kind())
	}
}
