package scripts

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/afero"

	"github.com/git-pkgs/tfaot/internal/core"
)

const shimMode = 0o755

// Shim returns the POSIX shell script that dispatches a command to ref
// through launcher, forwarding every argument.
func Shim(launcher, ref string) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "# console script for %s\n", ref)
	fmt.Fprintf(&b, "exec %s run %s -- \"$@\"\n", shellQuote(launcher), shellQuote(ref))
	return b.String()
}

// Install writes one executable shim per entry into binDir and returns the
// paths written. Every reference must be registered; nothing is written when
// one is not.
func Install(fsys afero.Fs, binDir, launcher string, entries []core.ScriptEntry) ([]string, error) {
	for _, e := range entries {
		if _, err := Lookup(e.Reference); err != nil {
			return nil, err
		}
	}

	if err := fsys.MkdirAll(binDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", binDir, err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		path := filepath.Join(binDir, e.Name)
		if err := afero.WriteFile(fsys, path, []byte(Shim(launcher, e.Reference)), shimMode); err != nil {
			return paths, fmt.Errorf("writing %s: %w", path, err)
		}
		// WriteFile does not change the mode of an existing file.
		if err := fsys.Chmod(path, shimMode); err != nil {
			return paths, fmt.Errorf("chmod %s: %w", path, err)
		}
		glog.V(1).Infof("installed %s -> %s", path, e.Reference)
		paths = append(paths, path)
	}
	return paths, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
