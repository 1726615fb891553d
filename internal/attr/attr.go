// Package attr provides the loader for dynamic fields read from a literal
// assignment in a module's source.
//
// Modules are never executed: the loader locates the module file under the
// package roots and reads the last top-level assignment of the attribute,
// which must be a string literal.
package attr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/afero"

	"github.com/git-pkgs/tfaot/internal/core"
)

const kind = core.SourceAttr

func init() {
	core.Register(kind, func(src core.Source) core.Loader {
		return New(src)
	})
}

var (
	identRegex  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	assignRegex = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*(?::[^=]*)?=\s*(.*)$`)
)

type Loader struct {
	fs    afero.Fs
	root  string
	roots []string
}

func New(src core.Source) *Loader {
	fsys := src.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	roots := src.PackageDirs
	if len(roots) == 0 {
		roots = []string{"."}
	}
	return &Loader{fs: fsys, root: src.Root, roots: roots}
}

func (l *Loader) Kind() core.SourceKind {
	return kind
}

func (l *Loader) Load(ctx context.Context, b core.Binding) (*core.Value, error) {
	module, name, err := Split(b.Attr)
	if err != nil {
		return nil, &core.BindingError{Field: b.Field, Reason: err.Error()}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := l.locate(module)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, &core.UnresolvableAttributeError{
			Field:  b.Field,
			Attr:   b.Attr,
			Reason: fmt.Sprintf("module %s not found under %s", module, strings.Join(l.roots, ", ")),
		}
	}

	src, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, err
	}

	value, err := Lookup(string(src), name)
	if err != nil {
		return nil, &core.UnresolvableAttributeError{Field: b.Field, Attr: b.Attr, Reason: err.Error()}
	}
	glog.V(2).Infof("dynamic field %s: %s = %q from %s", b.Field, b.Attr, value, path)

	return &core.Value{Field: b.Field, Text: value}, nil
}

// locate returns the first source file implementing module, or "" when no
// package root provides it.
func (l *Loader) locate(module string) (string, error) {
	rel := filepath.Join(strings.Split(module, ".")...)
	for _, root := range l.roots {
		base := filepath.Join(l.root, filepath.FromSlash(root), rel)
		for _, candidate := range []string{base + ".py", filepath.Join(base, "__init__.py")} {
			ok, err := afero.Exists(l.fs, candidate)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return "", err
			}
			if ok {
				return candidate, nil
			}
		}
	}
	return "", nil
}

// Split separates "pkg.module.NAME" into its module path and attribute name.
func Split(ref string) (module, name string, err error) {
	i := strings.LastIndex(ref, ".")
	if i <= 0 || i == len(ref)-1 {
		return "", "", fmt.Errorf("attribute reference %q must have the form module.NAME", ref)
	}
	module, name = ref[:i], ref[i+1:]
	for _, part := range strings.Split(module, ".") {
		if !identRegex.MatchString(part) {
			return "", "", fmt.Errorf("attribute reference %q has an invalid module path", ref)
		}
	}
	if !identRegex.MatchString(name) {
		return "", "", fmt.Errorf("attribute reference %q has an invalid name", ref)
	}
	return module, name, nil
}

// Lookup returns the value of the last top-level assignment to name in src.
func Lookup(src, name string) (string, error) {
	var (
		found   bool
		value   string
		litErr  error
		inQuote string
	)

	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if inQuote != "" {
			if strings.Count(line, inQuote)%2 == 1 {
				inQuote = ""
			}
			continue
		}

		if m := assignRegex.FindStringSubmatch(line); m != nil && m[1] == name {
			rest := strings.Join(append([]string{m[2]}, lines[i+1:]...), "\n")
			v, err := parseLiteral(rest)
			found = true
			value, litErr = v, err
		}

		for _, q := range []string{`"""`, `'''`} {
			if strings.Count(line, q)%2 == 1 {
				inQuote = q
				break
			}
		}
	}

	if !found {
		return "", errors.New("attribute is not assigned at module top level")
	}
	if litErr != nil {
		return "", litErr
	}
	return value, nil
}

// parseLiteral reads one string literal from the start of s. Anything after
// the literal on its last line other than a comment is an error.
func parseLiteral(s string) (string, error) {
	notLiteral := errors.New("value is not a string literal")

	i := 0
	raw := false
	for i < len(s) && strings.ContainsRune("rRuU", rune(s[i])) {
		if s[i] == 'r' || s[i] == 'R' {
			raw = true
		}
		i++
	}
	if i > 1 || i >= len(s) || (s[i] != '"' && s[i] != '\'') {
		return "", notLiteral
	}

	quote := string(s[i])
	if strings.HasPrefix(s[i:], strings.Repeat(quote, 3)) {
		quote = strings.Repeat(quote, 3)
	}
	i += len(quote)

	var b strings.Builder
	for {
		if i >= len(s) {
			return "", errors.New("unterminated string literal")
		}
		if strings.HasPrefix(s[i:], quote) {
			i += len(quote)
			break
		}
		c := s[i]
		if c == '\n' && len(quote) == 1 {
			return "", errors.New("unterminated string literal")
		}
		if c == '\\' && i+1 < len(s) {
			if raw {
				b.WriteByte(c)
				b.WriteByte(s[i+1])
			} else {
				b.WriteString(unescape(s[i+1]))
			}
			i += 2
			continue
		}
		b.WriteByte(c)
		i++
	}

	tail := s[i:]
	if nl := strings.IndexByte(tail, '\n'); nl >= 0 {
		tail = tail[:nl]
	}
	tail = strings.TrimSpace(tail)
	if tail != "" && !strings.HasPrefix(tail, "#") {
		return "", notLiteral
	}
	return b.String(), nil
}

func unescape(c byte) string {
	switch c {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case '0':
		return "\x00"
	case '\\', '\'', '"':
		return string(c)
	case '\n':
		return ""
	default:
		return "\\" + string(c)
	}
}
