// Package pep440 implements the Python packaging version scheme: parsing,
// normalization, ordering and version specifiers.
package pep440

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var versionRegex = regexp.MustCompile(`(?i)^\s*v?` +
	`(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?P<pre>[-_.]?(?P<pre_l>alpha|beta|preview|pre|rc|a|b|c)[-_.]?(?P<pre_n>[0-9]+)?)?` +
	`(?P<post>(?:-(?P<post_n1>[0-9]+))|(?:[-_.]?(?P<post_l>post|rev|r)[-_.]?(?P<post_n2>[0-9]+)?))?` +
	`(?P<dev>[-_.]?(?P<dev_l>dev)[-_.]?(?P<dev_n>[0-9]+)?)?` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?` +
	`\s*$`)

// Pre is a pre-release marker: a, b or rc with a number.
type Pre struct {
	Label string
	Num   int
}

// Version is a parsed PEP 440 version.
type Version struct {
	Epoch   int
	Release []int
	Pre     *Pre
	Post    *int
	Dev     *int
	Local   []string
}

// Parse parses s, accepting every spelling PEP 440 allows to be normalized.
func Parse(s string) (Version, error) {
	m := versionRegex.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("%q is not a valid PEP 440 version", s)
	}
	group := func(name string) string {
		return m[versionRegex.SubexpIndex(name)]
	}

	var v Version
	var err error
	if e := group("epoch"); e != "" {
		if v.Epoch, err = number(e); err != nil {
			return Version{}, fmt.Errorf("epoch of %q: %w", s, err)
		}
	}

	for _, part := range strings.Split(group("release"), ".") {
		n, err := number(part)
		if err != nil {
			return Version{}, fmt.Errorf("release segment of %q: %w", s, err)
		}
		v.Release = append(v.Release, n)
	}

	if group("pre") != "" {
		n, err := optionalInt(group("pre_n"))
		if err != nil {
			return Version{}, err
		}
		v.Pre = &Pre{Label: normalizePreLabel(group("pre_l")), Num: n}
	}

	if group("post") != "" {
		raw := group("post_n1")
		if raw == "" {
			raw = group("post_n2")
		}
		n, err := optionalInt(raw)
		if err != nil {
			return Version{}, err
		}
		v.Post = &n
	}

	if group("dev") != "" {
		n, err := optionalInt(group("dev_n"))
		if err != nil {
			return Version{}, err
		}
		v.Dev = &n
	}

	if local := group("local"); local != "" {
		for _, seg := range strings.FieldsFunc(strings.ToLower(local), isLocalSeparator) {
			if isDigits(seg) {
				seg = trimZeros(seg)
			}
			v.Local = append(v.Local, seg)
		}
	}

	return v, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Normalize returns the canonical spelling of s.
func Normalize(s string) (string, error) {
	v, err := Parse(s)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Valid reports whether s parses as a version.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// String returns the normalized version.
func (v Version) String() string {
	var b strings.Builder
	if v.Epoch != 0 {
		b.WriteString(strconv.Itoa(v.Epoch))
		b.WriteByte('!')
	}
	b.WriteString(v.releaseString())
	if v.Pre != nil {
		b.WriteString(v.Pre.Label)
		b.WriteString(strconv.Itoa(v.Pre.Num))
	}
	if v.Post != nil {
		b.WriteString(".post")
		b.WriteString(strconv.Itoa(*v.Post))
	}
	if v.Dev != nil {
		b.WriteString(".dev")
		b.WriteString(strconv.Itoa(*v.Dev))
	}
	if len(v.Local) > 0 {
		b.WriteByte('+')
		b.WriteString(strings.Join(v.Local, "."))
	}
	return b.String()
}

// Public returns the version without its local segment.
func (v Version) Public() Version {
	v.Local = nil
	return v
}

// IsPrerelease reports whether v is a pre- or dev-release.
func (v Version) IsPrerelease() bool {
	return v.Pre != nil || v.Dev != nil
}

// IsPostrelease reports whether v is a post-release.
func (v Version) IsPostrelease() bool {
	return v.Post != nil
}

func (v Version) releaseString() string {
	parts := make([]string, len(v.Release))
	for i, n := range v.Release {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

func normalizePreLabel(l string) string {
	switch strings.ToLower(l) {
	case "a", "alpha":
		return "a"
	case "b", "beta":
		return "b"
	default:
		return "rc"
	}
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return number(s)
}

// number parses a run of ASCII digits. Values beyond int are rejected
// rather than wrapped.
func number(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("segment %q too large", s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return n, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func trimZeros(s string) string {
	if t := strings.TrimLeft(s, "0"); t != "" {
		return t
	}
	return "0"
}

func isLocalSeparator(r rune) bool {
	return r == '.' || r == '-' || r == '_'
}
