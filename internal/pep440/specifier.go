package pep440

import (
	"fmt"
	"strings"
)

// Operator is a version specifier comparison operator.
type Operator string

const (
	OpCompatible Operator = "~="
	OpEqual      Operator = "=="
	OpNotEqual   Operator = "!="
	OpLessEq     Operator = "<="
	OpGreaterEq  Operator = ">="
	OpLess       Operator = "<"
	OpGreater    Operator = ">"
	OpArbitrary  Operator = "==="
)

// Longest operators first so that "===" is not read as "==".
var operators = []Operator{OpArbitrary, OpCompatible, OpEqual, OpNotEqual, OpLessEq, OpGreaterEq, OpLess, OpGreater}

// Specifier is a single clause such as ">=3.8" or "==1.2.*".
type Specifier struct {
	Op       Operator
	Version  Version
	Raw      string // version text as written
	Wildcard bool
}

// SpecifierSet is a comma separated conjunction of specifiers.
type SpecifierSet []Specifier

// ParseSpecifier parses one clause.
func ParseSpecifier(s string) (Specifier, error) {
	s = strings.TrimSpace(s)
	var op Operator
	for _, candidate := range operators {
		if strings.HasPrefix(s, string(candidate)) {
			op = candidate
			break
		}
	}
	if op == "" {
		return Specifier{}, fmt.Errorf("specifier %q has no operator", s)
	}

	raw := strings.TrimSpace(strings.TrimPrefix(s, string(op)))
	spec := Specifier{Op: op, Raw: raw}
	if op == OpArbitrary {
		if raw == "" {
			return Specifier{}, fmt.Errorf("specifier %q has no version", s)
		}
		return spec, nil
	}

	if strings.HasSuffix(raw, ".*") {
		if op != OpEqual && op != OpNotEqual {
			return Specifier{}, fmt.Errorf("specifier %q: wildcard only allowed with == and !=", s)
		}
		spec.Wildcard = true
		raw = strings.TrimSuffix(raw, ".*")
	}

	v, err := Parse(raw)
	if err != nil {
		return Specifier{}, fmt.Errorf("specifier %q: %w", s, err)
	}
	if spec.Wildcard && (v.Pre != nil || v.Post != nil || v.Dev != nil || len(v.Local) > 0) {
		return Specifier{}, fmt.Errorf("specifier %q: wildcard requires a plain release", s)
	}
	if op == OpCompatible && len(v.Release) < 2 {
		return Specifier{}, fmt.Errorf("specifier %q: ~= requires at least two release segments", s)
	}
	if len(v.Local) > 0 && op != OpEqual && op != OpNotEqual {
		return Specifier{}, fmt.Errorf("specifier %q: local versions only allowed with == and !=", s)
	}
	spec.Version = v
	return spec, nil
}

// ParseSpecifierSet parses a comma separated list of clauses. An empty or
// "*" string yields an empty set that matches every version.
func ParseSpecifierSet(s string) (SpecifierSet, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return nil, nil
	}
	var set SpecifierSet
	for _, part := range strings.Split(s, ",") {
		spec, err := ParseSpecifier(part)
		if err != nil {
			return nil, err
		}
		set = append(set, spec)
	}
	return set, nil
}

// String renders the specifier in normalized form.
func (s Specifier) String() string {
	if s.Op == OpArbitrary {
		return string(s.Op) + s.Raw
	}
	out := string(s.Op) + s.Version.String()
	if s.Wildcard {
		out += ".*"
	}
	return out
}

// String renders the set joined by commas.
func (set SpecifierSet) String() string {
	parts := make([]string, len(set))
	for i, s := range set {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// Prereleases reports whether the set explicitly admits pre-releases, which
// is the case when any inclusive clause names a pre-release.
func (set SpecifierSet) Prereleases() bool {
	for _, s := range set {
		switch s.Op {
		case OpEqual, OpArbitrary, OpGreaterEq, OpLessEq, OpCompatible:
			if s.Version.IsPrerelease() {
				return true
			}
		}
	}
	return false
}

// Contains reports whether v satisfies every clause. Pre-releases only match
// when prereleases is true or the set itself names a pre-release.
func (set SpecifierSet) Contains(v Version, prereleases bool) bool {
	if v.IsPrerelease() && !prereleases && !set.Prereleases() {
		return false
	}
	for _, s := range set {
		if !s.Contains(v) {
			return false
		}
	}
	return true
}

// Contains reports whether v satisfies the clause, ignoring pre-release policy.
func (s Specifier) Contains(v Version) bool {
	switch s.Op {
	case OpArbitrary:
		return strings.EqualFold(strings.TrimSpace(s.Raw), v.String())
	case OpCompatible:
		prefix := s.Version.Release[:len(s.Version.Release)-1]
		return v.Public().Compare(s.Version) >= 0 && matchesPrefix(v, s.Version.Epoch, prefix)
	case OpEqual:
		return s.equal(v)
	case OpNotEqual:
		return !s.equal(v)
	case OpLessEq:
		return v.Public().Compare(s.Version) <= 0
	case OpGreaterEq:
		return v.Public().Compare(s.Version) >= 0
	case OpLess:
		if v.Public().Compare(s.Version) >= 0 {
			return false
		}
		// <V excludes pre-releases of V unless V is itself a pre-release
		if !s.Version.IsPrerelease() && v.IsPrerelease() && sameRelease(v, s.Version) {
			return false
		}
		return true
	case OpGreater:
		if v.Public().Compare(s.Version) <= 0 {
			return false
		}
		// >V excludes post-releases of V unless V is itself a post-release
		if !s.Version.IsPostrelease() && v.IsPostrelease() && sameRelease(v, s.Version) {
			return false
		}
		return true
	}
	return false
}

func (s Specifier) equal(v Version) bool {
	if s.Wildcard {
		return matchesPrefix(v, s.Version.Epoch, s.Version.Release)
	}
	if len(s.Version.Local) == 0 {
		v = v.Public()
	}
	return v.Compare(s.Version) == 0
}

func matchesPrefix(v Version, epoch int, prefix []int) bool {
	if v.Epoch != epoch {
		return false
	}
	for i, n := range prefix {
		got := 0
		if i < len(v.Release) {
			got = v.Release[i]
		}
		if got != n {
			return false
		}
	}
	return true
}

func sameRelease(a, b Version) bool {
	return a.Epoch == b.Epoch && compareRelease(a.Release, b.Release) == 0
}
