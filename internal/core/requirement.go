package core

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	pep508NameRegex = regexp.MustCompile(`^([A-Za-z0-9][-A-Za-z0-9._]*[A-Za-z0-9]|[A-Za-z0-9])(\s*\[(.*?)\])?`)
	projectNameRegex = regexp.MustCompile(`^([A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9._-]*[A-Za-z0-9])$`)
	identifierRegex  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	normalizeRunes   = regexp.MustCompile(`[-_.]+`)
)

// commentRegex matches a comment the way pip does: # at line start or after
// whitespace, so URL fragments such as #sha256=... survive.
var commentRegex = regexp.MustCompile(`(^|\s+)#.*$`)

// NormalizeName returns the canonical form of a distribution name.
func NormalizeName(name string) string {
	return strings.ToLower(normalizeRunes.ReplaceAllString(name, "-"))
}

// ValidName reports whether name is a valid distribution name.
func ValidName(name string) bool {
	return projectNameRegex.MatchString(name)
}

// ParseRequirement parses a single PEP 508 requirement line.
func ParseRequirement(req string) (Dependency, error) {
	dep := Dependency{Scope: Runtime}

	// Split on ; first to get environment markers
	parts := strings.SplitN(req, ";", 2)
	nameAndVersion := strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		dep.Marker = strings.TrimSpace(parts[1])
	}

	match := pep508NameRegex.FindStringSubmatch(nameAndVersion)
	if match == nil {
		return Dependency{}, fmt.Errorf("invalid requirement %q", req)
	}

	dep.Name = strings.TrimSpace(match[1])
	if match[3] != "" {
		for _, extra := range strings.Split(match[3], ",") {
			if extra = strings.TrimSpace(extra); extra != "" {
				dep.Extras = append(dep.Extras, extra)
			}
		}
	}

	requirements := strings.TrimSpace(nameAndVersion[len(match[0]):])
	// Remove parentheses from version spec
	requirements = strings.Trim(requirements, "()")
	requirements = strings.Join(strings.Fields(requirements), "")
	if strings.HasPrefix(requirements, "@") {
		// direct reference, keep the URL readable
		requirements = " @ " + strings.TrimSpace(strings.TrimPrefix(requirements, "@"))
	}
	if requirements == "" {
		requirements = "*"
	}
	dep.Requirements = requirements

	return dep, nil
}

// ParseRequirements reads one requirement per line. Blank lines, comments
// and trailing comments are dropped; pip options such as "-r" or "--index-url"
// are rejected because they cannot be expressed as package metadata.
func ParseRequirements(r io.Reader, scope Scope) ([]Dependency, error) {
	var deps []Dependency
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(commentRegex.ReplaceAllString(scanner.Text(), ""))
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "-") {
			return nil, fmt.Errorf("line %d: unsupported option %q", lineNo, line)
		}

		dep, err := ParseRequirement(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		dep.Scope = scope
		dep.Optional = scope == Optional || scope == Development
		deps = append(deps, dep)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return deps, nil
}

// SplitReference splits "module.path:function" into its two parts.
func SplitReference(ref string) (module, callable string) {
	module, callable, _ = strings.Cut(strings.TrimSpace(ref), ":")
	return strings.TrimSpace(module), strings.TrimSpace(callable)
}

// ValidReference reports whether ref has the form "dotted.module:callable".
func ValidReference(ref string) bool {
	module, callable := SplitReference(ref)
	if module == "" || callable == "" {
		return false
	}
	for _, part := range strings.Split(module, ".") {
		if !identifierRegex.MatchString(part) {
			return false
		}
	}
	for _, part := range strings.Split(callable, ".") {
		if !identifierRegex.MatchString(part) {
			return false
		}
	}
	return true
}
