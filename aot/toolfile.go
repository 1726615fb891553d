package aot

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

//go:embed templates/toolfile.xml.in
var toolfileTemplate string

var toolPlaceholderRegex = regexp.MustCompile(`\{([a-z_]+)\}`)

// ToolVars fill the SCRAM tool file template.
type ToolVars struct {
	Name string
	// BaseName is the environment variable holding the tool base,
	// <NAME>_BASE by default.
	BaseName string
	Version  string
	Base     string
	LibDir   string
	IncDir   string
	// LDFlags are object file names, paths or complete <flags> tags.
	LDFlags []string
}

func (v *ToolVars) setDefaults() {
	if v.BaseName == "" {
		v.BaseName = strings.ToUpper(strings.ReplaceAll(v.Name, "-", "_")) + "_BASE"
	}
	if v.Version == "" {
		v.Version = "1.0.0"
	}
	if v.Base == "" {
		v.Base = "@TOOL_BASE@"
	}
	if v.LibDir == "" {
		v.LibDir = "lib"
	}
	if v.IncDir == "" {
		v.IncDir = "include"
	}
}

// ldFlags renders each flag as a <flags LDFLAGS="..."/> tag. Bare file
// names are placed in the tool's library directory.
func (v *ToolVars) ldFlags() string {
	flags := make([]string, 0, len(v.LDFlags))
	for _, flag := range v.LDFlags {
		if !strings.Contains(flag, "/") && !strings.Contains(flag, "<") {
			flag = fmt.Sprintf("$%s/%s/%s", v.BaseName, v.LibDir, flag)
		}
		if !strings.HasPrefix(flag, "<flags ") {
			flag = fmt.Sprintf(`<flags LDFLAGS="%s"/>`, flag)
		}
		flags = append(flags, flag)
	}
	return strings.Join(flags, "\n  ")
}

// CreateToolfile renders the tool file to outputFile. The template uses
// {key} placeholders named after the tool variables; an empty template
// selects the built in one.
func CreateToolfile(fsys afero.Fs, outputFile string, vars ToolVars, template string) (string, error) {
	if vars.Name == "" {
		return "", errors.New("missing field 'tool_name' in tool_vars")
	}
	vars.setDefaults()
	if template == "" {
		template = toolfileTemplate
	}

	values := map[string]string{
		"tool_name":      vars.Name,
		"tool_base_name": vars.BaseName,
		"tool_version":   vars.Version,
		"tool_base":      vars.Base,
		"lib_dir":        vars.LibDir,
		"inc_dir":        vars.IncDir,
		"ld_flags":       vars.ldFlags(),
	}

	var output []string
	for _, line := range strings.Split(strings.TrimRight(template, "\n"), "\n") {
		var missing string
		line = toolPlaceholderRegex.ReplaceAllStringFunc(strings.TrimRight(line, " \t\r"), func(m string) string {
			key := m[1 : len(m)-1]
			v, ok := values[key]
			if !ok && missing == "" {
				missing = key
			}
			return v
		})
		if missing != "" {
			return "", errors.Errorf("template contains unknown variable %s", missing)
		}
		output = append(output, line)
	}

	if err := writeLines(fsys, outputFile, output); err != nil {
		return "", err
	}
	return outputFile, nil
}
