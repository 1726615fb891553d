package manifest

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed pyproject.json
var pyprojectSchema string

// PyprojectSchema validates the supported subset of pyproject.toml.
var PyprojectSchema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	compiler.LoadURL = func(u string) (io.ReadCloser, error) {
		if u == "blob://pyproject.json" {
			return io.NopCloser(strings.NewReader(pyprojectSchema)), nil
		}
		return jsonschema.LoadURL(u)
	}
	PyprojectSchema = compiler.MustCompile("blob://pyproject.json")
}

var notAllowedRe = regexp.MustCompile(`additionalProperties '([^']+)' not allowed$`)

// ValidateSchema checks a decoded pyproject document against the schema and
// reports every violation together.
func ValidateSchema(doc map[string]any) error {
	err := PyprojectSchema.Validate(doc)
	if err == nil {
		return nil
	}
	var validationError *jsonschema.ValidationError
	if !errors.As(err, &validationError) {
		return err
	}

	var messages []string
	var appendError func(err *jsonschema.ValidationError)
	appendError = func(err *jsonschema.ValidationError) {
		if err.Message != "" && len(err.Causes) == 0 {
			msg := err.Message
			if match := notAllowedRe.FindStringSubmatch(msg); match != nil {
				msg = fmt.Sprintf("unknown key %s", match[1])
			}
			messages = append(messages, fmt.Sprintf("#%s: %s", err.InstanceLocation, msg))
		}
		for _, err := range err.Causes {
			appendError(err)
		}
	}
	appendError(validationError)

	if len(messages) == 0 {
		return validationError
	}

	sort.Strings(messages)
	var errs *multierror.Error
	seen := make(map[string]bool, len(messages))
	for _, msg := range messages {
		if seen[msg] {
			continue
		}
		seen[msg] = true
		errs = multierror.Append(errs, errors.New(msg))
	}
	return errs
}
