package aot

import (
	_ "embed"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// DefaultIncludeGuard prefixes the include guard of generated wrappers.
const DefaultIncludeGuard = "tfaot_model"

//go:embed templates/wrapper.h.in
var wrapperTemplate string

var (
	placeholderRegex = regexp.MustCompile(`\$\{([A-Z0-9_]+)\}`)
	foreachRegex     = regexp.MustCompile(`^//\s+foreach=(\S+)\s+lines=(\d+)$`)
)

// commonHeaderFields must agree across all batch sizes of a model.
var commonHeaderFields = []string{
	"prefix",
	"namespace",
	"class_name",
	"n_args",
	"n_res",
	"arg_counts_no_batch",
	"res_counts_no_batch",
}

// tuple is a list rendered with parentheses, e.g. (4, 4) or (2,).
type tuple []int

func (h *HeaderData) fields() map[string]any {
	return map[string]any{
		"batch_size":          h.BatchSize,
		"prefix":              h.Prefix,
		"namespace":           h.Namespace,
		"class_name":          h.ClassName,
		"n_args":              h.NArgs,
		"arg_counts":          h.ArgCounts,
		"arg_counts_no_batch": tuple(h.ArgCountsNoBatch),
		"n_res":               h.NRes,
		"res_counts":          h.ResCounts,
		"res_counts_no_batch": tuple(h.ResCountsNoBatch),
	}
}

// WrapperOptions tunes CreateWrapper.
type WrapperOptions struct {
	IncludeGuard string
	// Template replaces the built in wrapper template.
	Template string
}

// CreateWrapper renders the C++ header that bundles the compiled headers of
// one model and writes it to outputFile.
//
// Templates use ${VAR} placeholders. Every string variable also exists as
// ${VAR_UC} in upper case and every list as ${VAR_CSV}. A line
// "// foreach=MODEL lines=N" repeats the next N lines once per batch size
// with the variables of that batch size's header.
func CreateWrapper(fsys afero.Fs, outputFile string, headerFiles []string, modelDir string, opts WrapperOptions) (string, error) {
	if len(headerFiles) == 0 {
		return "", errors.New("no header files provided")
	}
	if opts.IncludeGuard == "" {
		opts.IncludeGuard = DefaultIncludeGuard
	}
	if opts.Template == "" {
		opts.Template = wrapperTemplate
	}

	headers := make(map[int]*HeaderData)
	for _, path := range headerFiles {
		data, err := ParseHeader(fsys, path)
		if err != nil {
			return "", err
		}
		if _, dup := headers[data.BatchSize]; dup {
			return "", errors.Errorf("found more than one header for batch size %d", data.BatchSize)
		}
		headers[data.BatchSize] = data
	}

	batchSizes := make([]int, 0, len(headers))
	for bs := range headers {
		batchSizes = append(batchSizes, bs)
	}
	sort.Ints(batchSizes)

	common := map[string]any{
		"model_path":    modelDir,
		"batch_sizes":   batchSizes,
		"include_guard": opts.IncludeGuard,
	}
	first := headers[batchSizes[0]].fields()
	for _, key := range commonHeaderFields {
		for _, bs := range batchSizes[1:] {
			if other := headers[bs].fields()[key]; fmt.Sprint(other) != fmt.Sprint(first[key]) {
				return "", errors.Errorf("found more than one possible %s values: %v, %v", key, first[key], other)
			}
		}
		common[key] = first[key]
	}

	commonSub := substituter(common)
	modelSubs := make(map[int]func(string) (string, error))
	for _, bs := range batchSizes {
		vars := make(map[string]any, len(common))
		for k, v := range common {
			vars[k] = v
		}
		for k, v := range headers[bs].fields() {
			vars[k] = v
		}
		modelSubs[bs] = substituter(vars)
	}

	input := strings.Split(strings.TrimRight(opts.Template, "\n"), "\n")
	var output []string
	for i := 0; i < len(input); i++ {
		line := strings.TrimRight(input[i], " \t\r")

		if m := foreachRegex.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			if m[1] != "MODEL" {
				return "", errors.Errorf("unknown loop target '%s'", m[1])
			}
			n, _ := strconv.Atoi(m[2])
			end := i + 1 + n
			if end > len(input) {
				end = len(input)
			}
			block := input[i+1 : end]
			for _, bs := range batchSizes {
				for _, l := range block {
					out, err := modelSubs[bs](strings.TrimRight(l, " \t\r"))
					if err != nil {
						return "", err
					}
					output = append(output, out)
				}
			}
			i = end - 1
			continue
		}

		out, err := commonSub(line)
		if err != nil {
			return "", err
		}
		output = append(output, out)
	}

	if err := writeLines(fsys, outputFile, output); err != nil {
		return "", err
	}
	return outputFile, nil
}

// substituter returns a function replacing ${VAR} placeholders from vars,
// whose keys are lower case.
func substituter(vars map[string]any) func(string) (string, error) {
	values := make(map[string]string)
	for key, value := range vars {
		key = strings.ToUpper(key)
		switch v := value.(type) {
		case string:
			values[key] = v
			if !strings.HasSuffix(key, "_UC") {
				values[key+"_UC"] = strings.ToUpper(v)
			}
		case []int:
			values[key] = "[" + joinInts(v, ", ") + "]"
			if !strings.HasSuffix(key, "_CSV") {
				values[key+"_CSV"] = joinInts(v, ", ")
			}
		case tuple:
			if len(v) == 1 {
				values[key] = "(" + strconv.Itoa(v[0]) + ",)"
			} else {
				values[key] = "(" + joinInts(v, ", ") + ")"
			}
			if !strings.HasSuffix(key, "_CSV") {
				values[key+"_CSV"] = joinInts(v, ", ")
			}
		default:
			values[key] = fmt.Sprint(v)
		}
	}

	return func(line string) (string, error) {
		var missing string
		out := placeholderRegex.ReplaceAllStringFunc(line, func(m string) string {
			key := placeholderRegex.FindStringSubmatch(m)[1]
			v, ok := values[key]
			if !ok && missing == "" {
				missing = key
			}
			return v
		})
		if missing != "" {
			return "", errors.Errorf("template contains unknown variable %s", missing)
		}
		return out, nil
	}
}

func writeLines(fsys afero.Fs, path string, lines []string) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errCreateOutput)
	}
	content := strings.Join(lines, "\n") + "\n"
	return errors.Wrapf(afero.WriteFile(fsys, path, []byte(content), 0o644), "cannot write %s", path)
}
