package aot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// EnvCMSSWBase points at the CMSSW developer area.
const EnvCMSSWBase = "CMSSW_BASE"

const defaultToolBase = "@TOOL_BASE@"

const errLinkModel = "cannot link model header"

// Options configure Compile.
type Options struct {
	ConfigFile string
	OutputDir  string
	// ToolName defaults to tfaot-model-<model name>.
	ToolName string
	// ToolBase defaults to @TOOL_BASE@, or in dev mode to the output
	// directory relative to $CMSSW_BASE.
	ToolBase string
	// Dev moves headers to include/<tool name> and objects to lib/, and
	// prints usage instructions to Out.
	Dev bool
	// ExtraOptions are passed on to the graph compiler.
	ExtraOptions string
	// Compiler defaults to CompilerFromEnv.
	Compiler Compiler
	Out      io.Writer
}

// Result lists everything Compile produced. Header and object files are
// relative to OutputDir.
type Result struct {
	OutputDir   string
	HeaderDir   string
	HeaderFiles []string
	WrapperFile string
	ObjectDir   string
	ObjectFiles []string
	ToolFile    string
	ToolName    string
	Config      *Config
}

// Compile loads the config, compiles the model and writes the wrapper
// header, the model.h link and the tool file.
func Compile(ctx context.Context, opts Options) (*Result, error) {
	fsys := afero.NewOsFs()

	outputDir, err := expandPath(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := fsys.MkdirAll(outputDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errCreateOutput)
	}

	cfg, err := LoadConfig(fsys, opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	toolName := opts.ToolName
	if toolName == "" {
		toolName = cfg.DefaultToolName()
	}
	toolBase := opts.ToolBase
	if toolBase == "" {
		toolBase = defaultToolBase
		if opts.Dev {
			toolBase = CMSSWRelPath(outputDir)
		}
	}

	compiler := opts.Compiler
	if compiler == nil {
		if compiler, err = CompilerFromEnv(); err != nil {
			return nil, err
		}
	}

	headers, objects, err := CompileModel(ctx, compiler, cfg, outputDir, opts.ExtraOptions)
	if err != nil {
		return nil, err
	}

	res := &Result{
		OutputDir: outputDir,
		HeaderDir: outputDir,
		ObjectDir: outputDir,
		ToolName:  toolName,
		Config:    cfg,
	}
	if opts.Dev {
		res.HeaderDir = filepath.Join(outputDir, "include", toolName)
		if err := moveFiles(fsys, outputDir, res.HeaderDir, headers); err != nil {
			return nil, errors.Wrap(err, "cannot move headers")
		}
		res.ObjectDir = filepath.Join(outputDir, "lib")
		if err := moveFiles(fsys, outputDir, res.ObjectDir, objects); err != nil {
			return nil, errors.Wrap(err, "cannot move objects")
		}
	}
	headerRel, _ := filepath.Rel(outputDir, res.HeaderDir)
	objectRel, _ := filepath.Rel(outputDir, res.ObjectDir)
	for _, h := range headers {
		res.HeaderFiles = append(res.HeaderFiles, filepath.Join(headerRel, h))
	}
	for _, o := range objects {
		res.ObjectFiles = append(res.ObjectFiles, filepath.Join(objectRel, o))
	}

	headerPaths := make([]string, len(res.HeaderFiles))
	for i, h := range res.HeaderFiles {
		headerPaths[i] = filepath.Join(outputDir, h)
	}
	res.WrapperFile, err = CreateWrapper(fsys, filepath.Join(res.HeaderDir, cfg.Model.Name+".h"), headerPaths, cfg.Model.SavedModel, WrapperOptions{})
	if err != nil {
		return nil, err
	}

	link := filepath.Join(res.HeaderDir, "model.h")
	if err := removeIfExists(fsys, link); err != nil {
		return nil, errors.Wrap(err, errLinkModel)
	}
	if linker, ok := fsys.(afero.Linker); ok {
		if err := linker.SymlinkIfPossible(filepath.Base(res.WrapperFile), link); err != nil {
			return nil, errors.Wrap(err, errLinkModel)
		}
	}

	res.ToolFile, err = CreateToolfile(fsys, filepath.Join(outputDir, toolName+".xml"), ToolVars{
		Name:    toolName,
		Version: cfg.Model.Version,
		Base:    toolBase,
		LibDir:  "lib",
		IncDir:  "include",
		LDFlags: objects,
	}, "")
	if err != nil {
		return nil, err
	}

	glog.V(1).Infof("compiled %s for batch sizes %v into %s", cfg.Model.Name, cfg.Compilation.BatchSizes, outputDir)
	if opts.Dev && opts.Out != nil {
		PrintSummary(opts.Out, res)
	}
	return res, nil
}

// CMSSWRelPath rewrites path below $CMSSW_BASE as "$CMSSW_BASE/<rel>" and
// returns any other path unchanged.
func CMSSWRelPath(path string) string {
	base := os.Getenv(EnvCMSSWBase)
	if base == "" {
		return path
	}
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return "$" + EnvCMSSWBase + "/" + filepath.ToSlash(rel)
}

// PrintSummary writes the steps needed to use the compiled model.
func PrintSummary(w io.Writer, res *Result) {
	cfg := res.Config
	className := cfg.Compilation.Namespace + "::" + cfg.Model.Name

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("-", 80))
	fmt.Fprintf(w, "\nsuccessfully AOT compiled model '%s' for batch sizes: %s\n", cfg.Model.Name, joinInts(cfg.Compilation.BatchSizes, ","))
	fmt.Fprintf(w, "\n  1. register it to scram:\n")
	fmt.Fprintf(w, "     > scram setup %s\n", CMSSWRelPath(res.ToolFile))
	fmt.Fprintf(w, "\n  2. 'use' the tool in your BuildFile.xml:\n")
	fmt.Fprintf(w, "     <use name=\"%s.xml\"/>\n", res.ToolName)
	fmt.Fprintf(w, "\n  3. include the following header in your code:\n")
	fmt.Fprintf(w, "     #include \"%s/model.h\"\n", res.ToolName)
	fmt.Fprintf(w, "\n  4. create an AOT model instance via:\n")
	fmt.Fprintf(w, "     auto model = tfaot::Model<%s>();\n\n", className)
}

var targetTripleRegex = regexp.MustCompile(`^.*--target_triple(\s+|=)([^-]+)-.+$`)

// TargetArchWarning returns a warning when the architecture of the
// --target_triple in extraOptions, x86_64 when absent, differs from arch.
func TargetArchWarning(extraOptions, arch string) string {
	tripleArch := "x86_64"
	m := targetTripleRegex.FindStringSubmatch(extraOptions)
	if m != nil {
		tripleArch = m[2]
	}
	if tripleArch == arch {
		return ""
	}

	msg := fmt.Sprintf("\nWARNING: your platform architecture is '%s'", arch)
	if m != nil {
		msg += fmt.Sprintf(" which does not match the configured '--target_triple' of '%s'", tripleArch)
	} else {
		msg += " but the default compilation target is 'x86_64'"
	}
	return msg + ", which can lead to unexpected behavior in the compiled model, so please set the" +
		" correct target via --additional-flags=\"--target_triple=<arch>-unknown-linux\"\n"
}

// HostArch names the running architecture the way target triples do.
func HostArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i686"
	default:
		return runtime.GOARCH
	}
}

func expandPath(path string) (string, error) {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "cannot expand ~")
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	return abs, errors.Wrap(err, "cannot resolve output directory")
}
