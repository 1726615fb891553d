package aot

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

const (
	// DefaultCompiler is the graph compiler looked up on PATH.
	DefaultCompiler = "cmsml_compile_tf_graph"
	// EnvCompiler overrides DefaultCompiler.
	EnvCompiler = "CMS_TFAOT_COMPILER"
)

const errRunCompiler = "aot compiler failed"

// Invocation is one call of the graph compiler. The compiler writes its
// artifacts to <OutputDir>/aot.
type Invocation struct {
	SavedModel   string
	OutputDir    string
	BatchSizes   []int
	ServingKey   string
	Prefix       string
	Class        string
	ExtraOptions string
}

// Args renders the command line arguments of the invocation.
func (inv Invocation) Args() []string {
	sizes := make([]string, len(inv.BatchSizes))
	for i, bs := range inv.BatchSizes {
		sizes[i] = strconv.Itoa(bs)
	}
	args := []string{
		inv.SavedModel,
		inv.OutputDir,
		"--batch-sizes", strings.Join(sizes, ","),
		"--input-serving-key", inv.ServingKey,
		"--compile",
		"--compile-prefix", inv.Prefix,
		"--compile-class", inv.Class,
	}
	if inv.ExtraOptions != "" {
		args = append(args, "--additional-compile-flags", inv.ExtraOptions)
	}
	return args
}

// Compiler runs the graph compiler.
type Compiler interface {
	Compile(ctx context.Context, inv Invocation) error
}

// ExecCompiler runs an external compiler executable.
type ExecCompiler struct {
	Path   string
	Stdout io.Writer
	Stderr io.Writer
}

// CompilerFromEnv returns an ExecCompiler for $CMS_TFAOT_COMPILER, or for
// DefaultCompiler found on PATH.
func CompilerFromEnv() (*ExecCompiler, error) {
	name := os.Getenv(EnvCompiler)
	if name == "" {
		name = DefaultCompiler
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot find aot compiler (set %s)", EnvCompiler)
	}
	return &ExecCompiler{Path: path, Stdout: os.Stdout, Stderr: os.Stderr}, nil
}

// Compile runs the executable bound to ctx.
func (c *ExecCompiler) Compile(ctx context.Context, inv Invocation) error {
	args := inv.Args()
	glog.V(1).Infof("running %s %s", c.Path, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, errRunCompiler)
		}
		return errors.Wrap(err, errRunCompiler)
	}
	return nil
}
