// Package scripts maps console script references ("module.path:function")
// to Go callables and installs the shims that invoke them.
package scripts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/golang/glog"

	"github.com/git-pkgs/tfaot/internal/core"
)

// Func is the callable behind a console script. args excludes the command
// name. A nil return exits with status 0.
type Func func(ctx context.Context, args []string) error

var (
	funcs = make(map[string]Func)
	mu    sync.RWMutex
)

// Register binds a reference to a callable. It panics on a malformed
// reference, since registrations happen from init functions.
func Register(ref string, fn Func) {
	if !core.ValidReference(ref) {
		panic(fmt.Sprintf("scripts: invalid reference %q", ref))
	}
	mu.Lock()
	defer mu.Unlock()
	funcs[ref] = fn
}

// Lookup returns the callable registered for ref.
func Lookup(ref string) (Func, error) {
	if !core.ValidReference(ref) {
		return nil, &core.EntryPointError{Reference: ref, Reason: "reference must have the form module.path:function"}
	}

	mu.RLock()
	fn, ok := funcs[ref]
	mu.RUnlock()

	if !ok {
		module, _ := core.SplitReference(ref)
		if !hasModule(module) {
			return nil, &core.EntryPointError{Reference: ref, Reason: fmt.Sprintf("no module named %s", module)}
		}
		return nil, &core.EntryPointError{Reference: ref, Reason: "module has no such callable"}
	}
	return fn, nil
}

func hasModule(module string) bool {
	mu.RLock()
	defer mu.RUnlock()
	for ref := range funcs {
		if m, _ := core.SplitReference(ref); m == module {
			return true
		}
	}
	return false
}

// References returns every registered reference in order.
func References() []string {
	mu.RLock()
	defer mu.RUnlock()

	refs := make([]string, 0, len(funcs))
	for ref := range funcs {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// ExitError carries an explicit exit status out of a script.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Run looks up ref, calls it with args and returns the process exit status:
// 0 on success, the code of an ExitError, 1 on any other failure. Panics are
// recovered and reported with their stack trace. Diagnostics go to stderr.
func Run(ctx context.Context, ref string, args []string, stderr io.Writer) (code int) {
	fn, err := Lookup(ref)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "panic in %s: %v\n\n%s", ref, r, debug.Stack())
			code = 1
		}
	}()

	glog.V(1).Infof("running %s with %d argument(s)", ref, len(args))
	if err := fn(ctx, args); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil {
				fmt.Fprintf(stderr, "error: %v\n", exitErr.Err)
			}
			return exitErr.Code
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
