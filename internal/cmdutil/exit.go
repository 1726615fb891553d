// Package cmdutil holds the error and logging plumbing shared by the
// command line tools.
package cmdutil

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"
	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/git-pkgs/tfaot/scripts"
)

// Stderr receives error reports.
var Stderr io.Writer = os.Stderr

// DetailedError extracts a detailed error message, including the stack
// trace if there is one.
func DetailedError(err error) string {
	msg := ErrorMessage(err)
	hasstack := false
	for {
		stackerr, ok := err.(interface {
			StackTrace() pkgerrors.StackTrace
		})
		if !ok {
			break
		}
		msg += "\n"
		if hasstack {
			msg += "CAUSED BY...\n"
		}
		hasstack = true
		for _, f := range stackerr.StackTrace() {
			msg += fmt.Sprintf("%+v\n", f)
		}

		cause := pkgerrors.Cause(err)
		if cause == err || cause == nil {
			break
		}
		err = cause
	}
	return msg
}

// RunFunc wraps an error returning run func so that every command reports
// errors the same way and exits from one place, after deferred cleanups of
// the run func have happened.
func RunFunc(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		if err := run(cmd, args); err != nil {
			var exitErr *scripts.ExitError
			if errors.As(err, &exitErr) && exitErr.Err == nil {
				// the status alone is the report
				glog.Flush()
				os.Exit(exitErr.Code)
			}
			var msg string
			if LogToStderr {
				msg = DetailedError(err)
			} else {
				msg = ErrorMessage(err)
				glog.V(3).Info(DetailedError(err))
			}
			glog.Flush()
			exitErrorCode(ExitCode(err), msg)
		}
	}
}

// Exit reports err and exits.
func Exit(err error) {
	exitErrorCode(ExitCode(err), ErrorMessage(err))
}

// ExitCode is the code of a scripts.ExitError in err's chain, else 1.
func ExitCode(err error) int {
	var exitErr *scripts.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

func exitErrorCode(code int, msg string) {
	fmt.Fprintf(Stderr, "error: %s\n", msg)
	os.Exit(code)
}

// ErrorMessage returns a message, listing aggregated errors one per line.
func ErrorMessage(err error) string {
	if multi, ok := err.(*multierror.Error); ok {
		wr := multi.WrappedErrors()
		if len(wr) == 1 {
			return ErrorMessage(wr[0])
		}
		msg := fmt.Sprintf("%d errors occurred:", len(wr))
		for i, werr := range wr {
			msg += fmt.Sprintf("\n    %d) %s", i, ErrorMessage(werr))
		}
		return msg
	}
	return err.Error()
}
