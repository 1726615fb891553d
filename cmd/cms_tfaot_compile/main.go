// Command cms_tfaot_compile compiles a TensorFlow model ahead of time for
// CMSSW. It dispatches to the cms_tfaot.scripts.tfaot_compile:main console
// script.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/golang/glog"

	"github.com/git-pkgs/tfaot/aot"
	"github.com/git-pkgs/tfaot/internal/cmdutil"
	"github.com/git-pkgs/tfaot/scripts"
)

func main() {
	cmdutil.InitLogging(false, 0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := scripts.Run(ctx, aot.TFAOTCompileRef, os.Args[1:], os.Stderr)
	stop()
	glog.Flush()
	os.Exit(code)
}
