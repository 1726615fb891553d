package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/git-pkgs/tfaot/internal/cmdutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewTFAOTCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		cmdutil.Exit(err)
	}
}
