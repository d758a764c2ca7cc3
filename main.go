// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"notescope/cmd"
	applog "notescope/internal/log"
	"notescope/pkg/build"
)

// main wires the signal context into the command line and turns the
// returned error into an exit status. Interrupting a long playback or a
// running external program cancels the context, so commands unwind and
// clean up instead of being killed.
func main() {
	// Development builds have no ldflags; the module build info stands in.
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx, os.Args[1:], os.Stdout)
	stop()

	if err != nil {
		applog.Errorf("%v", err)
		os.Exit(cmd.ExitCode(err))
	}
}
