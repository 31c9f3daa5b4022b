// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ismaelmosquera/imrlib-sub001/cmd"
	applog "github.com/ismaelmosquera/imrlib-sub001/internal/log"
	"github.com/ismaelmosquera/imrlib-sub001/pkg/build"
)

// main parses the command line and runs the selected command until it
// finishes or a termination signal arrives.
func main() {
	// Development builds carry no ldflags; report and continue.
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx, os.Args[1:], os.Stdout); err != nil {
		stop()
		applog.Fatalf("%v", err)
	}
}
