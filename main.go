// ./main.go
/*
Copyright © 2025 Kyle McAllister (xkilldash9x@proton.me)
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/pagefinder/cmd"
	"github.com/xkilldash9x/pagefinder/internal/observability"
)

const panicLogFile = "panic.log"

// Allows mocking os.Exit and the panic log writer in tests.
var (
	osExit      = os.Exit
	osWriteFile = os.WriteFile
)

// main is the entry point for the pagefinder CLI.
func main() {
	defer handlePanic()

	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			osExit(0)
			return
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		osExit(1)
	}
}

// handlePanic records a crash to panicLogFile and exits non-zero.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(1)
		return
	}
	fmt.Fprintf(os.Stderr, "Crash details logged to %s\n", panicLogFile)
	osExit(1)
}
