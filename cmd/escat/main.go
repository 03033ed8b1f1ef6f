package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gftdcojp/escat/internal/cli"
)

func main() {
	// SIGPIPE is caught so a closed stdout surfaces as EPIPE and ends the
	// read like an interrupt.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGPIPE)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}
