package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/haukened/risklists/internal/risk/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Run(ctx, cli.NewExtractorCommand(), os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
