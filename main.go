package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"islamai-relay/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx, os.Args[1:])
	stop()

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "islamai-relay: interrupted")
	default:
		fmt.Fprintf(os.Stderr, "islamai-relay: %v\n", err)
		os.Exit(1)
	}
}
