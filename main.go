package main

import (
	"context"
	"log/slog"
	"os"
)

func main() {
	ctx := shutdownContext(context.Background(), slog.Default())

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		exitOnError(err)
	}
}

func exitOnError(err error) {
	printError(os.Stderr, err)
	os.Exit(1)
}
