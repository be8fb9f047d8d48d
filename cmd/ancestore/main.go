// Package main is the entry point for the ancestore CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/ancestore/ancestore/internal/cli"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "ancestore: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}

func mainImpl() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	level := &slog.LevelVar{}
	level.Set(slog.LevelInfo)
	if os.Getenv("ANCESTORE_DEBUG") != "" {
		level.Set(slog.LevelDebug)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	root := cli.NewRootCommand()
	return root.ExecuteContext(ctx)
}
