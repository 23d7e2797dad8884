package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/optima-study/optima/internal/cli"
	"github.com/optima-study/optima/internal/infrastructure/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	// ── Logging ─────────────────────────────────────────────────────
	level, _ := config.ParseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)

	// ── Signals ─────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(cfg, logger, cli.Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr})
	code := cli.Execute(ctx, app, os.Args[1:])

	stop()
	os.Exit(code)
}
