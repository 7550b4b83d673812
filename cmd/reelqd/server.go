package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vmunix/reelq/internal/config"
	"github.com/vmunix/reelq/internal/server"
)

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func resolveConfig(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return config.Discover()
}

func runServer(path string) error {
	path, err := resolveConfig(path)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	logger.Info("config loaded", "path", path)
	for _, w := range cfg.Warnings() {
		logger.Warn("config warning", "message", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := server.NewRunner(ctx, cfg, logger, server.WithVersion(version))
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() {
		if err := runner.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()

	return runner.Run(ctx)
}
