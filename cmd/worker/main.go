// Command worker runs the background task processor.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/calibra-qa/calibra/internal/app"
	"github.com/calibra-qa/calibra/internal/platform/db"
	"github.com/calibra-qa/calibra/jobs"
)

func main() {
	cfg, err := app.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	server := jobs.NewServer(cfg.RedisAddr, cfg.WorkerConcurrency, logger, pool)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		server.Shutdown()
	}()

	logger.Info("worker started", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := server.Run(); err != nil {
		logger.Error("worker", slog.Any("error", err))
		os.Exit(1)
	}
}
