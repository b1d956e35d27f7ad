// Command calibra runs the Calibra QA platform API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/calibra-qa/calibra/internal/access"
	"github.com/calibra-qa/calibra/internal/app"
	"github.com/calibra-qa/calibra/internal/audits"
	"github.com/calibra-qa/calibra/internal/auth"
	"github.com/calibra-qa/calibra/internal/observability"
	"github.com/calibra-qa/calibra/internal/platform/cache"
	"github.com/calibra-qa/calibra/internal/platform/db"
	"github.com/calibra-qa/calibra/internal/schedules"
	"github.com/calibra-qa/calibra/internal/scorecards"
	"github.com/calibra-qa/calibra/internal/shared"
	"github.com/calibra-qa/calibra/internal/users"
)

func main() {
	cfg, err := app.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()

	queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer queue.Close()

	secureCookies := cfg.IsProduction() && !app.TestMode()
	sessions := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, secureCookies)
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLog := shared.NewAuditLogger(pool)
	metrics := observability.New()

	accessRepo := access.NewRepository(pool)
	resolver := access.NewResolver(accessRepo, logger, access.WithCacheTTL(cfg.AccessCacheTTL))
	accessMW := access.Middleware{Resolver: resolver, Logger: logger, Recorder: metrics}

	userRepo := users.NewRepository(pool)
	userService := users.NewService(userRepo, logger, resolver, auditLog)

	auditRepo := audits.NewRepository(pool)
	auditService := audits.NewService(auditRepo, logger, auditLog)

	scheduleService := schedules.NewService(schedules.NewRepository(pool), queue, logger)

	handlers := app.Handlers{
		Auth:       auth.NewHandler(logger, userService, sessions, csrf),
		Access:     access.NewHandler(logger, resolver, accessRepo, auditLog, accessMW),
		Audits:     audits.NewHandler(logger, auditService),
		Users:      users.NewHandler(logger, userService),
		Scorecards: scorecards.NewHandler(logger, scorecards.NewRepository(pool)),
		Schedules:  schedules.NewHandler(logger, scheduleService),
	}

	router := app.NewRouter(cfg, logger, sessions, csrf, metrics, accessMW, handlers)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.HTTPAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}
