package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. LOG_FORMAT picks the handler; the
// level follows the environment, info in production and debug elsewhere.
func NewLogger(cfg Config) *slog.Logger {
	level := slog.LevelDebug
	if cfg.IsProduction() {
		level = slog.LevelInfo
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With(slog.String("service", "calibra"))
}
