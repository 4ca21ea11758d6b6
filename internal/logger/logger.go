package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/evanofslack/ddns-agent/internal/config"
	"github.com/lmittmann/tint"
)

// Bootstrap installs a human readable handler used until the config has
// been loaded.
func Bootstrap() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.DateTime,
	})))
}

func Configure(cfg config.Log) {
	slog.SetDefault(slog.New(newHandler(os.Stdout, cfg)))
}

func newHandler(w io.Writer, cfg config.Log) slog.Handler {
	level := parseLogLevel(cfg.Level)
	if cfg.Env == "dev" || cfg.Env == "development" {
		return tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
