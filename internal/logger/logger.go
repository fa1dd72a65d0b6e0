// Package logger provides structured logging for the conduit facade.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the global logger instance
var Logger *slog.Logger

// Init initializes a JSON logger on stdout with request and trace context support
func Init(level string) *slog.Logger {
	Logger = New(os.Stdout, level)
	slog.SetDefault(Logger)

	Logger.Info("Logger initialized", "level", parseLevel(level).String())

	return Logger
}

// New builds a JSON logger writing to w.
func New(w io.Writer, level string) *slog.Logger {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(NewTraceContextHandler(jsonHandler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
