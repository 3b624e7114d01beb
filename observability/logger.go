package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger instance
var Logger *slog.Logger

// LogOptions configures the global logger
type LogOptions struct {
	Production bool   // JSON output instead of text
	Level      string // debug, info, warn or error
	File       string // optional rotated log file, written alongside stdout
}

// InitLogger initializes the global logger with the appropriate handler
// For production, use JSON format; for development, use text format
func InitLogger(production bool) {
	InitLoggerWithLevel(production, slog.LevelInfo)
}

// InitLoggerWithLevel initializes the logger with a specific log level
func InitLoggerWithLevel(production bool, level slog.Level) {
	Logger = slog.New(newHandler(os.Stdout, production, level))
	slog.SetDefault(Logger)
}

// InitLoggerWithOptions initializes the logger from LogOptions. When a file
// is given, output is duplicated to a size-rotated file.
func InitLoggerWithOptions(opts LogOptions) {
	var writer io.Writer = os.Stdout
	if opts.File != "" {
		writer = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	Logger = slog.New(newHandler(writer, opts.Production, ParseLevel(opts.Level)))
	slog.SetDefault(Logger)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info
func ParseLevel(level string) slog.Level {
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

func newHandler(w io.Writer, production bool, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
	}
	if production {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// WithContext returns a logger carrying the request ID stored in ctx, if any
func WithContext(ctx context.Context) *slog.Logger {
	if Logger == nil {
		InitLogger(false)
	}
	if id := middleware.GetReqID(ctx); id != "" {
		return Logger.With("request_id", id)
	}
	return Logger
}

// Info logs an info message
func Info(msg string, args ...any) {
	if Logger == nil {
		InitLogger(false)
	}
	Logger.Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	if Logger == nil {
		InitLogger(false)
	}
	Logger.Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	if Logger == nil {
		InitLogger(false)
	}
	Logger.Error(msg, args...)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	if Logger == nil {
		InitLogger(false)
	}
	Logger.Debug(msg, args...)
}

// Fatal logs an error message and exits
func Fatal(msg string, args ...any) {
	if Logger == nil {
		InitLogger(false)
	}
	Logger.Error(msg, args...)
	os.Exit(1)
}

// WithSymbol returns a logger with symbol field
func WithSymbol(symbol string) *slog.Logger {
	if Logger == nil {
		InitLogger(false)
	}
	return Logger.With("symbol", symbol)
}

// WithAccount returns a logger with account_id field
func WithAccount(accountID string) *slog.Logger {
	if Logger == nil {
		InitLogger(false)
	}
	return Logger.With("account_id", accountID)
}

// WithError returns a logger with error field
func WithError(err error) *slog.Logger {
	if Logger == nil {
		InitLogger(false)
	}
	return Logger.With("error", err)
}
