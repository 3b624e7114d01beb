package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestInitLogger_Development(t *testing.T) {
	InitLogger(false)

	if Logger == nil {
		t.Error("Logger should not be nil after initialization")
	}
}

func TestInitLogger_Production(t *testing.T) {
	InitLogger(true)

	if Logger == nil {
		t.Error("Logger should not be nil after initialization")
	}
}

func TestInitLoggerWithLevel(t *testing.T) {
	InitLoggerWithLevel(false, slog.LevelDebug)

	if Logger == nil {
		t.Error("Logger should not be nil after initialization")
	}
}

func TestWithContext(t *testing.T) {
	Logger = nil // Reset
	ctx := context.Background()
	logger := WithContext(ctx)

	if logger == nil {
		t.Error("WithContext should not return nil")
	}
}

func TestLoggingFunctions(t *testing.T) {
	// Create a buffer to capture log output
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	Logger = slog.New(handler)

	t.Run("Info", func(t *testing.T) {
		buf.Reset()
		Info("test info message", "key", "value")
		if !strings.Contains(buf.String(), "test info message") {
			t.Error("Info should log the message")
		}
		if !strings.Contains(buf.String(), "key=value") {
			t.Error("Info should log the key-value pair")
		}
	})

	t.Run("Warn", func(t *testing.T) {
		buf.Reset()
		Warn("test warn message", "warning_key", "warning_value")
		if !strings.Contains(buf.String(), "test warn message") {
			t.Error("Warn should log the message")
		}
		if !strings.Contains(buf.String(), "WARN") {
			t.Error("Warn should log at WARN level")
		}
	})

	t.Run("Error", func(t *testing.T) {
		buf.Reset()
		Error("test error message", "error_key", "error_value")
		if !strings.Contains(buf.String(), "test error message") {
			t.Error("Error should log the message")
		}
		if !strings.Contains(buf.String(), "ERROR") {
			t.Error("Error should log at ERROR level")
		}
	})

	t.Run("Debug", func(t *testing.T) {
		buf.Reset()
		Debug("test debug message", "debug_key", "debug_value")
		if !strings.Contains(buf.String(), "test debug message") {
			t.Error("Debug should log the message")
		}
		if !strings.Contains(buf.String(), "DEBUG") {
			t.Error("Debug should log at DEBUG level")
		}
	})
}

func TestWithSymbol(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, nil)
	Logger = slog.New(handler)

	logger := WithSymbol("BTCUSD")
	logger.Info("test message")

	if !strings.Contains(buf.String(), "symbol=BTCUSD") {
		t.Error("WithSymbol should add symbol field to logger")
	}
}

func TestWithAccount(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, nil)
	Logger = slog.New(handler)

	logger := WithAccount("acct-1")
	logger.Info("test message")

	if !strings.Contains(buf.String(), "account_id=acct-1") {
		t.Error("WithAccount should add account_id field to logger")
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, nil)
	Logger = slog.New(handler)

	testErr := errors.New("test error")
	logger := WithError(testErr)
	logger.Info("test message")

	if !strings.Contains(buf.String(), "error=") {
		t.Error("WithError should add error field to logger")
	}
}

func TestLoggingWithNilLogger(t *testing.T) {
	// Test that functions handle nil Logger by initializing
	Logger = nil
	Info("test message") // Should not panic

	Logger = nil
	Warn("test message") // Should not panic

	Logger = nil
	Error("test message") // Should not panic

	Logger = nil
	Debug("test message") // Should not panic

	Logger = nil
	_ = WithSymbol("BTCUSD") // Should not panic

	Logger = nil
	_ = WithAccount("acct-1") // Should not panic

	Logger = nil
	_ = WithError(errors.New("test")) // Should not panic

	Logger = nil
	_ = WithContext(context.Background()) // Should not panic
}

func TestJSONFormat_Production(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	Logger = slog.New(handler)

	Info("test json message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, `"msg":"test json message"`) {
		t.Error("JSON handler should output JSON format")
	}
	if !strings.Contains(output, `"key":"value"`) {
		t.Error("JSON handler should include key-value pairs in JSON")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitLoggerWithOptions_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buying-power.log")

	InitLoggerWithOptions(LogOptions{Production: true, Level: "debug", File: path})
	Debug("written to file", "symbol", "BTCUSD")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"written to file"`) {
		t.Errorf("log file should contain the JSON record, got %q", string(data))
	}
}

func TestWithContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	Logger = slog.New(slog.NewTextHandler(&buf, nil))

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	WithContext(ctx).Info("evaluated")

	if !strings.Contains(buf.String(), "request_id=req-42") {
		t.Errorf("expected request_id in output, got %q", buf.String())
	}
}
