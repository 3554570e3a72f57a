package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies that parseLogLevel correctly parses log level
// strings from environment variables, handling case-insensitivity and whitespace.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		env    string
		expect zapcore.Level
	}{
		{"", zap.InfoLevel},
		{"INFO", zap.InfoLevel},
		{"DEBUG", zap.DebugLevel},
		{"WARN", zap.WarnLevel},
		{"ERROR", zap.ErrorLevel},
		{"debug", zap.DebugLevel},
		{"  warn  ", zap.WarnLevel},
		{"invalid", zap.InfoLevel},
	}
	for _, tt := range tests {
		level := parseLogLevel(tt.env)
		if got := level.Level(); got != tt.expect {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.env, got, tt.expect)
		}
	}
}

func TestNewLogger(t *testing.T) {
	t.Setenv("LOG_FORMAT", "console")
	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger == nil {
		t.Fatal("NewLogger() returned nil logger")
	}
	logger.Info("test message")
	_ = FlushTelemetry(logger) // best-effort; can fail on /dev/stderr in test env
}

func TestLoggerFromContext(t *testing.T) {
	if got := LoggerFromContext(context.Background()); got == nil {
		t.Fatal("LoggerFromContext() on empty context returned nil, want no-op logger")
	}

	core, logs := observer.New(zap.DebugLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))
	LoggerFromContext(ctx).Info("hello")
	if logs.Len() != 1 {
		t.Fatalf("observed %d logs, want 1", logs.Len())
	}
}

func TestCorrelationIDFromContext(t *testing.T) {
	if got := CorrelationIDFromContext(context.Background()); got != "" {
		t.Errorf("CorrelationIDFromContext(empty) = %q, want empty", got)
	}
	ctx := ContextWithCorrelationID(context.Background(), "abc-123")
	if got := CorrelationIDFromContext(ctx); got != "abc-123" {
		t.Errorf("CorrelationIDFromContext() = %q, want abc-123", got)
	}
}

func TestFlushTelemetry_NilLogger(t *testing.T) {
	if err := FlushTelemetry(nil); err != nil {
		t.Errorf("FlushTelemetry(nil) error = %v, want nil", err)
	}
}
