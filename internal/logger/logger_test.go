package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/logger"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := logger.ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewJSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, slog.LevelInfo, "prod")
	l.Debug("hidden")
	l.Info("shown", slog.String("terminal", "reader 0"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("prod output is not a single JSON line: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "shown" || entry["terminal"] != "reader 0" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestContextHelpers(t *testing.T) {
	if logger.ContextRequestLogger(context.Background()) != slog.Default() {
		t.Error("expected default logger outside a request")
	}
	// no-op without a request context
	logger.ContextWithLogAttrs(context.Background(), slog.String("a", "b"))

	l := slog.New(slog.DiscardHandler)
	ctx := logger.ContextWithLogger(context.Background(), l)
	if logger.ContextRequestLogger(ctx) != l {
		t.Error("request logger not returned")
	}

	logger.ContextWithLogAttrs(ctx, slog.String("remote_addr", "10.0.0.1"))
	logger.ContextWithLogAttrs(ctx, slog.Int("status", 400))
	attrs := logger.ContextLogAttrs(ctx)
	if len(attrs) != 2 || attrs[0].Key != "remote_addr" || attrs[1].Key != "status" {
		t.Errorf("ContextLogAttrs() = %v", attrs)
	}
}
