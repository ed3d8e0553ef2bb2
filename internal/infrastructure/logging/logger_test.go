package logging

import (
	"log/slog"
	"testing"

	"github.com/nerrad567/smarttile-ops/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo}, // unrecognised defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	logger := New(config.LoggingConfig{
		Level:  "debug",
		Format: "text",
		Output: "stderr",
	}, "test")

	if logger == nil || logger.Logger == nil {
		t.Fatal("New() returned nil logger")
	}
	if !logger.Enabled(nil, slog.LevelDebug) {
		t.Error("debug level not enabled despite level=debug")
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	logger := New(config.LoggingConfig{
		Level:  "error",
		Format: "json",
		Output: "stdout",
	}, "test")

	if logger.Enabled(nil, slog.LevelInfo) {
		t.Error("info level enabled despite level=error")
	}
	if !logger.Enabled(nil, slog.LevelError) {
		t.Error("error level not enabled")
	}
}

func TestWith(t *testing.T) {
	base := Default()
	child := base.With("component", "bridge")

	if child == nil || child.Logger == nil {
		t.Fatal("With() returned nil logger")
	}
	if child == base {
		t.Error("With() returned the same logger instance")
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil {
		t.Fatal("Default() returned nil")
	}
	if logger.Enabled(nil, slog.LevelDebug) {
		t.Error("Default() should filter debug level")
	}
}
