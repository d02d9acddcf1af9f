package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"clubfines/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupLoggerHonoursLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Setenv("LOG_LEVEL", "warn")
	logger := SetupLogger()
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info enabled at warn level")
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("default logger not replaced")
	}
}

func TestOpenStore(t *testing.T) {
	cfg := &config.Config{
		DataBackend:   "csv",
		DataDir:       filepath.Join(t.TempDir(), "data"),
		NotifyBackend: "none",
	}
	result, bcfg, err := OpenStore(context.Background(), slog.Default(), cfg)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	if bcfg.Type != "csv" {
		t.Errorf("backend = %s", bcfg.Type)
	}
	if result.Cleanup == nil {
		t.Fatal("cleanup is nil")
	}
	if err := result.Cleanup(); err != nil {
		t.Errorf("Cleanup() error = %v", err)
	}

	cfg.DataBackend = "nope"
	if _, _, err := OpenStore(context.Background(), slog.Default(), cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}
