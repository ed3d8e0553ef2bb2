package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("SMARTTILE_CONFIG")
	defer os.Setenv("SMARTTILE_CONFIG", originalEnv)

	os.Setenv("SMARTTILE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidChannelURL verifies run fails when a channel URL does
// not pass config validation.
func TestRun_InvalidChannelURL(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
site:
  id: test-site

backend:
  base_url: "http://127.0.0.1:8000"
  request_timeout: 5

channels:
  direct_url: "http://not-a-websocket"
  bridge_url: "ws://127.0.0.1:8000/mqtt"
  reconnect:
    base_delay: 1
    max_attempts: 3

broker:
  enabled: false

history:
  enabled: false

influxdb:
  enabled: false

status_api:
  enabled: false

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("SMARTTILE_CONFIG")
	defer os.Setenv("SMARTTILE_CONFIG", originalEnv)
	os.Setenv("SMARTTILE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with a non-WebSocket direct URL")
	}
	if !strings.Contains(err.Error(), "config") {
		t.Logf("Got expected error: %v", err)
	}
}

// TestGetConfigPath verifies environment variable override behaviour.
func TestGetConfigPath(t *testing.T) {
	originalEnv := os.Getenv("SMARTTILE_CONFIG")
	defer os.Setenv("SMARTTILE_CONFIG", originalEnv)

	os.Setenv("SMARTTILE_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	os.Setenv("SMARTTILE_CONFIG", "/etc/smarttile/config.yaml")
	if got := getConfigPath(); got != "/etc/smarttile/config.yaml" {
		t.Errorf("getConfigPath() = %q, want override path", got)
	}
}
