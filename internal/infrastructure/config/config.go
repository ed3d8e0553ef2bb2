package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the SmartTile ops agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Backend   BackendConfig   `yaml:"backend"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Broker    BrokerConfig    `yaml:"broker"`
	History   HistoryConfig   `yaml:"history"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	StatusAPI StatusAPIConfig `yaml:"status_api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig identifies the site this agent observes.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// BackendConfig contains the REST backend connection settings.
type BackendConfig struct {
	// BaseURL is the root of the backend API, e.g. "http://localhost:8000".
	BaseURL string `yaml:"base_url"`

	// RequestTimeout is the per-request timeout in seconds.
	RequestTimeout int `yaml:"request_timeout"`

	// HealthCheckInterval is the periodic health probe interval in seconds.
	HealthCheckInterval int `yaml:"health_check_interval"`
}

// ChannelsConfig contains the real-time channel endpoints and the shared
// reconnection policy applied to both of them.
type ChannelsConfig struct {
	// DirectURL is the typed-envelope WebSocket endpoint, e.g. "ws://localhost:8000/ws".
	DirectURL string `yaml:"direct_url"`

	// BridgeURL is the MQTT-over-WebSocket bridge endpoint, e.g. "ws://localhost:8000/mqtt".
	BridgeURL string `yaml:"bridge_url"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig contains reconnection settings for the WebSocket channels.
//
// Delay growth is linear and capped: attempt n waits BaseDelay*min(n,5)
// seconds. The dashboard and its operators depend on this timing; do not
// swap in an exponential schedule.
type ReconnectConfig struct {
	// BaseDelay is the reconnect delay unit in seconds.
	BaseDelay int `yaml:"base_delay"`

	// MaxAttempts is the attempt ceiling before the channel gives up.
	MaxAttempts int `yaml:"max_attempts"`
}

// BrokerConfig contains optional native MQTT broker settings.
//
// When enabled, the agent subscribes to the broker directly instead of
// tunnelling through the backend's WebSocket bridge. Deployments co-located
// with the broker prefer this path.
type BrokerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`
}

// HistoryConfig contains the local state-change audit trail settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// InfluxDBConfig contains InfluxDB connection settings for the telemetry recorder.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// StatusAPIConfig contains the read-only HTTP status surface settings.
type StatusAPIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SMARTTILE_SECTION_KEY
// For example: SMARTTILE_BACKEND_BASE_URL, SMARTTILE_CHANNELS_BRIDGE_URL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
//
// The channel and backend defaults mirror the backend's standard local
// deployment: REST and both WebSocket endpoints on port 8000.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site001",
			Name: "SmartTile",
		},
		Backend: BackendConfig{
			BaseURL:             "http://localhost:8000",
			RequestTimeout:      30,
			HealthCheckInterval: 30,
		},
		Channels: ChannelsConfig{
			DirectURL: "ws://localhost:8000/ws",
			BridgeURL: "ws://localhost:8000/mqtt",
			Reconnect: ReconnectConfig{
				BaseDelay:   5,
				MaxAttempts: 10,
			},
		},
		Broker: BrokerConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "smarttile-ops",
			QoS:      1,
		},
		History: HistoryConfig{
			Path: "./data/smarttile.db",
		},
		StatusAPI: StatusAPIConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SMARTTILE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Site
	if v := os.Getenv("SMARTTILE_SITE_ID"); v != "" {
		cfg.Site.ID = v
	}

	// Backend
	if v := os.Getenv("SMARTTILE_BACKEND_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}

	// Channels
	if v := os.Getenv("SMARTTILE_CHANNELS_DIRECT_URL"); v != "" {
		cfg.Channels.DirectURL = v
	}
	if v := os.Getenv("SMARTTILE_CHANNELS_BRIDGE_URL"); v != "" {
		cfg.Channels.BridgeURL = v
	}
	if v := os.Getenv("SMARTTILE_RECONNECT_BASE_DELAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Channels.Reconnect.BaseDelay = n
		}
	}
	if v := os.Getenv("SMARTTILE_RECONNECT_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Channels.Reconnect.MaxAttempts = n
		}
	}

	// Broker
	if v := os.Getenv("SMARTTILE_BROKER_HOST"); v != "" {
		cfg.Broker.Host = v
	}
	if v := os.Getenv("SMARTTILE_BROKER_USERNAME"); v != "" {
		cfg.Broker.Username = v
	}
	if v := os.Getenv("SMARTTILE_BROKER_PASSWORD"); v != "" {
		cfg.Broker.Password = v
	}

	// InfluxDB
	if v := os.Getenv("SMARTTILE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Backend.BaseURL == "" {
		errs = append(errs, "backend.base_url is required")
	}
	if c.Backend.RequestTimeout <= 0 {
		errs = append(errs, "backend.request_timeout must be positive")
	}

	if !strings.HasPrefix(c.Channels.DirectURL, "ws://") && !strings.HasPrefix(c.Channels.DirectURL, "wss://") {
		errs = append(errs, "channels.direct_url must be a ws:// or wss:// URL")
	}
	if !strings.HasPrefix(c.Channels.BridgeURL, "ws://") && !strings.HasPrefix(c.Channels.BridgeURL, "wss://") {
		errs = append(errs, "channels.bridge_url must be a ws:// or wss:// URL")
	}
	if c.Channels.Reconnect.BaseDelay <= 0 {
		errs = append(errs, "channels.reconnect.base_delay must be positive")
	}
	if c.Channels.Reconnect.MaxAttempts <= 0 {
		errs = append(errs, "channels.reconnect.max_attempts must be positive")
	}

	if c.Broker.QoS < 0 || c.Broker.QoS > 2 {
		errs = append(errs, "broker.qos must be 0, 1, or 2")
	}
	if c.Broker.Enabled && c.Broker.ClientID == "" {
		errs = append(errs, "broker.client_id is required when broker is enabled")
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}

	if c.StatusAPI.Enabled && (c.StatusAPI.Port < 1 || c.StatusAPI.Port > 65535) {
		errs = append(errs, "status_api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRequestTimeout returns the backend request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Backend.RequestTimeout) * time.Second
}

// GetHealthCheckInterval returns the backend health probe interval as a Duration.
func (c *Config) GetHealthCheckInterval() time.Duration {
	return time.Duration(c.Backend.HealthCheckInterval) * time.Second
}

// GetBaseDelay returns the reconnect delay unit as a Duration.
func (c *ReconnectConfig) GetBaseDelay() time.Duration {
	return time.Duration(c.BaseDelay) * time.Second
}
