// SmartTile Ops - Site Observation Agent
//
// This is the main entry point for the SmartTile ops agent. The agent
// maintains the real-time view of one SmartTile site:
//   - Direct WebSocket channel (typed envelopes) and MQTT-over-WebSocket
//     bridge channel, both self-healing
//   - Canonical device state cache reconciled from telemetry streams
//   - Optional native MQTT broker connection, SQLite change history,
//     InfluxDB telemetry recording, and a read-only status HTTP API
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/smarttile-ops/internal/backend"
	"github.com/nerrad567/smarttile-ops/internal/bridge"
	"github.com/nerrad567/smarttile-ops/internal/broker"
	"github.com/nerrad567/smarttile-ops/internal/command"
	"github.com/nerrad567/smarttile-ops/internal/devicestate"
	"github.com/nerrad567/smarttile-ops/internal/direct"
	"github.com/nerrad567/smarttile-ops/internal/history"
	"github.com/nerrad567/smarttile-ops/internal/infrastructure/config"
	"github.com/nerrad567/smarttile-ops/internal/infrastructure/influxdb"
	"github.com/nerrad567/smarttile-ops/internal/infrastructure/logging"
	"github.com/nerrad567/smarttile-ops/internal/ops"
	"github.com/nerrad567/smarttile-ops/internal/realtime"
	"github.com/nerrad567/smarttile-ops/internal/statusapi"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting SmartTile ops agent",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the local change history store (optional)
	var historyStore *history.Store
	if cfg.History.Enabled {
		historyStore, err = history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("opening history store: %w", err)
		}
		defer func() {
			log.Info("closing history store")
			if closeErr := historyStore.Close(); closeErr != nil {
				log.Error("error closing history store", "error", closeErr)
			}
		}()
		log.Info("history store opened", "path", cfg.History.Path)
	} else {
		log.Info("history store disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to the native MQTT broker (optional)
	var brokerClient *broker.Client
	if cfg.Broker.Enabled {
		brokerClient, err = broker.Connect(cfg.Broker)
		if err != nil {
			return fmt.Errorf("connecting to MQTT broker: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT broker")
			if closeErr := brokerClient.Close(); closeErr != nil {
				log.Error("error closing MQTT broker connection", "error", closeErr)
			}
		}()
		brokerClient.SetLogger(log)
		brokerClient.SetOnConnect(func() {
			log.Info("MQTT broker reconnected")
		})
		brokerClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT broker disconnected", "error", err)
		})
		log.Info("MQTT broker connected",
			"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
			"client_id", cfg.Broker.ClientID,
		)
	} else {
		log.Info("native MQTT broker disabled, relying on bridge channel")
	}

	// Build the channel clients. Connect happens inside the agent's Start
	// so stream handlers are registered before the first frame arrives.
	directClient := direct.NewClient(
		realtime.NewConn(cfg.Channels.DirectURL, cfg.Channels.Reconnect, log),
		log,
	)
	bridgeClient := bridge.NewClient(
		realtime.NewConn(cfg.Channels.BridgeURL, cfg.Channels.Reconnect, log),
		log,
	)

	// Backend REST client and command dispatcher
	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.GetRequestTimeout(), log)
	dispatcher := command.NewDispatcher(backendClient, bridgeClient, log)

	// Device state cache
	cache := devicestate.NewCache()
	cache.SetLogger(log)

	// Assemble and start the agent
	deps := ops.Deps{
		Config:   cfg,
		Logger:   log,
		Cache:    cache,
		Direct:   directClient,
		Bridge:   bridgeClient,
		Backend:  backendClient,
		Commands: dispatcher,
	}
	if brokerClient != nil {
		deps.Broker = brokerClient
	}
	if historyStore != nil {
		deps.History = historyStore
	}
	if influxClient != nil {
		deps.Influx = influxClient
	}

	agent, err := ops.New(deps)
	if err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}
	if err := agent.Start(ctx); err != nil {
		return fmt.Errorf("starting agent: %w", err)
	}
	defer func() {
		log.Info("stopping agent")
		if closeErr := agent.Close(); closeErr != nil {
			log.Error("error stopping agent", "error", closeErr)
		}
	}()
	log.Info("agent started",
		"direct_url", cfg.Channels.DirectURL,
		"bridge_url", cfg.Channels.BridgeURL,
	)

	// Start the read-only status API (optional)
	var statusServer *statusapi.Server
	if cfg.StatusAPI.Enabled {
		statusDeps := statusapi.Deps{
			Config:         cfg.StatusAPI,
			Logger:         log,
			Cache:          cache,
			Direct:         directClient,
			Bridge:         bridgeClient,
			BackendHealthy: agent.BackendHealthy,
			Version:        version,
		}
		if brokerClient != nil {
			statusDeps.Broker = brokerClient
		}
		if historyStore != nil {
			statusDeps.History = historyStore
		}

		statusServer, err = statusapi.New(statusDeps)
		if err != nil {
			return fmt.Errorf("creating status API: %w", err)
		}
		if err := statusServer.Start(ctx); err != nil {
			return fmt.Errorf("starting status API: %w", err)
		}
		defer func() {
			log.Info("stopping status API")
			if closeErr := statusServer.Close(); closeErr != nil {
				log.Error("error stopping status API", "error", closeErr)
			}
		}()
		log.Info("status API started",
			"host", cfg.StatusAPI.Host,
			"port", cfg.StatusAPI.Port,
		)
	} else {
		log.Info("status API disabled")
	}

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, brokerClient, influxClient, statusServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. Status API (if enabled)
	// 2. Agent (disconnects both channels)
	// 3. MQTT broker (if enabled)
	// 4. InfluxDB (if enabled)
	// 5. History store (if enabled)

	log.Info("SmartTile ops agent stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SMARTTILE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SMARTTILE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the optional infrastructure connections are
// healthy. The WebSocket channels are excluded deliberately: they
// self-heal and a cold backend must not abort startup.
func healthCheck(ctx context.Context, brokerClient *broker.Client, influxClient *influxdb.Client, statusServer *statusapi.Server) error {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if brokerClient != nil {
		if err := brokerClient.HealthCheck(checkCtx); err != nil {
			return fmt.Errorf("mqtt broker: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(checkCtx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if statusServer != nil {
		if err := statusServer.HealthCheck(checkCtx); err != nil {
			return fmt.Errorf("status api: %w", err)
		}
	}

	return nil
}
