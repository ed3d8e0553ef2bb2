// Package statusapi exposes a read-only HTTP surface over the observer's
// local state: channel connectivity, the device cache, presence history,
// and the SQLite change log.
//
// It intentionally carries no write endpoints; commands flow through the
// dispatcher, not this API.
//
// The server follows the same lifecycle pattern as the other components:
//
//	server, err := statusapi.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package statusapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/smarttile-ops/internal/devicestate"
	"github.com/nerrad567/smarttile-ops/internal/history"
	"github.com/nerrad567/smarttile-ops/internal/infrastructure/config"
	"github.com/nerrad567/smarttile-ops/internal/infrastructure/logging"
	"github.com/nerrad567/smarttile-ops/internal/realtime"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
)

// ChannelReporter reports the connection state of a realtime channel.
type ChannelReporter interface {
	State() realtime.State
}

// BrokerReporter reports MQTT broker connectivity.
type BrokerReporter interface {
	IsConnected() bool
}

// HistoryReader serves recorded state changes for an entity.
type HistoryReader interface {
	GetHistory(ctx context.Context, entityID string, limit int) ([]history.Entry, error)
}

// Deps holds the dependencies required by the status server.
type Deps struct {
	Config config.StatusAPIConfig
	Logger *logging.Logger
	Cache  *devicestate.Cache
	Direct ChannelReporter
	Bridge ChannelReporter

	// Broker is optional; nil when the MQTT relay is disabled.
	Broker BrokerReporter

	// History is optional; nil when local persistence is disabled.
	History HistoryReader

	// BackendHealthy reports the last known backend health probe result.
	// Optional; nil means the backend state is not surfaced.
	BackendHealthy func() bool

	Version string
}

// Server is the read-only status HTTP server.
type Server struct {
	cfg            config.StatusAPIConfig
	logger         *logging.Logger
	cache          *devicestate.Cache
	direct         ChannelReporter
	bridge         ChannelReporter
	broker         BrokerReporter
	historyStore   HistoryReader
	backendHealthy func() bool
	version        string
	server         *http.Server
}

// New creates a status server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("device cache is required")
	}
	if deps.Direct == nil || deps.Bridge == nil {
		return nil, fmt.Errorf("channel reporters are required")
	}

	return &Server{
		cfg:            deps.Config,
		logger:         deps.Logger,
		cache:          deps.Cache,
		direct:         deps.Direct,
		bridge:         deps.Bridge,
		broker:         deps.Broker,
		historyStore:   deps.History,
		backendHealthy: deps.BackendHealthy,
		version:        deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("status API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("status api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("status api server not started")
	}

	return nil
}
