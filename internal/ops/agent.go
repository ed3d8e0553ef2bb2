// Package ops wires the realtime channels, device cache, command
// dispatcher and recorders into one running agent.
//
// The agent owns the data flow: inbound frames from the direct and
// bridge channels feed the cache, significant cache changes fan out to
// the SQLite history store and the InfluxDB recorder, and a periodic
// loop probes the backend's health endpoint.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/smarttile-ops/internal/backend"
	"github.com/nerrad567/smarttile-ops/internal/bridge"
	"github.com/nerrad567/smarttile-ops/internal/broker"
	"github.com/nerrad567/smarttile-ops/internal/command"
	"github.com/nerrad567/smarttile-ops/internal/devicestate"
	"github.com/nerrad567/smarttile-ops/internal/direct"
	"github.com/nerrad567/smarttile-ops/internal/history"
	"github.com/nerrad567/smarttile-ops/internal/infrastructure/config"
	"github.com/nerrad567/smarttile-ops/internal/infrastructure/logging"
	"github.com/nerrad567/smarttile-ops/internal/realtime"
)

// connectionPollInterval drives the channel state transition log.
const connectionPollInterval = 1 * time.Second

// Fallbacks when the config carries no values.
const (
	defaultHealthInterval = 30 * time.Second
	defaultProbeTimeout   = 10 * time.Second
)

// backendAPI is the backend surface the agent uses for seeding and
// health probes. Satisfied by *backend.Client.
type backendAPI interface {
	Health(ctx context.Context) (*backend.HealthStatus, error)
	Sites(ctx context.Context) ([]backend.Site, error)
	Coordinator(ctx context.Context, id string) (*backend.Coordinator, error)
}

// channelClient is the shared surface of the direct and bridge clients.
type channelClient interface {
	Connect()
	Disconnect()
	IsConnected() bool
	State() realtime.State
}

// brokerSubscriber is the native MQTT surface the agent uses. Satisfied
// by *broker.Client.
type brokerSubscriber interface {
	Subscribe(topic string, handler broker.MessageHandler) error
}

// historyRecorder persists state change snapshots. Satisfied by
// *history.Store.
type historyRecorder interface {
	RecordChange(ctx context.Context, entityID, kind string, state any, source string) error
}

// telemetrySink mirrors cache changes into a time-series store.
// Satisfied by *influxdb.Client.
type telemetrySink interface {
	WriteNodeTelemetry(siteID, nodeID string, fields map[string]interface{}, timestamp time.Time)
	WriteCoordinatorTelemetry(siteID, coordinatorID string, fields map[string]interface{}, timestamp time.Time)
	WritePresence(siteID, zoneID string, present bool, distance float64, timestamp time.Time)
}

// Deps holds the components the agent wires together.
type Deps struct {
	Config *config.Config
	Logger *logging.Logger
	Cache  *devicestate.Cache
	Direct *direct.Client
	Bridge *bridge.Client

	Backend backendAPI

	// Commands is optional; when set the agent exposes the outbound
	// command path alongside its observation pipeline.
	Commands *command.Dispatcher

	// Broker is optional: a native MQTT connection used alongside (or
	// instead of) the WebSocket bridge when the broker is reachable
	// directly. Streams fold into the same cache.
	Broker brokerSubscriber

	// History is optional; nil disables the SQLite change log.
	History historyRecorder

	// Influx is optional; nil disables time-series recording.
	Influx telemetrySink
}

// Agent runs the observation pipeline for one site.
type Agent struct {
	cfg      *config.Config
	logger   *logging.Logger
	cache    *devicestate.Cache
	direct   *direct.Client
	bridge   *bridge.Client
	backend  backendAPI
	commands *command.Dispatcher
	broker   brokerSubscriber
	history  historyRecorder
	influx   telemetrySink

	// ingestMu serialises cache writes so the change observer can
	// attribute each notification to the channel that caused it.
	ingestMu sync.Mutex
	source   string

	backendHealthy atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an agent. History and Influx may be nil.
func New(deps Deps) (*Agent, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("device cache is required")
	}
	if deps.Direct == nil || deps.Bridge == nil {
		return nil, fmt.Errorf("channel clients are required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend client is required")
	}

	return &Agent{
		cfg:      deps.Config,
		logger:   deps.Logger,
		cache:    deps.Cache,
		direct:   deps.Direct,
		bridge:   deps.Bridge,
		backend:  deps.Backend,
		commands: deps.Commands,
		broker:   deps.Broker,
		history:  deps.History,
		influx:   deps.Influx,
	}, nil
}

// Start wires the streams, connects both channels, seeds the cache from
// the backend, and launches the background loops. Seeding failures are
// logged, not fatal: the cache fills lazily from telemetry either way.
func (a *Agent) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cache.Subscribe(a.handleChange)
	a.wireDirect()
	if err := a.wireBridge(); err != nil {
		cancel()
		return fmt.Errorf("subscribing bridge patterns: %w", err)
	}
	if a.broker != nil {
		if err := a.wireBroker(); err != nil {
			cancel()
			return fmt.Errorf("subscribing broker topics: %w", err)
		}
	}

	a.direct.Connect()
	a.bridge.Connect()

	if err := a.seed(runCtx); err != nil {
		a.logger.Warn("backend seeding failed, cache will fill from telemetry", "error", err)
	}

	a.probeBackend(runCtx)

	a.wg.Add(2)
	go a.healthLoop(runCtx)
	go a.connectionLoop(runCtx)

	return nil
}

// Close stops the background loops and disconnects both channels.
func (a *Agent) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	a.bridge.Disconnect()
	a.direct.Disconnect()
	return nil
}

// BackendHealthy reports the last backend health probe result.
func (a *Agent) BackendHealthy() bool {
	return a.backendHealthy.Load()
}

// ErrCommandsDisabled is returned by the command methods when the agent
// was built without a dispatcher.
var ErrCommandsDisabled = errors.New("command dispatch is disabled")

// SetLight applies a light command to a node.
func (a *Agent) SetLight(ctx context.Context, cmd backend.SetLightCommand) error {
	if a.commands == nil {
		return ErrCommandsDisabled
	}
	return a.commands.SetLight(ctx, cmd)
}

// TurnOff switches a node's light off.
func (a *Agent) TurnOff(ctx context.Context, siteID, nodeID string) error {
	if a.commands == nil {
		return ErrCommandsDisabled
	}
	return a.commands.TurnOff(ctx, siteID, nodeID)
}

// SetColorProfile applies a colour calibration profile to a node.
func (a *Agent) SetColorProfile(ctx context.Context, cmd backend.ColorProfileCommand) error {
	if a.commands == nil {
		return ErrCommandsDisabled
	}
	return a.commands.SetColorProfile(ctx, cmd)
}

// ApprovePairing accepts or rejects a node pairing request.
func (a *Agent) ApprovePairing(ctx context.Context, approval backend.PairingApproval) error {
	if a.commands == nil {
		return ErrCommandsDisabled
	}
	return a.commands.ApprovePairing(ctx, approval)
}

// ingest serialises one cache write and tags it with its source channel
// for the change observer.
func (a *Agent) ingest(source string, fn func()) {
	a.ingestMu.Lock()
	defer a.ingestMu.Unlock()
	a.source = source
	fn()
}

// ============================================================
// Direct channel wiring
// ============================================================

func (a *Agent) wireDirect() {
	a.direct.SetHandlers(direct.Handlers{
		Telemetry: func(payload []byte) {
			a.ingest(history.SourceDirect, func() {
				if err := a.cache.IngestTelemetry(payload); err != nil {
					a.logger.Warn("direct telemetry dropped", "error", err)
				}
			})
		},
		Presence: func(event direct.PresenceEvent) {
			a.ingest(history.SourceDirect, func() {
				a.cache.IngestPresence(devicestate.PresenceEvent{
					ZoneID:    event.ZoneID,
					SiteID:    event.SiteID,
					Presence:  event.Presence,
					Distance:  event.Distance,
					Timestamp: event.Timestamp,
				})
			})
		},
		Status: func(change direct.StatusChange) {
			a.ingest(history.SourceDirect, func() {
				a.cache.IngestStatusChange(change.EntityID, change.EntityType, devicestate.Status(change.Status))
			})
		},
		Pairing: func(event direct.PairingEvent) {
			a.logger.Info("pairing event",
				"node_id", event.NodeID, "mac", event.MACAddress, "status", event.Status)
		},
		CommandAck: func(ack direct.CommandAck) {
			a.logger.Debug("command acknowledged",
				"command_id", ack.CommandID, "node_id", ack.NodeID, "status", ack.Status)
		},
		Error: func(serverError direct.ServerError) {
			a.logger.Error("backend error event", "message", serverError.Message)
		},
	})
}

// ============================================================
// Bridge channel wiring
// ============================================================

// statusPayload is the body of a status topic message.
type statusPayload struct {
	Status string `json:"status"`
}

// presencePayload is the body of presence and mmWave topic messages.
// Timestamp is epoch milliseconds.
type presencePayload struct {
	ZoneID    string  `json:"zone_id"`
	SiteID    string  `json:"site_id"`
	Presence  bool    `json:"presence"`
	Distance  float64 `json:"distance"`
	Timestamp int64   `json:"timestamp"`
}

// sitePatterns enumerates the streams folded from a pub/sub channel,
// shared by the WebSocket bridge and the native broker connection.
func (a *Agent) sitePatterns(source string) []struct {
	pattern string
	handler bridge.MessageHandler
} {
	site := a.cfg.Site.ID

	telemetry := func(msg bridge.Message) error { return a.foldTelemetry(msg, source) }
	status := func(msg bridge.Message) error { return a.foldStatus(msg, source) }
	presence := func(msg bridge.Message) error { return a.foldPresence(msg, "presence", source) }
	mmwave := func(msg bridge.Message) error { return a.foldPresence(msg, "mmwave", source) }

	return []struct {
		pattern string
		handler bridge.MessageHandler
	}{
		{bridge.AllNodeTelemetry(site), telemetry},
		{bridge.AllCoordTelemetry(site), telemetry},
		{bridge.AllNodeStatus(site), status},
		{bridge.AllCoordStatus(site), status},
		{bridge.AllZonePresence(site), presence},
		{bridge.AllCoordMmwave(site), mmwave},
		{bridge.AllNodePairing(site), a.handlePairingTopic},
	}
}

func (a *Agent) wireBridge() error {
	for _, sub := range a.sitePatterns(history.SourceBridge) {
		if err := a.bridge.Subscribe(sub.pattern, sub.handler); err != nil {
			return fmt.Errorf("pattern %q: %w", sub.pattern, err)
		}
	}
	return nil
}

// wireBroker subscribes the same site streams natively on the MQTT
// broker, bypassing the WebSocket bridge.
func (a *Agent) wireBroker() error {
	for _, sub := range a.sitePatterns(history.SourceBroker) {
		handler := sub.handler
		err := a.broker.Subscribe(sub.pattern, func(topic string, payload []byte) error {
			return handler(bridge.Message{Topic: topic, Payload: payload, Timestamp: time.Now()})
		})
		if err != nil {
			return fmt.Errorf("topic %q: %w", sub.pattern, err)
		}
	}
	return nil
}

func (a *Agent) foldTelemetry(msg bridge.Message, source string) error {
	a.ingest(source, func() {
		if err := a.cache.IngestTelemetry(msg.Payload); err != nil {
			a.logger.Warn("telemetry dropped", "topic", msg.Topic, "error", err)
		}
	})
	return nil
}

// foldStatus folds a status topic message into the cache. The entity
// identity comes from the topic: site/{s}/{node|coord}/{id}/status.
func (a *Agent) foldStatus(msg bridge.Message, source string) error {
	entityType, entityID, ok := parseEntityTopic(msg.Topic)
	if !ok {
		a.logger.Warn("unparseable status topic", "topic", msg.Topic)
		return nil
	}

	var payload statusPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		a.logger.Warn("malformed status payload", "topic", msg.Topic, "error", err)
		return nil
	}

	a.ingest(source, func() {
		a.cache.IngestStatusChange(entityID, entityType, devicestate.Status(payload.Status))
	})
	return nil
}

// foldPresence folds zone presence and coordinator mmWave frames into
// the presence ring. The coordinator tags each mmWave frame with the
// zone it maps to; frames without a zone are dropped.
func (a *Agent) foldPresence(msg bridge.Message, kind string, source string) error {
	var payload presencePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		a.logger.Warn("malformed presence payload", "kind", kind, "topic", msg.Topic, "error", err)
		return nil
	}

	zoneID := payload.ZoneID
	siteID := payload.SiteID
	if zoneID == "" {
		// Zone presence topics carry the zone in the topic itself.
		if entityType, id, ok := parseEntityTopic(msg.Topic); ok && entityType == "zone" {
			zoneID = id
		}
	}
	if siteID == "" {
		siteID = a.cfg.Site.ID
	}
	if zoneID == "" {
		a.logger.Warn("presence frame without zone dropped", "kind", kind, "topic", msg.Topic)
		return nil
	}

	timestamp := msg.Timestamp
	if payload.Timestamp > 0 {
		timestamp = time.UnixMilli(payload.Timestamp)
	}

	a.ingest(source, func() {
		a.cache.IngestPresence(devicestate.PresenceEvent{
			ZoneID:    zoneID,
			SiteID:    siteID,
			Presence:  payload.Presence,
			Distance:  payload.Distance,
			Timestamp: timestamp,
		})
	})
	return nil
}

func (a *Agent) handlePairingTopic(msg bridge.Message) error {
	_, nodeID, _ := parseEntityTopic(msg.Topic)
	a.logger.Info("pairing request observed", "node_id", nodeID, "topic", msg.Topic)
	return nil
}

// parseEntityTopic extracts the entity type and id from a
// site/{s}/{type}/{id}/{leaf} topic.
func parseEntityTopic(topic string) (entityType, entityID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 5 || parts[0] != "site" {
		return "", "", false
	}
	entityType = parts[2]
	if entityType == "coord" {
		entityType = "coordinator"
	}
	return entityType, parts[3], true
}

// ============================================================
// Change fan-out
// ============================================================

// handleChange mirrors one significant cache change into the recorders.
// Runs synchronously inside the ingest call, so a.source is stable.
func (a *Agent) handleChange(change devicestate.Change) {
	source := a.source
	if source == "" {
		source = history.SourceCommand
	}

	switch change.Kind {
	case "node":
		node, found := a.cache.Node(change.ID)
		if !found {
			return
		}
		a.record(change.ID, change.Kind, node, source)
		if a.influx != nil {
			a.influx.WriteNodeTelemetry(node.SiteID, node.ID, map[string]interface{}{
				"brightness":      node.Brightness,
				"temperature_c":   node.Temperature,
				"battery_voltage": node.BatteryVoltage,
				"battery_percent": node.BatteryPercent,
				"online":          node.Status == devicestate.StatusOnline,
			}, node.LastSeen)
		}

	case "coordinator":
		coordinator, found := a.cache.Coordinator(change.ID)
		if !found {
			return
		}
		a.record(change.ID, change.Kind, coordinator, source)
		if a.influx != nil {
			a.influx.WriteCoordinatorTelemetry(coordinator.SiteID, coordinator.ID, map[string]interface{}{
				"wifi_rssi": coordinator.WifiRSSI,
				"light_lux": coordinator.LightLux,
				"temp_c":    coordinator.TempC,
				"heap_free": coordinator.HeapFree,
				"online":    coordinator.Status == devicestate.StatusOnline,
			}, coordinator.LastSeen)
		}

	case "presence":
		if a.influx == nil {
			return
		}
		events := a.cache.Presence()
		if len(events) == 0 {
			return
		}
		latest := events[0]
		a.influx.WritePresence(latest.SiteID, latest.ZoneID, latest.Presence, latest.Distance, latest.Timestamp)
	}
}

func (a *Agent) record(entityID, kind string, state any, source string) {
	if a.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.history.RecordChange(ctx, entityID, kind, state, source); err != nil {
		a.logger.Error("history record failed", "entity_id", entityID, "error", err)
	}
}

// ============================================================
// Backend seeding and health
// ============================================================

// seed primes the cache with the backend's current coordinator records.
// Node records are discovered lazily from telemetry; the backend exposes
// no per-site node listing.
func (a *Agent) seed(ctx context.Context) error {
	sites, err := a.backend.Sites(ctx)
	if err != nil {
		return fmt.Errorf("listing sites: %w", err)
	}

	seeded := 0
	for _, site := range sites {
		if a.cfg.Site.ID != "" && site.ID != a.cfg.Site.ID {
			continue
		}
		for _, coordinatorID := range site.Coordinators {
			coordinator, err := a.backend.Coordinator(ctx, coordinatorID)
			if err != nil {
				a.logger.Warn("coordinator seed failed", "coordinator_id", coordinatorID, "error", err)
				continue
			}
			a.ingest(history.SourceCommand, func() {
				a.cache.SeedCoordinator(devicestate.CoordinatorRecord{
					ID:       coordinator.CoordID,
					SiteID:   coordinator.SiteID,
					Status:   devicestate.Status(coordinator.Status),
					WifiRSSI: coordinator.WifiRSSI,
					LightLux: coordinator.LightLux,
					TempC:    coordinator.TempC,
					HeapFree: coordinator.HeapFree,
					Uptime:   coordinator.Uptime,
					LastSeen: coordinator.LastSeen,
				})
			})
			seeded++
		}
	}

	a.logger.Info("cache seeded from backend", "coordinators", seeded)
	return nil
}

// healthLoop probes the backend health endpoint periodically.
func (a *Agent) healthLoop(ctx context.Context) {
	defer a.wg.Done()

	interval := a.cfg.GetHealthCheckInterval()
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.probeBackend(ctx)
		}
	}
}

func (a *Agent) probeBackend(ctx context.Context) {
	timeout := a.cfg.GetRequestTimeout()
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := a.backend.Health(probeCtx)
	healthy := err == nil

	was := a.backendHealthy.Swap(healthy)
	if healthy != was {
		if healthy {
			a.logger.Info("backend healthy")
		} else {
			a.logger.Warn("backend unhealthy", "error", err)
		}
	}
}

// connectionLoop logs channel state transitions.
func (a *Agent) connectionLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(connectionPollInterval)
	defer ticker.Stop()

	var directUp, bridgeUp bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			directUp = a.logTransition("direct", a.direct, directUp)
			bridgeUp = a.logTransition("bridge", a.bridge, bridgeUp)
		}
	}
}

func (a *Agent) logTransition(name string, ch channelClient, wasUp bool) bool {
	state := ch.State()
	if state.Connected == wasUp {
		return wasUp
	}

	if state.Connected {
		a.logger.Info("channel connected", "channel", name)
	} else {
		a.logger.Warn("channel disconnected",
			"channel", name,
			"last_error", state.LastError,
			"reconnect_attempts", state.ReconnectAttempts,
		)
	}
	return state.Connected
}
