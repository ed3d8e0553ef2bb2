package devicestate

import (
	"sync"
	"time"
)

// Logger defines the logging interface used by the Cache.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NodeChangePolicy decides whether a node update is significant enough to
// notify observers. Insignificant updates still refresh liveness but stay
// silent, which keeps high-frequency telemetry from flooding downstream
// consumers with no-op refreshes.
type NodeChangePolicy func(old, updated *NodeRecord) bool

// DefaultNodeChangePolicy flags changes an operator can see on the
// dashboard: any RGBW channel, the temperature reading, or a transition to
// online. The field set is policy, not protocol; swap the function to widen
// or narrow it.
func DefaultNodeChangePolicy(old, updated *NodeRecord) bool {
	if old.RGBW != updated.RGBW {
		return true
	}
	if old.Temperature != updated.Temperature {
		return true
	}
	if old.Status != StatusOnline && updated.Status == StatusOnline {
		return true
	}
	return false
}

// Cache is the process-wide reconciling device store.
//
// Telemetry and status events from both channels merge into long-lived
// records keyed by entity id. Records are created lazily on first sighting
// and never deleted; readers get deep copies, so a snapshot is immune to
// later mutation. Observers receive exactly one Change per significant
// mutation, on the goroutine that performed the ingest.
//
// All public methods are thread-safe.
type Cache struct {
	mu       sync.RWMutex
	nodes    map[string]*NodeRecord
	coords   map[string]*CoordinatorRecord
	presence *presenceRing
	version  uint64

	obsMu     sync.RWMutex
	observers []func(Change)

	policy NodeChangePolicy
	logger Logger
}

// NewCache creates an empty cache with the default change policy.
func NewCache() *Cache {
	return &Cache{
		nodes:    make(map[string]*NodeRecord),
		coords:   make(map[string]*CoordinatorRecord),
		presence: newPresenceRing(presenceRingCapacity),
		policy:   DefaultNodeChangePolicy,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the cache.
func (c *Cache) SetLogger(logger Logger) {
	c.logger = logger
}

// SetNodeChangePolicy replaces the significance policy. Call before
// ingestion starts.
func (c *Cache) SetNodeChangePolicy(policy NodeChangePolicy) {
	if policy != nil {
		c.policy = policy
	}
}

// Subscribe registers an observer invoked once per significant change.
func (c *Cache) Subscribe(observer func(Change)) {
	c.obsMu.Lock()
	c.observers = append(c.observers, observer)
	c.obsMu.Unlock()
}

// Version returns a counter incremented on every significant change.
// Pollers can diff it instead of subscribing.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// IngestTelemetry normalizes one raw telemetry payload and merges it.
//
// An unseen entity gets a new online record. For a known entity the update
// is applied in place; when nothing significant changed only the liveness
// timestamp moves and observers are not notified.
func (c *Cache) IngestTelemetry(raw []byte) error {
	telemetry, err := Normalize(raw)
	if err != nil {
		return err
	}

	if telemetry.Coordinator != nil {
		c.mergeCoordinator(telemetry.Coordinator)
		return nil
	}
	c.mergeNode(telemetry.Node)
	return nil
}

// IngestStatusChange applies an entity connectivity transition.
//
// Status changes for entities the cache has never seen are dropped: without
// a record there is nothing for the dashboard to flip, and telemetry will
// create the record with fresh status soon enough if the entity is real.
func (c *Cache) IngestStatusChange(entityID, entityType string, status Status) {
	c.mu.Lock()

	switch entityType {
	case "node":
		node, ok := c.nodes[entityID]
		if !ok {
			c.mu.Unlock()
			c.logger.Debug("status change for unknown node dropped", "node_id", entityID)
			return
		}
		if node.Status == status {
			// Liveness-only update: refresh LastSeen, suppress notification.
			node.LastSeen = time.Now()
			c.mu.Unlock()
			return
		}
		node.Status = status
		node.LastSeen = time.Now()
		c.version++
		c.mu.Unlock()
		c.notify(Change{Kind: "node", ID: entityID})

	case "coordinator":
		coord, ok := c.coords[entityID]
		if !ok {
			c.mu.Unlock()
			c.logger.Debug("status change for unknown coordinator dropped", "coord_id", entityID)
			return
		}
		if coord.Status == status {
			coord.LastSeen = time.Now()
			c.mu.Unlock()
			return
		}
		coord.Status = status
		coord.LastSeen = time.Now()
		c.version++
		c.mu.Unlock()
		c.notify(Change{Kind: "coordinator", ID: entityID})

	default:
		c.mu.Unlock()
		c.logger.Warn("status change with unknown entity type dropped", "entity_type", entityType)
	}
}

// IngestPresence records one presence event in the bounded history.
func (c *Cache) IngestPresence(event PresenceEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	c.mu.Lock()
	c.presence.prepend(event)
	c.version++
	c.mu.Unlock()

	c.notify(Change{Kind: "presence", ID: event.ZoneID})
}

// Node returns a copy of the record for the given id.
func (c *Cache) Node(id string) (*NodeRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	node, ok := c.nodes[id]
	if !ok {
		return nil, false
	}
	return node.DeepCopy(), true
}

// Nodes returns copies of all node records.
func (c *Cache) Nodes() []NodeRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]NodeRecord, 0, len(c.nodes))
	for _, node := range c.nodes {
		out = append(out, *node.DeepCopy())
	}
	return out
}

// Coordinator returns a copy of the record for the given id.
func (c *Cache) Coordinator(id string) (*CoordinatorRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coord, ok := c.coords[id]
	if !ok {
		return nil, false
	}
	return coord.DeepCopy(), true
}

// Coordinators returns copies of all coordinator records.
func (c *Cache) Coordinators() []CoordinatorRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CoordinatorRecord, 0, len(c.coords))
	for _, coord := range c.coords {
		out = append(out, *coord.DeepCopy())
	}
	return out
}

// Presence returns the retained presence history, newest first.
func (c *Cache) Presence() []PresenceEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.presence.snapshot()
}

// SeedNode installs a record loaded from the backend, replacing any cached
// state for the id. Used at startup to prime the cache before live
// telemetry arrives.
func (c *Cache) SeedNode(record NodeRecord) {
	c.mu.Lock()
	c.nodes[record.ID] = record.DeepCopy()
	c.version++
	c.mu.Unlock()
	c.notify(Change{Kind: "node", ID: record.ID})
}

// SeedCoordinator installs a record loaded from the backend.
func (c *Cache) SeedCoordinator(record CoordinatorRecord) {
	c.mu.Lock()
	c.coords[record.ID] = record.DeepCopy()
	c.version++
	c.mu.Unlock()
	c.notify(Change{Kind: "coordinator", ID: record.ID})
}

// mergeNode applies one normalized node reading.
func (c *Cache) mergeNode(t *NodeTelemetry) {
	c.mu.Lock()

	existing, ok := c.nodes[t.NodeID]
	if !ok {
		record := &NodeRecord{
			ID:             t.NodeID,
			SiteID:         t.SiteID,
			Status:         StatusOnline,
			RGBW:           t.RGBW,
			Brightness:     t.Brightness,
			Temperature:    t.Temperature,
			BatteryVoltage: t.BatteryVoltage,
			BatteryPercent: t.BatteryPercent,
			LastSeen:       t.Timestamp,
		}
		c.nodes[t.NodeID] = record
		c.version++
		c.mu.Unlock()
		c.logger.Info("node discovered", "node_id", t.NodeID)
		c.notify(Change{Kind: "node", ID: t.NodeID})
		return
	}

	before := *existing

	existing.RGBW = t.RGBW
	existing.Brightness = t.Brightness
	existing.Temperature = t.Temperature
	existing.BatteryVoltage = t.BatteryVoltage
	existing.BatteryPercent = t.BatteryPercent
	existing.Status = StatusOnline
	existing.LastSeen = t.Timestamp
	if t.SiteID != "" {
		existing.SiteID = t.SiteID
	}

	if !c.policy(&before, existing) {
		c.mu.Unlock()
		c.logger.Debug("node telemetry deduplicated", "node_id", t.NodeID)
		return
	}

	c.version++
	c.mu.Unlock()
	c.notify(Change{Kind: "node", ID: t.NodeID})
}

// mergeCoordinator applies one normalized coordinator reading.
func (c *Cache) mergeCoordinator(t *CoordinatorTelemetry) {
	c.mu.Lock()

	existing, ok := c.coords[t.CoordID]
	if !ok {
		record := &CoordinatorRecord{
			ID:       t.CoordID,
			SiteID:   t.SiteID,
			Status:   StatusOnline,
			WifiRSSI: t.WifiRSSI,
			LightLux: t.LightLux,
			TempC:    t.TempC,
			HeapFree: t.HeapFree,
			Uptime:   t.Uptime,
			LastSeen: t.Timestamp,
		}
		c.coords[t.CoordID] = record
		c.version++
		c.mu.Unlock()
		c.logger.Info("coordinator discovered", "coord_id", t.CoordID)
		c.notify(Change{Kind: "coordinator", ID: t.CoordID})
		return
	}

	wasOffline := existing.Status != StatusOnline
	changed := existing.WifiRSSI != t.WifiRSSI ||
		existing.LightLux != t.LightLux ||
		existing.TempC != t.TempC ||
		wasOffline

	existing.WifiRSSI = t.WifiRSSI
	existing.LightLux = t.LightLux
	existing.TempC = t.TempC
	existing.HeapFree = t.HeapFree
	existing.Uptime = t.Uptime
	existing.Status = StatusOnline
	existing.LastSeen = t.Timestamp
	if t.SiteID != "" {
		existing.SiteID = t.SiteID
	}

	if !changed {
		c.mu.Unlock()
		c.logger.Debug("coordinator telemetry deduplicated", "coord_id", t.CoordID)
		return
	}

	c.version++
	c.mu.Unlock()
	c.notify(Change{Kind: "coordinator", ID: t.CoordID})
}

// notify fans a change out to all observers. Called without holding mu so
// observers can read back from the cache.
func (c *Cache) notify(change Change) {
	c.obsMu.RLock()
	observers := c.observers
	c.obsMu.RUnlock()
	for _, observer := range observers {
		observer(change)
	}
}
