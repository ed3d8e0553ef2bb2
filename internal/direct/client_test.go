package direct

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nerrad567/smarttile-ops/internal/realtime"
)

// ============================================================================
// Test Helpers
// ============================================================================

type testLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *testLogger) Debug(msg string, args ...any) {}
func (l *testLogger) Info(msg string, args ...any)  {}
func (l *testLogger) Error(msg string, args ...any) {}

func (l *testLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *testLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	sent      []any
	onMessage func(data []byte)
}

func (f *fakeTransport) Connect()    { f.mu.Lock(); f.connected = true; f.mu.Unlock() }
func (f *fakeTransport) Disconnect() { f.mu.Lock(); f.connected = false; f.mu.Unlock() }

func (f *fakeTransport) Send(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return fmt.Errorf("not connected")
	}
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) State() realtime.State {
	return realtime.State{Connected: f.IsConnected()}
}

func (f *fakeTransport) SetOnMessage(callback func(data []byte)) {
	f.mu.Lock()
	f.onMessage = callback
	f.mu.Unlock()
}

func (f *fakeTransport) deliver(raw string) {
	f.mu.Lock()
	onMessage := f.onMessage
	f.mu.Unlock()
	onMessage([]byte(raw))
}

// ============================================================================
// Routing Tests
// ============================================================================

func TestTelemetryDeliveredRaw(t *testing.T) {
	ft := &fakeTransport{}
	c := NewClient(ft, &testLogger{})

	var got []byte
	c.SetHandlers(Handlers{Telemetry: func(payload []byte) { got = payload }})

	ft.deliver(`{"type":"telemetry","payload":{"nodeId":"n1","tempC":21.5,"vbatMv":3900}}`)

	if string(got) != `{"nodeId":"n1","tempC":21.5,"vbatMv":3900}` {
		t.Errorf("unexpected raw payload: %s", got)
	}
}

func TestPresenceRouting(t *testing.T) {
	ft := &fakeTransport{}
	c := NewClient(ft, &testLogger{})

	var got PresenceEvent
	c.SetHandlers(Handlers{Presence: func(event PresenceEvent) { got = event }})

	ft.deliver(`{"type":"presence","payload":{"zone_id":"z1","site_id":"s1","presence":true,"distance":1250}}`)

	if got.ZoneID != "z1" || got.SiteID != "s1" || !got.Presence {
		t.Errorf("unexpected presence event: %+v", got)
	}
	if got.Distance != 1250 {
		t.Errorf("distance: got %v, want 1250", got.Distance)
	}
}

func TestStatusRouting(t *testing.T) {
	ft := &fakeTransport{}
	c := NewClient(ft, &testLogger{})

	var got StatusChange
	c.SetHandlers(Handlers{Status: func(change StatusChange) { got = change }})

	ft.deliver(`{"type":"status","payload":{"entity_id":"n3","entity_type":"node","status":"offline"}}`)

	if got.EntityID != "n3" || got.EntityType != "node" || got.Status != "offline" {
		t.Errorf("unexpected status change: %+v", got)
	}
}

func TestPairingRouting(t *testing.T) {
	ft := &fakeTransport{}
	c := NewClient(ft, &testLogger{})

	var got PairingEvent
	c.SetHandlers(Handlers{Pairing: func(event PairingEvent) { got = event }})

	ft.deliver(`{"type":"pairing","payload":{"node_id":"n9","mac_address":"aa:bb:cc:dd:ee:ff","status":"requesting"}}`)

	if got.NodeID != "n9" || got.Status != "requesting" {
		t.Errorf("unexpected pairing event: %+v", got)
	}
}

func TestCommandAckRouting(t *testing.T) {
	ft := &fakeTransport{}
	c := NewClient(ft, &testLogger{})

	var got CommandAck
	c.SetHandlers(Handlers{CommandAck: func(ack CommandAck) { got = ack }})

	ft.deliver(`{"type":"command_ack","payload":{"command_id":"cmd-1","node_id":"n1","status":"applied"}}`)

	if got.CommandID != "cmd-1" || got.Status != "applied" {
		t.Errorf("unexpected ack: %+v", got)
	}
}

func TestServerErrorRouting(t *testing.T) {
	ft := &fakeTransport{}
	c := NewClient(ft, &testLogger{})

	var got ServerError
	c.SetHandlers(Handlers{Error: func(serverError ServerError) { got = serverError }})

	ft.deliver(`{"type":"error","payload":{"message":"site not found"}}`)
	if got.Message != "site not found" {
		t.Errorf("message: got %q", got.Message)
	}

	// An error envelope with no usable message gets a placeholder.
	ft.deliver(`{"type":"error","payload":{}}`)
	if got.Message != "unknown server error" {
		t.Errorf("placeholder message: got %q", got.Message)
	}
}

func TestCatchAllSeesEveryEnvelope(t *testing.T) {
	ft := &fakeTransport{}
	c := NewClient(ft, &testLogger{})

	var order []string
	c.SetHandlers(Handlers{
		Message:   func(envType string, _ []byte) { order = append(order, "raw:"+envType) },
		Telemetry: func([]byte) { order = append(order, "typed:telemetry") },
	})

	ft.deliver(`{"type":"telemetry","payload":{"nodeId":"n1"}}`)
	ft.deliver(`{"type":"firmware_news","payload":{"version":"2.0"}}`)

	want := []string{"raw:telemetry", "typed:telemetry", "raw:firmware_news"}
	if len(order) != len(want) {
		t.Fatalf("invocations = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("invocation %d = %q, want %q", i, order[i], want[i])
		}
	}
}

// ============================================================================
// Drop Behaviour Tests
// ============================================================================

func TestUnknownTypeDropped(t *testing.T) {
	ft := &fakeTransport{}
	logger := &testLogger{}
	c := NewClient(ft, logger)

	called := false
	c.SetHandlers(Handlers{
		Telemetry: func([]byte) { called = true },
		Presence:  func(PresenceEvent) { called = true },
	})

	ft.deliver(`{"type":"firmware_news","payload":{"version":"2.0"}}`)

	if called {
		t.Error("unknown envelope type reached a handler")
	}
	if logger.warnCount() != 1 {
		t.Errorf("expected 1 warning, got %d", logger.warnCount())
	}
}

func TestMalformedEnvelopeDropped(t *testing.T) {
	ft := &fakeTransport{}
	logger := &testLogger{}
	c := NewClient(ft, logger)

	var events []PresenceEvent
	c.SetHandlers(Handlers{Presence: func(event PresenceEvent) { events = append(events, event) }})

	ft.deliver(`{broken`)
	ft.deliver(`{"type":"presence","payload":"not an object"}`)
	ft.deliver(`{"type":"presence","payload":{"zone_id":"z1","site_id":"s1","presence":true}}`)

	// The stream survives the bad frames and the good one still routes.
	if len(events) != 1 {
		t.Fatalf("expected 1 routed event, got %d", len(events))
	}
	if logger.warnCount() != 2 {
		t.Errorf("expected 2 warnings, got %d", logger.warnCount())
	}
}

func TestNilHandlersSkipped(t *testing.T) {
	ft := &fakeTransport{}
	c := NewClient(ft, &testLogger{})
	c.SetHandlers(Handlers{})

	// Must not panic with no handlers registered.
	ft.deliver(`{"type":"telemetry","payload":{"nodeId":"n1"}}`)
	ft.deliver(`{"type":"status","payload":{"entity_id":"n1","entity_type":"node","status":"online"}}`)
}

func TestDecodeFailuresSurfaceOnErrorCallback(t *testing.T) {
	ft := &fakeTransport{}
	c := NewClient(ft, &testLogger{})

	var got []error
	c.SetOnError(func(err error) { got = append(got, err) })
	c.SetHandlers(Handlers{Presence: func(PresenceEvent) {}})

	ft.deliver(`{broken`)
	ft.deliver(`{"type":"presence","payload":"not an object"}`)
	ft.deliver(`{"type":"presence","payload":{"zone_id":"z1","presence":true}}`)

	if len(got) != 2 {
		t.Fatalf("error callbacks = %d, want 2", len(got))
	}
	for i, err := range got {
		if !errors.Is(err, ErrMalformedEnvelope) {
			t.Errorf("error %d = %v, want ErrMalformedEnvelope", i, err)
		}
	}
}
