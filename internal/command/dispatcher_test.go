package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/smarttile-ops/internal/backend"
)

// ============================================================================
// Test Helpers
// ============================================================================

type testLogger struct{}

func (testLogger) Debug(msg string, args ...any) {}
func (testLogger) Info(msg string, args ...any)  {}
func (testLogger) Warn(msg string, args ...any)  {}
func (testLogger) Error(msg string, args ...any) {}

type fakeREST struct {
	lightErr   error
	profileErr error
	pairingErr error

	lights    []backend.SetLightCommand
	profiles  []backend.ColorProfileCommand
	approvals []backend.PairingApproval
}

func (f *fakeREST) SetLight(ctx context.Context, cmd backend.SetLightCommand) error {
	if f.lightErr != nil {
		return f.lightErr
	}
	f.lights = append(f.lights, cmd)
	return nil
}

func (f *fakeREST) SetColorProfile(ctx context.Context, cmd backend.ColorProfileCommand) error {
	if f.profileErr != nil {
		return f.profileErr
	}
	f.profiles = append(f.profiles, cmd)
	return nil
}

func (f *fakeREST) ApprovePairing(ctx context.Context, approval backend.PairingApproval) error {
	if f.pairingErr != nil {
		return f.pairingErr
	}
	f.approvals = append(f.approvals, approval)
	return nil
}

type published struct {
	topic   string
	payload any
	qos     byte
}

type fakeBridge struct {
	mu         sync.Mutex
	connected  bool
	publishErr error
	publishes  []published
}

func (f *fakeBridge) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeBridge) Publish(topic string, payload any, qos byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.publishes = append(f.publishes, published{topic: topic, payload: payload, qos: qos})
	return nil
}

// ============================================================================
// SetLight Tests
// ============================================================================

func TestSetLightRESTAndPublish(t *testing.T) {
	rest := &fakeREST{}
	br := &fakeBridge{connected: true}
	d := NewDispatcher(rest, br, testLogger{})

	brightness := 70
	err := d.SetLight(context.Background(), backend.SetLightCommand{
		NodeID:     "n1",
		SiteID:     "s1",
		RGBW:       &backend.RGBW{R: 255, G: 120},
		Brightness: &brightness,
	})
	if err != nil {
		t.Fatalf("SetLight failed: %v", err)
	}

	if len(rest.lights) != 1 {
		t.Fatalf("expected 1 REST call, got %d", len(rest.lights))
	}
	if rest.lights[0].FadeDuration != defaultFadeMs {
		t.Errorf("fade default: got %d, want %d", rest.lights[0].FadeDuration, defaultFadeMs)
	}

	if len(br.publishes) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(br.publishes))
	}
	if br.publishes[0].topic != "site/s1/node/n1/cmd" {
		t.Errorf("publish topic: %s", br.publishes[0].topic)
	}
	if br.publishes[0].qos != commandQoS {
		t.Errorf("publish qos: got %d, want %d", br.publishes[0].qos, commandQoS)
	}
	payload := br.publishes[0].payload.(map[string]any)
	if payload["type"] != "set_light" {
		t.Errorf("payload type: %v", payload["type"])
	}
	if payload["command_id"] == "" {
		t.Error("expected command_id in payload")
	}
}

func TestSetLightRESTFailurePropagatesAndSkipsPublish(t *testing.T) {
	restErr := errors.New("backend down")
	rest := &fakeREST{lightErr: restErr}
	br := &fakeBridge{connected: true}
	d := NewDispatcher(rest, br, testLogger{})

	err := d.SetLight(context.Background(), backend.SetLightCommand{NodeID: "n1", SiteID: "s1"})
	if !errors.Is(err, restErr) {
		t.Errorf("expected REST error to propagate, got %v", err)
	}
	if len(br.publishes) != 0 {
		t.Error("expected no publish after REST failure")
	}
}

func TestSetLightPublishFailureSwallowed(t *testing.T) {
	rest := &fakeREST{}
	br := &fakeBridge{connected: true, publishErr: errors.New("socket gone")}
	d := NewDispatcher(rest, br, testLogger{})

	if err := d.SetLight(context.Background(), backend.SetLightCommand{NodeID: "n1", SiteID: "s1"}); err != nil {
		t.Errorf("publish failure must not surface, got %v", err)
	}
}

func TestSetLightSkipsPublishWhenBridgeDown(t *testing.T) {
	rest := &fakeREST{}
	br := &fakeBridge{connected: false}
	d := NewDispatcher(rest, br, testLogger{})

	if err := d.SetLight(context.Background(), backend.SetLightCommand{NodeID: "n1", SiteID: "s1"}); err != nil {
		t.Fatalf("SetLight failed: %v", err)
	}
	if len(br.publishes) != 0 {
		t.Error("expected no publish while disconnected")
	}
	if len(rest.lights) != 1 {
		t.Error("REST call must still happen")
	}
}

func TestSetLightNilBridge(t *testing.T) {
	rest := &fakeREST{}
	d := NewDispatcher(rest, nil, testLogger{})

	if err := d.SetLight(context.Background(), backend.SetLightCommand{NodeID: "n1", SiteID: "s1"}); err != nil {
		t.Errorf("nil bridge must mean REST-only, got %v", err)
	}
}

func TestTurnOff(t *testing.T) {
	rest := &fakeREST{}
	br := &fakeBridge{connected: true}
	d := NewDispatcher(rest, br, testLogger{})

	if err := d.TurnOff(context.Background(), "s1", "n1"); err != nil {
		t.Fatalf("TurnOff failed: %v", err)
	}
	cmd := rest.lights[0]
	if *cmd.RGBW != (backend.RGBW{}) || *cmd.Brightness != 0 {
		t.Errorf("expected all-zero light command, got %+v", cmd)
	}
}

// ============================================================================
// Other Command Tests
// ============================================================================

func TestSetColorProfile(t *testing.T) {
	rest := &fakeREST{}
	br := &fakeBridge{connected: true}
	d := NewDispatcher(rest, br, testLogger{})

	err := d.SetColorProfile(context.Background(), backend.ColorProfileCommand{
		ZoneID: "z1", SiteID: "s1", Profile: "warm",
	})
	if err != nil {
		t.Fatalf("SetColorProfile failed: %v", err)
	}
	if len(rest.profiles) != 1 {
		t.Fatal("expected REST call")
	}
	if br.publishes[0].topic != "site/s1/zone/z1/cmd" {
		t.Errorf("publish topic: %s", br.publishes[0].topic)
	}
}

func TestApprovePairing(t *testing.T) {
	rest := &fakeREST{}
	br := &fakeBridge{connected: true}
	d := NewDispatcher(rest, br, testLogger{})

	err := d.ApprovePairing(context.Background(), backend.PairingApproval{
		NodeID: "n5", SiteID: "s1", ZoneID: "z2", Approve: true,
	})
	if err != nil {
		t.Fatalf("ApprovePairing failed: %v", err)
	}
	if len(rest.approvals) != 1 {
		t.Fatal("expected REST call")
	}

	payload := br.publishes[0].payload.(map[string]any)
	if payload["type"] != "pairing_approved" {
		t.Errorf("payload type: %v", payload["type"])
	}
}

func TestRejectPairing(t *testing.T) {
	rest := &fakeREST{}
	br := &fakeBridge{connected: true}
	d := NewDispatcher(rest, br, testLogger{})

	err := d.ApprovePairing(context.Background(), backend.PairingApproval{
		NodeID: "n5", SiteID: "s1", Approve: false,
	})
	if err != nil {
		t.Fatalf("ApprovePairing failed: %v", err)
	}
	payload := br.publishes[0].payload.(map[string]any)
	if payload["type"] != "pairing_rejected" {
		t.Errorf("payload type: %v", payload["type"])
	}
}
