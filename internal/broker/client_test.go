package broker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/smarttile-ops/internal/infrastructure/config"
)

func testConfig() config.BrokerConfig {
	return config.BrokerConfig{
		Host:     "127.0.0.1",
		Port:     1883,
		ClientID: "smarttile-test",
		QoS:      1,
	}
}

// disconnectedClient builds a client that never connected, for exercising
// validation paths without a live broker.
func disconnectedClient() *Client {
	return &Client{
		cfg:           testConfig(),
		subscriptions: make(map[string]subscription),
	}
}

// ============================================================================
// Validation Tests
// ============================================================================

func TestSubscribeValidation(t *testing.T) {
	c := disconnectedClient()

	if err := c.Subscribe("", func(string, []byte) error { return nil }); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: got %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("site/s1/#", nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: got %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("site/s1/#", func(string, []byte) error { return nil }); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: got %v, want ErrNotConnected", err)
	}
}

func TestPublishValidation(t *testing.T) {
	c := disconnectedClient()

	if err := c.Publish("", []byte("x")); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: got %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("site/s1/node/n1/cmd", []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: got %v, want ErrNotConnected", err)
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	c := disconnectedClient()

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: got %v, want ErrInvalidTopic", err)
	}
	if err := c.Unsubscribe("site/s1/#"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: got %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := disconnectedClient()

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("got %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	c := disconnectedClient()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestCloseNil(t *testing.T) {
	c := disconnectedClient()

	if err := c.Close(); err != nil {
		t.Errorf("Close() on never-connected client: %v", err)
	}
}

func TestSubscriptionCountEmpty(t *testing.T) {
	c := disconnectedClient()

	if got := c.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", got)
	}
}

// ============================================================================
// Option Building Tests
// ============================================================================

func TestBuildClientOptionsPlainTCP(t *testing.T) {
	opts := buildClientOptions(testConfig())

	if len(opts.Servers) != 1 {
		t.Fatalf("expected 1 broker, got %d", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("broker URL: %s", got)
	}
	if opts.ClientID != "smarttile-test" {
		t.Errorf("client id: %s", opts.ClientID)
	}
	if !opts.AutoReconnect {
		t.Error("expected auto-reconnect enabled")
	}
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.TLS = true
	cfg.Port = 8883

	opts := buildClientOptions(cfg)
	if got := opts.Servers[0].String(); got != "ssl://127.0.0.1:8883" {
		t.Errorf("broker URL: %s", got)
	}
	if opts.TLSConfig == nil {
		t.Fatal("expected TLS config set")
	}
}

func TestBuildClientOptionsAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Username = "ops"
	cfg.Password = "secret"

	opts := buildClientOptions(cfg)
	if opts.Username != "ops" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
}

// ============================================================================
// Status Payload Tests
// ============================================================================

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("smarttile-test")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, "smarttile-test") {
		t.Errorf("online payload: %s", online)
	}

	offline := buildOfflinePayload("smarttile-test")
	if !strings.Contains(offline, `"status":"offline"`) || !strings.Contains(offline, "graceful_shutdown") {
		t.Errorf("offline payload: %s", offline)
	}
}
