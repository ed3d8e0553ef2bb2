package realtime

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/smarttile-ops/internal/infrastructure/config"
)

// ============================================================================
// Test Helpers
// ============================================================================

// testLogger discards log output.
type testLogger struct{}

func (testLogger) Debug(msg string, args ...any) {}
func (testLogger) Info(msg string, args ...any)  {}
func (testLogger) Warn(msg string, args ...any)  {}
func (testLogger) Error(msg string, args ...any) {}

// fakeSocket is an in-memory socket. Frames pushed with push() are returned
// from ReadMessage in order; fail() makes ReadMessage return an error, as a
// dropped connection would.
type fakeSocket struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	writes   []any
	controls []int
	writeErr error
	closed   bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

func (f *fakeSocket) push(data []byte) { f.frames <- data }

func (f *fakeSocket) fail() { f.once.Do(func() { close(f.done) }) }

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.frames:
		return 1, data, nil
	case <-f.done:
		return 0, nil, errors.New("connection reset")
	}
}

func (f *fakeSocket) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, v)
	return nil
}

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, messageType)
	return nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.fail()
	return nil
}

func (f *fakeSocket) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSocket) sentWrites() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]any, len(f.writes))
	copy(out, f.writes)
	return out
}

// newTestConn builds a Conn with a fast reconnect schedule and an injected
// dial function. dialErrs controls how many initial dials fail.
func newTestConn(t *testing.T, dialErrs int) (*Conn, func() int, func() *fakeSocket) {
	t.Helper()

	var mu sync.Mutex
	var dials int
	var current *fakeSocket

	c := NewConn("ws://test/ws", config.ReconnectConfig{BaseDelay: 1, MaxAttempts: 10}, testLogger{})
	c.baseDelay = time.Millisecond
	c.dial = func(url string) (socket, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		if dials <= dialErrs {
			return nil, fmt.Errorf("dial tcp: connection refused")
		}
		current = newFakeSocket()
		return current, nil
	}

	dialCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return dials
	}
	sock := func() *fakeSocket {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	return c, dialCount, sock
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

// ============================================================================
// Connection Tests
// ============================================================================

func TestConnectOpensAndSignals(t *testing.T) {
	c, dials, _ := newTestConn(t, 0)

	opened := make(chan struct{}, 1)
	c.SetOnOpen(func() { opened <- struct{}{} })

	c.Connect()
	defer c.Disconnect()

	select {
	case <-opened:
	case <-time.After(time.Second):
		t.Fatal("open callback never fired")
	}

	state := c.State()
	if !state.Connected {
		t.Error("expected Connected=true")
	}
	if state.Connecting {
		t.Error("expected Connecting=false after open")
	}
	if state.ReconnectAttempts != 0 {
		t.Errorf("expected 0 attempts, got %d", state.ReconnectAttempts)
	}
	if dials() != 1 {
		t.Errorf("expected 1 dial, got %d", dials())
	}
}

func TestConnectIdempotentWhileOpen(t *testing.T) {
	c, dials, _ := newTestConn(t, 0)

	c.Connect()
	defer c.Disconnect()
	waitFor(t, time.Second, c.IsConnected)

	c.Connect()
	c.Connect()

	time.Sleep(20 * time.Millisecond)
	if dials() != 1 {
		t.Errorf("expected 1 dial despite repeated Connect, got %d", dials())
	}
}

func TestMessagesDeliveredInOrder(t *testing.T) {
	c, _, sock := newTestConn(t, 0)

	var mu sync.Mutex
	var got []string
	c.SetOnMessage(func(data []byte) {
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
	})

	c.Connect()
	defer c.Disconnect()
	waitFor(t, time.Second, c.IsConnected)

	sock().push([]byte("one"))
	sock().push([]byte("two"))
	sock().push([]byte("three"))

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	for i, want := range []string{"one", "two", "three"} {
		if got[i] != want {
			t.Errorf("frame %d: got %q, want %q", i, got[i], want)
		}
	}
}

// ============================================================================
// Send Tests
// ============================================================================

func TestSendRequiresOpenConnection(t *testing.T) {
	c, _, _ := newTestConn(t, 0)

	if err := c.Send(map[string]string{"type": "ping"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestSendWritesJSON(t *testing.T) {
	c, _, sock := newTestConn(t, 0)

	c.Connect()
	defer c.Disconnect()
	waitFor(t, time.Second, c.IsConnected)

	payload := map[string]string{"type": "subscribe", "topic": "site/s1/#"}
	if err := c.Send(payload); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	writes := sock().sentWrites()
	if len(writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(writes))
	}
}

func TestSendWrapsWriteFailure(t *testing.T) {
	c, _, sock := newTestConn(t, 0)

	c.Connect()
	defer c.Disconnect()
	waitFor(t, time.Second, c.IsConnected)

	sock().mu.Lock()
	sock().writeErr = errors.New("broken pipe")
	sock().mu.Unlock()

	err := c.Send("x")
	if !errors.Is(err, ErrSendFailed) {
		t.Errorf("expected ErrSendFailed, got %v", err)
	}
}

// ============================================================================
// Reconnection Tests
// ============================================================================

func TestDialFailureTriggersRetry(t *testing.T) {
	c, dials, _ := newTestConn(t, 2)

	c.Connect()
	defer c.Disconnect()

	waitFor(t, 2*time.Second, c.IsConnected)
	if dials() != 3 {
		t.Errorf("expected 3 dials (2 failures + 1 success), got %d", dials())
	}
	if got := c.State().ReconnectAttempts; got != 0 {
		t.Errorf("expected attempts reset to 0 after success, got %d", got)
	}
}

func TestUnexpectedCloseReconnects(t *testing.T) {
	c, dials, sock := newTestConn(t, 0)

	closed := make(chan error, 1)
	c.SetOnClose(func(err error) { closed <- err })

	c.Connect()
	defer c.Disconnect()
	waitFor(t, time.Second, c.IsConnected)

	sock().fail()

	select {
	case err := <-closed:
		if err == nil {
			t.Error("expected close error for unexpected drop")
		}
	case <-time.After(time.Second):
		t.Fatal("close callback never fired")
	}

	waitFor(t, 2*time.Second, func() bool { return dials() >= 2 && c.IsConnected() })
}

func TestReconnectExhaustion(t *testing.T) {
	c, dials, _ := newTestConn(t, 1000)
	c.maxAttempts = 3

	var mu sync.Mutex
	var errs []error
	c.SetOnError(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})

	c.Connect()
	defer c.Disconnect()

	waitFor(t, 2*time.Second, func() bool {
		return c.State().LastError == ErrReconnectExhausted.Error()
	})

	// 1 initial dial plus 3 retries, then no more.
	if got := dials(); got != 4 {
		t.Errorf("expected 4 dials, got %d", got)
	}
	time.Sleep(20 * time.Millisecond)
	if got := dials(); got != 4 {
		t.Errorf("dials continued after exhaustion: %d", got)
	}

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, err := range errs {
		if errors.Is(err, ErrReconnectExhausted) {
			found = true
		}
	}
	if !found {
		t.Error("expected ErrReconnectExhausted via error callback")
	}
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	c, dials, _ := newTestConn(t, 1000)
	c.baseDelay = 50 * time.Millisecond

	c.Connect()
	waitFor(t, time.Second, func() bool { return c.State().ReconnectAttempts >= 1 })

	c.Disconnect()

	before := dials()
	time.Sleep(150 * time.Millisecond)
	if dials() != before {
		t.Errorf("reconnect fired after Disconnect: %d -> %d dials", before, dials())
	}
	if got := c.State().ReconnectAttempts; got != 0 {
		t.Errorf("expected attempts cleared on Disconnect, got %d", got)
	}
}

func TestDisconnectClosesSocket(t *testing.T) {
	c, _, sock := newTestConn(t, 0)

	c.Connect()
	waitFor(t, time.Second, c.IsConnected)

	c.Disconnect()

	if !sock().wasClosed() {
		t.Error("expected underlying socket closed")
	}
	if c.IsConnected() {
		t.Error("expected Connected=false after Disconnect")
	}
}

func TestConnectAfterDisconnect(t *testing.T) {
	c, dials, _ := newTestConn(t, 0)

	c.Connect()
	waitFor(t, time.Second, c.IsConnected)
	c.Disconnect()

	c.Connect()
	defer c.Disconnect()
	waitFor(t, time.Second, c.IsConnected)

	if dials() != 2 {
		t.Errorf("expected 2 dials across reconnect cycle, got %d", dials())
	}
}

// ============================================================================
// Delay Schedule Tests
// ============================================================================

func TestReconnectDelaySchedule(t *testing.T) {
	base := 5 * time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 15 * time.Second},
		{4, 20 * time.Second},
		{5, 25 * time.Second},
		{6, 25 * time.Second},
		{10, 25 * time.Second},
	}

	for _, tt := range tests {
		if got := reconnectDelay(base, tt.attempt); got != tt.want {
			t.Errorf("attempt %d: got %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
