package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// controlledServer is a WebSocket server whose current connection can be
// pushed to or dropped from the test.
type controlledServer struct {
	*httptest.Server

	mu        sync.Mutex
	conn      *websocket.Conn
	conns     atomic.Int32
	recv      chan []byte
	connected chan struct{}
}

func newControlledServer(t *testing.T) *controlledServer {
	t.Helper()
	cs := &controlledServer{
		recv:      make(chan []byte, 64),
		connected: make(chan struct{}, 16),
	}
	upgrader := websocket.Upgrader{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		cs.mu.Lock()
		cs.conn = c
		cs.mu.Unlock()
		cs.conns.Add(1)
		select {
		case cs.connected <- struct{}{}:
		default:
		}

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			cs.recv <- msg
		}
	}))
	t.Cleanup(cs.Close)
	return cs
}

// Push writes msg to the current connection.
func (cs *controlledServer) Push(t *testing.T, msg string) {
	t.Helper()
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if err := cs.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("push: %v", err)
	}
}

// Drop abruptly closes the current connection.
func (cs *controlledServer) Drop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.conn.Close()
}

func (cs *controlledServer) waitConnected(t *testing.T) {
	t.Helper()
	select {
	case <-cs.connected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client connection")
	}
}

func (cs *controlledServer) expectMessage(t *testing.T, want string) {
	t.Helper()
	select {
	case msg := <-cs.recv:
		if string(msg) != want {
			t.Fatalf("server received %s, want %s", msg, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func expectStatus(t *testing.T, ch <-chan bool, want bool, within time.Duration) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("status = %v, want %v", got, want)
		}
	case <-time.After(within):
		t.Fatalf("timed out waiting for status %v", want)
	}
}

func expectFrame(t *testing.T, ch <-chan Frame) Frame {
	t.Helper()
	select {
	case f, ok := <-ch:
		if !ok {
			t.Fatal("frames channel closed")
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return Frame{}
}

func TestWSClient_ReceiveFrames(t *testing.T) {
	srv := newControlledServer(t)
	client := NewWSClient(DefaultConfig(wsURL(srv.Server)), zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go client.Run(ctx)

	srv.waitConnected(t)
	srv.Push(t, `{"symbol":"BTCUSDT","price":1}`)
	srv.Push(t, `{"symbol":"BTCUSDT","price":2}`)

	f1 := expectFrame(t, client.Frames())
	f2 := expectFrame(t, client.Frames())
	if string(f1.Data) != `{"symbol":"BTCUSDT","price":1}` || string(f2.Data) != `{"symbol":"BTCUSDT","price":2}` {
		t.Fatalf("frames out of order: %s, %s", f1.Data, f2.Data)
	}
	if f1.Epoch != 1 || f2.Epoch != 1 {
		t.Errorf("epochs = %d, %d, want 1", f1.Epoch, f2.Epoch)
	}
	if f1.Session == "" || f1.Session != client.Session() {
		t.Errorf("session = %q, client session = %q", f1.Session, client.Session())
	}
	if !client.Connected() || client.State() != StateConnected {
		t.Errorf("state = %s", client.State())
	}
}

func TestWSClient_ReconnectStatus(t *testing.T) {
	srv := newControlledServer(t)
	const delay = 300 * time.Millisecond

	client := NewWSClient(DefaultConfig(wsURL(srv.Server)), zerolog.Nop(),
		WithReconnectPolicy(FixedDelay(delay)))
	status := client.WatchConnected()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go client.Run(ctx)

	expectStatus(t, status, true, 2*time.Second)
	srv.waitConnected(t)

	srv.Drop()
	expectStatus(t, status, false, time.Second)
	droppedAt := time.Now()

	// No status edge may arrive during the wait window.
	select {
	case v := <-status:
		t.Fatalf("status %v emitted during reconnect wait", v)
	case <-time.After(delay / 2):
	}

	expectStatus(t, status, true, 2*time.Second)
	if elapsed := time.Since(droppedAt); elapsed < delay-50*time.Millisecond {
		t.Errorf("reconnected after %v, before the %v delay", elapsed, delay)
	}
	if client.Epoch() != 2 {
		t.Errorf("epoch = %d, want 2", client.Epoch())
	}

	srv.waitConnected(t)
	srv.Push(t, `{}`)
	if f := expectFrame(t, client.Frames()); f.Epoch != 2 {
		t.Errorf("frame epoch = %d, want 2", f.Epoch)
	}
}

func TestWSClient_OnConnectRunsBeforeFrames(t *testing.T) {
	srv := newControlledServer(t)
	client := NewWSClient(DefaultConfig(wsURL(srv.Server)), zerolog.Nop(),
		WithReconnectPolicy(FixedDelay(50*time.Millisecond)))

	var hooked atomic.Uint64
	client.OnConnect(func(epoch uint64) { hooked.Store(epoch) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go client.Run(ctx)

	srv.waitConnected(t)
	srv.Push(t, `{}`)
	f := expectFrame(t, client.Frames())
	if hooked.Load() != f.Epoch {
		t.Fatalf("hook epoch %d, frame epoch %d", hooked.Load(), f.Epoch)
	}

	srv.Drop()
	srv.waitConnected(t)
	srv.Push(t, `{}`)
	f = expectFrame(t, client.Frames())
	if f.Epoch != 2 || hooked.Load() != 2 {
		t.Fatalf("after reconnect: hook epoch %d, frame epoch %d", hooked.Load(), f.Epoch)
	}
}

func TestWSClient_SendQueuedBeforeConnect(t *testing.T) {
	srv := newControlledServer(t)
	client := NewWSClient(DefaultConfig(wsURL(srv.Server)), zerolog.Nop())

	if err := client.Send([]byte(`{"action":"subscribe","symbol":"ETHUSDT"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go client.Run(ctx)

	srv.expectMessage(t, `{"action":"subscribe","symbol":"ETHUSDT"}`)
}

func TestWSClient_SubjectResubscribesOnConnect(t *testing.T) {
	srv := newControlledServer(t)
	client := NewWSClient(DefaultConfig(wsURL(srv.Server)), zerolog.Nop(),
		WithReconnectPolicy(FixedDelay(50*time.Millisecond)))
	subject := NewSubject(client, "USDT", "eth", zerolog.Nop())
	client.OnConnect(subject.Resubscribe)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go client.Run(ctx)

	srv.expectMessage(t, `{"action":"subscribe","symbol":"ETHUSDT"}`)

	if _, err := subject.Change("btc"); err != nil {
		t.Fatalf("Change: %v", err)
	}
	srv.expectMessage(t, `{"action":"subscribe","symbol":"BTCUSDT"}`)

	srv.waitConnected(t)
	srv.Drop()
	srv.expectMessage(t, `{"action":"subscribe","symbol":"BTCUSDT"}`)
}

func TestWSClient_HeartbeatTimeout(t *testing.T) {
	// Server accepts the connection but never sends anything.
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	cfg := DefaultConfig(wsURL(srv))
	cfg.HeartbeatTimeout = 200 * time.Millisecond
	client := NewWSClient(cfg, zerolog.Nop(), WithReconnectPolicy(FixedDelay(5*time.Second)))
	status := client.WatchConnected()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go client.Run(ctx)

	expectStatus(t, status, true, 2*time.Second)
	expectStatus(t, status, false, 2*time.Second)
}

type countingPolicy struct {
	attempts atomic.Int32
	delay    time.Duration
}

func (p *countingPolicy) Delay(attempt int) time.Duration {
	p.attempts.Store(int32(attempt))
	return p.delay
}

func TestWSClient_RetriesForever(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(dead)
	dead.Close()

	policy := &countingPolicy{delay: 20 * time.Millisecond}
	client := NewWSClient(DefaultConfig(url), zerolog.Nop(), WithReconnectPolicy(policy))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go client.Run(ctx)

	deadline := time.After(3 * time.Second)
	for policy.attempts.Load() < 5 {
		select {
		case <-deadline:
			t.Fatalf("only %d attempts", policy.attempts.Load())
		case <-time.After(20 * time.Millisecond):
		}
	}
	if client.Connected() {
		t.Error("client reports connected to a dead endpoint")
	}
}

func TestWSClient_Shutdown(t *testing.T) {
	srv := newControlledServer(t)
	client := NewWSClient(DefaultConfig(wsURL(srv.Server)), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- client.Run(ctx) }()
	srv.waitConnected(t)

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	for range client.Frames() {
	}
	if client.Connected() {
		t.Error("connected after shutdown")
	}
	if err := client.Send([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after shutdown = %v, want ErrClosed", err)
	}
	if err := client.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
}
