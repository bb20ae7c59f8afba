package feed

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// DefaultReconnectDelay is the fixed wait between a lost connection and the
// next dial attempt. Retries never stop.
const DefaultReconnectDelay = 3 * time.Second

var (
	ErrClosed     = errors.New("feed: client closed")
	ErrOutboxFull = errors.New("feed: outbox full")
)

// ConnState is the position of the client in its connection lifecycle.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config holds tunable parameters for a WSClient.
type Config struct {
	URL string

	// Buffer sizes for the underlying TCP connection.
	ReadBufferSize  int
	WriteBufferSize int

	// HeartbeatTimeout is the maximum silence before the connection is
	// treated as dead. Zero disables the deadline.
	HeartbeatTimeout time.Duration

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// OutboxSize bounds commands waiting for a live connection.
	OutboxSize int

	// Headers sent during the WebSocket handshake.
	Headers http.Header
}

// DefaultConfig returns defaults for a market-state stream.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		ReadBufferSize:   16 * 1024,
		WriteBufferSize:  4096,
		HeartbeatTimeout: 30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		OutboxSize:       256,
	}
}

// ReconnectPolicy decides how long to wait before dial attempt n (1-based)
// after a failure.
type ReconnectPolicy interface {
	Delay(attempt int) time.Duration
}

// FixedDelay waits the same duration before every attempt.
type FixedDelay time.Duration

func (d FixedDelay) Delay(int) time.Duration { return time.Duration(d) }

// Recorder receives connection events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	FrameReceived()
	Reconnecting()
	SetConnected(bool)
	CommandSent()
	CommandDropped()
}

type nopRecorder struct{}

func (nopRecorder) FrameReceived() {}
func (nopRecorder) Reconnecting() {}
func (nopRecorder) SetConnected(bool) {}
func (nopRecorder) CommandSent() {}
func (nopRecorder) CommandDropped() {}

// Frame is one inbound message tagged with the connection it arrived on.
type Frame struct {
	Epoch    uint64
	Session  string
	Data     []byte
	Received time.Time
}

// Option configures a WSClient.
type Option func(*WSClient)

// WithReconnectPolicy overrides the fixed 3s delay.
func WithReconnectPolicy(p ReconnectPolicy) Option {
	return func(ws *WSClient) { ws.policy = p }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(ws *WSClient) {
		if r != nil {
			ws.rec = r
		}
	}
}

// WSClient maintains a single logical subscription to a streaming endpoint.
// It reconnects forever after any failure, tags every frame with the epoch of
// the connection that delivered it, and exposes the connection status as an
// edge-triggered observable.
type WSClient struct {
	cfg    Config
	log    zerolog.Logger
	policy ReconnectPolicy
	rec    Recorder

	state   atomic.Int32
	epoch   atomic.Uint64
	session atomic.Value // string

	frames chan Frame
	outbox chan []byte

	hookMu  sync.Mutex
	onConn  []func(epoch uint64)
	watchMu sync.Mutex
	watches []chan bool

	running atomic.Bool
	done    chan struct{}
}

// NewWSClient creates a client. Call Run to start it.
func NewWSClient(cfg Config, logger zerolog.Logger, opts ...Option) *WSClient {
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = 256
	}
	ws := &WSClient{
		cfg:    cfg,
		log:    logger.With().Str("component", "feed").Logger(),
		policy: FixedDelay(DefaultReconnectDelay),
		rec:    nopRecorder{},
		frames: make(chan Frame, 512),
		outbox: make(chan []byte, cfg.OutboxSize),
		done:   make(chan struct{}),
	}
	ws.session.Store("")
	for _, opt := range opts {
		opt(ws)
	}
	return ws
}

// Frames returns the inbound frame stream. It is closed when Run returns.
func (ws *WSClient) Frames() <-chan Frame {
	return ws.frames
}

// State returns the current lifecycle state.
func (ws *WSClient) State() ConnState {
	return ConnState(ws.state.Load())
}

// Connected reports whether a handshake-confirmed connection is open.
func (ws *WSClient) Connected() bool {
	return ws.State() == StateConnected
}

// Epoch returns the epoch of the most recent connection, zero before the
// first successful open.
func (ws *WSClient) Epoch() uint64 {
	return ws.epoch.Load()
}

// Session returns the id of the current or last connection.
func (ws *WSClient) Session() string {
	return ws.session.Load().(string)
}

// Done is closed when Run has returned.
func (ws *WSClient) Done() <-chan struct{} {
	return ws.done
}

// OnConnect registers fn to run synchronously after each successful open,
// before the first frame of that connection is read.
func (ws *WSClient) OnConnect(fn func(epoch uint64)) {
	ws.hookMu.Lock()
	ws.onConn = append(ws.onConn, fn)
	ws.hookMu.Unlock()
}

// WatchConnected returns a channel that receives every change of the
// connection status. Repeated values are never sent. A watcher that falls
// more than 16 transitions behind misses transitions.
func (ws *WSClient) WatchConnected() <-chan bool {
	ch := make(chan bool, 16)
	ws.watchMu.Lock()
	ws.watches = append(ws.watches, ch)
	ws.watchMu.Unlock()
	return ch
}

// Send enqueues data for the next live connection. Delivery is best effort:
// a command queued while disconnected is written once a connection opens,
// and is lost if that connection fails first.
func (ws *WSClient) Send(data []byte) error {
	select {
	case <-ws.done:
		return ErrClosed
	default:
	}
	select {
	case ws.outbox <- data:
		return nil
	default:
		ws.rec.CommandDropped()
		ws.log.Warn().Int("bytes", len(data)).Msg("outbox full, dropping command")
		return ErrOutboxFull
	}
}

// Run drives the connection state machine until ctx is cancelled. Transport
// errors are logged and turned into a reconnect; they are never returned.
func (ws *WSClient) Run(ctx context.Context) error {
	if !ws.running.CompareAndSwap(false, true) {
		return errors.New("feed: Run called twice")
	}
	defer close(ws.done)
	defer close(ws.frames)

	attempt := 0
	for {
		ws.setState(StateConnecting)
		conn, err := ws.dial(ctx)
		if err == nil {
			attempt = 0
			err = ws.serve(ctx, conn)
		}
		ws.setState(StateDisconnected)

		if ctx.Err() != nil {
			ws.log.Info().Msg("feed stopped")
			return nil
		}

		attempt++
		delay := ws.policy.Delay(attempt)
		ws.rec.Reconnecting()
		ws.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("connection lost, reconnecting")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			ws.log.Info().Msg("feed stopped")
			return nil
		case <-t.C:
		}
	}
}

// dial establishes the WebSocket connection with TCP_NODELAY enabled.
func (ws *WSClient) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		ReadBufferSize:   ws.cfg.ReadBufferSize,
		WriteBufferSize:  ws.cfg.WriteBufferSize,
		HandshakeTimeout: ws.cfg.HandshakeTimeout,
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			d := net.Dialer{}
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			if tc, ok := conn.(*net.TCPConn); ok {
				tc.SetNoDelay(true)
			}
			return conn, nil
		},
	}

	conn, _, err := dialer.DialContext(ctx, ws.cfg.URL, ws.cfg.Headers)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// serve owns one connection from open to failure. It runs the connect hooks,
// flips the status to connected, then reads until the transport fails.
func (ws *WSClient) serve(ctx context.Context, conn *websocket.Conn) error {
	epoch := ws.epoch.Add(1)
	session := uuid.NewString()
	ws.session.Store(session)

	log := ws.log.With().Uint64("epoch", epoch).Str("session", session).Logger()

	ws.hookMu.Lock()
	hooks := append([]func(uint64){}, ws.onConn...)
	ws.hookMu.Unlock()
	for _, fn := range hooks {
		fn(epoch)
	}

	ws.setState(StateConnected)
	log.Info().Str("url", ws.cfg.URL).Msg("connected")

	connCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ws.writeLoop(connCtx, conn, log)
	}()
	go func() {
		defer wg.Done()
		<-connCtx.Done()
		if ctx.Err() != nil {
			deadline := time.Now().Add(time.Second)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		}
		conn.Close()
	}()

	err := ws.readLoop(connCtx, conn, epoch, session)
	cancel()
	wg.Wait()
	return err
}

// readLoop reads frames in arrival order and hands them downstream. It also
// acts as the heartbeat monitor through the read deadline.
func (ws *WSClient) readLoop(ctx context.Context, conn *websocket.Conn, epoch uint64, session string) error {
	for {
		if ws.cfg.HeartbeatTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(ws.cfg.HeartbeatTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ws.rec.FrameReceived()

		select {
		case ws.frames <- Frame{Epoch: epoch, Session: session, Data: msg, Received: time.Now()}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// writeLoop drains the outbox onto conn. A failed write closes conn so the
// reader notices and the client reconnects.
func (ws *WSClient) writeLoop(ctx context.Context, conn *websocket.Conn, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-ws.outbox:
			if ws.cfg.WriteTimeout > 0 {
				conn.SetWriteDeadline(time.Now().Add(ws.cfg.WriteTimeout))
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				ws.rec.CommandDropped()
				log.Warn().Err(err).Msg("write failed")
				conn.Close()
				return
			}
			ws.rec.CommandSent()
		}
	}
}

// setState moves the state machine and emits a status edge when the
// connected flag changes.
func (ws *WSClient) setState(s ConnState) {
	prev := ConnState(ws.state.Swap(int32(s)))
	was, now := prev == StateConnected, s == StateConnected
	if was == now {
		return
	}
	ws.rec.SetConnected(now)

	ws.watchMu.Lock()
	defer ws.watchMu.Unlock()
	for _, ch := range ws.watches {
		select {
		case ch <- now:
		default:
			ws.log.Warn().Bool("connected", now).Msg("status watcher is behind, dropping transition")
		}
	}
}
