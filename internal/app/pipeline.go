package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/welloul/CyptoTerminal/internal/config"
	"github.com/welloul/CyptoTerminal/internal/feed"
	"github.com/welloul/CyptoTerminal/internal/health"
	"github.com/welloul/CyptoTerminal/internal/metrics"
	"github.com/welloul/CyptoTerminal/internal/rpc"
	"github.com/welloul/CyptoTerminal/internal/statusapi"
	"github.com/welloul/CyptoTerminal/internal/store"
	"github.com/welloul/CyptoTerminal/internal/surface"
)

const redisPingTimeout = 3 * time.Second

// Pipeline is the wired streaming core: one connection feeding one store,
// with the enabled surfaces subscribed to the store.
type Pipeline struct {
	cfg *config.Config
	log zerolog.Logger

	Metrics *metrics.Metrics
	Client  *feed.WSClient
	Store   *store.Store
	Subject *feed.Subject
	Health  *health.Monitor

	// Out receives console renders. Defaults to stdout.
	Out io.Writer

	status <-chan bool
}

// NewPipeline wires the connection, store, subject control and health
// monitor. Extra feed options are applied after the metrics recorder.
func NewPipeline(cfg *config.Config, symbol string, logger zerolog.Logger, opts ...feed.Option) *Pipeline {
	m := metrics.New()

	wsCfg := feed.DefaultConfig(cfg.Feed.URL)
	if cfg.Feed.HeartbeatTimeout > 0 {
		wsCfg.HeartbeatTimeout = cfg.Feed.HeartbeatTimeout
	}
	if cfg.Feed.HandshakeTimeout > 0 {
		wsCfg.HandshakeTimeout = cfg.Feed.HandshakeTimeout
	}
	if cfg.Feed.ReadBufferSize > 0 {
		wsCfg.ReadBufferSize = cfg.Feed.ReadBufferSize
	}
	if cfg.Feed.WriteBufferSize > 0 {
		wsCfg.WriteBufferSize = cfg.Feed.WriteBufferSize
	}
	if cfg.Feed.OutboxSize > 0 {
		wsCfg.OutboxSize = cfg.Feed.OutboxSize
	}

	client := feed.NewWSClient(wsCfg, logger, append([]feed.Option{feed.WithRecorder(m)}, opts...)...)
	st := store.New(logger, store.WithRecorder(m))
	subject := feed.NewSubject(client, cfg.Feed.QuoteSuffix, symbol, logger)

	// Advance runs first so frames still buffered from the previous
	// connection are dropped as stale.
	client.OnConnect(func(epoch uint64) { st.Advance(epoch) })
	client.OnConnect(subject.Resubscribe)

	hc := health.DefaultConfig()
	if cfg.Health.StaleThreshold > 0 {
		hc.StaleThreshold = cfg.Health.StaleThreshold
	}
	if cfg.Health.CoolOff > 0 {
		hc.CoolOff = cfg.Health.CoolOff
	}

	return &Pipeline{
		cfg:     cfg,
		log:     logger.With().Str("component", "pipeline").Logger(),
		Metrics: m,
		Client:  client,
		Store:   st,
		Subject: subject,
		Health:  health.NewMonitor(hc, client, st, logger),
		Out:     os.Stdout,
		status:  client.WatchConnected(),
	}
}

// Run starts every component and blocks until ctx is cancelled or a surface
// fails to start serving, which stops the whole pipeline.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var rpcServer *rpc.Server
	if p.cfg.RPC.Enabled {
		srv, err := rpc.New(p.cfg.RPC.SocketPath, rpc.NewHandler(p.Store, p.Subject, p.log))
		if err != nil {
			return fmt.Errorf("start rpc: %w", err)
		}
		rpcServer = srv
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	// Built before the feed starts so its status watch sees the first edge.
	if p.cfg.Console.Enabled {
		console := surface.NewConsole(p.Out, p.cfg.Console.Interval, p.Store.Subscribe(), p.Client, p.Client.WatchConnected(), p.log)
		spawn("console", func(ctx context.Context) error {
			console.Run(ctx)
			return nil
		})
	}

	spawn("feed", p.Client.Run)
	spawn("store", func(ctx context.Context) error {
		p.Store.Run(ctx, p.Client.Frames())
		return nil
	})
	spawn("health", func(ctx context.Context) error {
		p.Health.Run(ctx, p.status)
		return nil
	})


	if p.cfg.Redis.Enabled {
		conn := p.openRedis(ctx)
		defer conn.Close()
		pub := surface.NewRedisPublisher(conn, p.cfg.Redis.KeyPrefix, p.Store.Subscribe(), p.Metrics, p.log)
		spawn("redis", func(ctx context.Context) error {
			pub.Run(ctx)
			return nil
		})
	}

	if rpcServer != nil {
		p.log.Info().Str("socket", p.cfg.RPC.SocketPath).Msg("rpc listening")
		spawn("rpc", rpcServer.Run)
	}

	if p.cfg.Status.Enabled {
		api := statusapi.NewServer(p.cfg.Status.Address, statusapi.Deps{
			State:   p.Store,
			Health:  p.Health,
			Subject: p.Subject,
			Conn:    p.Client,
			Metrics: p.Metrics.Handler(),
		}, p.log)
		spawn("status", api.Run)
	}

	wg.Wait()
	close(errCh)
	if err, ok := <-errCh; ok {
		return err
	}
	return nil
}

// openRedis connects the verdict mirror. An unreachable server is logged and
// the publisher keeps retrying on each snapshot.
func (p *Pipeline) openRedis(ctx context.Context) *surface.RedisConn {
	conn := surface.NewRedisConn(p.cfg.Redis.Addr, p.cfg.Redis.Password, p.cfg.Redis.DB)
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		p.log.Warn().Err(err).Str("addr", p.cfg.Redis.Addr).Msg("redis unreachable; verdict mirror will retry")
	}
	return conn
}
