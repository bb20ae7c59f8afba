// Package statusapi serves the terminal's read-only HTTP surface plus the
// subject control endpoint.
package statusapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/welloul/CyptoTerminal/internal/feed"
	"github.com/welloul/CyptoTerminal/internal/health"
	"github.com/welloul/CyptoTerminal/internal/store"
	"github.com/welloul/CyptoTerminal/internal/verdict"
)

// StateSource is the read side of the store.
type StateSource interface {
	Snapshot() store.Snapshot
}

// HealthSource reports feed health.
type HealthSource interface {
	Check() health.Status
}

// SubjectController switches and reports the streamed instrument.
type SubjectController interface {
	Change(symbol string) (string, error)
	Current() string
}

// SessionSource identifies the live stream connection.
type SessionSource interface {
	Session() string
	Epoch() uint64
	State() feed.ConnState
}

// Deps are the collaborators the routes read from. Conn and Metrics may be
// nil.
type Deps struct {
	State   StateSource
	Health  HealthSource
	Subject SubjectController
	Conn    SessionSource
	Metrics http.Handler
}

// Server hosts the gin router.
type Server struct {
	addr       string
	deps       Deps
	log        zerolog.Logger
	httpServer *http.Server
}

func NewServer(addr string, deps Deps, logger zerolog.Logger) *Server {
	if addr == "" {
		addr = "127.0.0.1:8090"
	}
	return &Server{
		addr: addr,
		deps: deps,
		log:  logger.With().Str("component", "statusapi").Logger(),
	}
}

// Address reports the listen address.
func (s *Server) Address() string {
	return s.addr
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// exits with an error.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info().Str("addr", s.addr).Msg("status api listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)
	router.GET("/state", s.handleState)
	router.GET("/verdicts", s.handleVerdicts)
	router.GET("/zones", s.handleZones)
	router.POST("/subject", s.handleSubject)
	if s.deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}
	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	st := s.deps.Health.Check()
	code := http.StatusOK
	status := "ok"
	if !st.Healthy {
		code = http.StatusServiceUnavailable
		status = "degraded"
	}

	body := gin.H{
		"status":     status,
		"symbol":     s.deps.Subject.Current(),
		"connected":  st.Connected,
		"hasData":    st.HasData,
		"stale":      st.Stale,
		"recovering": st.Recovering,
		"ageMs":      st.Age.Milliseconds(),
	}
	if !st.LastUpdate.IsZero() {
		body["lastUpdate"] = st.LastUpdate.UTC().Format(time.RFC3339Nano)
	}
	if s.deps.Conn != nil {
		body["session"] = s.deps.Conn.Session()
		body["epoch"] = s.deps.Conn.Epoch()
		body["connection"] = s.deps.Conn.State().String()
	}
	c.JSON(code, body)
}

func (s *Server) handleState(c *gin.Context) {
	snap := s.deps.State.Snapshot()
	if snap.State == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no market data yet"})
		return
	}
	c.JSON(http.StatusOK, snap.State)
}

func (s *Server) handleVerdicts(c *gin.Context) {
	c.JSON(http.StatusOK, verdict.Evaluate(s.deps.State.Snapshot().State))
}

// handleZones estimates zones for ?price= or, without it, the current price.
// ?leverage=10,20 overrides the default tiers.
func (s *Server) handleZones(c *gin.Context) {
	var price float64
	if raw := c.Query("price"); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil || p <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price must be a positive number"})
			return
		}
		price = p
	} else {
		snap := s.deps.State.Snapshot()
		if snap.State == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no market data yet"})
			return
		}
		price = snap.State.Price
	}

	tiers := verdict.DefaultLeverageTiers
	if raw := c.Query("leverage"); raw != "" {
		parsed, err := parseTiers(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		tiers = parsed
	}

	zones := verdict.EstimateZones(price, tiers)
	if zones == nil {
		zones = []verdict.Zone{}
	}
	c.JSON(http.StatusOK, gin.H{"price": price, "zones": zones})
}

type subjectRequest struct {
	Symbol string `json:"symbol"`
}

func (s *Server) handleSubject(c *gin.Context) {
	var req subjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"symbol\": \"...\"}"})
		return
	}

	sym, err := s.deps.Subject.Change(req.Symbol)
	switch {
	case errors.Is(err, feed.ErrEmptySymbol):
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	case err != nil:
		// The subject is remembered and re-announced on the next connect.
		s.log.Warn().Err(err).Str("symbol", sym).Msg("subscribe command not queued")
		c.JSON(http.StatusAccepted, gin.H{"symbol": sym, "queued": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": sym, "queued": true})
}

func parseTiers(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	tiers := make([]int, 0, len(parts))
	for _, p := range parts {
		lev, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || lev <= 0 {
			return nil, errors.New("leverage must be a comma-separated list of positive integers")
		}
		tiers = append(tiers, lev)
	}
	return tiers, nil
}
