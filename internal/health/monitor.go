// Package health reports whether the terminal is receiving fresh market data.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds tunable parameters for the Monitor.
type Config struct {
	// StaleThreshold is the maximum age of the current snapshot before the
	// data is considered stale. Default: 5s.
	StaleThreshold time.Duration

	// CoolOff is how long after a reconnect the feed is reported as
	// recovering. Default: 2s.
	CoolOff time.Duration

	// PollInterval is how often Run re-evaluates health to log transitions.
	// Default: 1s.
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		StaleThreshold: 5 * time.Second,
		CoolOff:        2 * time.Second,
		PollInterval:   time.Second,
	}
}

// ConnectionSource reports the live connection status.
type ConnectionSource interface {
	Connected() bool
}

// SnapshotSource reports when the current snapshot was last replaced.
type SnapshotSource interface {
	UpdatedAt() time.Time
}

// Status is a point-in-time health reading.
type Status struct {
	Healthy    bool          `json:"healthy"`
	Connected  bool          `json:"connected"`
	HasData    bool          `json:"hasData"`
	Stale      bool          `json:"stale"`
	Recovering bool          `json:"recovering"`
	LastUpdate time.Time     `json:"lastUpdate"`
	Age        time.Duration `json:"age"`
}

// Monitor combines connection status and snapshot age into a health verdict.
type Monitor struct {
	cfg  Config
	conn ConnectionSource
	snap SnapshotSource
	log  zerolog.Logger

	mu          sync.RWMutex
	dropped     bool
	recoveredAt time.Time

	nowFunc func() time.Time // injectable clock for testing
}

func NewMonitor(cfg Config, conn ConnectionSource, snap SnapshotSource, logger zerolog.Logger) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Monitor{
		cfg:     cfg,
		conn:    conn,
		snap:    snap,
		log:     logger.With().Str("component", "health").Logger(),
		nowFunc: time.Now,
	}
}

// Check evaluates health now.
func (m *Monitor) Check() Status {
	now := m.nowFunc()
	last := m.snap.UpdatedAt()

	s := Status{
		Connected:  m.conn.Connected(),
		HasData:    !last.IsZero(),
		LastUpdate: last,
	}
	if s.HasData {
		s.Age = now.Sub(last)
		s.Stale = s.Age > m.cfg.StaleThreshold
	}

	m.mu.RLock()
	rec := m.recoveredAt
	m.mu.RUnlock()
	s.Recovering = !rec.IsZero() && now.Sub(rec) < m.cfg.CoolOff

	s.Healthy = s.Connected && s.HasData && !s.Stale && !s.Recovering
	return s
}

// Run follows connection edges to track recovery and logs health
// transitions. It blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, status <-chan bool) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	healthy := m.Check().Healthy
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-status:
			if !ok {
				status = nil
				continue
			}
			m.recordConnection(up)
		case <-ticker.C:
		}

		s := m.Check()
		if s.Healthy != healthy {
			healthy = s.Healthy
			ev := m.log.Info()
			if !healthy {
				ev = m.log.Warn()
			}
			ev.Bool("connected", s.Connected).Bool("stale", s.Stale).Bool("recovering", s.Recovering).
				Dur("age", s.Age).Bool("healthy", healthy).Msg("health changed")
		}
	}
}

// recordConnection arms the cool-off only for a reconnect; the first open
// of the process is not a recovery.
func (m *Monitor) recordConnection(up bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !up {
		m.dropped = true
		return
	}
	if m.dropped {
		m.recoveredAt = m.nowFunc()
	}
}
