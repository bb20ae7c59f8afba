package health

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeClock provides a controllable time source for tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (fc *fakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

func (fc *fakeClock) Advance(d time.Duration) {
	fc.mu.Lock()
	fc.now = fc.now.Add(d)
	fc.mu.Unlock()
}

type fakeConn struct{ up atomic.Bool }

func (f *fakeConn) Connected() bool { return f.up.Load() }

type fakeSnap struct {
	mu   sync.Mutex
	last time.Time
}

func (f *fakeSnap) UpdatedAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeSnap) set(t time.Time) {
	f.mu.Lock()
	f.last = t
	f.mu.Unlock()
}

func newTestMonitor(clock *fakeClock) (*Monitor, *fakeConn, *fakeSnap) {
	conn, snap := &fakeConn{}, &fakeSnap{}
	cfg := Config{
		StaleThreshold: 5 * time.Second,
		CoolOff:        2 * time.Second,
		PollInterval:   10 * time.Millisecond,
	}
	m := NewMonitor(cfg, conn, snap, zerolog.Nop())
	m.nowFunc = clock.Now
	return m, conn, snap
}

func TestMonitor_NoData(t *testing.T) {
	clock := newFakeClock(time.Now())
	m, conn, _ := newTestMonitor(clock)
	conn.up.Store(true)

	s := m.Check()
	if s.HasData || s.Healthy || s.Stale {
		t.Fatalf("status = %+v, want no data and unhealthy", s)
	}
	if !s.Connected {
		t.Error("expected connected")
	}
}

func TestMonitor_Staleness(t *testing.T) {
	clock := newFakeClock(time.Now())
	m, conn, snap := newTestMonitor(clock)
	conn.up.Store(true)
	snap.set(clock.Now())

	if s := m.Check(); !s.Healthy {
		t.Fatalf("fresh data unhealthy: %+v", s)
	}

	clock.Advance(5 * time.Second)
	if s := m.Check(); s.Stale {
		t.Fatalf("stale at exactly the threshold: %+v", s)
	}

	clock.Advance(time.Millisecond)
	s := m.Check()
	if !s.Stale || s.Healthy {
		t.Fatalf("expected stale, got %+v", s)
	}
	if s.Age != 5*time.Second+time.Millisecond {
		t.Errorf("age = %v", s.Age)
	}
}

func TestMonitor_Disconnected(t *testing.T) {
	clock := newFakeClock(time.Now())
	m, _, snap := newTestMonitor(clock)
	snap.set(clock.Now())

	if s := m.Check(); s.Healthy || s.Connected {
		t.Fatalf("status = %+v, want disconnected", s)
	}
}

func TestMonitor_CoolOffAfterReconnect(t *testing.T) {
	clock := newFakeClock(time.Now())
	m, conn, snap := newTestMonitor(clock)
	conn.up.Store(true)
	snap.set(clock.Now())

	status := make(chan bool, 4)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go m.Run(ctx, status)

	status <- false
	status <- true

	deadline := time.After(time.Second)
	for !m.Check().Recovering {
		select {
		case <-deadline:
			t.Fatal("reconnect did not start cool-off")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if m.Check().Healthy {
		t.Error("healthy during cool-off")
	}

	clock.Advance(2 * time.Second)
	snap.set(clock.Now())
	if s := m.Check(); s.Recovering || !s.Healthy {
		t.Fatalf("after cool-off: %+v", s)
	}
}

func TestMonitor_FirstConnectIsNotRecovery(t *testing.T) {
	clock := newFakeClock(time.Now())
	m, conn, snap := newTestMonitor(clock)
	conn.up.Store(true)
	snap.set(clock.Now())

	m.recordConnection(true)
	if s := m.Check(); s.Recovering || !s.Healthy {
		t.Fatalf("first connect reported as recovery: %+v", s)
	}

	m.recordConnection(false)
	m.recordConnection(true)
	if !m.Check().Recovering {
		t.Error("reconnect after a drop did not start cool-off")
	}
}
