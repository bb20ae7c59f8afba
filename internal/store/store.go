// Package store holds the single current market snapshot and broadcasts
// every replacement to independent subscribers.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/welloul/CyptoTerminal/internal/feed"
	"github.com/welloul/CyptoTerminal/internal/market"
)

// Drop reasons reported to the Recorder.
const (
	DropStaleEpoch = "stale_epoch"
	DropDecode     = "decode"
)

// Recorder receives store events.
type Recorder interface {
	SnapshotApplied()
	FrameDropped(reason string)
}

type nopRecorder struct{}

func (nopRecorder) SnapshotApplied() {}
func (nopRecorder) FrameDropped(string) {}

// Snapshot is the value delivered to subscribers. State is shared between
// all readers and must not be modified.
type Snapshot struct {
	State     *market.State
	Epoch     uint64
	UpdatedAt time.Time
}

// Option configures a Store.
type Option func(*Store)

func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.rec = r
		}
	}
}

// WithClock overrides time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.nowFunc = now }
}

// Store is a guarded single-owner cell. Replace swaps the whole snapshot and
// notifies every subscriber; a slow subscriber only ever sees the latest
// value.
type Store struct {
	log     zerolog.Logger
	rec     Recorder
	nowFunc func() time.Time

	mu      sync.RWMutex
	epoch   uint64
	current Snapshot
	subs    []chan Snapshot
	closed  bool
}

// New creates an empty store. Current reports no data until the first
// Replace.
func New(logger zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		log:     logger.With().Str("component", "store").Logger(),
		rec:     nopRecorder{},
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Advance makes epoch the only accepted epoch. Older epochs are ignored.
// It is wired as the feed's connect hook.
func (s *Store) Advance(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch <= s.epoch {
		return false
	}
	s.epoch = epoch
	return true
}

// Epoch returns the currently accepted epoch.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Replace swaps in st when it was delivered on the current epoch and
// notifies subscribers. A frame from a newer epoch advances the store first;
// a frame from an older epoch is dropped and false is returned.
func (s *Store) Replace(epoch uint64, st *market.State) bool {
	if st == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch < s.epoch {
		s.rec.FrameDropped(DropStaleEpoch)
		return false
	}
	s.epoch = epoch
	s.current = Snapshot{State: st, Epoch: epoch, UpdatedAt: s.nowFunc()}
	s.rec.SnapshotApplied()

	if s.closed {
		return true
	}
	for _, ch := range s.subs {
		offer(ch, s.current)
	}
	return true
}

// Current returns the latest state, or false before any data has arrived.
func (s *Store) Current() (*market.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.State, s.current.State != nil
}

// Snapshot returns the latest snapshot including its epoch and timestamp.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// UpdatedAt returns the time of the last accepted replace, zero before the
// first.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.UpdatedAt
}

// Subscribe returns a mailbox that always holds the most recent unread
// snapshot. It is primed with the current snapshot when one exists and is
// closed when Run returns.
func (s *Store) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	if s.current.State != nil {
		ch <- s.current
	}
	s.subs = append(s.subs, ch)
	return ch
}

// Unsubscribe removes and closes a mailbox returned by Subscribe.
func (s *Store) Unsubscribe(sub <-chan Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ch := range s.subs {
		if (<-chan Snapshot)(ch) == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Run is the single writer: it decodes frames in arrival order and replaces
// the snapshot. Malformed frames are logged and dropped. Run returns when
// frames is closed or ctx is cancelled.
func (s *Store) Run(ctx context.Context, frames <-chan feed.Frame) {
	defer s.closeSubscribers()

	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			st, err := market.Decode(f.Data)
			if err != nil {
				s.rec.FrameDropped(DropDecode)
				s.log.Debug().Err(err).Uint64("epoch", f.Epoch).Int("bytes", len(f.Data)).Msg("dropping malformed frame")
				continue
			}
			if !s.Replace(f.Epoch, st) {
				s.log.Debug().Uint64("epoch", f.Epoch).Str("session", f.Session).Msg("dropping frame from superseded connection")
			}
		}
	}
}

func (s *Store) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

// offer places snap in a capacity-1 mailbox, replacing any unread value.
// Callers hold s.mu, so there is a single producer per mailbox.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
