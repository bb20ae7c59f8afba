package feed

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/welloul/CyptoTerminal/internal/market"
)

// DefaultQuoteSuffix is appended to bare base assets.
const DefaultQuoteSuffix = "USDT"

var ErrEmptySymbol = errors.New("feed: empty symbol")

// Sender accepts encoded commands for the stream.
type Sender interface {
	Send(data []byte) error
}

// NormalizeSymbol trims and uppercases s and appends suffix when s does not
// already end with it.
func NormalizeSymbol(s, suffix string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	suffix = strings.ToUpper(suffix)
	if !strings.HasSuffix(s, suffix) {
		s += suffix
	}
	return s
}

// Subject tracks which instrument the stream should carry. Changing it sends
// a subscribe command and nothing else; the store keeps showing the previous
// snapshot until frames for the new instrument arrive.
type Subject struct {
	sender Sender
	suffix string
	log    zerolog.Logger

	mu      sync.Mutex
	current string
}

// NewSubject returns a Subject starting at initial. The initial symbol is
// announced on the first connection, not sent immediately.
func NewSubject(sender Sender, suffix, initial string, logger zerolog.Logger) *Subject {
	if suffix == "" {
		suffix = DefaultQuoteSuffix
	}
	return &Subject{
		sender:  sender,
		suffix:  suffix,
		log:     logger.With().Str("component", "subject").Logger(),
		current: NormalizeSymbol(initial, suffix),
	}
}

// Current returns the last requested symbol.
func (s *Subject) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Change normalizes symbol and sends exactly one subscribe command for it.
// Repeated calls with the same symbol each send a command.
func (s *Subject) Change(symbol string) (string, error) {
	sym := NormalizeSymbol(symbol, s.suffix)
	if sym == "" {
		return "", ErrEmptySymbol
	}

	s.mu.Lock()
	s.current = sym
	s.mu.Unlock()

	if err := s.send(sym); err != nil {
		return sym, err
	}
	s.log.Info().Str("symbol", sym).Msg("subject changed")
	return sym, nil
}

// Resubscribe re-announces the current subject. It is registered as a
// connect hook so a new connection carries the last requested instrument.
func (s *Subject) Resubscribe(epoch uint64) {
	sym := s.Current()
	if sym == "" {
		return
	}
	if err := s.send(sym); err != nil {
		s.log.Warn().Err(err).Uint64("epoch", epoch).Str("symbol", sym).Msg("resubscribe failed")
	}
}

func (s *Subject) send(sym string) error {
	data, err := market.Subscribe(sym).Encode()
	if err != nil {
		return fmt.Errorf("encode subscribe: %w", err)
	}
	return s.sender.Send(data)
}
