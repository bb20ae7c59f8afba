// Package collab talks to the REST endpoints served next to the market
// stream: the sentiment digest, the tradeable symbol list and recent scanner
// signals. Nothing in the streaming core depends on it.
package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/welloul/CyptoTerminal/internal/market"
)

const (
	newsPath    = "/news"
	symbolsPath = "/symbols"
	signalsPath = "/signals"
)

// ErrRateLimited is returned when the local token bucket cannot admit a
// request before the context expires, or when the server answers 429.
var ErrRateLimited = errors.New("collab: rate limited")

// Options parameterise the REST client.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
}

// Client fetches collaborator data over HTTP.
type Client struct {
	opts    Options
	log     zerolog.Logger
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient constructs a client with a token-bucket limiter.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	return &Client{
		opts:    opts,
		log:     logger.With().Str("component", "collab").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// FearGreedPoint is one daily fear & greed reading.
type FearGreedPoint struct {
	Value     int    `json:"value"`
	Label     string `json:"label"`
	Timestamp int64  `json:"timestamp"`
}

// FearGreed is the current index plus its recent history.
type FearGreed struct {
	Value   int              `json:"value"`
	Label   string           `json:"label"`
	History []FearGreedPoint `json:"history"`
}

type TrendingCoin struct {
	Name      string  `json:"name"`
	Symbol    string  `json:"symbol"`
	Rank      int     `json:"rank"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"`
	Thumb     string  `json:"thumb"`
}

// Sentiment is the /news digest. FearGreed is nil when the upstream index was
// unavailable.
type Sentiment struct {
	FearGreed *FearGreed     `json:"fearGreed"`
	Trending  []TrendingCoin `json:"trending"`
}

// SymbolInfo is one row of the 24h ticker list.
type SymbolInfo struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
	Volume float64 `json:"volume"`
}

// FetchSentiment retrieves the fear & greed index and trending coins.
func (c *Client) FetchSentiment(ctx context.Context) (*Sentiment, error) {
	var out Sentiment
	if err := c.getJSON(ctx, newsPath, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchSymbols retrieves the tradeable symbol list.
func (c *Client) FetchSymbols(ctx context.Context) ([]SymbolInfo, error) {
	var out []SymbolInfo
	if err := c.getJSON(ctx, symbolsPath, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchSignals retrieves recent scanner signals.
func (c *Client) FetchSignals(ctx context.Context) ([]market.ScannerSignal, error) {
	var out []market.ScannerSignal
	if err := c.getJSON(ctx, signalsPath, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "cyptoterm/1.0")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("collaborator request")

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return parseHTTPError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

type errorResponse struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Detail != "" {
			return fmt.Errorf("collab api error (%d): %s", status, apiErr.Detail)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("collab api error (%d): %s", status, apiErr.Message)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("collab api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("collab api error (%d)", status)
}
