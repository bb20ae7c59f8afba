package collab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(url string) *Client {
	return NewClient(Options{BaseURL: url, Timeout: time.Second, RequestsPerSecond: 100, Burst: 10}, zerolog.Nop())
}

func TestFetchSentiment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/news" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"fearGreed": map[string]any{
				"value": 72,
				"label": "Greed",
				"history": []map[string]any{
					{"value": 72, "label": "Greed", "timestamp": 1700000000},
					{"value": 55, "label": "Neutral", "timestamp": 1699913600},
				},
			},
			"trending": []map[string]any{
				{"name": "Solana", "symbol": "SOL", "rank": 5, "price": 101.5, "change24h": 4.2},
			},
		})
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).FetchSentiment(context.Background())
	if err != nil {
		t.Fatalf("FetchSentiment: %v", err)
	}
	if got.FearGreed == nil || got.FearGreed.Value != 72 || len(got.FearGreed.History) != 2 {
		t.Fatalf("fearGreed = %+v", got.FearGreed)
	}
	if len(got.Trending) != 1 || got.Trending[0].Symbol != "SOL" || got.Trending[0].Change24h != 4.2 {
		t.Errorf("trending = %+v", got.Trending)
	}
}

func TestFetchSentimentMissingIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fearGreed":null,"trending":[]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).FetchSentiment(context.Background())
	if err != nil {
		t.Fatalf("FetchSentiment: %v", err)
	}
	if got.FearGreed != nil {
		t.Errorf("fearGreed = %+v, want nil", got.FearGreed)
	}
}

func TestFetchSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/symbols" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`[{"symbol":"BTCUSDT","price":50000,"change":1.5,"volume":9e9},{"symbol":"ETHUSDT","price":2500,"change":-2,"volume":4e9}]`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).FetchSymbols(context.Background())
	if err != nil {
		t.Fatalf("FetchSymbols: %v", err)
	}
	if len(got) != 2 || got[1].Change != -2 {
		t.Errorf("symbols = %+v", got)
	}
}

func TestFetchSignals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"timestamp":"12:00:01","symbol":"DOGEUSDT","price":0.08,"rsi":18,"delta":-1200,"top_ratio":0.8},{"symbol":"XRPUSDT"}]`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).FetchSignals(context.Background())
	if err != nil {
		t.Fatalf("FetchSignals: %v", err)
	}
	if len(got) != 2 || got[0].RSI != 18 || got[0].TopRatio != 0.8 {
		t.Fatalf("signals = %+v", got)
	}
	if got[1].RSI != 50 || got[1].TopRatio != 1.0 {
		t.Errorf("absent fields = %+v, want rsi 50 and top_ratio 1.0", got[1])
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "upstream down"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchSymbols(context.Background())
	if err == nil {
		t.Fatal("expected error for 502")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Errorf("502 reported as rate limit: %v", err)
	}
}

func TestFetchServerRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchSentiment(context.Background())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestClientSideLimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, RequestsPerSecond: 0.1, Burst: 1}, zerolog.Nop())
	if _, err := c.FetchSymbols(context.Background()); err != nil {
		t.Fatalf("first request: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.FetchSymbols(ctx); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("second request err = %v, want ErrRateLimited", err)
	}
}

func TestSortSymbols(t *testing.T) {
	list := []SymbolInfo{
		{Symbol: "A", Change: 1, Volume: 10},
		{Symbol: "B", Change: -5, Volume: 30},
		{Symbol: "C", Change: 7, Volume: 20},
	}

	cases := []struct {
		by   SortKey
		want string
	}{
		{SortVolume, "BCA"},
		{SortGainers, "CAB"},
		{SortLosers, "BAC"},
	}
	for _, tc := range cases {
		got := SortSymbols(list, tc.by)
		order := ""
		for _, s := range got {
			order += s.Symbol
		}
		if order != tc.want {
			t.Errorf("SortSymbols(%s) = %s, want %s", tc.by, order, tc.want)
		}
	}
	if list[0].Symbol != "A" {
		t.Error("SortSymbols mutated its input")
	}
}

func TestParseSortKey(t *testing.T) {
	if k, err := ParseSortKey(" Gainers "); err != nil || k != SortGainers {
		t.Errorf("ParseSortKey(Gainers) = %v, %v", k, err)
	}
	if k, _ := ParseSortKey(""); k != SortVolume {
		t.Errorf("empty key = %v, want volume", k)
	}
	if _, err := ParseSortKey("alpha"); err == nil {
		t.Error("expected error for unknown key")
	}
}
