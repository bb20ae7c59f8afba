package rpc_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/welloul/CyptoTerminal/internal/feed"
	"github.com/welloul/CyptoTerminal/internal/market"
	"github.com/welloul/CyptoTerminal/internal/rpc"
	"github.com/welloul/CyptoTerminal/internal/store"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) Send(data []byte) error {
	r.mu.Lock()
	r.sent = append(r.sent, string(data))
	r.mu.Unlock()
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("socket %s never appeared", path)
}

// startServer runs a VerdictService on a temporary Unix socket and returns a
// connected client.
func startServer(t *testing.T) (*rpc.Client, *store.Store, *recordingSender) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "verdict.sock")

	st := store.New(zerolog.Nop())
	sender := &recordingSender{}
	subject := feed.NewSubject(sender, "USDT", "", zerolog.Nop())

	srv, err := rpc.New(socketPath, rpc.NewHandler(st, subject, zerolog.Nop()))
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	go srv.Serve()
	t.Cleanup(srv.Stop)
	waitForSocket(t, socketPath)

	conn, err := grpc.NewClient("unix:"+socketPath, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return rpc.NewClient(conn), st, sender
}

func TestIntegration_GetVerdicts(t *testing.T) {
	client, st, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// Before any data: neutral report.
	resp, err := client.GetVerdicts(ctx)
	if err != nil {
		t.Fatalf("GetVerdicts: %v", err)
	}
	if resp.Fields["hasData"].GetBoolValue() {
		t.Fatal("hasData true before any snapshot")
	}

	st.Replace(1, &market.State{
		Symbol:       "BTCUSDT",
		Price:        50000,
		FundingRate:  0.0007,
		PremiumIndex: 0.002,
		Ratios: market.Positioning{
			Global:       market.Metric{Long: 0.5, Short: 0.5},
			TopAccounts:  market.Metric{Long: 0.5, Short: 0.5},
			TopPositions: market.Metric{Long: 0.5, Short: 0.5},
		},
	})

	resp, err = client.GetVerdicts(ctx)
	if err != nil {
		t.Fatalf("GetVerdicts: %v", err)
	}
	if got := resp.Fields["symbol"].GetStringValue(); got != "BTCUSDT" {
		t.Errorf("symbol = %q", got)
	}
	stress := resp.Fields["stress"].GetStructValue()
	if got := stress.GetFields()["level"].GetStringValue(); got != "OVERHEATED" {
		t.Errorf("stress level = %q", got)
	}
	if zones := resp.Fields["zones"].GetListValue().GetValues(); len(zones) != 8 {
		t.Errorf("zones = %d, want 8", len(zones))
	}
}

func TestIntegration_GetStateNoData(t *testing.T) {
	client, st, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := client.GetState(ctx)
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("GetState before data: %v, want Unavailable", err)
	}

	st.Replace(1, &market.State{Symbol: "ETHUSDT", Price: 2500})
	resp, err := client.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if resp.Fields["price"].GetNumberValue() != 2500 {
		t.Errorf("state = %v", resp)
	}
}

func TestIntegration_ChangeSubject(t *testing.T) {
	client, st, sender := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	st.Replace(1, &market.State{Symbol: "BTCUSDT", Price: 1})

	sym, err := client.ChangeSubject(ctx, "sol")
	if err != nil {
		t.Fatalf("ChangeSubject: %v", err)
	}
	if sym != "SOLUSDT" {
		t.Errorf("symbol = %s", sym)
	}
	if sender.count() != 1 {
		t.Errorf("commands sent = %d, want 1", sender.count())
	}
	if cur, _ := st.Current(); cur.Symbol != "BTCUSDT" {
		t.Error("subject change mutated the store")
	}

	if _, err := client.ChangeSubject(ctx, " "); status.Code(err) != codes.InvalidArgument {
		t.Errorf("empty symbol: %v, want InvalidArgument", err)
	}
}

func TestIntegration_WatchVerdicts(t *testing.T) {
	client, st, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	st.Replace(1, &market.State{Symbol: "BTCUSDT", Price: 1})

	stream, err := client.WatchVerdicts(ctx)
	if err != nil {
		t.Fatalf("WatchVerdicts: %v", err)
	}

	// The subscription is primed with the current snapshot.
	msg, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if msg.Fields["price"].GetNumberValue() != 1 {
		t.Fatalf("first report price = %v", msg.Fields["price"])
	}

	st.Replace(1, &market.State{Symbol: "BTCUSDT", Price: 2})
	msg, err = stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if msg.Fields["price"].GetNumberValue() != 2 {
		t.Fatalf("second report price = %v", msg.Fields["price"])
	}
}
