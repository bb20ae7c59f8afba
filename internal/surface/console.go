// Package surface contains the subscribers that present verdicts outside the
// process: a console table and a Redis mirror.
package surface

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/welloul/CyptoTerminal/internal/market"
	"github.com/welloul/CyptoTerminal/internal/store"
	"github.com/welloul/CyptoTerminal/internal/verdict"
)

// ConnectionSource reports the live connection status.
type ConnectionSource interface {
	Connected() bool
}

// Console prints a verdict table at most once per interval. Snapshots that
// arrive in between are coalesced into the next render. A connection status
// edge redraws the last snapshot with the new status.
type Console struct {
	out      io.Writer
	interval time.Duration
	feed     <-chan store.Snapshot
	conn     ConnectionSource
	status   <-chan bool
	log      zerolog.Logger
}

// NewConsole creates a console renderer. conn supplies the status at start
// and status its later edges; either may be nil.
func NewConsole(out io.Writer, interval time.Duration, feed <-chan store.Snapshot, conn ConnectionSource, status <-chan bool, logger zerolog.Logger) *Console {
	if interval <= 0 {
		interval = time.Second
	}
	return &Console{
		out:      out,
		interval: interval,
		feed:     feed,
		conn:     conn,
		status:   status,
		log:      logger.With().Str("component", "console").Logger(),
	}
}

// Run renders until ctx is cancelled or the subscription closes.
func (c *Console) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	connected := c.conn == nil || c.conn.Connected()
	status := c.status

	var (
		last  *store.Snapshot
		dirty bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-c.feed:
			if !ok {
				return
			}
			last = &snap
			dirty = true
		case up, ok := <-status:
			if !ok {
				status = nil
				continue
			}
			if up != connected {
				connected = up
				dirty = true
			}
		case <-ticker.C:
			if !dirty {
				continue
			}
			var st *market.State
			if last != nil {
				st = last.State
			}
			if err := RenderReport(c.out, verdict.Evaluate(st), connected); err != nil {
				c.log.Warn().Err(err).Msg("render failed")
			}
			dirty = false
		}
	}
}

// RenderReport writes a human-readable verdict table.
func RenderReport(w io.Writer, r verdict.Report, connected bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	status := "LIVE"
	if !connected {
		status = "RECONNECTING"
	}
	if !r.HasData {
		fmt.Fprintf(tw, "[%s]\tno data yet\n", status)
		return tw.Flush()
	}

	fmt.Fprintf(tw, "[%s]\t%s\t%s\n", status, r.Symbol, fixed(r.Price, 2))
	fmt.Fprintf(tw, "STRESS\t%s\t%s / %s\n", r.Stress.Level, r.Stress.FundingInterp, r.Stress.BasisInterp)
	fmt.Fprintf(tw, "MOMENTUM\t%s\tbuy %s%% sell %s%% (%s)\n",
		r.Momentum.Verdict, fixed(r.Momentum.BuyPct, 1), fixed(r.Momentum.SellPct, 1), r.Momentum.CVDInterp)
	fmt.Fprintf(tw, "BIAS\t%s\tscore %s%s\n", r.Positioning.Bias, fixed(r.Positioning.Score, 3), divergence(r.Positioning.Divergent))
	fmt.Fprintf(tw, "  retail\t%s\t%s\n", r.Positioning.Retail.Label, r.Positioning.Retail.Description)
	fmt.Fprintf(tw, "  smart money\t%s\t%s\n", r.Positioning.SmartMoney.Label, r.Positioning.SmartMoney.Description)
	fmt.Fprintf(tw, "  whales\t%s\t%s\n", r.Positioning.Whales.Label, r.Positioning.Whales.Description)
	fmt.Fprintf(tw, "PAIN\t%d longs / %d shorts\t\n", r.Pain.Longs, r.Pain.Shorts)
	if r.SocialLabel != "" {
		fmt.Fprintf(tw, "SOCIAL\t%s\t\n", r.SocialLabel)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return RenderZones(w, r.Zones)
}

// RenderZones writes estimated liquidation zones, nearest first.
func RenderZones(w io.Writer, zones []verdict.Zone) error {
	if len(zones) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVERAGE\tSIDE\tPRICE (est.)\tDISTANCE")
	for _, z := range zones {
		fmt.Fprintf(tw, "%dx\t%s\t%s\t%s\n", z.Leverage, z.Side, fixed(z.Price, 2), fixed(z.Distance, 2))
	}
	return tw.Flush()
}

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func divergence(d bool) string {
	if d {
		return " (retail diverges from whales)"
	}
	return ""
}
