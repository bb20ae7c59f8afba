package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/welloul/CyptoTerminal/internal/collab"
	"github.com/welloul/CyptoTerminal/internal/surface"
	"github.com/welloul/CyptoTerminal/internal/verdict"
)

// ZonesOptions configure the zones command.
type ZonesOptions struct {
	Price float64
	Tiers []int
}

// Zones prints estimated liquidation zones for a reference price.
func (a *App) Zones(w io.Writer, opts ZonesOptions) error {
	tiers := opts.Tiers
	if len(tiers) == 0 {
		tiers = verdict.DefaultLeverageTiers
	}
	zones := verdict.EstimateZones(opts.Price, tiers)
	if zones == nil {
		return fmt.Errorf("price must be a positive number, got %v", opts.Price)
	}
	fmt.Fprintf(w, "Estimated liquidation zones around %s (not exchange data)\n", decimal.NewFromFloat(opts.Price).StringFixed(2))
	return surface.RenderZones(w, zones)
}

// SymbolsOptions configure the symbols command.
type SymbolsOptions struct {
	Sort  collab.SortKey
	Limit int
}

// Symbols prints the tradeable symbol list.
func (a *App) Symbols(ctx context.Context, w io.Writer, opts SymbolsOptions) error {
	list, err := a.newCollab().FetchSymbols(ctx)
	if err != nil {
		return fmt.Errorf("fetch symbols: %w", err)
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "no symbols found")
		return nil
	}

	list = collab.SortSymbols(list, opts.Sort)
	if opts.Limit > 0 && len(list) > opts.Limit {
		list = list[:opts.Limit]
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tPRICE\tCHANGE%\tVOLUME")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			s.Symbol,
			decimal.NewFromFloat(s.Price).String(),
			signed(decimal.NewFromFloat(s.Change).StringFixed(2)),
			decimal.NewFromFloat(s.Volume).StringFixed(0),
		)
	}
	return tw.Flush()
}

// Sentiment prints the fear & greed index and trending coins.
func (a *App) Sentiment(ctx context.Context, w io.Writer) error {
	s, err := a.newCollab().FetchSentiment(ctx)
	if err != nil {
		return fmt.Errorf("fetch sentiment: %w", err)
	}

	if s.FearGreed == nil {
		fmt.Fprintln(w, "Fear & Greed: unavailable")
	} else {
		fg := s.FearGreed
		fmt.Fprintf(w, "Fear & Greed: %d %s (%s)\n", fg.Value, fg.Label, verdict.FearGreedClass(float64(fg.Value)))
		if len(fg.History) > 1 {
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tVALUE\tLABEL")
			for _, h := range fg.History {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", time.Unix(h.Timestamp, 0).UTC().Format("2006-01-02"), h.Value, h.Label)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		}
	}

	if len(s.Trending) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTRENDING\tPRICE\t24H%")
	for _, c := range s.Trending {
		fmt.Fprintf(tw, "%d\t%s (%s)\t%s\t%s\n",
			c.Rank, c.Name, c.Symbol,
			decimal.NewFromFloat(c.Price).String(),
			signed(decimal.NewFromFloat(c.Change24h).StringFixed(2)),
		)
	}
	return tw.Flush()
}

// Signals prints recent scanner signals with their directional read.
func (a *App) Signals(ctx context.Context, w io.Writer) error {
	signals, err := a.newCollab().FetchSignals(ctx)
	if err != nil {
		return fmt.Errorf("fetch signals: %w", err)
	}
	if len(signals) == 0 {
		fmt.Fprintln(w, "no signals")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSYMBOL\tPRICE\tRSI\tBIAS\tTOP RATIO")
	for _, s := range signals {
		mark := ""
		if verdict.ExtremeRSI(s.RSI) {
			mark = "!"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s%s\t%s\t%s\n",
			s.Timestamp, s.Symbol,
			decimal.NewFromFloat(s.Price).String(),
			decimal.NewFromFloat(s.RSI).StringFixed(1), mark,
			verdict.ScannerBias(s.RSI),
			decimal.NewFromFloat(s.TopRatio).StringFixed(2),
		)
	}
	return tw.Flush()
}

func signed(v string) string {
	if len(v) > 0 && v[0] != '-' {
		return "+" + v
	}
	return v
}
