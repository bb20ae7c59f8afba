package verdict

import (
	"sort"

	"github.com/welloul/CyptoTerminal/internal/market"
)

// Pain tallies forced closes by the position side that was hit.
type Pain struct {
	Longs       int     `json:"longs"`
	Shorts      int     `json:"shorts"`
	LongVolume  float64 `json:"longVolume"`
	ShortVolume float64 `json:"shortVolume"`
}

// TallyLiquidations counts SELL events as long liquidations and BUY events
// as short liquidations. Other sides are ignored.
func TallyLiquidations(liqs []market.Liquidation) Pain {
	var p Pain
	for _, l := range liqs {
		switch l.Side {
		case market.SideSell:
			p.Longs++
			p.LongVolume += l.Quantity
		case market.SideBuy:
			p.Shorts++
			p.ShortVolume += l.Quantity
		}
	}
	return p
}

// RecentLiquidations returns at most n events, newest first. The input is
// left untouched.
func RecentLiquidations(liqs []market.Liquidation, n int) []market.Liquidation {
	if n <= 0 || len(liqs) == 0 {
		return nil
	}
	out := make([]market.Liquidation, len(liqs))
	copy(out, liqs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
