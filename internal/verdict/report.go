package verdict

import "github.com/welloul/CyptoTerminal/internal/market"

// RecentLiquidationLimit caps the liquidation feed in a Report.
const RecentLiquidationLimit = 10

// ScannerRead is a scanner hit with its derived bias.
type ScannerRead struct {
	Symbol  string   `json:"symbol"`
	Price   float64  `json:"price"`
	RSI     float64  `json:"rsi"`
	Bias    ZoneSide `json:"bias"`
	Extreme bool     `json:"extreme"`
}

// Report bundles every verdict derived from one snapshot.
type Report struct {
	HasData     bool                 `json:"hasData"`
	Symbol      string               `json:"symbol"`
	Price       float64              `json:"price"`
	Stress      Stress               `json:"stress"`
	Momentum    Momentum             `json:"momentum"`
	Positioning Positioning          `json:"positioning"`
	Zones       []Zone               `json:"zones"`
	Pain        Pain                 `json:"pain"`
	Recent      []market.Liquidation `json:"recentLiquidations"`
	SocialLabel string               `json:"socialLabel,omitempty"`
	Scanner     []ScannerRead        `json:"scanner,omitempty"`
}

// Evaluate runs every classifier against st. A nil st (no data yet) yields
// a neutral report with HasData false.
func Evaluate(st *market.State) Report {
	if st == nil {
		st = &market.State{Ratios: market.Positioning{
			Global:       market.Metric{Long: market.DefaultRatio, Short: market.DefaultRatio},
			TopAccounts:  market.Metric{Long: market.DefaultRatio, Short: market.DefaultRatio},
			TopPositions: market.Metric{Long: market.DefaultRatio, Short: market.DefaultRatio},
		}}
		r := evaluate(st)
		r.HasData = false
		return r
	}
	return evaluate(st)
}

func evaluate(st *market.State) Report {
	r := Report{
		HasData:     true,
		Symbol:      st.Symbol,
		Price:       st.Price,
		Stress:      ClassifyStress(st.FundingRate, st.Basis, st.PremiumIndex),
		Momentum:    ClassifyMomentum(st.Momentum.TakerBuy, st.Momentum.TakerSell, st.Momentum.CVD),
		Positioning: ClassifyPositioning(st.Ratios),
		Zones:       EstimateZones(st.Price, DefaultLeverageTiers),
		Pain:        TallyLiquidations(st.Liquidations),
		Recent:      RecentLiquidations(st.Liquidations, RecentLiquidationLimit),
	}
	if st.Social != nil {
		r.SocialLabel = SocialLabel(st.Social.Sentiment)
	}
	for _, sig := range st.ScannerSignals {
		r.Scanner = append(r.Scanner, ScannerRead{
			Symbol:  sig.Symbol,
			Price:   sig.Price,
			RSI:     sig.RSI,
			Bias:    ScannerBias(sig.RSI),
			Extreme: ExtremeRSI(sig.RSI),
		})
	}
	return r
}

// Labels returns the headline verdicts, used to detect changes between
// reports.
func (r Report) Labels() (StressLevel, MomentumVerdict, Bias) {
	return r.Stress.Level, r.Momentum.Verdict, r.Positioning.Bias
}
