package verdict

import "math"

type MomentumVerdict string

const (
	BuyingPressure  MomentumVerdict = "BUYING PRESSURE"
	SellingPressure MomentumVerdict = "SELLING PRESSURE"
	Balanced        MomentumVerdict = "BALANCED"
)

const (
	// DominanceThreshold is the taker share (percent) above which one side
	// dominates the tape.
	DominanceThreshold = 55.0
	// MaxDeltaBarWidth is the half-width of a center-split delta bar.
	MaxDeltaBarWidth = 50.0
)

type Momentum struct {
	Verdict       MomentumVerdict `json:"verdict"`
	Description   string          `json:"description"`
	BuyPct        float64         `json:"buyPct"`
	SellPct       float64         `json:"sellPct"`
	TakerDelta    float64         `json:"takerDelta"`
	DeltaBarWidth float64         `json:"deltaBarWidth"`
	CVDInterp     string          `json:"cvdInterp"`
}

// ClassifyMomentum requires both taker dominance and a matching CVD sign
// before calling pressure; either signal alone is BALANCED.
func ClassifyMomentum(takerBuy, takerSell, cvd float64) Momentum {
	buyPct, sellPct, bar := 50.0, 50.0, 0.0
	delta := takerBuy - takerSell
	if math.IsInf(delta, 0) || math.IsNaN(delta) {
		delta = 0
	}

	buy, sell := takerBuy, takerSell
	total := buy + sell
	if math.IsInf(total, 0) {
		// Volumes near MaxFloat64 overflow the sum; shares are scale free.
		if scale := math.Max(math.Abs(buy), math.Abs(sell)); !math.IsInf(scale, 0) {
			buy, sell = buy/scale, sell/scale
			total = buy + sell
		}
	}
	if total > 0 && !math.IsInf(total, 0) {
		buyPct = buy * 100 / total
		sellPct = sell * 100 / total
		bar = math.Min(math.Abs(buy-sell)*100/total, MaxDeltaBarWidth)
	}

	cvdBullish := cvd > 0
	v := Balanced
	switch {
	case buyPct > DominanceThreshold && cvdBullish:
		v = BuyingPressure
	case sellPct > DominanceThreshold && !cvdBullish:
		v = SellingPressure
	}

	return Momentum{
		Verdict:       v,
		Description:   momentumDescription(v),
		BuyPct:        buyPct,
		SellPct:       sellPct,
		TakerDelta:    delta,
		DeltaBarWidth: bar,
		CVDInterp:     CVDInterp(cvd),
	}
}

func CVDInterp(cvd float64) string {
	switch {
	case cvd > 0:
		return "Buyers are aggressive"
	case cvd < 0:
		return "Sellers are aggressive"
	default:
		return "Balanced"
	}
}

func momentumDescription(v MomentumVerdict) string {
	switch v {
	case BuyingPressure:
		return "Aggressive buyers are dominating the tape"
	case SellingPressure:
		return "Aggressive sellers are dominating the tape"
	default:
		return "No clear aggression, market is in equilibrium"
	}
}
