package verdict

import "github.com/welloul/CyptoTerminal/internal/market"

// Bias is the composite positioning verdict.
type Bias string

const (
	Bullish Bias = "BULLISH"
	Bearish Bias = "BEARISH"
	Neutral Bias = "NEUTRAL"
)

// Composite weights. Retail enters inverted: a crowded retail long pulls the
// score down.
const (
	WhaleWeight  = 0.5
	SmartWeight  = 0.3
	RetailWeight = 0.2

	BiasBullish = 0.6
	BiasBearish = 0.4
)

// Tier is a per-cohort reading.
type Tier struct {
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Long        float64 `json:"long"`
	Short       float64 `json:"short"`
}

// Positioning is the result of ClassifyPositioning.
type Positioning struct {
	Bias        Bias    `json:"bias"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Divergent   bool    `json:"divergent"`
	Retail      Tier    `json:"retail"`
	SmartMoney  Tier    `json:"smartMoney"`
	Whales      Tier    `json:"whales"`
}

// BiasScore is whaleLong*0.5 + smartLong*0.3 + (1-retailLong)*0.2.
func BiasScore(whaleLong, smartLong, retailLong float64) float64 {
	return whaleLong*WhaleWeight + smartLong*SmartWeight + (1-retailLong)*RetailWeight
}

// ClassifyBias maps a composite score onto a bias.
func ClassifyBias(score float64) Bias {
	switch {
	case score > BiasBullish:
		return Bullish
	case score < BiasBearish:
		return Bearish
	default:
		return Neutral
	}
}

// Divergent reports retail crowding against whale positioning.
func Divergent(retail, whales market.Metric) bool {
	return (retail.Long > 0.6 && whales.Short > 0.55) ||
		(retail.Short > 0.6 && whales.Long > 0.55)
}

// ClassifyPositioning reads the three ratio tiers.
func ClassifyPositioning(p market.Positioning) Positioning {
	score := BiasScore(p.TopPositions.Long, p.TopAccounts.Long, p.Global.Long)
	bias := ClassifyBias(score)

	return Positioning{
		Bias:        bias,
		Description: biasDescription(bias),
		Score:       score,
		Divergent:   Divergent(p.Global, p.TopPositions),
		Retail:      RetailTier(p.Global),
		SmartMoney:  SmartMoneyTier(p.TopAccounts),
		Whales:      WhaleTier(p.TopPositions),
	}
}

// RetailTier bands the global account ratio.
func RetailTier(m market.Metric) Tier {
	t := Tier{Long: m.Long, Short: m.Short}
	switch {
	case m.Long > 0.65:
		t.Label, t.Description = "HEAVILY LONG", "Retail heavily long, crowded, squeeze risk if price drops"
	case m.Long > 0.55:
		t.Label, t.Description = "LEANING LONG", "Retail leaning long, moderate bullish sentiment"
	case m.Long < 0.35:
		t.Label, t.Description = "HEAVILY SHORT", "Retail heavily short, crowded, squeeze risk if price pumps"
	case m.Long < 0.45:
		t.Label, t.Description = "LEANING SHORT", "Retail leaning short, moderate bearish sentiment"
	default:
		t.Label, t.Description = "BALANCED", "Retail is balanced, no clear crowd bias"
	}
	return t
}

func SmartMoneyTier(m market.Metric) Tier {
	t := Tier{Long: m.Long, Short: m.Short}
	switch {
	case m.Long > 0.6:
		t.Label, t.Description = "BULLISH", "Smart money is bullish, following the trend"
	case m.Long < 0.4:
		t.Label, t.Description = "BEARISH", "Smart money is bearish, risk of downside"
	default:
		t.Label, t.Description = "NEUTRAL", "Smart money is neutral, waiting for a catalyst"
	}
	return t
}

func WhaleTier(m market.Metric) Tier {
	t := Tier{Long: m.Long, Short: m.Short}
	switch {
	case m.Long > 0.6:
		t.Label, t.Description = "NET LONG", "Whales are net LONG, big money betting on up"
	case m.Long < 0.4:
		t.Label, t.Description = "NET SHORT", "Whales are net SHORT, big money betting on down"
	default:
		t.Label, t.Description = "HEDGED", "Whales are hedged, no strong directional bias"
	}
	return t
}

func biasDescription(b Bias) string {
	switch b {
	case Bullish:
		return "Whales and smart money favor upside"
	case Bearish:
		return "Whales and smart money favor downside"
	default:
		return "No strong consensus, market is balanced"
	}
}
