package market

import "time"

// Side is the aggressor side of a forced close as reported by the feed.
// BUY means a short position was liquidated, SELL means a long was.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Metric is a long/short split in [0,1]. Long+Short is expected to be close
// to 1 but the feed does not guarantee it.
type Metric struct {
	Long  float64 `json:"long"`
	Short float64 `json:"short"`
}

// Positioning holds the three long/short ratio tiers.
type Positioning struct {
	Global       Metric `json:"global"`       // retail accounts
	TopAccounts  Metric `json:"topAccounts"`  // smart money
	TopPositions Metric `json:"topPositions"` // whales
}

// Momentum is the taker-flow snapshot.
type Momentum struct {
	CVD          float64 `json:"cvd"`
	OpenInterest float64 `json:"openInterest"`
	TakerBuy     float64 `json:"takerBuy"`
	TakerSell    float64 `json:"takerSell"`
}

// Point is one sample of an embedded time series. Only the field matching
// the series is populated (close, oi or cvd).
type Point struct {
	Time  int64   `json:"time"`
	Close float64 `json:"close,omitempty"`
	OI    float64 `json:"oi,omitempty"`
	CVD   float64 `json:"cvd,omitempty"`
}

// History carries the short series the server embeds for charts.
type History struct {
	Price []Point `json:"price"`
	OI    []Point `json:"oi"`
	CVD   []Point `json:"cvd"`
}

// Liquidation is a single forced close. Ordering across the slice is not
// guaranteed by the feed.
type Liquidation struct {
	Price     float64 `json:"price"`
	Side      Side    `json:"side"`
	Quantity  float64 `json:"qty"`
	Timestamp int64   `json:"ts"`
}

// Time returns the liquidation timestamp (unix millis).
func (l Liquidation) Time() time.Time {
	return time.UnixMilli(l.Timestamp)
}

// PulseMessage is a social feed line.
type PulseMessage struct {
	Text      string `json:"text"`
	Sentiment string `json:"sentiment"`
	Timestamp int64  `json:"timestamp"`
}

// Social is the optional social-metrics block.
type Social struct {
	GalaxyScore    float64        `json:"galaxyScore"`
	AltRank        int            `json:"altRank"`
	Sentiment      float64        `json:"sentiment"`
	SentimentLabel string         `json:"sentimentLabel"`
	Pulse          []PulseMessage `json:"pulse"`
}

// NewsItem is one headline.
type NewsItem struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

// NewsBundle groups global and asset-specific headlines.
type NewsBundle struct {
	Global []NewsItem `json:"global"`
	Asset  []NewsItem `json:"asset"`
}

// ScannerSignal is a cross-market scanner hit.
type ScannerSignal struct {
	Timestamp string  `json:"timestamp"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	RSI       float64 `json:"rsi"`
	Delta     float64 `json:"delta"`
	TopRatio  float64 `json:"top_ratio"`
}

// Efficiency is the server-computed delta-to-price efficiency block.
type Efficiency struct {
	Score   int    `json:"score"`
	Label   string `json:"label"`
	Details string `json:"details"`
}

// State is the full market snapshot for one instrument. A State is never
// mutated after decoding; the store swaps whole values.
type State struct {
	Symbol         string          `json:"symbol"`
	Price          float64         `json:"price"`
	FundingRate    float64         `json:"fundingRate"`
	Basis          float64         `json:"basis"`
	PremiumIndex   float64         `json:"premiumIndex"`
	Ratios         Positioning     `json:"ratios"`
	Momentum       Momentum        `json:"momentum"`
	History        *History        `json:"history,omitempty"`
	Liquidations   []Liquidation   `json:"liquidations"`
	Social         *Social         `json:"social,omitempty"`
	News           *NewsBundle     `json:"news,omitempty"`
	ScannerSignals []ScannerSignal `json:"scannerSignals,omitempty"`
	ScannerStatus  string          `json:"scannerStatus,omitempty"`
	DPE            *Efficiency     `json:"dpe,omitempty"`
}

// Command is an outbound control message.
type Command struct {
	Action string `json:"action"`
	Symbol string `json:"symbol"`
}

// Subscribe builds the only control command the terminal sends.
func Subscribe(symbol string) Command {
	return Command{Action: "subscribe", Symbol: symbol}
}
