package market

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyPayload is returned by Decode for a zero-length or blank frame.
var ErrEmptyPayload = errors.New("market: empty payload")

// Raw wire shapes. Pointer fields distinguish "absent" from "zero" so that
// missing values can take their semantic defaults.
type rawState struct {
	Symbol         *string            `json:"symbol"`
	Price          *float64           `json:"price"`
	FundingRate    *float64           `json:"fundingRate"`
	Basis          *float64           `json:"basis"`
	PremiumIndex   *float64           `json:"premiumIndex"`
	Ratios         *rawRatios         `json:"ratios"`
	Momentum       *rawMomentum       `json:"momentum"`
	History        *History           `json:"history"`
	Liquidations   []rawLiquidation   `json:"liquidations"`
	Social         *rawSocial         `json:"social"`
	News           *NewsBundle        `json:"news"`
	ScannerSignals []rawScannerSignal `json:"scannerSignals"`
	ScannerStatus  *string            `json:"scannerStatus"`
	DPE            *Efficiency        `json:"dpe"`
}

type rawMetric struct {
	Long  *float64 `json:"long"`
	Short *float64 `json:"short"`
}

type rawRatios struct {
	Global       *rawMetric `json:"global"`
	TopAccounts  *rawMetric `json:"topAccounts"`
	TopPositions *rawMetric `json:"topPositions"`
}

type rawMomentum struct {
	CVD          *float64 `json:"cvd"`
	OpenInterest *float64 `json:"openInterest"`
	TakerBuy     *float64 `json:"takerBuy"`
	TakerSell    *float64 `json:"takerSell"`
}

type rawLiquidation struct {
	Price     *float64 `json:"price"`
	Side      string   `json:"side"`
	Quantity  *float64 `json:"qty"`
	Timestamp *int64   `json:"ts"`
}

type rawSocial struct {
	GalaxyScore    *float64       `json:"galaxyScore"`
	AltRank        *int           `json:"altRank"`
	Sentiment      *float64       `json:"sentiment"`
	SentimentLabel string         `json:"sentimentLabel"`
	Pulse          []PulseMessage `json:"pulse"`
}

type rawScannerSignal struct {
	Timestamp string   `json:"timestamp"`
	Symbol    string   `json:"symbol"`
	Price     *float64 `json:"price"`
	RSI       *float64 `json:"rsi"`
	Delta     *float64 `json:"delta"`
	TopRatio  *float64 `json:"top_ratio"`
}

// Defaults applied to absent fields.
const (
	DefaultRatio     = 0.5
	DefaultRSI       = 50.0
	DefaultTopRatio  = 1.0
	DefaultSentiment = 50.0
)

// Decode parses one inbound frame into a State. Unknown fields are ignored
// and absent numeric fields take their neutral defaults.
func Decode(data []byte) (*State, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyPayload
	}

	var raw rawState
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("market: decode state: %w", err)
	}

	st := &State{
		Symbol:        str(raw.Symbol, ""),
		Price:         num(raw.Price, 0),
		FundingRate:   num(raw.FundingRate, 0),
		Basis:         num(raw.Basis, 0),
		PremiumIndex:  num(raw.PremiumIndex, 0),
		Ratios:        raw.Ratios.normalize(),
		Momentum:      raw.Momentum.normalize(),
		History:       raw.History,
		News:          raw.News,
		ScannerStatus: str(raw.ScannerStatus, ""),
		DPE:           raw.DPE,
	}

	if len(raw.Liquidations) > 0 {
		st.Liquidations = make([]Liquidation, 0, len(raw.Liquidations))
		for _, l := range raw.Liquidations {
			st.Liquidations = append(st.Liquidations, Liquidation{
				Price:     num(l.Price, 0),
				Side:      Side(l.Side),
				Quantity:  num(l.Quantity, 0),
				Timestamp: integer(l.Timestamp),
			})
		}
	}

	if raw.Social != nil {
		s := &Social{
			GalaxyScore:    num(raw.Social.GalaxyScore, 0),
			Sentiment:      num(raw.Social.Sentiment, DefaultSentiment),
			SentimentLabel: raw.Social.SentimentLabel,
			Pulse:          raw.Social.Pulse,
		}
		if raw.Social.AltRank != nil {
			s.AltRank = *raw.Social.AltRank
		}
		st.Social = s
	}

	if len(raw.ScannerSignals) > 0 {
		st.ScannerSignals = make([]ScannerSignal, 0, len(raw.ScannerSignals))
		for _, sig := range raw.ScannerSignals {
			st.ScannerSignals = append(st.ScannerSignals, ScannerSignal{
				Timestamp: sig.Timestamp,
				Symbol:    sig.Symbol,
				Price:     num(sig.Price, 0),
				RSI:       num(sig.RSI, DefaultRSI),
				Delta:     num(sig.Delta, 0),
				TopRatio:  num(sig.TopRatio, DefaultTopRatio),
			})
		}
	}

	return st, nil
}

// UnmarshalJSON decodes a standalone scanner signal, as served by the REST
// signal list, applying the same defaults as Decode.
func (s *ScannerSignal) UnmarshalJSON(data []byte) error {
	type plain ScannerSignal
	p := plain{RSI: DefaultRSI, TopRatio: DefaultTopRatio}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = ScannerSignal(p)
	return nil
}

// Encode renders a command for the wire.
func (c Command) Encode() ([]byte, error) {
	return json.Marshal(c)
}

func (r *rawRatios) normalize() Positioning {
	if r == nil {
		return Positioning{
			Global:       neutralMetric(),
			TopAccounts:  neutralMetric(),
			TopPositions: neutralMetric(),
		}
	}
	return Positioning{
		Global:       r.Global.normalize(),
		TopAccounts:  r.TopAccounts.normalize(),
		TopPositions: r.TopPositions.normalize(),
	}
}

// normalize fills a missing side from its complement when only one side is
// present, and falls back to an even split when both are missing.
func (m *rawMetric) normalize() Metric {
	if m == nil {
		return neutralMetric()
	}
	switch {
	case m.Long != nil && m.Short != nil:
		return Metric{Long: *m.Long, Short: *m.Short}
	case m.Long != nil:
		return Metric{Long: *m.Long, Short: 1 - *m.Long}
	case m.Short != nil:
		return Metric{Long: 1 - *m.Short, Short: *m.Short}
	default:
		return neutralMetric()
	}
}

func (m *rawMomentum) normalize() Momentum {
	if m == nil {
		return Momentum{}
	}
	return Momentum{
		CVD:          num(m.CVD, 0),
		OpenInterest: num(m.OpenInterest, 0),
		TakerBuy:     num(m.TakerBuy, 0),
		TakerSell:    num(m.TakerSell, 0),
	}
}

func neutralMetric() Metric {
	return Metric{Long: DefaultRatio, Short: DefaultRatio}
}

func num(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func integer(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func str(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}
