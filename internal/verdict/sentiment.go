package verdict

// FearGreedClass buckets a 0-100 fear & greed reading.
func FearGreedClass(v float64) string {
	switch {
	case v <= 25:
		return "extreme-fear"
	case v <= 40:
		return "fear"
	case v > 75:
		return "extreme-greed"
	case v > 60:
		return "greed"
	default:
		return "neutral"
	}
}

// SocialLabel names a 0-100 social sentiment score.
func SocialLabel(s float64) string {
	switch {
	case s > 75:
		return "Extremely Bullish"
	case s > 60:
		return "Bullish"
	case s < 25:
		return "Extremely Bearish"
	case s < 40:
		return "Bearish"
	default:
		return "Neutral"
	}
}

// ScannerBias reads an oversold RSI as a long setup.
func ScannerBias(rsi float64) ZoneSide {
	if rsi < 50 {
		return ZoneLong
	}
	return ZoneShort
}

// ExtremeRSI flags readings outside 20..80.
func ExtremeRSI(rsi float64) bool {
	return rsi > 80 || rsi < 20
}
