// Package verdict turns a market snapshot into human-readable verdicts.
// Every function here is pure: it reads its inputs and returns a value,
// never mutates the snapshot and never fails on well-formed numbers.
package verdict

import "math"

// StressLevel summarises funding and premium pressure.
type StressLevel string

const (
	StressNormal     StressLevel = "NORMAL"
	StressElevated   StressLevel = "ELEVATED"
	StressOverheated StressLevel = "OVERHEATED"
)

// Stress thresholds.
const (
	FundingHeavy   = 0.001
	FundingHigh    = 0.0005
	PremiumHigh    = 0.001
	BasisContango  = 20.0
	BasisBackwards = -20.0
)

// Stress is the derivatives-stress verdict.
type Stress struct {
	Level         StressLevel `json:"level"`
	FundingInterp string      `json:"fundingInterp"`
	BasisInterp   string      `json:"basisInterp"`
	HighFunding   bool        `json:"highFunding"`
	HighPremium   bool        `json:"highPremium"`
}

// ClassifyStress derives the stress verdict from funding rate, basis and
// premium index.
func ClassifyStress(fundingRate, basis, premiumIndex float64) Stress {
	highFunding := math.Abs(fundingRate) > FundingHigh
	highPremium := math.Abs(premiumIndex) > PremiumHigh

	level := StressNormal
	switch {
	case highFunding && highPremium:
		level = StressOverheated
	case highFunding || highPremium:
		level = StressElevated
	}

	return Stress{
		Level:         level,
		FundingInterp: FundingInterp(fundingRate),
		BasisInterp:   BasisInterp(basis),
		HighFunding:   highFunding,
		HighPremium:   highPremium,
	}
}

// FundingInterp describes who is paying whom.
func FundingInterp(fr float64) string {
	switch {
	case fr > FundingHeavy:
		return "Longs paying heavy"
	case fr > FundingHigh:
		return "Bullish premium"
	case fr < -FundingHigh:
		return "Shorts paying"
	default:
		return "Normal range"
	}
}

// BasisInterp describes the futures curve.
func BasisInterp(basis float64) string {
	switch {
	case basis > BasisContango:
		return "Contango"
	case basis < BasisBackwards:
		return "Backwardation"
	default:
		return "Near spot"
	}
}
