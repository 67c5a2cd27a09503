package parser

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	baseConfidence     = 0.95
	minConfidence      = 0.05
	maxConfidence      = 0.99
	fallbackConfidence = 0.6
	shortBodyLength    = 80
)

var suspiciousAmount = decimal.NewFromInt(5_000_000)

// scoreConfidence rates how much a template extraction can be trusted. Each weak or
// missing signal costs a fixed penalty.
func scoreConfidence(f fields, bodyLength int) float64 {
	score := baseConfidence
	if !f.hasAmount || !f.amount.IsPositive() {
		score -= 0.35
	}
	if len([]rune(f.merchant)) < 4 {
		score -= 0.2
	}
	if f.reference == "" {
		score -= 0.2
	}
	if !f.hasDate {
		score -= 0.1
	}
	if f.card == "" {
		score -= 0.05
	}
	if bodyLength < shortBodyLength {
		score -= 0.05
	}
	if f.amount.GreaterThanOrEqual(suspiciousAmount) {
		score -= 0.05
	}
	return clamp(score)
}

func clamp(score float64) float64 {
	score = math.Round(score*100) / 100
	return math.Max(minConfidence, math.Min(maxConfidence, score))
}
