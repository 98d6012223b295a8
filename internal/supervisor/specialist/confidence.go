package specialist

import (
	"math"
	"regexp"
)

// Heuristic confidence for answers produced without a specialist endpoint.
const (
	BaseConfidence    = 0.6
	HedgePenalty      = 0.15
	CertaintyBonus    = 0.10
	MinConfidence     = 0.2
	MaxConfidence     = 0.95
	TimeoutConfidence = 0.3
	FailureConfidence = 0.2
)

var hedgePattern = regexp.MustCompile(`(?i)\b(may|might|possibly|perhaps|unclear|uncertain|appears to|seems|likely|approximately|not sure|unable to|could not find|insufficient|limited information|it is possible|cannot confirm|no data)\b`)

var certaintyPattern = regexp.MustCompile(`(?i)\b(confirmed|clearly|definitely|according to|states that|shows that|documented|specifically|exactly|verified|explicitly)\b`)

// EstimateConfidence scores text by its hedging and certainty language.
func EstimateConfidence(text string) float64 {
	hedges := len(hedgePattern.FindAllStringIndex(text, -1))
	certain := len(certaintyPattern.FindAllStringIndex(text, -1))

	c := BaseConfidence - HedgePenalty*float64(hedges) + CertaintyBonus*float64(certain)
	c = math.Max(MinConfidence, math.Min(MaxConfidence, c))
	return math.Round(c*100) / 100
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
