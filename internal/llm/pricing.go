package llm

import "math"

// Pricing is the provider's price in cents per million tokens.
type Pricing struct {
	InputCentsPerMillion  float64
	OutputCentsPerMillion float64
}

// CostCents returns the cost of u, rounded to four decimal places.
func (p Pricing) CostCents(u Usage) float64 {
	cost := float64(u.InputTokens)*p.InputCentsPerMillion/1e6 +
		float64(u.OutputTokens)*p.OutputCentsPerMillion/1e6
	return math.Round(cost*1e4) / 1e4
}
