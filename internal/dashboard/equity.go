package dashboard

import (
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
)

// EquityPoints is the number of compounding months in a synthetic curve.
const EquityPoints = 12

// EquityPoint is one labelled value of an equity curve.
type EquityPoint struct {
	Label string
	Value float64
}

// SynthesizeEquityCurve spreads totalReturn over EquityPoints months with
// uniform jitter in [-0.01, 0.01] per month. The result has
// EquityPoints+1 points: "Month 0" is exactly initialCapital, the last
// point only approximates initialCapital*(1+totalReturn). A nil rng uses
// the global source, so repeated calls differ.
func SynthesizeEquityCurve(totalReturn, initialCapital float64, rng *rand.Rand) []EquityPoint {
	float := rand.Float64
	if rng != nil {
		float = rng.Float64
	}

	monthly := math.Pow(1+totalReturn, 1.0/EquityPoints) - 1
	curve := make([]EquityPoint, 0, EquityPoints+1)
	value := initialCapital
	for i := 0; i <= EquityPoints; i++ {
		label := "Month " + strconv.Itoa(i)
		if i == 0 {
			curve = append(curve, EquityPoint{Label: label, Value: initialCapital})
			continue
		}
		variation := (float() - 0.5) * 0.02
		value *= 1 + monthly + variation
		curve = append(curve, EquityPoint{Label: label, Value: value})
	}
	return curve
}

// ServiceEquityCurve converts the service's date -> cumulative growth
// factor map into values of initialCapital, ordered by date.
func ServiceEquityCurve(factors map[string]float64, initialCapital float64) []EquityPoint {
	dates := make([]string, 0, len(factors))
	for d := range factors {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	curve := make([]EquityPoint, 0, len(dates)+1)
	curve = append(curve, EquityPoint{Label: "Start", Value: initialCapital})
	for _, d := range dates {
		f := factors[d]
		// The service reports undefined leading values as 0.
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		curve = append(curve, EquityPoint{Label: d, Value: initialCapital * f})
	}
	return curve
}

// EquityValues returns the values of curve, for plotting.
func EquityValues(curve []EquityPoint) []float64 {
	out := make([]float64, len(curve))
	for i, p := range curve {
		out[i] = p.Value
	}
	return out
}
