package dashboard

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"
)

func TestSynthesizeZeroReturnBounds(t *testing.T) {
	const capital = 10000.0
	for seed := uint64(0); seed < 50; seed++ {
		curve := SynthesizeEquityCurve(0, capital, rand.New(rand.NewPCG(seed, seed+1)))
		if len(curve) != EquityPoints+1 {
			t.Fatalf("len = %d, want %d", len(curve), EquityPoints+1)
		}
		if curve[0].Label != "Month 0" || curve[0].Value != capital {
			t.Fatalf("first point = %+v, want {Month 0 10000}", curve[0])
		}
		for i := 1; i <= EquityPoints; i++ {
			p := curve[i]
			if p.Label != fmt.Sprintf("Month %d", i) {
				t.Errorf("label %d = %q", i, p.Label)
			}
			lo := capital * math.Pow(0.99, float64(i))
			hi := capital * math.Pow(1.01, float64(i))
			if p.Value < lo || p.Value > hi {
				t.Errorf("seed %d month %d: %v outside [%v, %v]", seed, i, p.Value, lo, hi)
			}
		}
	}
}

func TestSynthesizeApproximatesTotalReturn(t *testing.T) {
	curve := SynthesizeEquityCurve(0.25, 10000, rand.New(rand.NewPCG(7, 7)))
	last := curve[len(curve)-1].Value
	// Twelve months of at most 1% jitter each.
	lo, hi := 12500*math.Pow(0.99, 12)*0.99, 12500*math.Pow(1.01, 12)*1.01
	if last < lo || last > hi {
		t.Errorf("last = %v, want near 12500", last)
	}
}

func TestSynthesizeMatchesAlgorithm(t *testing.T) {
	const r, capital = 0.4, 5000.0
	curve := SynthesizeEquityCurve(r, capital, rand.New(rand.NewPCG(3, 4)))

	// Replay the same draws by hand.
	ref := rand.New(rand.NewPCG(3, 4))
	monthly := math.Pow(1+r, 1.0/12) - 1
	value := capital
	for i := 1; i <= 12; i++ {
		value *= 1 + monthly + (ref.Float64()-0.5)*0.02
		if math.Abs(curve[i].Value-value) > 1e-9 {
			t.Fatalf("month %d = %v, want %v", i, curve[i].Value, value)
		}
	}
}

func TestSynthesizeNilRand(t *testing.T) {
	curve := SynthesizeEquityCurve(0.1, 1000, nil)
	if len(curve) != 13 || curve[0].Value != 1000 {
		t.Errorf("unexpected curve %v", curve)
	}
}

func TestServiceEquityCurve(t *testing.T) {
	curve := ServiceEquityCurve(map[string]float64{
		"2024-02-01": 1.10,
		"2024-01-01": 0, // undefined leading value
		"2024-01-15": 0.95,
		"2024-01-20": math.NaN(),
	}, 1000)
	want := []EquityPoint{{"Start", 1000}, {"2024-01-15", 950}, {"2024-02-01", 1100}}
	if len(curve) != len(want) {
		t.Fatalf("curve = %v, want %v", curve, want)
	}
	for i := range want {
		if curve[i].Label != want[i].Label || math.Abs(curve[i].Value-want[i].Value) > 1e-9 {
			t.Errorf("point %d = %+v, want %+v", i, curve[i], want[i])
		}
	}
	if vals := EquityValues(curve); len(vals) != 3 || vals[0] != 1000 {
		t.Errorf("EquityValues = %v", vals)
	}
}
