package dashboard

import (
	"math"
	"strings"

	"stockdash/pkg/marketdata"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders values as a single line of block characters at most
// width cells wide. Longer inputs are sampled at even intervals; the last
// value is always kept.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	if len(values) > width {
		sampled := make([]float64, width)
		for i := range sampled {
			idx := len(values) - 1
			if width > 1 {
				idx = i * (len(values) - 1) / (width - 1)
			}
			sampled[i] = values[idx]
		}
		values = sampled
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var b strings.Builder
	for _, v := range values {
		level := len(sparkBlocks) / 2
		if hi > lo {
			level = int((v - lo) * float64(len(sparkBlocks)-1) / (hi - lo))
		}
		b.WriteRune(sparkBlocks[level])
	}
	return b.String()
}

// Closes returns the close prices of series.
func Closes(series []marketdata.PricePoint) []float64 {
	out := make([]float64, len(series))
	for i, p := range series {
		out[i] = p.Close
	}
	return out
}
