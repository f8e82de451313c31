// Package dashboard holds the client-side state of the stock dashboard:
// selection, debounced search, watchlist polling, chart fetching and
// backtests. All state is owned by a Dashboard and mutated only from the
// bubbletea event loop; network calls run as tea.Cmds and report back as
// messages.
package dashboard

import (
	"math"

	"stockdash/pkg/marketdata"
)

// SeriesStats summarises a displayed series.
type SeriesStats struct {
	Points   int
	High     float64
	Low      float64
	Open     float64 // open of the first bar
	Close    float64 // close of the last bar
	Volume   int64
	Turnover float64 // sum(close * volume)
	Return   float64 // (close - open) / open over the window
	MaxGain  float64 // best buy-low/sell-later move over the window
	MaxLoss  float64 // deepest drawdown from a prior peak, as a fraction of the peak
}

// ComputeSeriesStats aggregates an ascending series. Bars are scanned in
// order so that gain and loss only count a sell after the buy.
func ComputeSeriesStats(series []marketdata.PricePoint) (SeriesStats, bool) {
	if len(series) == 0 {
		return SeriesStats{}, false
	}

	s := SeriesStats{
		Points: len(series),
		Low:    math.MaxFloat64,
		Open:   series[0].Open,
		Close:  series[len(series)-1].Close,
	}
	minPrice := math.MaxFloat64
	maxPrice := 0.0

	for i := range series {
		p := &series[i]
		s.Volume += p.Volume
		s.Turnover += p.Close * float64(p.Volume)
		if p.High > s.High {
			s.High = p.High
		}
		if p.Low > 0 && p.Low < s.Low {
			s.Low = p.Low
		}

		// Max gain: buy at lowest seen so far, sell now.
		if p.Close < minPrice {
			minPrice = p.Close
		}
		if minPrice > 0 {
			if g := (p.Close - minPrice) / minPrice; g > s.MaxGain {
				s.MaxGain = g
			}
		}
		// Max loss: buy at highest seen so far, sell now.
		if p.Close > maxPrice {
			maxPrice = p.Close
		}
		if maxPrice > 0 {
			if l := (maxPrice - p.Close) / maxPrice; l > s.MaxLoss {
				s.MaxLoss = l
			}
		}
	}
	if s.Low == math.MaxFloat64 {
		s.Low = 0
	}
	if s.Open != 0 {
		s.Return = (s.Close - s.Open) / s.Open
	}
	return s, true
}
