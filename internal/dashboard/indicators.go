package dashboard

import (
	"time"

	"stockdash/pkg/marketdata"
)

// RSI zone thresholds.
const (
	RSIOverbought = 70.0
	RSIOversold   = 30.0
)

// RSIZone classifies an RSI reading.
type RSIZone int

const (
	RSINeutral RSIZone = iota
	RSIOverboughtZone
	RSIOversoldZone
)

func (z RSIZone) String() string {
	switch z {
	case RSIOverboughtZone:
		return "Overbought"
	case RSIOversoldZone:
		return "Oversold"
	default:
		return "Neutral"
	}
}

// ClassifyRSI maps an RSI value to its zone.
func ClassifyRSI(v float64) RSIZone {
	switch {
	case v > RSIOverbought:
		return RSIOverboughtZone
	case v < RSIOversold:
		return RSIOversoldZone
	default:
		return RSINeutral
	}
}

// Snapshot is the indicator readout for the latest point of a series.
type Snapshot struct {
	Time   time.Time
	Close  float64
	Change float64 // (close - open) / open of the latest bar
	RSI    *float64
	Zone   RSIZone
	SMA20  *float64
	SMA50  *float64
}

// LatestSnapshot builds the readout from the last point of series.
func LatestSnapshot(series []marketdata.PricePoint) (Snapshot, bool) {
	if len(series) == 0 {
		return Snapshot{}, false
	}
	last := series[len(series)-1]
	s := Snapshot{
		Time:  last.Time,
		Close: last.Close,
		RSI:   last.Indicators.RSI,
		SMA20: last.Indicators.SMA20,
		SMA50: last.Indicators.SMA50,
	}
	if last.Open != 0 {
		s.Change = (last.Close - last.Open) / last.Open
	}
	if s.RSI != nil {
		s.Zone = ClassifyRSI(*s.RSI)
	}
	return s, true
}
