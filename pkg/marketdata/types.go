package marketdata

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// MinQueryLen is the shortest trimmed query the search endpoint accepts.
const MinQueryLen = 2

// Period is a requested history window, encoded the way the service expects.
type Period string

const (
	PeriodIntraday Period = "1d"
	PeriodWeek     Period = "5d"
	PeriodMonth    Period = "1mo"
	PeriodYear     Period = "1y"
	PeriodMax      Period = "max"
)

// Periods lists every period in display order.
var Periods = []Period{PeriodIntraday, PeriodWeek, PeriodMonth, PeriodYear, PeriodMax}

var periodLabels = map[Period]string{
	PeriodIntraday: "1D",
	PeriodWeek:     "1W",
	PeriodMonth:    "1M",
	PeriodYear:     "1Y",
	PeriodMax:      "ALL",
}

// Valid reports whether p is one of the supported periods.
func (p Period) Valid() bool {
	_, ok := periodLabels[p]
	return ok
}

// Label returns the short display label (1D, 1W, 1M, 1Y, ALL).
func (p Period) Label() string {
	if l, ok := periodLabels[p]; ok {
		return l
	}
	return string(p)
}

// ParsePeriod accepts either the wire value ("1mo") or the label ("1M"),
// case-insensitively.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	for _, p := range Periods {
		if strings.EqualFold(s, string(p)) || strings.EqualFold(s, p.Label()) {
			return p, nil
		}
	}
	return "", &ValidationError{Field: "period", Value: s, Reason: "must be one of 1d, 5d, 1mo, 1y, max"}
}

// NormalizeSymbol trims and uppercases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidQuery reports whether q is long enough to be sent to the search
// endpoint.
func ValidQuery(q string) bool {
	return len([]rune(strings.TrimSpace(q))) >= MinQueryLen
}

// SearchResult is one match returned by the search endpoint.
type SearchResult struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Indicators holds the derived values the service attaches to a point.
// A nil field means the indicator is not defined at that point (warm-up).
type Indicators struct {
	RSI   *float64
	SMA20 *float64
	SMA50 *float64
}

// PricePoint is one OHLCV bar of a historical series.
type PricePoint struct {
	Time       time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	Indicators Indicators
}

type wirePoint struct {
	Date   string   `json:"date"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume float64  `json:"volume"`
	RSI    *float64 `json:"RSI,omitempty"`
	SMA20  *float64 `json:"SMA_20,omitempty"`
	SMA50  *float64 `json:"SMA_50,omitempty"`
}

// dateLayouts covers the timestamp forms the service emits: naive
// datetimes (the server strips the zone), date-only keys, and RFC 3339.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a service timestamp. Naive values are taken as UTC.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// UnmarshalJSON decodes the wire form {date, open, ..., RSI?, SMA_20?, SMA_50?}.
func (p *PricePoint) UnmarshalJSON(data []byte) error {
	var w wirePoint
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t, err := ParseDate(w.Date)
	if err != nil {
		return err
	}
	*p = PricePoint{
		Time:   t,
		Open:   w.Open,
		High:   w.High,
		Low:    w.Low,
		Close:  w.Close,
		Volume: int64(w.Volume),
		Indicators: Indicators{
			RSI:   w.RSI,
			SMA20: w.SMA20,
			SMA50: w.SMA50,
		},
	}
	return nil
}

// MarshalJSON encodes p in the same wire form the service uses.
func (p PricePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePoint{
		Date:   p.Time.UTC().Format("2006-01-02T15:04:05"),
		Open:   p.Open,
		High:   p.High,
		Low:    p.Low,
		Close:  p.Close,
		Volume: float64(p.Volume),
		RSI:    p.Indicators.RSI,
		SMA20:  p.Indicators.SMA20,
		SMA50:  p.Indicators.SMA50,
	})
}

// SortSeries orders points ascending by time, in place.
func SortSeries(points []PricePoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})
}

// BacktestResult is the summary of one strategy run. TotalReturn and
// MaxDrawdown are fractions (0.25 = 25%).
type BacktestResult struct {
	TotalReturn float64 `json:"total_return"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	FinalValue  float64 `json:"final_value"`

	// Optional; zero or nil when the service omits them.
	InitialCapital   float64            `json:"initial_capital,omitempty"`
	AnnualizedReturn float64            `json:"annualized_return,omitempty"`
	EquityCurve      map[string]float64 `json:"equity_curve,omitempty"`
}
