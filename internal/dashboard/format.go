package dashboard

import (
	"math"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"stockdash/pkg/marketdata"
)

var hundred = decimal.NewFromInt(100)

// Formatter renders amounts in one currency.
type Formatter struct {
	cur *money.Currency
}

// NewFormatter returns a formatter for the ISO currency code. Unknown codes
// fall back to USD.
func NewFormatter(code string) Formatter {
	if money.GetCurrency(code) == nil {
		code = money.USD
	}
	return Formatter{cur: money.New(0, code).Currency()}
}

// Money formats v as grapheme + fixed two decimals, e.g. "$12500.00" or
// "-$80.25".
func (f Formatter) Money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	d := decimal.NewFromFloat(v)
	if d.IsNegative() {
		return "-" + f.cur.Grapheme + d.Abs().StringFixed(2)
	}
	return f.cur.Grapheme + d.StringFixed(2)
}

// Code returns the currency code.
func (f Formatter) Code() string { return f.cur.Code }

// FormatPercent formats a fraction as a percentage with two decimals:
// 0.25 -> "25.00%".
func FormatPercent(frac float64) string {
	if math.IsNaN(frac) || math.IsInf(frac, 0) {
		return "-"
	}
	return decimal.NewFromFloat(frac).Mul(hundred).StringFixed(2) + "%"
}

// FormatSignedPercent is FormatPercent with an explicit "+" for gains.
func FormatSignedPercent(frac float64) string {
	s := FormatPercent(frac)
	if frac > 0 {
		return "+" + s
	}
	return s
}

// FormatRatio formats a plain number with two decimals: 1.2 -> "1.20".
func FormatRatio(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatOptional formats an indicator value, or "-" when undefined.
func FormatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return FormatRatio(*v)
}

// FormatVolume formats a share count with comma separators.
func FormatVolume(n int64) string {
	return humanize.Comma(n)
}

// FormatAge describes how long ago t was, or "never" for the zero time.
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

var turnoverUnits = []struct {
	scale  decimal.Decimal
	suffix string
}{
	{decimal.New(1, 9), "B"},
	{decimal.New(1, 6), "M"},
	{decimal.New(1, 3), "K"},
}

// FormatTurnover abbreviates a dollar turnover: 2.5e9 -> "2.5B", 999 -> "999".
func FormatTurnover(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	d := decimal.NewFromFloat(v)
	for _, u := range turnoverUnits {
		if d.GreaterThanOrEqual(u.scale) {
			return d.Div(u.scale).StringFixed(1) + u.suffix
		}
	}
	return d.StringFixed(0)
}

// FormatPrice formats a quote price with two decimals. Zero and the
// MaxFloat64 sentinel mean no price.
func FormatPrice(p float64) string {
	if p == 0 || p == math.MaxFloat64 || math.IsNaN(p) || math.IsInf(p, 0) {
		return "-"
	}
	return decimal.NewFromFloat(p).StringFixed(2)
}

// FormatGain renders a positive move fraction as "+12.3%"; anything else
// renders empty.
func FormatGain(g float64) string { return compactPercent("+", g) }

// FormatLoss renders a positive drawdown fraction as "-12.3%".
func FormatLoss(l float64) string { return compactPercent("-", l) }

// compactPercent drops the decimal at 100% and above.
func compactPercent(sign string, frac float64) string {
	if !(frac > 0) || math.IsInf(frac, 0) {
		return ""
	}
	pct := decimal.NewFromFloat(frac).Mul(hundred)
	places := int32(1)
	if pct.GreaterThanOrEqual(hundred) {
		places = 0
	}
	return sign + pct.StringFixed(places) + "%"
}

// Metric is one labelled, formatted backtest figure.
type Metric struct {
	Label string
	Value string
}

// BacktestMetrics formats a result in display order: Total Return,
// Sharpe Ratio, Max Drawdown, Final Value, then the optional figures the
// service may include.
func BacktestMetrics(res *marketdata.BacktestResult, f Formatter) []Metric {
	if res == nil {
		return nil
	}
	out := []Metric{
		{"Total Return", FormatPercent(res.TotalReturn)},
		{"Sharpe Ratio", FormatRatio(res.SharpeRatio)},
		{"Max Drawdown", FormatPercent(res.MaxDrawdown)},
		{"Final Value", f.Money(res.FinalValue)},
	}
	if res.AnnualizedReturn != 0 {
		out = append(out, Metric{"Annualized Return", FormatPercent(res.AnnualizedReturn)})
	}
	if res.InitialCapital != 0 {
		out = append(out, Metric{"Initial Capital", f.Money(res.InitialCapital)})
	}
	return out
}
