package cli

import (
	"fmt"
	"strings"

	"stockdash/internal/dashboard"
	"stockdash/pkg/marketdata"
)

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func searchMarkdown(query string, results []marketdata.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Search: %s\n\n", query)
	if len(results) == 0 {
		b.WriteString("_No matches._\n")
		return b.String()
	}
	b.WriteString("| Symbol | Name |\n|---|---|\n")
	for _, r := range results {
		fmt.Fprintf(&b, "| %s | %s |\n", cell(r.Symbol), cell(r.Name))
	}
	return b.String()
}

// historyMarkdown summarises series and tables its last rows points.
func historyMarkdown(symbol string, period marketdata.Period, series []marketdata.PricePoint, rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s\n\n", symbol, period.Label())
	if len(series) == 0 {
		b.WriteString("_No data._\n")
		return b.String()
	}

	if snap, ok := dashboard.LatestSnapshot(series); ok {
		fmt.Fprintf(&b, "- **Close**: %s (%s)\n", dashboard.FormatPrice(snap.Close), dashboard.FormatSignedPercent(snap.Change))
		if snap.RSI != nil {
			fmt.Fprintf(&b, "- **RSI**: %s (%s)\n", dashboard.FormatOptional(snap.RSI), snap.Zone)
		}
		fmt.Fprintf(&b, "- **SMA 20 / 50**: %s / %s\n", dashboard.FormatOptional(snap.SMA20), dashboard.FormatOptional(snap.SMA50))
	}
	if st, ok := dashboard.ComputeSeriesStats(series); ok {
		fmt.Fprintf(&b, "- **Range**: %s - %s over %d points\n", dashboard.FormatPrice(st.Low), dashboard.FormatPrice(st.High), st.Points)
		fmt.Fprintf(&b, "- **Return**: %s\n", dashboard.FormatSignedPercent(st.Return))
		fmt.Fprintf(&b, "- **Volume**: %s\n", dashboard.FormatVolume(st.Volume))
	}

	b.WriteString("\n| Date | Open | High | Low | Close | Volume | RSI | SMA 20 | SMA 50 |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	start := 0
	if rows > 0 && len(series) > rows {
		start = len(series) - rows
	}
	layout := "2006-01-02"
	if period == marketdata.PeriodIntraday || period == marketdata.PeriodWeek {
		layout = "2006-01-02 15:04"
	}
	for _, p := range series[start:] {
		fmt.Fprintf(&b, "| %s | %.2f | %.2f | %.2f | %.2f | %s | %s | %s | %s |\n",
			p.Time.Format(layout), p.Open, p.High, p.Low, p.Close,
			dashboard.FormatVolume(p.Volume),
			dashboard.FormatOptional(p.Indicators.RSI),
			dashboard.FormatOptional(p.Indicators.SMA20),
			dashboard.FormatOptional(p.Indicators.SMA50))
	}
	return b.String()
}

func backtestMarkdown(symbol string, capital float64, res *marketdata.BacktestResult, curve []dashboard.EquityPoint, f dashboard.Formatter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Backtest: %s\n\n", symbol)
	fmt.Fprintf(&b, "Initial capital: **%s**\n\n", f.Money(capital))

	b.WriteString("| Metric | Value |\n|---|---:|\n")
	for _, m := range dashboard.BacktestMetrics(res, f) {
		fmt.Fprintf(&b, "| %s | %s |\n", m.Label, m.Value)
	}

	if len(curve) > 0 {
		b.WriteString("\n## Equity curve\n\n")
		fmt.Fprintf(&b, "`%s`\n\n", dashboard.Sparkline(dashboard.EquityValues(curve), 60))
		b.WriteString("| Point | Value |\n|---|---:|\n")
		for _, p := range curve {
			fmt.Fprintf(&b, "| %s | %s |\n", p.Label, f.Money(p.Value))
		}
	}
	return b.String()
}
