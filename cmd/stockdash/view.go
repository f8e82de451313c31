package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"stockdash/internal/dashboard"
	"stockdash/pkg/marketdata"
)

// Styles.
var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	sectionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	periodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	periodActive   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	symbolStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	symbolHlStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75")) // brighter blue for highlight
	gainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	priceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	chartStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	equityStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	highlightBG    = lipgloss.Color("236") // dark grey background
)

// hlStyle returns a copy of s with the highlight background applied when hl is true.
func hlStyle(s lipgloss.Style, hl bool) lipgloss.Style {
	if hl {
		return s.Background(highlightBG)
	}
	return s
}

func zoneStyle(z dashboard.RSIZone) lipgloss.Style {
	switch z {
	case dashboard.RSIOverboughtZone:
		return lossStyle
	case dashboard.RSIOversoldZone:
		return gainStyle
	default:
		return dimStyle
	}
}

func signedStyle(v float64) lipgloss.Style {
	if v < 0 {
		return lossStyle
	}
	return gainStyle
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	m.renderSearch(&b)
	b.WriteString("\n")
	m.renderChart(&b)
	b.WriteString("\n")
	m.renderWatchlist(&b)
	b.WriteString("\n")
	m.renderBacktest(&b)
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m model) renderHeader() string {
	sel := m.dash.Selection.Current()
	loading := ""
	if m.dash.Chart.Loading() {
		loading = "  loading..."
	}
	text := fmt.Sprintf(" stockdash  %s  %s%s    capital: %s ",
		sel.Symbol, sel.Period.Label(), loading, m.dash.Format.Money(m.dash.Backtest.Capital()))
	return headerStyle.Render(padOrTrunc(text, m.width))
}

func (m model) renderSearch(b *strings.Builder) {
	switch m.mode {
	case modeSearch:
		b.WriteString(m.search.View())
	case modeCapital:
		b.WriteString(m.capital.View())
	default:
		b.WriteString(dimStyle.Render("  / search   c capital"))
	}
	b.WriteString("\n")

	s := m.dash.Search
	switch s.State() {
	case dashboard.SearchPending:
		b.WriteString(dimStyle.Render("  searching..."))
		b.WriteString("\n")
	case dashboard.SearchOpen:
		for i, r := range s.Results() {
			hl := i == s.Cursor()
			b.WriteString("  ")
			b.WriteString(hlStyle(symbolStyle, hl).Render(padOrTrunc(r.Symbol, 8)))
			b.WriteString(hlStyle(dimStyle, hl).Render(padOrTrunc(r.Name, max(10, m.width-12))))
			b.WriteString("\n")
		}
	}
}

func (m model) renderChart(b *strings.Builder) {
	sel := m.dash.Selection.Current()
	b.WriteString(sectionStyle.Render(" Chart "))
	b.WriteString(" ")
	for i, p := range marketdata.Periods {
		label := fmt.Sprintf("%d:%s", i+1, p.Label())
		if p == sel.Period {
			b.WriteString(periodActive.Render(label))
		} else {
			b.WriteString(periodStyle.Render(label))
		}
		b.WriteString(" ")
	}
	b.WriteString("\n")

	c := m.dash.Chart
	series := c.Series()
	if len(series) == 0 {
		if c.Loading() {
			b.WriteString(dimStyle.Render("  Loading..."))
		} else {
			b.WriteString(dimStyle.Render("  No data"))
		}
		b.WriteString("\n")
		return
	}

	shown := c.Shown()
	b.WriteString("  ")
	b.WriteString(symbolStyle.Render(shown.String()))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d points, updated %s", len(series), dashboard.FormatAge(c.FetchedAt()))))
	b.WriteString("\n  ")
	b.WriteString(chartStyle.Render(dashboard.Sparkline(dashboard.Closes(series), max(10, m.width-4))))
	b.WriteString("\n")

	if snap, ok := c.Snapshot(); ok {
		b.WriteString("  ")
		b.WriteString(colHeaderStyle.Render("Close "))
		b.WriteString(priceStyle.Render(dashboard.FormatPrice(snap.Close)))
		b.WriteString(" ")
		b.WriteString(signedStyle(snap.Change).Render(dashboard.FormatSignedPercent(snap.Change)))
		b.WriteString(colHeaderStyle.Render("   RSI "))
		b.WriteString(priceStyle.Render(dashboard.FormatOptional(snap.RSI)))
		if snap.RSI != nil {
			b.WriteString(" ")
			b.WriteString(zoneStyle(snap.Zone).Render(snap.Zone.String()))
		}
		b.WriteString(colHeaderStyle.Render("   SMA20 "))
		b.WriteString(priceStyle.Render(dashboard.FormatOptional(snap.SMA20)))
		b.WriteString(colHeaderStyle.Render("   SMA50 "))
		b.WriteString(priceStyle.Render(dashboard.FormatOptional(snap.SMA50)))
		b.WriteString("\n")
	}

	if st, ok := c.Stats(); ok {
		b.WriteString("  ")
		b.WriteString(colHeaderStyle.Render("High "))
		b.WriteString(priceStyle.Render(dashboard.FormatPrice(st.High)))
		b.WriteString(colHeaderStyle.Render("  Low "))
		b.WriteString(priceStyle.Render(dashboard.FormatPrice(st.Low)))
		b.WriteString(colHeaderStyle.Render("  Vol "))
		b.WriteString(priceStyle.Render(dashboard.FormatVolume(st.Volume)))
		b.WriteString(colHeaderStyle.Render("  Turnover "))
		b.WriteString(priceStyle.Render(dashboard.FormatTurnover(st.Turnover)))
		b.WriteString(colHeaderStyle.Render("  Return "))
		b.WriteString(signedStyle(st.Return).Render(dashboard.FormatSignedPercent(st.Return)))
		if g := dashboard.FormatGain(st.MaxGain); g != "" {
			b.WriteString(colHeaderStyle.Render("  Gain "))
			b.WriteString(gainStyle.Render(g))
		}
		if l := dashboard.FormatLoss(st.MaxLoss); l != "" {
			b.WriteString(colHeaderStyle.Render("  Loss "))
			b.WriteString(lossStyle.Render(l))
		}
		b.WriteString("\n")
	}
}

func (m model) renderWatchlist(b *strings.Builder) {
	b.WriteString(sectionStyle.Render(" Watchlist "))
	b.WriteString(dimStyle.Render("  a add  d remove  enter select"))
	b.WriteString("\n")

	entries := m.dash.Watchlist.Entries()
	if len(entries) == 0 {
		b.WriteString(dimStyle.Render("  (empty)"))
		b.WriteString("\n")
		return
	}
	current := m.dash.Selection.Current().Symbol
	for i, e := range entries {
		hl := m.mode == modeNormal && i == m.wlCursor
		sty := symbolStyle
		if e.Symbol == current {
			sty = symbolHlStyle
		}
		b.WriteString("  ")
		b.WriteString(hlStyle(sty, hl).Render(padOrTrunc(e.Symbol, 8)))
		if !e.Loaded() {
			b.WriteString(hlStyle(dimStyle, hl).Render(padOrTrunc("Loading...", 12)))
		} else {
			b.WriteString(hlStyle(priceStyle, hl).Render(padOrTrunc(dashboard.FormatPrice(*e.Close), 12)))
			b.WriteString(hlStyle(dimStyle, hl).Render(dashboard.FormatAge(e.UpdatedAt)))
		}
		b.WriteString("\n")
	}
}

func (m model) renderBacktest(b *strings.Builder) {
	bt := m.dash.Backtest
	b.WriteString(sectionStyle.Render(" Backtest "))
	if bt.Running() {
		b.WriteString(dimStyle.Render("  running..."))
	} else {
		b.WriteString(dimStyle.Render("  b run"))
	}
	b.WriteString("\n")

	run, ok := bt.Last()
	if !ok {
		b.WriteString(dimStyle.Render("  no results yet"))
		b.WriteString("\n")
		return
	}
	b.WriteString("  ")
	b.WriteString(symbolStyle.Render(run.Symbol))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  from %s, %s", m.dash.Format.Money(run.Capital), dashboard.FormatAge(run.FinishedAt))))
	b.WriteString("\n")
	for _, mt := range dashboard.BacktestMetrics(run.Result, m.dash.Format) {
		b.WriteString("  ")
		b.WriteString(colHeaderStyle.Render(padOrTrunc(mt.Label, 20)))
		b.WriteString(priceStyle.Render(mt.Value))
		b.WriteString("\n")
	}

	curve := bt.EquityCurve()
	if len(curve) > 0 {
		first, last := curve[0], curve[len(curve)-1]
		b.WriteString("  ")
		b.WriteString(dimStyle.Render(m.dash.Format.Money(first.Value) + " "))
		b.WriteString(equityStyle.Render(dashboard.Sparkline(dashboard.EquityValues(curve), max(10, m.width-40))))
		b.WriteString(dimStyle.Render(" " + m.dash.Format.Money(last.Value)))
		b.WriteString("\n")
	}
}

func (m model) renderFooter() string {
	var b strings.Builder
	for _, n := range m.dash.Notices.All() {
		b.WriteString(errorStyle.Render(" " + n.String()))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(dimStyle.Render(" " + m.status))
		b.WriteString("\n")
	}
	help := " q quit  / search  1-5 period  up/dn select  a/d watch  r refresh  b backtest  c capital  x export"
	b.WriteString(footerStyle.Render(padOrTrunc(help, m.width)))
	return b.String()
}

// padOrTrunc pads s with spaces to width, or truncates if longer.
func padOrTrunc(s string, width int) string {
	n := len(s)
	if n >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-n)
}
