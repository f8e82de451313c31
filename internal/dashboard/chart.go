package dashboard

import (
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stockdash/pkg/marketdata"
)

// HistoryMsg carries the outcome of one chart fetch.
type HistoryMsg struct {
	Seq    uint64
	Key    Selection
	Series []marketdata.PricePoint
	Err    error
}

// ChartPipeline fetches the series for the current selection. Only the
// response to the most recently issued request is applied; a failure keeps
// the series on screen and goes to the error channel.
type ChartPipeline struct {
	gw      Gateway
	scope   *scope
	timeout time.Duration
	notices *Notices
	log     *slog.Logger
	now     func() time.Time

	seq      uint64
	key      Selection // latest issued
	inFlight bool
	loaded   bool // latest issued key succeeded

	shown     Selection // key of series
	series    []marketdata.PricePoint
	fetchedAt time.Time
}

func newChartPipeline(gw Gateway, sc *scope, timeout time.Duration, notices *Notices, log *slog.Logger) *ChartPipeline {
	return &ChartPipeline{
		gw:      gw,
		scope:   sc,
		timeout: timeout,
		notices: notices,
		log:     log,
		now:     time.Now,
	}
}

// Request fetches sel unless the same key is already in flight or loaded.
func (c *ChartPipeline) Request(sel Selection) tea.Cmd {
	if sel.IsZero() {
		return nil
	}
	if sel == c.key && (c.inFlight || c.loaded) {
		return nil
	}
	return c.issue(sel)
}

// Refresh refetches the current key unconditionally.
func (c *ChartPipeline) Refresh() tea.Cmd {
	if c.key.IsZero() {
		return nil
	}
	return c.issue(c.key)
}

func (c *ChartPipeline) issue(sel Selection) tea.Cmd {
	c.seq++
	c.key = sel
	c.inFlight = true
	c.loaded = false

	seq, gw, timeout, parent := c.seq, c.gw, c.timeout, c.scope.parent()
	c.log.Debug("chart: fetching", "symbol", sel.Symbol, "period", sel.Period, "seq", seq)
	return func() tea.Msg {
		ctx, cancel := withTimeout(parent, timeout)
		defer cancel()
		pts, err := gw.History(ctx, sel.Symbol, sel.Period)
		return HistoryMsg{Seq: seq, Key: sel, Series: pts, Err: err}
	}
}

// Update applies the latest HistoryMsg and drops superseded ones.
func (c *ChartPipeline) Update(msg tea.Msg) tea.Cmd {
	m, ok := msg.(HistoryMsg)
	if !ok {
		return nil
	}
	if m.Seq != c.seq {
		c.log.Debug("chart: stale response dropped", "key", m.Key.String(), "seq", m.Seq, "latest", c.seq)
		return nil
	}
	c.inFlight = false
	if m.Err != nil {
		c.log.Warn("chart: fetch failed", "symbol", m.Key.Symbol, "period", m.Key.Period, "error", m.Err)
		c.notices.Publish(SourceChart, fmt.Errorf("load %s: %w", m.Key, m.Err))
		return nil
	}
	c.loaded = true
	c.shown = m.Key
	c.series = m.Series
	c.fetchedAt = c.now()
	c.notices.Clear(SourceChart)
	return nil
}

// Cancel abandons the outstanding request, if any, so that the next
// Request for the same key is issued again.
func (c *ChartPipeline) Cancel() {
	if c.inFlight {
		c.seq++
		c.inFlight = false
	}
}

// Loading reports whether the latest request is outstanding.
func (c *ChartPipeline) Loading() bool { return c.inFlight }

// Key returns the most recently requested selection.
func (c *ChartPipeline) Key() Selection { return c.key }

// Shown returns the selection the displayed series belongs to.
func (c *ChartPipeline) Shown() Selection { return c.shown }

// Series returns the displayed series. Callers must not modify it.
func (c *ChartPipeline) Series() []marketdata.PricePoint { return c.series }

// FetchedAt returns when the displayed series arrived.
func (c *ChartPipeline) FetchedAt() time.Time { return c.fetchedAt }

// Snapshot summarises the latest point of the displayed series.
func (c *ChartPipeline) Snapshot() (Snapshot, bool) {
	return LatestSnapshot(c.series)
}

// Stats summarises the whole displayed series.
func (c *ChartPipeline) Stats() (SeriesStats, bool) {
	return ComputeSeriesStats(c.series)
}
