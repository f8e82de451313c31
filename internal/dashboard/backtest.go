package dashboard

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"stockdash/internal/config"
	"stockdash/pkg/marketdata"
)

// BacktestMsg carries the outcome of one backtest run.
type BacktestMsg struct {
	RunID   string
	Symbol  string
	Capital float64
	Result  *marketdata.BacktestResult
	Err     error
}

// BacktestRun is the last successful run.
type BacktestRun struct {
	RunID      string
	Symbol     string
	Capital    float64
	Result     *marketdata.BacktestResult
	FinishedAt time.Time
}

// Backtester runs one backtest at a time for the selected symbol.
type Backtester struct {
	gw      Gateway
	scope   *scope
	timeout time.Duration
	notices *Notices
	log     *slog.Logger
	rng     *rand.Rand
	source  string
	now     func() time.Time

	capital float64
	running bool
	runID   string
	started time.Time
	last    *BacktestRun
}

func newBacktester(gw Gateway, sc *scope, timeout time.Duration, capital float64, source string, rng *rand.Rand, notices *Notices, log *slog.Logger) *Backtester {
	return &Backtester{
		gw:      gw,
		scope:   sc,
		timeout: timeout,
		notices: notices,
		log:     log,
		rng:     rng,
		source:  source,
		now:     time.Now,
		capital: capital,
	}
}

// SetCapital parses text as the capital for the next run. Invalid input
// is published to the error channel and the previous capital is kept.
func (b *Backtester) SetCapital(text string) error {
	v, err := marketdata.ParseCapital(text)
	if err != nil {
		b.notices.Publish(SourceBacktest, err)
		return err
	}
	b.capital = v
	b.notices.Clear(SourceBacktest)
	return nil
}

// Capital returns the capital the next run will use.
func (b *Backtester) Capital() float64 { return b.capital }

// Run starts a backtest of symbol. It returns nil while a run is
// outstanding.
func (b *Backtester) Run(symbol string) tea.Cmd {
	symbol = marketdata.NormalizeSymbol(symbol)
	if b.running || symbol == "" {
		return nil
	}
	b.running = true
	b.runID = uuid.NewString()
	b.started = b.now()

	runID, capital, gw, timeout, parent := b.runID, b.capital, b.gw, b.timeout, b.scope.parent()
	b.log.Info("backtest: started", "run_id", runID, "symbol", symbol, "capital", capital)
	return func() tea.Msg {
		ctx, cancel := withTimeout(parent, timeout)
		defer cancel()
		res, err := gw.Backtest(ctx, symbol, capital)
		return BacktestMsg{RunID: runID, Symbol: symbol, Capital: capital, Result: res, Err: err}
	}
}

// Update applies the result of the outstanding run.
func (b *Backtester) Update(msg tea.Msg) tea.Cmd {
	m, ok := msg.(BacktestMsg)
	if !ok || !b.running || m.RunID != b.runID {
		return nil
	}
	b.running = false
	elapsed := b.now().Sub(b.started)
	if m.Err == nil && m.Result == nil {
		m.Err = errors.New("empty response")
	}
	if m.Err != nil {
		b.log.Warn("backtest: failed", "run_id", m.RunID, "symbol", m.Symbol, "elapsed", elapsed, "error", m.Err)
		b.notices.Publish(SourceBacktest, fmt.Errorf("backtest %s: %w", m.Symbol, m.Err))
		return nil
	}
	b.log.Info("backtest: done", "run_id", m.RunID, "symbol", m.Symbol, "elapsed", elapsed,
		"total_return", m.Result.TotalReturn)
	b.last = &BacktestRun{
		RunID:      m.RunID,
		Symbol:     m.Symbol,
		Capital:    m.Capital,
		Result:     m.Result,
		FinishedAt: b.now(),
	}
	b.notices.Clear(SourceBacktest)
	return nil
}

// Cancel abandons the outstanding run so the trigger is enabled again.
func (b *Backtester) Cancel() {
	b.running = false
	b.runID = ""
}

// Running reports whether a run is outstanding.
func (b *Backtester) Running() bool { return b.running }

// Last returns the last successful run.
func (b *Backtester) Last() (BacktestRun, bool) {
	if b.last == nil {
		return BacktestRun{}, false
	}
	return *b.last, true
}

// EquityCurve returns the curve for the last run, recomputed on every
// call. With the service source and a curve in the response, the
// service's curve is used; otherwise the curve is synthesized.
func (b *Backtester) EquityCurve() []EquityPoint {
	if b.last == nil || b.last.Result == nil {
		return nil
	}
	res := b.last.Result
	if b.source == config.EquityService && len(res.EquityCurve) > 0 {
		return ServiceEquityCurve(res.EquityCurve, b.last.Capital)
	}
	return SynthesizeEquityCurve(res.TotalReturn, b.last.Capital, b.rng)
}
