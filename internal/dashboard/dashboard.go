package dashboard

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stockdash/internal/config"
	"stockdash/pkg/marketdata"
)

// Gateway is the subset of the market-data client the dashboard calls.
type Gateway interface {
	Search(ctx context.Context, query string) ([]marketdata.SearchResult, error)
	History(ctx context.Context, symbol string, period marketdata.Period) ([]marketdata.PricePoint, error)
	Backtest(ctx context.Context, symbol string, initialCapital float64) (*marketdata.BacktestResult, error)
}

// Sender posts a message into the event loop. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// WatchlistStore persists watchlist membership.
type WatchlistStore interface {
	Load(ctx context.Context) ([]string, error)
	Add(ctx context.Context, symbol string) error
	Remove(ctx context.Context, symbol string) error
}

// Options configures a Dashboard. Zero fields take defaults.
type Options struct {
	DefaultSymbol   string
	DefaultPeriod   marketdata.Period
	SearchDebounce  time.Duration
	PollInterval    time.Duration
	WatchlistPeriod marketdata.Period
	Watchlist       []string
	InitialCapital  float64
	EquitySource    string
	Currency        string
	RequestTimeout  time.Duration
	BacktestTimeout time.Duration
	// Rand drives the synthetic equity jitter. Nil uses the global source.
	Rand *rand.Rand
}

// OptionsFromConfig maps the loaded configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DefaultSymbol:   cfg.Dashboard.DefaultSymbol,
		DefaultPeriod:   marketdata.Period(cfg.Dashboard.DefaultPeriod),
		SearchDebounce:  cfg.Dashboard.SearchDebounce,
		PollInterval:    cfg.Dashboard.PollInterval,
		WatchlistPeriod: marketdata.Period(cfg.Dashboard.WatchlistPeriod),
		Watchlist:       cfg.Dashboard.Watchlist,
		InitialCapital:  cfg.Backtest.InitialCapital,
		EquitySource:    cfg.Backtest.EquitySource,
		Currency:        cfg.Backtest.Currency,
		RequestTimeout:  cfg.Service.Timeout,
		BacktestTimeout: cfg.Service.BacktestTimeout,
	}
}

func (o *Options) setDefaults() {
	if o.DefaultSymbol == "" {
		o.DefaultSymbol = "AAPL"
	}
	if !o.DefaultPeriod.Valid() {
		o.DefaultPeriod = marketdata.PeriodYear
	}
	if o.SearchDebounce <= 0 {
		o.SearchDebounce = 300 * time.Millisecond
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 10 * time.Second
	}
	if !o.WatchlistPeriod.Valid() {
		o.WatchlistPeriod = marketdata.PeriodIntraday
	}
	if o.InitialCapital <= 0 {
		o.InitialCapital = 10000
	}
	if o.EquitySource == "" {
		o.EquitySource = config.EquitySynthetic
	}
	if o.Currency == "" {
		o.Currency = "USD"
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 15 * time.Second
	}
	if o.BacktestTimeout <= 0 {
		o.BacktestTimeout = 2 * time.Minute
	}
}

// relay forwards timer messages to the program once it exists.
type relay struct {
	mu     sync.Mutex
	target Sender
}

func (r *relay) Send(msg tea.Msg) {
	r.mu.Lock()
	t := r.target
	r.mu.Unlock()
	if t != nil {
		t.Send(msg)
	}
}

func (r *relay) attach(s Sender) {
	r.mu.Lock()
	r.target = s
	r.mu.Unlock()
}

type watchlistLoadedMsg struct {
	epoch   uint64
	symbols []string
	err     error
}

type watchlistSavedMsg struct {
	epoch  uint64
	op     string
	symbol string
	err    error
}

// storeWrite is one pending Add or Remove. Writes reach the store one at a
// time in the order the user made them.
type storeWrite struct {
	op     string
	symbol string
}

// Dashboard owns every component of one dashboard instance. Its methods
// must be called from the event loop.
type Dashboard struct {
	opts  Options
	log   *slog.Logger
	gw    Gateway
	relay *relay
	scope *scope
	store WatchlistStore

	Selection *SelectionStore
	Search    *SearchController
	Watchlist *Poller
	Chart     *ChartPipeline
	Backtest  *Backtester
	Notices   *Notices
	Format    Formatter

	mounted bool
	epoch   uint64

	writes  []storeWrite
	writing bool

	// loading is set while the persisted watchlist is in flight; removed
	// holds symbols unwatched since then so the load cannot revive them.
	loading bool
	removed map[string]bool
}

// New builds a dashboard. Seed symbols from opts are tracked immediately;
// nothing is fetched until Mount.
func New(opts Options, gw Gateway, log *slog.Logger) *Dashboard {
	opts.setDefaults()
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &Dashboard{
		opts:    opts,
		log:     log,
		gw:      gw,
		relay:   &relay{},
		scope:   newScope(),
		Notices: NewNotices(),
		Format:  NewFormatter(opts.Currency),
	}
	d.Selection = NewSelectionStore(opts.DefaultSymbol, opts.DefaultPeriod)
	d.Search = newSearchController(gw, d.scope, d.relay, opts.SearchDebounce, opts.RequestTimeout, log.With("component", "search"))
	d.Watchlist = newPoller(gw, d.scope, d.relay, opts.PollInterval, opts.WatchlistPeriod, opts.RequestTimeout, log.With("component", "watchlist"))
	d.Chart = newChartPipeline(gw, d.scope, opts.RequestTimeout, d.Notices, log.With("component", "chart"))
	d.Backtest = newBacktester(gw, d.scope, opts.BacktestTimeout, opts.InitialCapital, opts.EquitySource, opts.Rand, d.Notices, log.With("component", "backtest"))

	for _, s := range opts.Watchlist {
		d.Watchlist.Add(s)
	}
	return d
}

// Attach sets the target of timer messages, normally the *tea.Program.
func (d *Dashboard) Attach(s Sender) { d.relay.attach(s) }

// UseStore enables watchlist persistence. Call before Mount.
func (d *Dashboard) UseStore(s WatchlistStore) { d.store = s }

// Mount starts the dashboard: fetches the chart for the current selection,
// starts the watchlist schedule and loads the persisted watchlist.
func (d *Dashboard) Mount() tea.Cmd {
	if d.mounted {
		return nil
	}
	d.mounted = true
	d.scope.reset()
	d.loading = d.store != nil
	d.removed = make(map[string]bool)
	d.log.Info("dashboard mounted", "selection", d.Selection.Current().String())

	return tea.Batch(
		d.Chart.Request(d.Selection.Current()),
		d.Watchlist.Mount(),
		d.loadWatchlist(),
	)
}

// Unmount stops every timer and cancels outstanding calls.
func (d *Dashboard) Unmount() {
	if !d.mounted {
		return
	}
	d.mounted = false
	d.Search.Close()
	d.Watchlist.Unmount()
	d.Chart.Cancel()
	d.Backtest.Cancel()
	d.scope.close()
	d.epoch++
	if n := len(d.writes); n > 0 {
		d.log.Warn("watchlist: dropping unsaved changes", "count", n)
	}
	d.writes, d.writing = nil, false
	d.loading, d.removed = false, nil
	d.log.Info("dashboard unmounted")
}

// Mounted reports whether the dashboard is mounted.
func (d *Dashboard) Mounted() bool { return d.mounted }

// Update routes msg to every component.
func (d *Dashboard) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case watchlistLoadedMsg:
		if msg.epoch != d.epoch || !d.loading {
			return nil
		}
		removed := d.removed
		d.loading, d.removed = false, make(map[string]bool)
		if msg.err != nil {
			d.log.Warn("watchlist: load failed", "error", msg.err)
			return nil
		}
		cmds := make([]tea.Cmd, 0, len(msg.symbols))
		for _, s := range msg.symbols {
			if removed[marketdata.NormalizeSymbol(s)] {
				continue
			}
			if cmd, ok := d.Watchlist.Add(s); ok {
				cmds = append(cmds, cmd)
			}
		}
		return tea.Batch(cmds...)
	case watchlistSavedMsg:
		if msg.epoch != d.epoch {
			return nil
		}
		d.writing = false
		if msg.err != nil {
			d.log.Warn("watchlist: save failed", "op", msg.op, "symbol", msg.symbol, "error", msg.err)
		}
		return d.nextWrite()
	}
	return tea.Batch(
		d.Search.Update(msg),
		d.Watchlist.Update(msg),
		d.Chart.Update(msg),
		d.Backtest.Update(msg),
	)
}

// TypeQuery feeds the search input.
func (d *Dashboard) TypeQuery(q string) { d.Search.SetQuery(q) }

// CommitSearch selects the typed query as a symbol.
func (d *Dashboard) CommitSearch() tea.Cmd {
	sym, ok := d.Search.Commit()
	if !ok {
		return nil
	}
	return d.SelectSymbol(sym)
}

// PickResult selects search result i.
func (d *Dashboard) PickResult(i int) tea.Cmd {
	sym, ok := d.Search.Pick(i)
	if !ok {
		return nil
	}
	return d.SelectSymbol(sym)
}

// SelectSymbol makes symbol the inspected symbol.
func (d *Dashboard) SelectSymbol(symbol string) tea.Cmd {
	d.Selection.SetSymbol(symbol)
	return d.Chart.Request(d.Selection.Current())
}

// SelectPeriod changes the history window.
func (d *Dashboard) SelectPeriod(p marketdata.Period) tea.Cmd {
	d.Selection.SetPeriod(p)
	return d.Chart.Request(d.Selection.Current())
}

// Refresh refetches the chart and the watchlist.
func (d *Dashboard) Refresh() tea.Cmd {
	return tea.Batch(d.Chart.Refresh(), d.Watchlist.Poll())
}

// Watch adds symbol (the selection if empty) to the watchlist.
func (d *Dashboard) Watch(symbol string) tea.Cmd {
	if symbol == "" {
		symbol = d.Selection.Current().Symbol
	}
	cmd, added := d.Watchlist.Add(symbol)
	if !added {
		return nil
	}
	symbol = marketdata.NormalizeSymbol(symbol)
	if d.loading {
		delete(d.removed, symbol)
	}
	return tea.Batch(cmd, d.persist("add", symbol))
}

// Unwatch removes symbol from the watchlist.
func (d *Dashboard) Unwatch(symbol string) tea.Cmd {
	if !d.Watchlist.Remove(symbol) {
		return nil
	}
	symbol = marketdata.NormalizeSymbol(symbol)
	if d.loading {
		d.removed[symbol] = true
	}
	return d.persist("remove", symbol)
}

// SetCapital sets the backtest capital from user input.
func (d *Dashboard) SetCapital(text string) error { return d.Backtest.SetCapital(text) }

// RunBacktest backtests the selected symbol.
func (d *Dashboard) RunBacktest() tea.Cmd {
	return d.Backtest.Run(d.Selection.Current().Symbol)
}

func (d *Dashboard) loadWatchlist() tea.Cmd {
	if d.store == nil {
		return nil
	}
	st, parent, timeout, epoch := d.store, d.scope.parent(), d.opts.RequestTimeout, d.epoch
	return func() tea.Msg {
		ctx, cancel := withTimeout(parent, timeout)
		defer cancel()
		syms, err := st.Load(ctx)
		return watchlistLoadedMsg{epoch: epoch, symbols: syms, err: err}
	}
}

// persist queues a store write and starts it if none is running.
func (d *Dashboard) persist(op, symbol string) tea.Cmd {
	if d.store == nil {
		return nil
	}
	d.writes = append(d.writes, storeWrite{op: op, symbol: symbol})
	return d.nextWrite()
}

func (d *Dashboard) nextWrite() tea.Cmd {
	if d.writing || len(d.writes) == 0 {
		return nil
	}
	w := d.writes[0]
	d.writes = d.writes[1:]
	d.writing = true
	op, symbol := w.op, w.symbol
	st, parent, timeout, epoch := d.store, d.scope.parent(), d.opts.RequestTimeout, d.epoch
	return func() tea.Msg {
		ctx, cancel := withTimeout(parent, timeout)
		defer cancel()
		var err error
		if op == "add" {
			err = st.Add(ctx, symbol)
		} else {
			err = st.Remove(ctx, symbol)
		}
		return watchlistSavedMsg{epoch: epoch, op: op, symbol: symbol, err: err}
	}
}
