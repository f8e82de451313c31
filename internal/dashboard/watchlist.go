package dashboard

import (
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/robfig/cron/v3"

	"stockdash/pkg/marketdata"
)

// WatchEntry is one watched symbol and its latest known close.
type WatchEntry struct {
	Symbol    string
	Close     *float64 // nil until the first successful fetch
	UpdatedAt time.Time

	epoch uint64 // membership; a re-added symbol gets a new epoch
	tick  uint64 // tick of the last applied price
}

// Loaded reports whether a price has been received.
func (e WatchEntry) Loaded() bool { return e.Close != nil }

// pollTickMsg is posted by the schedule of mount gen.
type pollTickMsg struct {
	gen uint64
}

// PriceMsg carries the result of fetching one watched symbol.
type PriceMsg struct {
	Symbol string
	Gen    uint64
	Epoch  uint64
	Tick   uint64
	Close  float64
	OK     bool
	Err    error
}

// Poller keeps the latest close for an ordered set of symbols, refreshed
// on a fixed interval while mounted. A failed fetch leaves that symbol's
// last price in place.
type Poller struct {
	gw       Gateway
	scope    *scope
	send     Sender
	interval time.Duration
	period   marketdata.Period
	timeout  time.Duration
	log      *slog.Logger
	now      func() time.Time

	entries   []*WatchEntry
	nextEpoch uint64
	gen       uint64
	tick      uint64
	mounted   bool
	sched     *cron.Cron
}

func newPoller(gw Gateway, sc *scope, send Sender, interval time.Duration, period marketdata.Period, timeout time.Duration, log *slog.Logger) *Poller {
	return &Poller{
		gw:       gw,
		scope:    sc,
		send:     send,
		interval: interval,
		period:   period,
		timeout:  timeout,
		log:      log,
		now:      time.Now,
	}
}

// Mount starts the schedule and returns the initial fetch of every symbol.
// Mounting twice is a no-op.
func (p *Poller) Mount() tea.Cmd {
	if p.mounted {
		return nil
	}
	p.gen++
	p.mounted = true

	gen, send := p.gen, p.send
	sched := cron.New()
	if _, err := sched.AddFunc(fmt.Sprintf("@every %s", p.interval), func() {
		send.Send(pollTickMsg{gen: gen})
	}); err != nil {
		p.log.Error("watchlist: schedule", "interval", p.interval, "error", err)
	} else {
		sched.Start()
		p.sched = sched
	}
	p.log.Info("watchlist: mounted", "symbols", len(p.entries), "interval", p.interval)
	return p.pollAll()
}

// Unmount stops the schedule. It does not wait for a running tick; ticks
// and responses of the old mount are dropped by the generation check.
func (p *Poller) Unmount() {
	if !p.mounted {
		return
	}
	p.mounted = false
	p.gen++
	if p.sched != nil {
		p.sched.Stop()
		p.sched = nil
	}
	p.log.Info("watchlist: unmounted")
}

// Mounted reports whether the schedule is running.
func (p *Poller) Mounted() bool { return p.mounted }

// Update handles tick and price messages.
func (p *Poller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case pollTickMsg:
		if !p.mounted || msg.gen != p.gen {
			return nil
		}
		return p.pollAll()
	case PriceMsg:
		p.apply(msg)
	}
	return nil
}

// Poll fetches every symbol now, as a tick would.
func (p *Poller) Poll() tea.Cmd {
	if !p.mounted {
		return nil
	}
	return p.pollAll()
}

func (p *Poller) pollAll() tea.Cmd {
	p.tick++
	cmds := make([]tea.Cmd, 0, len(p.entries))
	for _, e := range p.entries {
		cmds = append(cmds, p.fetch(e.Symbol, e.epoch, p.tick))
	}
	return tea.Batch(cmds...)
}

func (p *Poller) fetch(symbol string, epoch, tick uint64) tea.Cmd {
	gw, period, timeout, parent, gen := p.gw, p.period, p.timeout, p.scope.parent(), p.gen
	return func() tea.Msg {
		ctx, cancel := withTimeout(parent, timeout)
		defer cancel()
		msg := PriceMsg{Symbol: symbol, Gen: gen, Epoch: epoch, Tick: tick}
		pts, err := gw.History(ctx, symbol, period)
		if err != nil {
			msg.Err = err
			return msg
		}
		if len(pts) > 0 {
			msg.Close = pts[len(pts)-1].Close
			msg.OK = true
		}
		return msg
	}
}

func (p *Poller) apply(msg PriceMsg) {
	if msg.Gen != p.gen {
		return
	}
	e := p.find(msg.Symbol)
	if e == nil || e.epoch != msg.Epoch {
		p.log.Debug("watchlist: response for removed symbol dropped", "symbol", msg.Symbol)
		return
	}
	if msg.Err != nil {
		p.log.Warn("watchlist: fetch failed", "symbol", msg.Symbol, "error", msg.Err)
		return
	}
	if !msg.OK {
		p.log.Debug("watchlist: no data", "symbol", msg.Symbol)
		return
	}
	if msg.Tick < e.tick {
		return
	}
	v := msg.Close
	e.Close = &v
	e.UpdatedAt = p.now()
	e.tick = msg.Tick
}

// Add starts tracking symbol with an absent price. On a mounted poller the
// returned command fetches it right away. added is false for empty or
// already tracked symbols.
func (p *Poller) Add(symbol string) (cmd tea.Cmd, added bool) {
	symbol = marketdata.NormalizeSymbol(symbol)
	if symbol == "" || p.find(symbol) != nil {
		return nil, false
	}
	p.nextEpoch++
	e := &WatchEntry{Symbol: symbol, epoch: p.nextEpoch}
	p.entries = append(p.entries, e)
	if !p.mounted {
		return nil, true
	}
	return p.fetch(e.Symbol, e.epoch, p.tick), true
}

// Remove stops tracking symbol and discards its entry.
func (p *Poller) Remove(symbol string) bool {
	symbol = marketdata.NormalizeSymbol(symbol)
	for i, e := range p.entries {
		if e.Symbol == symbol {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether symbol is tracked.
func (p *Poller) Contains(symbol string) bool {
	return p.find(marketdata.NormalizeSymbol(symbol)) != nil
}

// Entries returns a copy of the tracked entries in insertion order.
func (p *Poller) Entries() []WatchEntry {
	out := make([]WatchEntry, len(p.entries))
	for i, e := range p.entries {
		out[i] = *e
	}
	return out
}

// Symbols returns the tracked symbols in insertion order.
func (p *Poller) Symbols() []string {
	out := make([]string, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.Symbol
	}
	return out
}

func (p *Poller) find(symbol string) *WatchEntry {
	for _, e := range p.entries {
		if e.Symbol == symbol {
			return e
		}
	}
	return nil
}
