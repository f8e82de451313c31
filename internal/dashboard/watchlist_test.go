package dashboard

import (
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stockdash/pkg/marketdata"
)

func newTestPoller(gw *fakeGateway, interval time.Duration) (*Poller, chanSender) {
	ch := make(chanSender, 16)
	return newPoller(gw, newScope(), ch, interval, marketdata.PeriodIntraday, time.Second, discardLogger()), ch
}

func applyAll(p *Poller, cmd tea.Cmd) {
	for _, m := range runCmd(cmd) {
		p.Update(m)
	}
}

func priceOf(p *Poller, sym string) *float64 {
	for _, e := range p.Entries() {
		if e.Symbol == sym {
			return e.Close
		}
	}
	return nil
}

func TestPollerPartialFailure(t *testing.T) {
	var mu sync.Mutex
	prices := map[string]float64{"A": 10, "B": 20}
	failA := false
	gw := &fakeGateway{historyFn: func(sym string, _ marketdata.Period) ([]marketdata.PricePoint, error) {
		mu.Lock()
		defer mu.Unlock()
		if sym == "A" && failA {
			return nil, &marketdata.ServiceError{Op: "history", StatusCode: 500}
		}
		return []marketdata.PricePoint{point(time.Now(), 1), point(time.Now(), prices[sym])}, nil
	}}
	p, _ := newTestPoller(gw, time.Hour)
	p.Add("A")
	p.Add("B")

	applyAll(p, p.Mount())
	defer p.Unmount()
	if a, b := priceOf(p, "A"), priceOf(p, "B"); a == nil || *a != 10 || b == nil || *b != 20 {
		t.Fatalf("after first tick A=%v B=%v", a, b)
	}

	mu.Lock()
	failA = true
	prices["A"], prices["B"] = 11, 21
	mu.Unlock()

	applyAll(p, p.Update(pollTickMsg{gen: p.gen}))

	if a := priceOf(p, "A"); a == nil || *a != 10 {
		t.Errorf("A after failed tick = %v, want unchanged 10", a)
	}
	if b := priceOf(p, "B"); b == nil || *b != 21 {
		t.Errorf("B after tick = %v, want 21", b)
	}
}

func TestPollerRemoveMidCycleAndReAdd(t *testing.T) {
	gw := &fakeGateway{historyFn: func(sym string, _ marketdata.Period) ([]marketdata.PricePoint, error) {
		return []marketdata.PricePoint{point(time.Now(), 42)}, nil
	}}
	p, _ := newTestPoller(gw, time.Hour)
	p.Add("AAPL")
	p.Add("MSFT")
	applyAll(p, p.Mount())
	defer p.Unmount()

	// A tick is in flight when AAPL is removed.
	inflight := runCmd(p.Update(pollTickMsg{gen: p.gen}))
	if !p.Remove("aapl") {
		t.Fatal("Remove returned false")
	}
	for _, m := range inflight {
		p.Update(m)
	}
	if p.Contains("AAPL") {
		t.Fatal("removed symbol must not come back")
	}
	if got := p.Symbols(); len(got) != 1 || got[0] != "MSFT" {
		t.Errorf("symbols = %v, want [MSFT]", got)
	}

	// Next tick skips the removed symbol.
	before := len(gw.historyCalls())
	applyAll(p, p.Update(pollTickMsg{gen: p.gen}))
	for _, s := range gw.historyCalls()[before:] {
		if s.Symbol == "AAPL" {
			t.Error("removed symbol was polled")
		}
	}

	// Re-added: absent until its own fetch lands, stale responses ignored.
	pending := runCmd(p.Update(pollTickMsg{gen: p.gen}))
	cmd, added := p.Add("AAPL")
	if !added || cmd == nil {
		t.Fatal("expected immediate fetch on re-add")
	}
	for _, m := range append(pending, inflight...) {
		p.Update(m)
	}
	if priceOf(p, "AAPL") != nil {
		t.Error("re-added symbol should show Loading... until its fetch lands")
	}
	applyAll(p, cmd)
	if v := priceOf(p, "AAPL"); v == nil || *v != 42 {
		t.Errorf("AAPL after fetch = %v, want 42", v)
	}
}

func TestPollerOlderTickIgnored(t *testing.T) {
	price := 1.0
	gw := &fakeGateway{historyFn: func(string, marketdata.Period) ([]marketdata.PricePoint, error) {
		return []marketdata.PricePoint{point(time.Now(), price)}, nil
	}}
	p, _ := newTestPoller(gw, time.Hour)
	p.Add("X")
	applyAll(p, p.Mount())
	defer p.Unmount()

	price = 2
	older := runCmd(p.Update(pollTickMsg{gen: p.gen}))
	price = 3
	applyAll(p, p.Update(pollTickMsg{gen: p.gen}))
	for _, m := range older {
		p.Update(m)
	}
	if v := priceOf(p, "X"); v == nil || *v != 3 {
		t.Errorf("X = %v, want 3 from the newer tick", v)
	}
}

func TestPollerEmptySeriesKeepsPrice(t *testing.T) {
	empty := false
	gw := &fakeGateway{historyFn: func(string, marketdata.Period) ([]marketdata.PricePoint, error) {
		if empty {
			return []marketdata.PricePoint{}, nil
		}
		return []marketdata.PricePoint{point(time.Now(), 5)}, nil
	}}
	p, _ := newTestPoller(gw, time.Hour)
	p.Add("Q")
	applyAll(p, p.Mount())
	defer p.Unmount()

	empty = true
	applyAll(p, p.Poll())
	if v := priceOf(p, "Q"); v == nil || *v != 5 {
		t.Errorf("Q = %v, want 5", v)
	}
}

func TestPollerScheduleTicksAndStops(t *testing.T) {
	gw := &fakeGateway{}
	p, ch := newTestPoller(gw, time.Second)
	p.Add("SPY")

	applyAll(p, p.Mount())
	msg := waitMsg(t, ch, 3*time.Second)
	tick, ok := msg.(pollTickMsg)
	if !ok || tick.gen != p.gen {
		t.Fatalf("expected tick of the current mount, got %#v", msg)
	}
	if p.Update(tick) == nil {
		t.Error("current tick should poll")
	}

	p.Unmount()
	if p.Mounted() || p.sched != nil {
		t.Error("schedule should be stopped")
	}
	if p.Update(tick) != nil {
		t.Error("tick of an unmounted poller must be ignored")
	}
	if p.Poll() != nil {
		t.Error("Poll on an unmounted poller must be a no-op")
	}

	// A response from the old mount is ignored after remount.
	stale := PriceMsg{Symbol: "SPY", Gen: tick.gen, Epoch: 1, Tick: 99, Close: 1, OK: true}
	applyAll(p, p.Mount())
	defer p.Unmount()
	p.Update(stale)
	if v := priceOf(p, "SPY"); v == nil || *v != 100 {
		t.Errorf("SPY = %v, want 100 from the current mount", v)
	}
}

func TestPollerFailureLogsOnly(t *testing.T) {
	gw := &fakeGateway{historyFn: func(string, marketdata.Period) ([]marketdata.PricePoint, error) {
		return nil, errors.New("boom")
	}}
	p, _ := newTestPoller(gw, time.Hour)
	cmd, added := p.Add("ZZ")
	if !added || cmd != nil {
		t.Error("Add before mount should not fetch")
	}
	applyAll(p, p.Mount())
	defer p.Unmount()
	if priceOf(p, "ZZ") != nil {
		t.Error("failed first fetch should leave the price absent")
	}
	if _, added := p.Add(" zz "); added {
		t.Error("duplicate Add should be rejected")
	}
}
