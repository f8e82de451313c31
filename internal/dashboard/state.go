package dashboard

import (
	"context"
	"time"

	"stockdash/pkg/marketdata"
)

// Selection is the currently inspected symbol and history window.
type Selection struct {
	Symbol string
	Period marketdata.Period
}

func (s Selection) String() string {
	return s.Symbol + " " + s.Period.Label()
}

// IsZero reports whether no selection has been made.
func (s Selection) IsZero() bool { return s.Symbol == "" }

// SelectionStore owns the single Selection. It is only touched from the
// event loop.
type SelectionStore struct {
	cur Selection
}

// NewSelectionStore returns a store initialised to symbol and period.
func NewSelectionStore(symbol string, period marketdata.Period) *SelectionStore {
	if !period.Valid() {
		period = marketdata.PeriodYear
	}
	return &SelectionStore{cur: Selection{
		Symbol: marketdata.NormalizeSymbol(symbol),
		Period: period,
	}}
}

// Current returns the selection by value.
func (s *SelectionStore) Current() Selection { return s.cur }

// SetSymbol selects symbol and reports whether the selection changed.
// Empty symbols are ignored.
func (s *SelectionStore) SetSymbol(symbol string) bool {
	symbol = marketdata.NormalizeSymbol(symbol)
	if symbol == "" || symbol == s.cur.Symbol {
		return false
	}
	s.cur.Symbol = symbol
	return true
}

// SetPeriod selects period and reports whether the selection changed.
// Unknown periods are ignored.
func (s *SelectionStore) SetPeriod(p marketdata.Period) bool {
	if !p.Valid() || p == s.cur.Period {
		return false
	}
	s.cur.Period = p
	return true
}

// scope is the root context every gateway call of one mount runs under.
// Replaced on Mount, cancelled on Unmount.
type scope struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newScope() *scope {
	s := &scope{}
	s.reset()
	return s
}

func (s *scope) reset() {
	if s.cancel != nil {
		s.cancel()
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
}

func (s *scope) close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// parent captures the current root context. Call it on the event loop
// while building a command, never inside the command.
func (s *scope) parent() context.Context { return s.ctx }

func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
