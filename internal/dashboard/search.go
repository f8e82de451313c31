package dashboard

import (
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stockdash/pkg/marketdata"
)

// SearchState is the state of the result list.
type SearchState int

const (
	SearchIdle SearchState = iota
	SearchPending
	SearchOpen
)

func (s SearchState) String() string {
	switch s {
	case SearchIdle:
		return "idle"
	case SearchPending:
		return "pending"
	case SearchOpen:
		return "open"
	default:
		return "?"
	}
}

// searchDueMsg is posted by the debounce timer that survived.
type searchDueMsg struct {
	seq   uint64
	query string
}

// SearchResultsMsg carries the outcome of one search call.
type SearchResultsMsg struct {
	Seq     uint64
	Query   string
	Results []marketdata.SearchResult
	Err     error
}

// SearchController turns keystrokes into debounced search calls. Every
// input change bumps seq; a timer or response carrying an older seq is
// dropped, so the list only ever shows the answer to the latest query.
type SearchController struct {
	gw       Gateway
	scope    *scope
	send     Sender
	debounce time.Duration
	timeout  time.Duration
	log      *slog.Logger

	seq     uint64
	timer   *time.Timer
	query   string
	state   SearchState
	results []marketdata.SearchResult
	cursor  int
	calls   int
}

func newSearchController(gw Gateway, sc *scope, send Sender, debounce, timeout time.Duration, log *slog.Logger) *SearchController {
	return &SearchController{
		gw:       gw,
		scope:    sc,
		send:     send,
		debounce: debounce,
		timeout:  timeout,
		log:      log,
	}
}

// SetQuery records new input text and restarts the debounce timer. Input
// shorter than the minimum clears the list without any call.
func (c *SearchController) SetQuery(q string) {
	if q == c.query {
		return
	}
	c.query = q
	c.seq++
	c.stopTimer()

	if !marketdata.ValidQuery(q) {
		c.results = nil
		c.cursor = 0
		c.state = SearchIdle
		return
	}

	c.state = SearchPending
	seq, query, send := c.seq, strings.TrimSpace(q), c.send
	c.timer = time.AfterFunc(c.debounce, func() {
		send.Send(searchDueMsg{seq: seq, query: query})
	})
}

// Update handles search messages and ignores everything else.
func (c *SearchController) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case searchDueMsg:
		if msg.seq != c.seq {
			return nil
		}
		c.timer = nil
		return c.searchCmd(msg.seq, msg.query)

	case SearchResultsMsg:
		if msg.Seq != c.seq {
			c.log.Debug("search: stale response dropped", "query", msg.Query, "seq", msg.Seq, "latest", c.seq)
			return nil
		}
		if msg.Err != nil {
			c.log.Warn("search failed", "query", msg.Query, "error", msg.Err)
			if len(c.results) > 0 {
				c.state = SearchOpen
			} else {
				c.state = SearchIdle
			}
			return nil
		}
		c.results = msg.Results
		c.cursor = 0
		if len(c.results) > 0 {
			c.state = SearchOpen
		} else {
			c.state = SearchIdle
		}
	}
	return nil
}

func (c *SearchController) searchCmd(seq uint64, query string) tea.Cmd {
	c.calls++
	gw, timeout, parent := c.gw, c.timeout, c.scope.parent()
	c.log.Debug("search: issuing", "query", query, "seq", seq)
	return func() tea.Msg {
		ctx, cancel := withTimeout(parent, timeout)
		defer cancel()
		res, err := gw.Search(ctx, query)
		return SearchResultsMsg{Seq: seq, Query: query, Results: res, Err: err}
	}
}

// Commit returns the typed query as a symbol and closes the list.
func (c *SearchController) Commit() (string, bool) {
	sym := marketdata.NormalizeSymbol(c.query)
	if sym == "" {
		return "", false
	}
	c.closeList()
	return sym, true
}

// Pick returns the symbol of result i, puts it in the input, and closes
// the list without searching again.
func (c *SearchController) Pick(i int) (string, bool) {
	if i < 0 || i >= len(c.results) {
		return "", false
	}
	sym := marketdata.NormalizeSymbol(c.results[i].Symbol)
	c.query = sym
	c.closeList()
	return sym, sym != ""
}

// PickCurrent picks the result under the cursor.
func (c *SearchController) PickCurrent() (string, bool) {
	return c.Pick(c.cursor)
}

// MoveCursor moves the highlighted result by delta, clamped.
func (c *SearchController) MoveCursor(delta int) {
	if len(c.results) == 0 {
		c.cursor = 0
		return
	}
	c.cursor = max(0, min(len(c.results)-1, c.cursor+delta))
}

// Dismiss closes the list and abandons any pending search, keeping the
// input text.
func (c *SearchController) Dismiss() {
	c.closeList()
}

// Close stops the debounce timer. Late timers and responses are dropped by
// the sequence check.
func (c *SearchController) Close() {
	c.stopTimer()
	c.seq++
	if c.state == SearchPending {
		c.state = SearchIdle
	}
}

func (c *SearchController) closeList() {
	c.stopTimer()
	c.seq++
	c.results = nil
	c.cursor = 0
	c.state = SearchIdle
}

func (c *SearchController) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *SearchController) Query() string                      { return c.query }
func (c *SearchController) State() SearchState                 { return c.state }
func (c *SearchController) Results() []marketdata.SearchResult { return c.results }
func (c *SearchController) Cursor() int                        { return c.cursor }

// Calls returns how many search calls have been issued.
func (c *SearchController) Calls() int { return c.calls }
