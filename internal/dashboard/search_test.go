package dashboard

import (
	"errors"
	"testing"
	"time"

	"stockdash/pkg/marketdata"
)

func newTestSearch(gw *fakeGateway, debounce time.Duration) (*SearchController, chanSender) {
	ch := make(chanSender, 16)
	return newSearchController(gw, newScope(), ch, debounce, time.Second, discardLogger()), ch
}

func TestSearchShortQueryIssuesNoCall(t *testing.T) {
	gw := &fakeGateway{}
	c, ch := newTestSearch(gw, 10*time.Millisecond)

	for _, q := range []string{"", "A", " B ", "x"} {
		c.SetQuery(q)
		if c.State() != SearchIdle {
			t.Errorf("SetQuery(%q): state = %v, want idle", q, c.State())
		}
		if len(c.Results()) != 0 {
			t.Errorf("SetQuery(%q): results should be empty", q)
		}
	}

	select {
	case m := <-ch:
		t.Fatalf("unexpected timer message %#v", m)
	case <-time.After(60 * time.Millisecond):
	}
	if n := len(gw.searchCalls()); n != 0 || c.Calls() != 0 {
		t.Errorf("expected no search calls, got %d", n)
	}
}

func TestSearchShortQueryClearsResults(t *testing.T) {
	gw := &fakeGateway{}
	c, ch := newTestSearch(gw, 5*time.Millisecond)

	c.SetQuery("AAPL")
	for _, m := range runCmd(c.Update(waitMsg(t, ch, time.Second))) {
		c.Update(m)
	}
	if c.State() != SearchOpen || len(c.Results()) != 1 {
		t.Fatalf("expected open list with 1 result, got %v/%d", c.State(), len(c.Results()))
	}

	c.SetQuery("A")
	if c.State() != SearchIdle || len(c.Results()) != 0 {
		t.Errorf("short input should clear the list, got %v/%d", c.State(), len(c.Results()))
	}
}

func TestSearchDebounceFiresOnce(t *testing.T) {
	gw := &fakeGateway{}
	c, ch := newTestSearch(gw, 50*time.Millisecond)

	c.SetQuery("A")
	c.SetQuery("AA")
	c.SetQuery("AAP")
	if c.State() != SearchPending {
		t.Fatalf("state = %v, want pending", c.State())
	}

	msg := waitMsg(t, ch, time.Second)
	due, ok := msg.(searchDueMsg)
	if !ok || due.query != "AAP" {
		t.Fatalf("expected due message for AAP, got %#v", msg)
	}
	select {
	case m := <-ch:
		t.Fatalf("cancelled timers must not fire, got %#v", m)
	case <-time.After(100 * time.Millisecond):
	}

	for _, m := range runCmd(c.Update(due)) {
		c.Update(m)
	}
	calls := gw.searchCalls()
	if len(calls) != 1 || calls[0] != "AAP" {
		t.Errorf("search calls = %v, want [AAP]", calls)
	}
	if c.State() != SearchOpen || c.Results()[0].Symbol != "AAP" {
		t.Errorf("unexpected list %v %v", c.State(), c.Results())
	}
}

func TestSearchStaleResponseDropped(t *testing.T) {
	gw := &fakeGateway{}
	c, ch := newTestSearch(gw, 5*time.Millisecond)

	// First query: issue the call but hold its response.
	c.SetQuery("AAP")
	first := c.Update(waitMsg(t, ch, time.Second))
	if first == nil {
		t.Fatal("expected search command for AAP")
	}

	// User types "L": a second call is issued and resolves first.
	c.SetQuery("AAPL")
	second := c.Update(waitMsg(t, ch, time.Second))
	if second == nil {
		t.Fatal("expected search command for AAPL")
	}
	for _, m := range runCmd(second) {
		c.Update(m)
	}
	// The older response arrives last.
	for _, m := range runCmd(first) {
		c.Update(m)
	}

	res := c.Results()
	if len(res) != 1 || res[0].Symbol != "AAPL" {
		t.Errorf("results = %v, want the AAPL response", res)
	}
}

func TestSearchStaleDueMessageIgnored(t *testing.T) {
	c, _ := newTestSearch(&fakeGateway{}, time.Hour)
	c.SetQuery("MS")
	c.SetQuery("MSF")
	if cmd := c.Update(searchDueMsg{seq: c.seq - 1, query: "MS"}); cmd != nil {
		t.Error("due message of a superseded query must be ignored")
	}
	c.Close()
}

func TestSearchErrorKeepsList(t *testing.T) {
	gw := &fakeGateway{}
	c, ch := newTestSearch(gw, 5*time.Millisecond)

	c.SetQuery("TSLA")
	for _, m := range runCmd(c.Update(waitMsg(t, ch, time.Second))) {
		c.Update(m)
	}

	gw.searchFn = func(string) ([]marketdata.SearchResult, error) {
		return nil, &marketdata.NetworkError{Op: "search", Err: errors.New("refused")}
	}
	c.SetQuery("TSLQ")
	for _, m := range runCmd(c.Update(waitMsg(t, ch, time.Second))) {
		c.Update(m)
	}
	if c.State() != SearchOpen || len(c.Results()) != 1 || c.Results()[0].Symbol != "TSLA" {
		t.Errorf("failed search should keep the last list, got %v %v", c.State(), c.Results())
	}
}

func TestSearchPickAndDismiss(t *testing.T) {
	gw := &fakeGateway{searchFn: func(string) ([]marketdata.SearchResult, error) {
		return []marketdata.SearchResult{{Symbol: "AAPL", Name: "Apple"}, {Symbol: "aapu", Name: "Bull 2x"}}, nil
	}}
	c, ch := newTestSearch(gw, 5*time.Millisecond)

	c.SetQuery("aap")
	for _, m := range runCmd(c.Update(waitMsg(t, ch, time.Second))) {
		c.Update(m)
	}
	c.MoveCursor(5)
	if c.Cursor() != 1 {
		t.Errorf("cursor = %d, want clamped to 1", c.Cursor())
	}
	sym, ok := c.PickCurrent()
	if !ok || sym != "AAPU" {
		t.Errorf("PickCurrent = %q, %v; want AAPU", sym, ok)
	}
	if c.Query() != "AAPU" || c.State() != SearchIdle {
		t.Errorf("after pick: query %q state %v", c.Query(), c.State())
	}
	// Same text again does not start another search.
	c.SetQuery("AAPU")
	if c.State() != SearchIdle {
		t.Error("picking should not trigger a new search")
	}
	if _, ok := c.Pick(3); ok {
		t.Error("Pick out of range should fail")
	}

	c.SetQuery("MSFT")
	c.Dismiss()
	if c.State() != SearchIdle || c.Query() != "MSFT" {
		t.Errorf("dismiss: state %v query %q", c.State(), c.Query())
	}
	select {
	case m := <-ch:
		if cmd := c.Update(m); cmd != nil {
			t.Error("dismissed search must not be issued")
		}
	case <-time.After(30 * time.Millisecond):
	}
}
