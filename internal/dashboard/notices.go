package dashboard

import (
	"sort"
	"time"
)

// Source names the component a notice came from.
type Source string

const (
	SourceChart    Source = "chart"
	SourceBacktest Source = "backtest"
	SourceExport   Source = "export"
)

// Notice is one user-visible failure.
type Notice struct {
	Source Source
	Err    error
	At     time.Time
}

func (n Notice) String() string {
	return string(n.Source) + ": " + n.Err.Error()
}

// Notices is the shared error channel. Each source holds at most one
// notice; a newer failure from the same source replaces the older one.
type Notices struct {
	items map[Source]Notice
	now   func() time.Time
}

func NewNotices() *Notices {
	return &Notices{items: make(map[Source]Notice), now: time.Now}
}

// Publish records err for src. A nil err clears src.
func (n *Notices) Publish(src Source, err error) {
	if err == nil {
		n.Clear(src)
		return
	}
	n.items[src] = Notice{Source: src, Err: err, At: n.now()}
}

// Clear removes the notice for src, if any.
func (n *Notices) Clear(src Source) {
	delete(n.items, src)
}

// Get returns the notice for src.
func (n *Notices) Get(src Source) (Notice, bool) {
	v, ok := n.items[src]
	return v, ok
}

// Latest returns the most recent notice across all sources. Notices
// published at the same instant are ordered by source name.
func (n *Notices) Latest() (Notice, bool) {
	var latest Notice
	found := false
	for _, v := range n.items {
		if !found || newer(v, latest) {
			latest, found = v, true
		}
	}
	return latest, found
}

// All returns every notice, oldest first.
func (n *Notices) All() []Notice {
	out := make([]Notice, 0, len(n.items))
	for _, v := range n.items {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[j], out[i]) })
	return out
}

// newer orders a before b when it is more recent; ties go to the smaller
// source name.
func newer(a, b Notice) bool {
	if !a.At.Equal(b.At) {
		return a.At.After(b.At)
	}
	return a.Source < b.Source
}
