package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/keyopt/internal/anneal"
)

// DefaultReportInterval limits how often plain iterations reach the UI.
const DefaultReportInterval = 50 * time.Millisecond

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Reporter forwards the events of one chain to a program. Start, finish
// and new-best events always go through; other iterations are throttled.
type Reporter struct {
	send  Sender
	chain int
	every time.Duration
	last  time.Time
	now   func() time.Time
}

// NewReporter returns a reporter for chain.
func NewReporter(s Sender, chain int) *Reporter {
	return &Reporter{send: s, chain: chain, every: DefaultReportInterval, now: time.Now}
}

// Observe implements anneal.Observer.
func (r *Reporter) Observe(e anneal.Event) {
	t := r.now()
	if e.Kind == anneal.EventIteration && !e.NewBest && t.Sub(r.last) < r.every {
		return
	}
	r.last = t
	e.BestGenome = e.BestGenome.Clone()
	r.send.Send(EventMsg{Chain: r.chain, Event: e})
}
