// Package tui provides the Bubble Tea view of a running optimisation.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/keyopt/internal/anneal"
	"github.com/verte-zerg/keyopt/internal/layout"
	"github.com/verte-zerg/keyopt/internal/report"
)

const (
	tickInterval    = 250 * time.Millisecond
	maxHistory      = 200
	maxProgressBar  = 60
	progressPadding = 4
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

// EventMsg carries one optimizer event of a chain into the program.
type EventMsg struct {
	Chain int
	Event anneal.Event
}

// DoneMsg reports that every chain has returned.
type DoneMsg struct {
	Chains anneal.Chains
	Err    error
}

type tickMsg time.Time

type chainState struct {
	iteration   int
	temperature float64
	best        float64
	started     bool
	finished    bool
}

// Model implements the Bubble Tea progress UI.
type Model struct {
	spec     *layout.Spec
	params   anneal.Params
	baseline string
	cancel   context.CancelFunc

	width    int
	height   int
	progress progress.Model

	startedAt time.Time
	now       time.Time

	chains    []chainState
	best      layout.Genome
	bestScore float64
	bestChain int
	history   []float64

	stopping bool
	done     bool
	err      error
}

// NewModel constructs a progress model for chainCount chains. cancel is
// called when the user quits before the run is over.
func NewModel(spec *layout.Spec, params anneal.Params, baseline string, chainCount int, cancel context.CancelFunc) *Model {
	now := time.Now()
	return &Model{
		spec:      spec,
		params:    params,
		baseline:  baseline,
		cancel:    cancel,
		progress:  progress.New(progress.WithDefaultGradient()),
		startedAt: now,
		now:       now,
		chains:    make([]chainState, max(chainCount, 1)),
		bestChain: -1,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-progressPadding*2, 10), maxProgressBar)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" || msg.Type == tea.KeyEsc {
			if m.done {
				return m, tea.Quit
			}
			m.stopping = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil
	case tickMsg:
		m.now = time.Time(msg)
		if m.done {
			return m, nil
		}
		return m, tick()
	case EventMsg:
		m.applyEvent(msg.Chain, msg.Event)
		return m, nil
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m *Model) applyEvent(chain int, e anneal.Event) {
	if chain < 0 || chain >= len(m.chains) {
		return
	}
	st := &m.chains[chain]
	st.started = true
	st.iteration = e.Iteration
	st.temperature = e.Temperature
	st.best = e.Best
	if e.Kind == anneal.EventFinish {
		st.finished = true
	}
	if m.bestChain < 0 || e.Best < m.bestScore {
		m.bestScore = e.Best
		m.bestChain = chain
		m.best = e.BestGenome
		m.history = append(m.history, e.Best)
		if len(m.history) > maxHistory {
			m.history = m.history[len(m.history)-maxHistory:]
		}
	}
}

// Percent is the share of planned iterations done across all chains.
func (m *Model) Percent() float64 {
	planned := m.params.MaxIterations * len(m.chains)
	if planned == 0 {
		return 1
	}
	done := 0
	for _, st := range m.chains {
		if st.finished {
			done += m.params.MaxIterations
			continue
		}
		done += st.iteration
	}
	return min(float64(done)/float64(planned), 1)
}

// View implements tea.Model.
func (m *Model) View() string {
	lines := []string{
		titleStyle.Render(fmt.Sprintf("Optimising %s", m.spec.Name)),
		"",
		m.progress.ViewAs(m.Percent()),
		m.renderStatus(),
	}
	if len(m.chains) > 1 {
		lines = append(lines, "")
		lines = append(lines, m.renderChains()...)
	}
	if m.best != nil {
		lines = append(lines, "", report.RenderKeyboard(m.spec, m.best, true))
	}
	if len(m.history) > 1 {
		lines = append(lines, "", labelStyle.Render("best ")+report.Sparkline(m.history))
	}
	if m.err != nil {
		lines = append(lines, "", errorStyle.Render(m.err.Error()))
	}
	lines = append(lines, "", m.renderFooter())

	content := strings.Join(lines, "\n")
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) renderStatus() string {
	lead := m.leadChain()
	segments := []string{
		labelStyle.Render("iteration ") + valueStyle.Render(fmt.Sprintf("%d/%d", lead.iteration, m.params.MaxIterations)),
		labelStyle.Render("T ") + valueStyle.Render(fmt.Sprintf("%.2f", lead.temperature)),
	}
	if m.bestChain >= 0 {
		segments = append(segments, labelStyle.Render("best ")+valueStyle.Render(fmt.Sprintf("%+.4f%%", m.bestScore))+labelStyle.Render(" vs "+m.baseline))
	}
	segments = append(segments, labelStyle.Render("elapsed ")+valueStyle.Render(report.FormatDuration(m.now.Sub(m.startedAt))))
	return strings.Join(segments, "  ")
}

// leadChain is the chain that holds the best score, or the first one.
func (m *Model) leadChain() chainState {
	if m.bestChain >= 0 {
		return m.chains[m.bestChain]
	}
	return m.chains[0]
}

func (m *Model) renderChains() []string {
	out := make([]string, 0, len(m.chains))
	for i, st := range m.chains {
		status := "waiting"
		switch {
		case st.finished:
			status = "done"
		case st.started:
			status = fmt.Sprintf("it %d  T %.2f", st.iteration, st.temperature)
		}
		line := fmt.Sprintf("chain %d  %s", i, status)
		if st.started {
			line += fmt.Sprintf("  best %+.4f%%", st.best)
		}
		if i == m.bestChain {
			line = valueStyle.Render(line)
		} else {
			line = labelStyle.Render(line)
		}
		out = append(out, line)
	}
	return out
}

func (m *Model) renderFooter() string {
	switch {
	case m.done:
		return footerStyle.Render("Finished")
	case m.stopping:
		return footerStyle.Render("Stopping after the current iteration...")
	default:
		return footerStyle.Render(fmt.Sprintf("seed %d  q to stop", m.params.Seed))
	}
}
