package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/trajopt/internal/solver"
)

type progressMsg solver.Stats

type doneMsg struct {
	sol *solver.Solution
	err error
}

// LiveModel is the terminal view of a running solve: it kicks the
// optimization off in the background and redraws on every accepted
// iteration.
type LiveModel struct {
	model    string
	maxIters int
	start    func(progress func(solver.Stats)) (*solver.Solution, error)

	ch      chan tea.Msg
	latest  solver.Stats
	history []float64
	sol     *solver.Solution
	err     error
	done    bool
}

// NewLive wires a solve function into the live view. The function is
// expected to forward per-iteration stats through the given callback.
func NewLive(model string, maxIters int, start func(progress func(solver.Stats)) (*solver.Solution, error)) LiveModel {
	return LiveModel{
		model:    model,
		maxIters: maxIters,
		start:    start,
		ch:       make(chan tea.Msg, 16),
	}
}

func (m LiveModel) Init() tea.Cmd {
	go func() {
		sol, err := m.start(func(st solver.Stats) {
			m.ch <- progressMsg(st)
		})
		m.ch <- doneMsg{sol: sol, err: err}
	}()
	return m.wait()
}

func (m LiveModel) wait() tea.Cmd {
	return func() tea.Msg { return <-m.ch }
}

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "enter":
			return m, tea.Quit
		}
	case progressMsg:
		m.latest = solver.Stats(msg)
		m.history = append([]float64(nil), m.latest.CostHistory...)
		return m, m.wait()
	case doneMsg:
		m.done = true
		m.sol = msg.sol
		m.err = msg.err
		if m.sol != nil {
			m.latest = m.sol.Stats
			m.history = append([]float64(nil), m.latest.CostHistory...)
		}
		return m, nil
	}
	return m, nil
}

func (m LiveModel) View() string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render(strings.ToUpper(m.model)) + "\n")

	switch {
	case m.err != nil:
		b.WriteString(StatusBad.Render("FAILED") + " " + m.err.Error() + "\n")
	case m.done:
		b.WriteString(StatusGood.Render("DONE") + "\n")
	default:
		b.WriteString(StatusWarn.Render("SOLVING") + "\n")
	}
	if m.maxIters > 0 {
		pct := float64(m.latest.Iterations) / float64(m.maxIters)
		if m.done {
			pct = 1
		}
		b.WriteString(ProgressBar(pct, 40) + "\n")
	}
	b.WriteString("\n")

	if len(m.history) > 1 {
		b.WriteString(GraphStyle.Render(PlotCostHistory(m.history)) + "\n\n")
	}

	row(&b, "Iteration", fmt.Sprintf("%d", m.latest.Iterations))
	row(&b, "Cost", fmt.Sprintf("%.6g", m.latest.Cost))
	row(&b, "Gradient", fmt.Sprintf("%.3g", m.latest.GradientNorm))
	if m.latest.MaxViolation > 0 {
		row(&b, "Violation", fmt.Sprintf("%.3g", m.latest.MaxViolation))
	}
	row(&b, "Damping", fmt.Sprintf("%.3g", m.latest.Rho))

	if m.done && m.sol != nil {
		b.WriteString("\n" + Summary(m.model, m.sol))
	}

	b.WriteString(HelpStyle.Render("\nQ: quit"))
	return b.String()
}
