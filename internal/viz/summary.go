package viz

import (
	"fmt"
	"strings"

	"github.com/san-kum/trajopt/internal/metrics"
	"github.com/san-kum/trajopt/internal/solver"
	"github.com/san-kum/trajopt/internal/traj"
)

// Summary renders a styled report of a finished solve.
func Summary(model string, sol *solver.Solution) string {
	st := sol.Stats

	var status string
	switch st.Status {
	case solver.Converged:
		status = StatusGood.Render(st.Status.String())
	case solver.Failed:
		status = StatusBad.Render(st.Status.String())
	default:
		status = StatusWarn.Render(st.Status.String())
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render(strings.ToUpper(model)) + "\n")
	row(&b, "Status", status)
	row(&b, "Iterations", fmt.Sprintf("%d (%d outer)", st.Iterations, st.OuterIterations))
	row(&b, "Cost", fmt.Sprintf("%.6g", st.Cost))
	row(&b, "Gradient", fmt.Sprintf("%.3g", st.GradientNorm))
	if st.MaxViolation > 0 {
		row(&b, "Violation", fmt.Sprintf("%.3g", st.MaxViolation))
	}
	row(&b, "Damping", fmt.Sprintf("%.3g", st.Rho))
	row(&b, "Horizon", describeHorizon(sol.Trajectory))
	row(&b, "Effort", fmt.Sprintf("%.4g", metrics.ControlEffort(sol.Trajectory)))
	row(&b, "Peak |u|", fmt.Sprintf("%.4g", metrics.PeakControl(sol.Trajectory)))
	if len(st.CostHistory) > 1 {
		row(&b, "Cost trend", Sparkline(st.CostHistory, 30))
	}
	return PanelStyle.Render(b.String())
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(LabelStyle.Render(label) + ValueStyle.Render(value) + "\n")
}

func describeHorizon(t *traj.Trajectory) string {
	if t.MinTime {
		return fmt.Sprintf("%d knots, %.3fs (free final time)", t.N, t.TotalTime())
	}
	return fmt.Sprintf("%d knots, %.3fs", t.N, t.TotalTime())
}
