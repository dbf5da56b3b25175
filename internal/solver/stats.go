package solver

import (
	"github.com/san-kum/trajopt/internal/ilqr"
	"github.com/san-kum/trajopt/internal/traj"
)

// Status classifies how a solve ended.
type Status int

const (
	Converged Status = iota
	MaxIterationsReached
	Stalled // line search kept rejecting steps
	Failed  // backward pass hit the regularization ceiling
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case MaxIterationsReached:
		return "max iterations"
	case Stalled:
		return "stalled"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Stats accumulates over a solve. CostHistory holds the accepted cost
// after each successful iteration, starting with the initial trajectory.
type Stats struct {
	Status          Status
	Iterations      int
	OuterIterations int
	Cost            float64
	CostHistory     []float64
	GradientNorm    float64
	MaxViolation    float64
	Rho             float64
}

// Solution is the outcome of a solve: the optimized trajectory, the final
// gains and cost-to-go (usable for tracking), and solve statistics.
type Solution struct {
	Trajectory *traj.Trajectory
	Results    *ilqr.Results
	Stats      Stats
}
