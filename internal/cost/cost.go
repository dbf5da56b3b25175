package cost

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/traj"
)

// StageExpansion is the second-order Taylor expansion of the stage cost at
// one (state, control) pair, together with the raw cost value.
type StageExpansion struct {
	Lxx *mat.Dense // nx x nx
	Luu *mat.Dense // nu x nu
	Lux *mat.Dense // nu x nx
	Lx  *mat.VecDense
	Lu  *mat.VecDense
	Val float64
}

func NewStageExpansion(nx, nu int) *StageExpansion {
	return &StageExpansion{
		Lxx: mat.NewDense(nx, nx, nil),
		Luu: mat.NewDense(nu, nu, nil),
		Lux: mat.NewDense(nu, nx, nil),
		Lx:  mat.NewVecDense(nx, nil),
		Lu:  mat.NewVecDense(nu, nil),
	}
}

// TerminalExpansion is the second-order expansion of the terminal cost.
type TerminalExpansion struct {
	Lxx *mat.Dense
	Lx  *mat.VecDense
	Val float64
}

func NewTerminalExpansion(nx int) *TerminalExpansion {
	return &TerminalExpansion{
		Lxx: mat.NewDense(nx, nx, nil),
		Lx:  mat.NewVecDense(nx, nil),
	}
}

// Oracle evaluates the objective and its expansions. Implementations must
// be exact second order (or a consistent approximation) at the evaluation
// point; the backward pass consumes the expansion as-is.
type Oracle interface {
	Stage(x, u *mat.VecDense, exp *StageExpansion)
	Terminal(x *mat.VecDense, exp *TerminalExpansion)
	StageCost(x, u *mat.VecDense) float64
	TerminalCost(x *mat.VecDense) float64
}

// Penalties holds the weights applied to augmented control blocks when
// totalling trajectory cost.
type Penalties struct {
	MinTime    float64 // weight on h^2 (time penalty)
	Infeasible float64 // weight on 1/2 |nu|^2
}

// Total evaluates the full objective of a trajectory: stage costs scaled
// by the step duration, slack penalties, and the terminal cost.
func Total(o Oracle, t *traj.Trajectory, p Penalties) float64 {
	j := 0.0
	slack, hasSlack := t.SlackBlock()
	_, hasTime := t.TimeIndex()
	for k := 0; k < t.N-1; k++ {
		dt := t.StepDuration(k)
		j += dt * o.StageCost(t.X[k], t.TrueControl(k))
		if hasTime {
			j += p.MinTime * dt
		}
		if hasSlack {
			nu := slack.Of(t.U[k])
			j += 0.5 * p.Infeasible * mat.Dot(nu, nu)
		}
	}
	return j + o.TerminalCost(t.X[t.N-1])
}
