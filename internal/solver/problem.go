package solver

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/cost"
	"github.com/san-kum/trajopt/internal/dynamics"
	"github.com/san-kum/trajopt/internal/traj"
)

// StageConstraint is one block of per-step constraints c(x, u). Equality
// blocks are driven to zero; inequality blocks use the convention
// c(x, u) <= 0. Jacobians are taken over the true (physical) controls.
type StageConstraint interface {
	Dim() int
	Eval(dst *mat.VecDense, x, u *mat.VecDense)
	Jacobians(cx, cu *mat.Dense, x, u *mat.VecDense)
	Equality() bool
}

// TerminalConstraint is a constraint block on the final state only.
type TerminalConstraint interface {
	Dim() int
	Eval(dst *mat.VecDense, x *mat.VecDense)
	Jacobian(cx *mat.Dense, x *mat.VecDense)
	Equality() bool
}

// Problem is one trajectory optimization instance: dynamics, objective,
// horizon, initial condition, and optional constraint blocks.
type Problem struct {
	Dynamics *dynamics.Discrete
	Cost     cost.Oracle

	N  int     // knot points
	Dt float64 // nominal step duration

	X0 *mat.VecDense   // initial state, required
	U0 []*mat.VecDense // initial control guess, optional (length N-1, true controls)
	// XGuess is the desired state trajectory for infeasible starts
	// (length N). The slack controls are seeded to reproduce it exactly.
	XGuess []*mat.VecDense

	Stage    []StageConstraint
	Terminal []TerminalConstraint

	MinTime    bool
	Infeasible bool
}

func (p *Problem) dims() traj.Dims {
	return traj.Dims{
		N:          p.N,
		NX:         p.Dynamics.StateDim(),
		NU:         p.Dynamics.ControlDim(),
		MinTime:    p.MinTime,
		Infeasible: p.Infeasible,
	}
}

func (p *Problem) validate() error {
	if p.Dynamics == nil || p.Cost == nil {
		return fmt.Errorf("solver: problem needs dynamics and a cost oracle")
	}
	if err := p.dims().Validate(); err != nil {
		return err
	}
	if p.Dt <= 0 && !p.MinTime {
		return fmt.Errorf("solver: dt must be positive, got %g", p.Dt)
	}
	if p.X0 == nil || p.X0.Len() != p.Dynamics.StateDim() {
		return fmt.Errorf("solver: initial state must have dimension %d", p.Dynamics.StateDim())
	}
	if p.U0 != nil && len(p.U0) != p.N-1 {
		return fmt.Errorf("solver: control guess has %d entries, want %d", len(p.U0), p.N-1)
	}
	if p.Infeasible && len(p.XGuess) != p.N {
		return fmt.Errorf("solver: infeasible start needs a state guess of length %d", p.N)
	}
	return nil
}

func (p *Problem) stageDim() int {
	nc := 0
	for _, c := range p.Stage {
		nc += c.Dim()
	}
	return nc
}

func (p *Problem) terminalDim() int {
	nc := 0
	for _, c := range p.Terminal {
		nc += c.Dim()
	}
	return nc
}

// ControlBounds is the box constraint lower <= u <= upper, expressed as
// 2*nu inequality rows (u - upper; lower - u).
type ControlBounds struct {
	Lower, Upper []float64
}

func (b *ControlBounds) Dim() int       { return 2 * len(b.Upper) }
func (b *ControlBounds) Equality() bool { return false }

func (b *ControlBounds) Eval(dst *mat.VecDense, x, u *mat.VecDense) {
	nu := len(b.Upper)
	for i := 0; i < nu; i++ {
		dst.SetVec(i, u.AtVec(i)-b.Upper[i])
		dst.SetVec(nu+i, b.Lower[i]-u.AtVec(i))
	}
}

func (b *ControlBounds) Jacobians(cx, cu *mat.Dense, x, u *mat.VecDense) {
	cx.Zero()
	cu.Zero()
	nu := len(b.Upper)
	for i := 0; i < nu; i++ {
		cu.Set(i, i, 1)
		cu.Set(nu+i, i, -1)
	}
}

// GoalConstraint pins the final state to a target, as a terminal equality.
type GoalConstraint struct {
	Target *mat.VecDense
}

func (g *GoalConstraint) Dim() int       { return g.Target.Len() }
func (g *GoalConstraint) Equality() bool { return true }

func (g *GoalConstraint) Eval(dst *mat.VecDense, x *mat.VecDense) {
	dst.SubVec(x, g.Target)
}

func (g *GoalConstraint) Jacobian(cx *mat.Dense, x *mat.VecDense) {
	cx.Zero()
	for i := 0; i < g.Target.Len(); i++ {
		cx.Set(i, i, 1)
	}
}

// StateBounds is the box constraint lower <= x <= upper on every stage
// state, expressed as 2*nx inequality rows.
type StateBounds struct {
	Lower, Upper []float64
}

func (b *StateBounds) Dim() int       { return 2 * len(b.Upper) }
func (b *StateBounds) Equality() bool { return false }

func (b *StateBounds) Eval(dst *mat.VecDense, x, u *mat.VecDense) {
	nx := len(b.Upper)
	for i := 0; i < nx; i++ {
		dst.SetVec(i, x.AtVec(i)-b.Upper[i])
		dst.SetVec(nx+i, b.Lower[i]-x.AtVec(i))
	}
}

func (b *StateBounds) Jacobians(cx, cu *mat.Dense, x, u *mat.VecDense) {
	cx.Zero()
	cu.Zero()
	nx := len(b.Upper)
	for i := 0; i < nx; i++ {
		cx.Set(i, i, 1)
		cx.Set(nx+i, i, -1)
	}
}
