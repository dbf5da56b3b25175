package solver

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/ilqr"
	"github.com/san-kum/trajopt/internal/traj"
)

// Solver runs the iterative LQR loop, optionally wrapped in an augmented
// Lagrangian outer loop when the problem carries constraints. A Solver
// owns its working trajectories and scratch buffers and is not safe for
// concurrent use.
type Solver struct {
	p    *Problem
	opts Options

	tr   *traj.Trajectory // current accepted trajectory
	cand *traj.Trajectory // line-search candidate
	res  *ilqr.Results
	bp   *ilqr.BackwardPass

	mu float64 // augmented Lagrangian penalty

	fuTrue *mat.Dense    // Jacobian over the physical controls
	fdt    *mat.VecDense // dF/d(dt) column for minimum-time mode
	dx, du *mat.VecDense
	cs1    *mat.VecDense // stage constraint scratch for candidate costs
	cs2    *mat.VecDense // terminal constraint scratch
}

func New(p *Problem, opts Options) (*Solver, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	d := p.dims()
	s := &Solver{
		p:      p,
		opts:   opts,
		tr:     traj.New(d, p.Dt),
		cand:   traj.New(d, p.Dt),
		res:    ilqr.NewResults(d),
		mu:     opts.PenaltyInitial,
		fuTrue: mat.NewDense(d.NX, d.NU, nil),
		dx:     mat.NewVecDense(d.NX, nil),
		du:     mat.NewVecDense(d.NUAug(), nil),
	}
	if opts.Reg.Scale > 0 {
		s.res.Reg = opts.Reg
	}
	if d.MinTime {
		s.fdt = mat.NewVecDense(d.NX, nil)
	}
	if nc := p.stageDim(); nc > 0 || p.terminalDim() > 0 {
		s.res.AttachConstraints(nc, p.terminalDim())
		if m := maxBlockDim(p); m > 0 {
			s.cs1 = mat.NewVecDense(m, nil)
		}
		if m := maxTerminalDim(p); m > 0 {
			s.cs2 = mat.NewVecDense(m, nil)
		}
	}

	s.seed()
	bp, err := ilqr.New(s.res, s.tr, p.Cost, opts.Backward)
	if err != nil {
		return nil, err
	}
	s.bp = bp
	return s, nil
}

func maxBlockDim(p *Problem) int {
	m := 0
	for _, c := range p.Stage {
		if c.Dim() > m {
			m = c.Dim()
		}
	}
	return m
}

func maxTerminalDim(p *Problem) int {
	m := 0
	for _, c := range p.Terminal {
		if c.Dim() > m {
			m = c.Dim()
		}
	}
	return m
}

// seed initializes the working trajectory. A feasible start propagates
// the control guess through the dynamics; an infeasible start takes the
// state guess verbatim and absorbs the defects into the slack controls.
func (s *Solver) seed() {
	d := s.tr.Dims
	s.tr.X[0].CopyVec(s.p.X0)
	for k := 0; k < d.N-1; k++ {
		if s.p.U0 != nil {
			s.tr.TrueControl(k).CopyVec(s.p.U0[k])
		}
	}

	if d.Infeasible {
		slack, _ := d.SlackBlock()
		for k := 0; k < d.N; k++ {
			s.tr.X[k].CopyVec(s.p.XGuess[k])
		}
		s.tr.X[0].CopyVec(s.p.X0)
		for k := 0; k < d.N-1; k++ {
			dt := s.tr.StepDuration(k)
			s.p.Dynamics.Propagate(s.dx, s.tr.X[k], s.tr.TrueControl(k), dt)
			nu := slack.Of(s.tr.U[k])
			nu.SubVec(s.tr.X[k+1], s.dx)
		}
		return
	}

	for k := 0; k < d.N-1; k++ {
		dt := s.tr.StepDuration(k)
		s.p.Dynamics.Propagate(s.tr.X[k+1], s.tr.X[k], s.tr.TrueControl(k), dt)
	}
}

// Solve runs the optimization to completion.
func (s *Solver) Solve() (*Solution, error) {
	stats := Stats{Status: MaxIterationsReached}

	outers := 1
	if s.res.Constrained() {
		outers = s.opts.MaxOuterIterations
	}
	for outer := 0; outer < outers; outer++ {
		stats.OuterIterations++
		if err := s.innerLoop(&stats); err != nil {
			stats.Status = Failed
			return s.solution(stats), fmt.Errorf("solver: outer iteration %d: %w", outer, err)
		}
		if !s.res.Constrained() {
			break
		}
		stats.MaxViolation = s.maxViolation()
		if stats.MaxViolation < s.opts.ConstraintTolerance {
			break
		}
		stats.Status = MaxIterationsReached
		s.updateDuals()
	}
	if s.res.Constrained() && stats.MaxViolation >= s.opts.ConstraintTolerance {
		stats.Status = MaxIterationsReached
	}
	stats.Rho = s.res.Reg.Rho
	return s.solution(stats), nil
}

func (s *Solver) solution(stats Stats) *Solution {
	return &Solution{Trajectory: s.tr.Clone(), Results: s.res, Stats: stats}
}

// innerLoop iterates linearize / backward pass / line search until the
// cost or gradient tolerance is met under the current duals and penalty.
func (s *Solver) innerLoop(stats *Stats) error {
	s.updateConstraints()
	j := s.alCost(s.tr)
	if len(stats.CostHistory) == 0 {
		stats.CostHistory = append(stats.CostHistory, j)
	}
	stats.Cost = j

	stall := 0
	for it := 0; it < s.opts.MaxIterations; it++ {
		stats.Iterations++
		s.linearize()
		s.updateConstraints()

		dv, err := s.bp.Run()
		if err != nil {
			return err
		}
		stats.GradientNorm = s.gradientNorm()

		jNew, accepted := s.lineSearch(j, dv)
		if !accepted {
			stall++
			if stall >= s.opts.MaxStallIters {
				stats.Status = Stalled
				return nil
			}
			if err := s.res.Reg.Increase(); err != nil {
				return err
			}
			continue
		}

		s.tr.CopyFrom(s.cand)
		stall = 0
		improvement := j - jNew
		j = jNew
		stats.Cost = j
		stats.CostHistory = append(stats.CostHistory, j)
		stats.Rho = s.res.Reg.Rho
		if s.opts.Progress != nil {
			s.opts.Progress(*stats)
		}

		if improvement < s.opts.CostTolerance || stats.GradientNorm < s.opts.GradientTolerance {
			stats.Status = Converged
			return nil
		}
	}
	stats.Status = MaxIterationsReached
	return nil
}

// gradientNorm is the largest feedforward term scaled by the control
// magnitude, the usual first-order stationarity proxy.
func (s *Solver) gradientNorm() float64 {
	g := 0.0
	for k := 0; k < s.tr.N-1; k++ {
		d := s.res.D[k]
		u := s.tr.U[k]
		for i := 0; i < d.Len(); i++ {
			v := abs(d.AtVec(i)) / (abs(u.AtVec(i)) + 1)
			if v > g {
				g = v
			}
		}
	}
	return g
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
