package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// linearize fills the Jacobian arrays of the results object at the
// current trajectory. The augmented control columns are the physical
// control Jacobian, an identity block for the infeasible slack, and the
// chain-ruled time column 2h * dF/d(dt) for minimum-time mode.
func (s *Solver) linearize() {
	d := s.tr.Dims
	for k := 0; k < d.N-1; k++ {
		dt := s.tr.StepDuration(k)
		u := s.tr.TrueControl(k)
		s.p.Dynamics.Linearize(s.res.Fx[k], s.fuTrue, s.tr.X[k], u, dt)

		fu := s.res.Fu[k]
		fu.Zero()
		fu.Slice(0, d.NX, 0, d.NU).(*mat.Dense).Copy(s.fuTrue)
		if slack, ok := d.SlackBlock(); ok {
			for i := 0; i < d.NX; i++ {
				fu.Set(i, slack.Lo+i, 1)
			}
		}
		if tau, ok := d.TimeIndex(); ok {
			h := s.tr.U[k].AtVec(tau)
			s.p.Dynamics.TimeDerivative(s.fdt, s.tr.X[k], u, dt)
			for i := 0; i < d.NX; i++ {
				fu.Set(i, tau, 2*h*s.fdt.AtVec(i))
			}
		}
	}
}

// rollout simulates the closed-loop update u = u0 + alpha*d + K*(x - x0)
// into the candidate trajectory. It reports false when the rollout
// diverges or produces non-finite states.
func (s *Solver) rollout(alpha float64) bool {
	src, dst := s.tr, s.cand
	d := src.Dims
	slack, hasSlack := d.SlackBlock()
	tau, hasTime := d.TimeIndex()
	hMin, hMax := math.Sqrt(s.opts.MinDt), math.Sqrt(s.opts.MaxDt)

	dst.X[0].CopyVec(src.X[0])
	for k := 0; k < d.N-1; k++ {
		s.dx.SubVec(dst.X[k], src.X[k])
		s.du.MulVec(s.res.K[k], s.dx)
		s.du.AddScaledVec(s.du, alpha, s.res.D[k])
		dst.U[k].AddVec(src.U[k], s.du)

		if hasTime {
			h := dst.U[k].AtVec(tau)
			dst.U[k].SetVec(tau, math.Min(math.Max(h, hMin), hMax))
		}

		dt := dst.StepDuration(k)
		s.p.Dynamics.Propagate(dst.X[k+1], dst.X[k], dst.TrueControl(k), dt)
		if hasSlack {
			dst.X[k+1].AddVec(dst.X[k+1], slack.Of(dst.U[k]))
		}

		n := mat.Norm(dst.X[k+1], math.Inf(1))
		if math.IsNaN(n) || n > s.opts.DivergenceLimit {
			return false
		}
	}
	return true
}

// lineSearch backtracks over step scales until the actual improvement
// lands inside the acceptance window of the expected-decrease model
// -(alpha*dv0 + alpha^2*dv1). Returns the accepted cost and whether any
// trial was accepted; on acceptance the candidate trajectory holds the
// new iterate.
func (s *Solver) lineSearch(j float64, dv [2]float64) (float64, bool) {
	alpha := 1.0
	for i := 0; i < s.opts.LineSearchIters; i++ {
		if !s.rollout(alpha) {
			alpha *= s.opts.LineSearchFactor
			continue
		}
		jNew := s.alCost(s.cand)
		expected := -(alpha*dv[0] + alpha*alpha*dv[1])
		if expected > 0 {
			z := (j - jNew) / expected
			if z > s.opts.AcceptRatioLow && z < s.opts.AcceptRatioHigh {
				return jNew, true
			}
		} else if jNew < j {
			return jNew, true
		}
		alpha *= s.opts.LineSearchFactor
	}
	return j, false
}
