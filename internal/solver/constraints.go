package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/cost"
	"github.com/san-kum/trajopt/internal/traj"
)

func (s *Solver) penalties() cost.Penalties {
	return cost.Penalties{
		MinTime:    s.opts.Backward.MinTimePenalty,
		Infeasible: s.opts.Backward.InfeasiblePenalty,
	}
}

// updateConstraints evaluates every constraint block at the current
// trajectory, writing residuals and Jacobians into the constraint set
// and refreshing the active-penalty diagonal. An inequality row is
// active when its residual is positive or its dual is nonzero.
func (s *Solver) updateConstraints() {
	cs := s.res.Constraints
	if cs == nil {
		return
	}
	d := s.tr.Dims
	for k := 0; k < d.N-1; k++ {
		off := 0
		u := s.tr.TrueControl(k)
		for _, con := range s.p.Stage {
			m := con.Dim()
			cv := cs.C[k].SliceVec(off, off+m).(*mat.VecDense)
			cx := cs.Cx[k].Slice(off, off+m, 0, d.NX).(*mat.Dense)
			cu := cs.Cu[k].Slice(off, off+m, 0, d.NU).(*mat.Dense)
			con.Eval(cv, s.tr.X[k], u)
			con.Jacobians(cx, cu, s.tr.X[k], u)
			for i := 0; i < m; i++ {
				lam := cs.Lambda[k].AtVec(off + i)
				if con.Equality() || cv.AtVec(i) > 0 || lam > 0 {
					cs.Imu[k].SetDiag(off+i, s.mu)
				} else {
					cs.Imu[k].SetDiag(off+i, 0)
				}
			}
			off += m
		}
	}
	if cs.NCTerm == 0 {
		return
	}
	xn := s.tr.X[d.N-1]
	off := 0
	for _, con := range s.p.Terminal {
		m := con.Dim()
		cv := cs.CN.SliceVec(off, off+m).(*mat.VecDense)
		cx := cs.CxN.Slice(off, off+m, 0, d.NX).(*mat.Dense)
		con.Eval(cv, xn)
		con.Jacobian(cx, xn)
		for i := 0; i < m; i++ {
			lam := cs.LambdaN.AtVec(off + i)
			if con.Equality() || cv.AtVec(i) > 0 || lam > 0 {
				cs.ImuN.SetDiag(off+i, s.mu)
			} else {
				cs.ImuN.SetDiag(off+i, 0)
			}
		}
		off += m
	}
}

// alCost is the augmented Lagrangian objective at a trajectory: the
// plain objective plus lambda'c + 1/2 mu c'c over the active rows. The
// constraint set's stored residuals are left untouched so the backward
// pass data stays tied to the accepted trajectory.
func (s *Solver) alCost(t *traj.Trajectory) float64 {
	j := cost.Total(s.p.Cost, t, s.penalties())
	cs := s.res.Constraints
	if cs == nil {
		return j
	}
	for k := 0; k < t.N-1; k++ {
		off := 0
		u := t.TrueControl(k)
		for _, con := range s.p.Stage {
			m := con.Dim()
			cv := s.cs1.SliceVec(0, m).(*mat.VecDense)
			con.Eval(cv, t.X[k], u)
			for i := 0; i < m; i++ {
				c := cv.AtVec(i)
				lam := cs.Lambda[k].AtVec(off + i)
				j += lam * c
				if con.Equality() || c > 0 || lam > 0 {
					j += 0.5 * s.mu * c * c
				}
			}
			off += m
		}
	}
	if cs.NCTerm > 0 {
		off := 0
		xn := t.X[t.N-1]
		for _, con := range s.p.Terminal {
			m := con.Dim()
			cv := s.cs2.SliceVec(0, m).(*mat.VecDense)
			con.Eval(cv, xn)
			for i := 0; i < m; i++ {
				c := cv.AtVec(i)
				lam := cs.LambdaN.AtVec(off + i)
				j += lam * c
				if con.Equality() || c > 0 || lam > 0 {
					j += 0.5 * s.mu * c * c
				}
			}
			off += m
		}
	}
	return j
}

// updateDuals performs the first-order multiplier update
// lambda <- lambda + mu*c (projected to >= 0 for inequalities, clamped
// in magnitude) and grows the penalty.
func (s *Solver) updateDuals() {
	cs := s.res.Constraints
	s.updateConstraints()
	for k := 0; k < s.tr.N-1; k++ {
		off := 0
		for _, con := range s.p.Stage {
			for i := 0; i < con.Dim(); i++ {
				lam := cs.Lambda[k].AtVec(off+i) + s.mu*cs.C[k].AtVec(off+i)
				if !con.Equality() {
					lam = math.Max(0, lam)
				}
				cs.Lambda[k].SetVec(off+i, clampAbs(lam, s.opts.DualMax))
			}
			off += con.Dim()
		}
	}
	if cs.NCTerm > 0 {
		off := 0
		for _, con := range s.p.Terminal {
			for i := 0; i < con.Dim(); i++ {
				lam := cs.LambdaN.AtVec(off+i) + s.mu*cs.CN.AtVec(off+i)
				if !con.Equality() {
					lam = math.Max(0, lam)
				}
				cs.LambdaN.SetVec(off+i, clampAbs(lam, s.opts.DualMax))
			}
			off += con.Dim()
		}
	}
	s.mu = math.Min(s.mu*s.opts.PenaltyScale, s.opts.PenaltyMax)
}

func clampAbs(v, limit float64) float64 {
	return math.Max(-limit, math.Min(v, limit))
}

// maxViolation is the worst constraint residual at the current
// trajectory: |c| for equalities, max(c, 0) for inequalities. In
// infeasible mode the slack magnitudes count as dynamics defects.
func (s *Solver) maxViolation() float64 {
	s.updateConstraints()
	v := 0.0
	if slack, ok := s.tr.SlackBlock(); ok {
		for k := 0; k < s.tr.N-1; k++ {
			nu := slack.Of(s.tr.U[k])
			v = math.Max(v, mat.Norm(nu, math.Inf(1)))
		}
	}
	cs := s.res.Constraints
	if cs == nil {
		return v
	}
	for k := 0; k < s.tr.N-1; k++ {
		off := 0
		for _, con := range s.p.Stage {
			for i := 0; i < con.Dim(); i++ {
				c := cs.C[k].AtVec(off + i)
				if !con.Equality() {
					c = math.Max(c, 0)
				}
				v = math.Max(v, math.Abs(c))
			}
			off += con.Dim()
		}
	}
	if cs.NCTerm > 0 {
		off := 0
		for _, con := range s.p.Terminal {
			for i := 0; i < con.Dim(); i++ {
				c := cs.CN.AtVec(off + i)
				if !con.Equality() {
					c = math.Max(c, 0)
				}
				v = math.Max(v, math.Abs(c))
			}
			off += con.Dim()
		}
	}
	return v
}
