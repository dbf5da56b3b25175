package ilqr

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/cost"
	"github.com/san-kum/trajopt/internal/traj"
)

// QExpansion is the transient per-step quadratic model of the Bellman
// Q-function, assembled from the cost expansion, the next-step cost-to-go
// and active constraint penalties. Buffers live for one backward sweep and
// are fully recomputed at every step; nothing is reused across sweeps.
type QExpansion struct {
	Qx  *mat.VecDense
	Qu  *mat.VecDense
	Qxx *mat.Dense
	Quu *mat.Dense
	Qux *mat.Dense

	// regularized copies used only for the gain solve
	QuuReg *mat.SymDense
	QuxReg *mat.Dense

	vx *mat.VecDense
	vu *mat.VecDense
	cg *mat.VecDense // Imu*C + lambda
}

func newQExpansion(d traj.Dims, nc int) *QExpansion {
	nx, nu := d.NX, d.NUAug()
	q := &QExpansion{
		Qx:     mat.NewVecDense(nx, nil),
		Qu:     mat.NewVecDense(nu, nil),
		Qxx:    mat.NewDense(nx, nx, nil),
		Quu:    mat.NewDense(nu, nu, nil),
		Qux:    mat.NewDense(nu, nx, nil),
		QuuReg: mat.NewSymDense(nu, nil),
		QuxReg: mat.NewDense(nu, nx, nil),
		vx:     mat.NewVecDense(nx, nil),
		vu:     mat.NewVecDense(nu, nil),
	}
	if nc > 0 {
		q.cg = mat.NewVecDense(nc, nil)
	}
	return q
}

func (q *QExpansion) reset() {
	q.Qx.Zero()
	q.Qu.Zero()
	q.Qxx.Zero()
	q.Quu.Zero()
	q.Qux.Zero()
	q.QuxReg.Zero()
	for i := 0; i < q.QuuReg.SymmetricDim(); i++ {
		for j := i; j < q.QuuReg.SymmetricDim(); j++ {
			q.QuuReg.SetSym(i, j, 0)
		}
	}
}

// placeCost writes the dt-scaled cost expansion into the true-dimension
// blocks of the augmented buffers and adds the slack and minimum-time
// contributions.
func (q *QExpansion) placeCost(tr *traj.Trajectory, exp *cost.StageExpansion, k int, opts Options) {
	d := tr.Dims
	nx, nuT := d.NX, d.NU
	dt := tr.StepDuration(k)

	for i := 0; i < nx; i++ {
		q.Qx.SetVec(i, dt*exp.Lx.AtVec(i))
		for j := 0; j < nx; j++ {
			q.Qxx.Set(i, j, dt*exp.Lxx.At(i, j))
		}
	}
	for i := 0; i < nuT; i++ {
		q.Qu.SetVec(i, dt*exp.Lu.AtVec(i))
		for j := 0; j < nuT; j++ {
			q.Quu.Set(i, j, dt*exp.Luu.At(i, j))
		}
		for j := 0; j < nx; j++ {
			q.Qux.Set(i, j, dt*exp.Lux.At(i, j))
		}
	}

	if slack, ok := d.SlackBlock(); ok {
		for i := 0; i < slack.Len(); i++ {
			idx := slack.Lo + i
			nu := tr.U[k].AtVec(idx)
			q.Qu.SetVec(idx, q.Qu.AtVec(idx)+opts.InfeasiblePenalty*nu)
			q.Quu.Set(idx, idx, q.Quu.At(idx, idx)+opts.InfeasiblePenalty)
		}
	}

	if tau, ok := d.TimeIndex(); ok {
		h := tr.U[k].AtVec(tau)
		stage := exp.Val + opts.MinTimePenalty
		q.Qu.SetVec(tau, q.Qu.AtVec(tau)+2*h*stage)
		q.Quu.Set(tau, tau, q.Quu.At(tau, tau)+2*stage)
		for j := 0; j < nuT; j++ {
			cross := 2 * h * exp.Lu.AtVec(j)
			q.Quu.Set(tau, j, q.Quu.At(tau, j)+cross)
			q.Quu.Set(j, tau, q.Quu.At(j, tau)+cross)
		}
		for j := 0; j < nx; j++ {
			q.Qux.Set(tau, j, q.Qux.At(tau, j)+2*h*exp.Lx.AtVec(j))
		}
	}
}

// addConstraintTerms folds the active-set penalty terms of step k into the
// gradient and Hessian blocks.
func (q *QExpansion) addConstraintTerms(cs *ConstraintSet, k int) {
	q.cg.MulVec(cs.Imu[k], cs.C[k])
	q.cg.AddVec(q.cg, cs.Lambda[k])

	q.vx.MulVec(cs.Cx[k].T(), q.cg)
	q.Qx.AddVec(q.Qx, q.vx)
	q.vu.MulVec(cs.Cu[k].T(), q.cg)
	q.Qu.AddVec(q.Qu, q.vu)

	var ic, t mat.Dense
	ic.Mul(cs.Imu[k], cs.Cx[k])
	t.Mul(cs.Cx[k].T(), &ic)
	q.Qxx.Add(q.Qxx, &t)
	t.Reset()
	t.Mul(cs.Cu[k].T(), &ic)
	q.Qux.Add(q.Qux, &t)
	ic.Reset()
	ic.Mul(cs.Imu[k], cs.Cu[k])
	t.Reset()
	t.Mul(cs.Cu[k].T(), &ic)
	q.Quu.Add(q.Quu, &t)
}

// assemble builds the full standard-form Q-expansion of step k.
func (q *QExpansion) assemble(res *Results, tr *traj.Trajectory, exp *cost.StageExpansion, k int, opts Options) {
	q.reset()
	q.placeCost(tr, exp, k, opts)

	fx, fu := res.Fx[k], res.Fu[k]
	sNext, hNext := res.Sx[k+1], res.S[k+1]

	var sf, t mat.Dense
	sf.Mul(hNext, fx)
	t.Mul(fx.T(), &sf)
	q.Qxx.Add(q.Qxx, &t)
	t.Reset()
	t.Mul(fu.T(), &sf)
	q.Qux.Add(q.Qux, &t)
	sf.Reset()
	sf.Mul(hNext, fu)
	t.Reset()
	t.Mul(fu.T(), &sf)
	q.Quu.Add(q.Quu, &t)

	q.vx.MulVec(fx.T(), sNext)
	q.Qx.AddVec(q.Qx, q.vx)
	q.vu.MulVec(fu.T(), sNext)
	q.Qu.AddVec(q.Qu, q.vu)

	if res.Constrained() {
		q.addConstraintTerms(res.Constraints, k)
	}
}

// regularize builds QuuReg and QuxReg for the gain solve. The state scheme
// damps through the dynamics sensitivity (rho*Fu'Fu, rho*Fu'Fx); the
// control scheme adds rho on the Quu diagonal and leaves Qux alone. The
// unregularized blocks stay untouched: the cost-to-go update and the
// expected-decrease accumulation must not see the damping.
func (q *QExpansion) regularize(res *Results, k int, opts Options) {
	rho := res.Reg.Rho
	nu, _ := q.Quu.Dims()

	q.QuxReg.Copy(q.Qux)
	if opts.StateRegularization {
		fx, fu := res.Fx[k], res.Fu[k]
		var ff mat.Dense
		ff.Mul(fu.T(), fu)
		for i := 0; i < nu; i++ {
			for j := i; j < nu; j++ {
				q.QuuReg.SetSym(i, j, 0.5*(q.Quu.At(i, j)+q.Quu.At(j, i))+rho*ff.At(i, j))
			}
		}
		ff.Reset()
		ff.Mul(fu.T(), fx)
		var scaled mat.Dense
		scaled.Scale(rho, &ff)
		q.QuxReg.Add(q.QuxReg, &scaled)
		return
	}
	for i := 0; i < nu; i++ {
		for j := i; j < nu; j++ {
			v := 0.5 * (q.Quu.At(i, j) + q.Quu.At(j, i))
			if i == j {
				v += rho
			}
			q.QuuReg.SetSym(i, j, v)
		}
	}
}
