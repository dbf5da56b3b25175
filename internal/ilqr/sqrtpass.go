package ilqr

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/traj"
)

// sqrtScratch holds the factor-space work buffers of the square-root
// engine. The cost-to-go Hessian never appears explicitly: additive
// updates go through cholPlus and gain solves through triangular systems.
type sqrtScratch struct {
	uLocal *mat.Dense // factor of the dt-scaled local control Hessian
	xLocal *mat.Dense // factor of the dt-scaled local state Hessian
	wxx    *mat.Dense // composed state factor
	wuu    *mat.Dense // composed control factor, unregularized
	wreg   *mat.Dense // regularized control factor for the gain solve
}

func newSqrtScratch(d traj.Dims) *sqrtScratch {
	nx, nu := d.NX, d.NUAug()
	return &sqrtScratch{
		uLocal: mat.NewDense(nu, nu, nil),
		xLocal: mat.NewDense(nx, nx, nil),
		wxx:    mat.NewDense(nx, nx, nil),
		wuu:    mat.NewDense(nu, nu, nil),
		wreg:   mat.NewDense(nu, nu, nil),
	}
}

// scaleRows builds sqrt(diag)*c, the square-root-penalty-weighted
// constraint Jacobian used in factor compositions.
func scaleRows(diag *mat.DiagDense, c *mat.Dense) *mat.Dense {
	r, cols := c.Dims()
	out := mat.NewDense(r, cols, nil)
	for i := 0; i < r; i++ {
		w := math.Sqrt(diag.At(i, i))
		for j := 0; j < cols; j++ {
			out.Set(i, j, w*c.At(i, j))
		}
	}
	return out
}

func (bp *BackwardPass) seedTerminalSqrt() error {
	res := bp.res
	n := res.N - 1
	f := mat.NewDense(res.NX, res.NX, nil)
	if err := factorPSD(f, bp.term.Lxx); err != nil {
		return fmt.Errorf("terminal cost: %w", err)
	}
	if res.Constrained() && res.Constraints.NCTerm > 0 {
		cs := res.Constraints
		composed := mat.NewDense(res.NX, res.NX, nil)
		cholPlus(composed, f, scaleRows(cs.ImuN, cs.CxN))
		f = composed
	}
	res.Su[n] = f
	return nil
}

// sqrtStep is the factor-space equivalent of standardStep. The
// positive-definiteness check of the standard engine has no direct
// analogue on a factor; instead the diagonal of the regularized factor is
// checked against FactorFloor, and a failed Cholesky of the Schur
// complement is treated the same way. Both route into the regularization
// restart.
func (bp *BackwardPass) sqrtStep(k int, dv *[2]float64) (bool, error) {
	res, q, sq := bp.res, bp.q, bp.sq
	cs := res.Constraints
	fx, fu := res.Fx[k], res.Fu[k]
	suNext, sNext := res.Su[k+1], res.Sx[k+1]

	// local cost blocks (dt-scaled, slack diagonal included) land in the
	// Q buffers; only the gradient and cross blocks are kept in dense form
	q.reset()
	q.placeCost(bp.tr, bp.stage, k, bp.opts)

	if err := factorPSD(sq.xLocal, q.Qxx); err != nil {
		return false, fmt.Errorf("step %d state Hessian: %w", k, err)
	}
	if err := factorPSD(sq.uLocal, q.Quu); err != nil {
		return false, fmt.Errorf("step %d control Hessian: %w", k, err)
	}

	var mx, mu mat.Dense
	mx.Mul(suNext, fx)
	mu.Mul(suNext, fu)

	cholPlus(sq.wxx, sq.xLocal, &mx)
	cholPlus(sq.wuu, sq.uLocal, &mu)

	// Qux and the gradients stay dense
	var t mat.Dense
	t.Mul(mu.T(), &mx)
	q.Qux.Add(q.Qux, &t)
	q.vx.MulVec(fx.T(), sNext)
	q.Qx.AddVec(q.Qx, q.vx)
	q.vu.MulVec(fu.T(), sNext)
	q.Qu.AddVec(q.Qu, q.vu)

	if res.Constrained() {
		q.cg.MulVec(cs.Imu[k], cs.C[k])
		q.cg.AddVec(q.cg, cs.Lambda[k])
		q.vx.MulVec(cs.Cx[k].T(), q.cg)
		q.Qx.AddVec(q.Qx, q.vx)
		q.vu.MulVec(cs.Cu[k].T(), q.cg)
		q.Qu.AddVec(q.Qu, q.vu)

		var ic, cross mat.Dense
		ic.Mul(cs.Imu[k], cs.Cx[k])
		cross.Mul(cs.Cu[k].T(), &ic)
		q.Qux.Add(q.Qux, &cross)

		cholPlus(sq.wxx, sq.wxx, scaleRows(cs.Imu[k], cs.Cx[k]))
		cholPlus(sq.wuu, sq.wuu, scaleRows(cs.Imu[k], cs.Cu[k]))
	}

	// damping in factor space
	rho := res.Reg.Rho
	nu := res.NUAug()
	q.QuxReg.Copy(q.Qux)
	if rho > 0 {
		if bp.opts.StateRegularization {
			var damp mat.Dense
			damp.Scale(math.Sqrt(rho), fu)
			cholPlus(sq.wreg, sq.wuu, &damp)
			var ff, scaled mat.Dense
			ff.Mul(fu.T(), fx)
			scaled.Scale(rho, &ff)
			q.QuxReg.Add(q.QuxReg, &scaled)
		} else {
			damp := mat.NewDense(nu, nu, nil)
			for i := 0; i < nu; i++ {
				damp.Set(i, i, math.Sqrt(rho))
			}
			cholPlus(sq.wreg, sq.wuu, damp)
		}
	} else {
		sq.wreg.Copy(sq.wuu)
	}

	for i := 0; i < nu; i++ {
		if math.Abs(sq.wreg.At(i, i)) < bp.opts.FactorFloor {
			return false, nil
		}
	}

	// gains via two triangular solves per system
	if err := solveFactor(res.K[k], sq.wreg, q.QuxReg); err != nil {
		return false, nil
	}
	res.K[k].Scale(-1, res.K[k])
	if err := solveFactorVec(res.D[k], sq.wreg, q.Qu); err != nil {
		return false, nil
	}
	res.D[k].ScaleVec(-1, res.D[k])

	K, d := res.K[k], res.D[k]

	// gradient update with the unregularized factor: Quu*d = Wuu'(Wuu*d)
	var wd, qd, tv mat.VecDense
	wd.MulVec(sq.wuu, d)
	qd.MulVec(sq.wuu.T(), &wd)
	res.Sx[k].CopyVec(q.Qx)
	tv.MulVec(K.T(), &qd)
	res.Sx[k].AddVec(res.Sx[k], &tv)
	tv.MulVec(K.T(), q.Qu)
	res.Sx[k].AddVec(res.Sx[k], &tv)
	tv.MulVec(q.Qux.T(), d)
	res.Sx[k].AddVec(res.Sx[k], &tv)

	// factor update via block Cholesky of the joint Hessian: V solves
	// Wxx'V = Qux', the second factor is the Cholesky of the remaining
	// Schur complement Quu - V'V, and the next factor stacks the state
	// block over the control contribution.
	wxxTri := triUpper(sq.wxx)
	var v mat.Dense
	if err := v.Solve(wxxTri.T(), q.Qux.T()); err != nil {
		return false, nil
	}

	schur := mat.NewSymDense(nu, nil)
	var vv, uu mat.Dense
	vv.Mul(v.T(), &v)
	uu.Mul(sq.wuu.T(), sq.wuu)
	for i := 0; i < nu; i++ {
		for j := i; j < nu; j++ {
			schur.SetSym(i, j, 0.5*(uu.At(i, j)+uu.At(j, i))-0.5*(vv.At(i, j)+vv.At(j, i)))
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(schur) {
		return false, nil
	}
	wTilde := mat.NewTriDense(nu, mat.Upper, nil)
	chol.UTo(wTilde)

	var top, vk, bottom mat.Dense
	vk.Mul(&v, K)
	top.Add(sq.wxx, &vk)
	bottom.Mul(wTilde, K)

	var stacked mat.Dense
	stacked.Stack(&top, &bottom)
	res.Su[k] = &stacked

	dv[0] += mat.Dot(d, q.Qu)
	dv[1] += 0.5 * mat.Dot(&wd, &wd)
	return true, nil
}
