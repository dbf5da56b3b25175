package ilqr

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/cost"
	"github.com/san-kum/trajopt/internal/traj"
)

// lqrProblem builds a 1-D double integrator over N steps with Euler
// Jacobians and a quadratic tracking cost toward the origin.
func lqrProblem(t *testing.T, n int) (*Results, *traj.Trajectory, *cost.Quadratic) {
	t.Helper()
	d := traj.Dims{N: n, NX: 2, NU: 1}
	dt := 0.1
	tr := traj.New(d, dt)
	for k := 0; k < n; k++ {
		tr.X[k].SetVec(0, 1) // away from the reference so gradients are nonzero
	}

	res := NewResults(d)
	for k := 0; k < n-1; k++ {
		res.Fx[k].Set(0, 0, 1)
		res.Fx[k].Set(0, 1, dt)
		res.Fx[k].Set(1, 1, 1)
		res.Fu[k].Set(1, 0, dt)
	}

	c, err := cost.NewDiagonal([]float64{1, 1}, []float64{0.1}, []float64{10, 10}, nil)
	if err != nil {
		t.Fatalf("build cost: %v", err)
	}
	return res, tr, c
}

// riccatiGains computes the finite-horizon LQR feedback independently of
// the backward pass, with the same dt-scaled stage weights.
func riccatiGains(res *Results, qDiag, rDiag, qfDiag []float64, dt float64) []*mat.Dense {
	n := res.N
	nx, nu := res.NX, res.NU

	q := mat.NewDense(nx, nx, nil)
	qf := mat.NewDense(nx, nx, nil)
	r := mat.NewDense(nu, nu, nil)
	for i := 0; i < nx; i++ {
		q.Set(i, i, dt*qDiag[i])
		qf.Set(i, i, qfDiag[i])
	}
	for i := 0; i < nu; i++ {
		r.Set(i, i, dt*rDiag[i])
	}

	p := mat.DenseCopyOf(qf)
	gains := make([]*mat.Dense, n-1)
	for k := n - 2; k >= 0; k-- {
		fx, fu := res.Fx[k], res.Fu[k]
		var pfx, pfu, quu, qux mat.Dense
		pfx.Mul(p, fx)
		pfu.Mul(p, fu)
		quu.Mul(fu.T(), &pfu)
		quu.Add(&quu, r)
		qux.Mul(fu.T(), &pfx)

		kk := mat.NewDense(nu, nx, nil)
		if err := kk.Solve(&quu, &qux); err != nil {
			panic(err)
		}
		gains[k] = kk

		// P = Q + Fx'P Fx - Fx'P Fu K
		var next, t mat.Dense
		next.Mul(fx.T(), &pfx)
		next.Add(&next, q)
		t.Mul(&pfu, kk)
		var t2 mat.Dense
		t2.Mul(fx.T(), &t)
		next.Sub(&next, &t2)
		p = mat.DenseCopyOf(&next)
	}
	return gains
}

func TestBackwardPassMatchesRiccati(t *testing.T) {
	res, tr, c := lqrProblem(t, 10)
	bp, err := New(res, tr, c, DefaultOptions())
	if err != nil {
		t.Fatalf("new backward pass: %v", err)
	}
	dv, err := bp.Run()
	if err != nil {
		t.Fatalf("backward pass: %v", err)
	}

	want := riccatiGains(res, []float64{1, 1}, []float64{0.1}, []float64{10, 10}, 0.1)
	for k := 0; k < res.N-1; k++ {
		for j := 0; j < res.NX; j++ {
			// our convention is du = K dx + d, so K = -Klqr
			got := res.K[k].At(0, j)
			if math.Abs(got+want[k].At(0, j)) > 1e-8 {
				t.Errorf("K[%d][0,%d] = %.12f, want %.12f", k, j, got, -want[k].At(0, j))
			}
		}
	}
	if dv[0] >= 0 {
		t.Errorf("expected linear decrease term < 0 with nonzero gradient, got %g", dv[0])
	}
}

func TestCostToGoSymmetry(t *testing.T) {
	res, tr, c := lqrProblem(t, 10)
	bp, err := New(res, tr, c, DefaultOptions())
	if err != nil {
		t.Fatalf("new backward pass: %v", err)
	}
	if _, err := bp.Run(); err != nil {
		t.Fatalf("backward pass: %v", err)
	}
	for k := 0; k < res.N; k++ {
		for i := 0; i < res.NX; i++ {
			for j := i + 1; j < res.NX; j++ {
				if d := math.Abs(res.S[k].At(i, j) - res.S[k].At(j, i)); d > 1e-14 {
					t.Errorf("S[%d] asymmetric at (%d,%d): diff %g", k, i, j, d)
				}
			}
		}
	}
}

func TestExpectedDecreaseSigns(t *testing.T) {
	res, tr, c := lqrProblem(t, 10)
	bp, err := New(res, tr, c, DefaultOptions())
	if err != nil {
		t.Fatalf("new backward pass: %v", err)
	}
	dv, err := bp.Run()
	if err != nil {
		t.Fatalf("backward pass: %v", err)
	}
	if dv[0] > 0 {
		t.Errorf("dv[0] = %g, want <= 0", dv[0])
	}
	if dv[1] < 0 {
		t.Errorf("dv[1] = %g, want >= 0", dv[1])
	}
}

func TestIdempotence(t *testing.T) {
	res, tr, c := lqrProblem(t, 10)
	bp, err := New(res, tr, c, DefaultOptions())
	if err != nil {
		t.Fatalf("new backward pass: %v", err)
	}
	dv1, err := bp.Run()
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	k1 := make([]*mat.Dense, len(res.K))
	d1 := make([]*mat.VecDense, len(res.D))
	for k := range res.K {
		k1[k] = mat.DenseCopyOf(res.K[k])
		d1[k] = mat.VecDenseCopyOf(res.D[k])
	}

	dv2, err := bp.Run()
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if dv1 != dv2 {
		t.Errorf("dv changed between identical runs: %v vs %v", dv1, dv2)
	}
	for k := range res.K {
		if !mat.EqualApprox(k1[k], res.K[k], 1e-15) {
			t.Errorf("K[%d] changed between identical runs", k)
		}
		if !mat.EqualApprox(d1[k], res.D[k], 1e-15) {
			t.Errorf("d[%d] changed between identical runs", k)
		}
	}
}

// failOnceOracle wraps a cost oracle and reports an indefinite control
// Hessian at one stage call of the first sweep only.
type failOnceOracle struct {
	cost.Oracle
	sweeps     int
	stageCalls int
	failAt     int
}

func (f *failOnceOracle) Terminal(x *mat.VecDense, exp *cost.TerminalExpansion) {
	f.sweeps++
	f.stageCalls = 0
	f.Oracle.Terminal(x, exp)
}

func (f *failOnceOracle) Stage(x, u *mat.VecDense, exp *cost.StageExpansion) {
	f.stageCalls++
	f.Oracle.Stage(x, u, exp)
	if f.sweeps == 1 && f.stageCalls == f.failAt {
		exp.Luu.Set(0, 0, -5)
	}
}

func TestRegularizationRestart(t *testing.T) {
	res, tr, c := lqrProblem(t, 10)
	res.Reg = Regularization{Rho: 0.01, Scale: 1.6, Min: 1e-8, Max: 1e8}

	oracle := &failOnceOracle{Oracle: c, failAt: 3}
	bp, err := New(res, tr, oracle, DefaultOptions())
	if err != nil {
		t.Fatalf("new backward pass: %v", err)
	}

	// sentinel entries that must not survive the aborted first sweep
	for k := range res.K {
		res.K[k].Set(0, 0, 999)
		res.D[k].SetVec(0, 999)
	}

	dv, err := bp.Run()
	if err != nil {
		t.Fatalf("backward pass: %v", err)
	}
	if oracle.sweeps != 2 {
		t.Fatalf("expected exactly one restart (2 sweeps), got %d", oracle.sweeps)
	}
	for k := range res.K {
		if res.K[k].At(0, 0) == 999 || res.D[k].AtVec(0) == 999 {
			t.Errorf("stale gain at step %d survived the restart", k)
		}
	}

	// reference: same problem without the failure, same post-increase rho
	res2, tr2, c2 := lqrProblem(t, 10)
	res2.Reg = Regularization{Rho: 0.01, Scale: 1.6, Min: 1e-8, Max: 1e8}
	if err := res2.Reg.Increase(); err != nil {
		t.Fatalf("increase: %v", err)
	}
	wantRho := 0.01 * 1.6
	if math.Abs(res2.Reg.Rho-wantRho) > 1e-15 {
		t.Fatalf("increase policy changed rho to %g, want %g", res2.Reg.Rho, wantRho)
	}
	bp2, err := New(res2, tr2, c2, DefaultOptions())
	if err != nil {
		t.Fatalf("new reference pass: %v", err)
	}
	dv2, err := bp2.Run()
	if err != nil {
		t.Fatalf("reference pass: %v", err)
	}
	for i := range dv {
		if math.Abs(dv[i]-dv2[i]) > 1e-12 {
			t.Errorf("dv[%d] = %g after restart, want %g (accumulator not reset?)", i, dv[i], dv2[i])
		}
	}
}

func TestRegularizationCeilingFatal(t *testing.T) {
	res, tr, c := lqrProblem(t, 10)
	res.Reg = Regularization{Rho: 0.01, Scale: 1.6, Min: 1e-8, Max: 0.02}

	// permanently indefinite control Hessian
	forever := &alwaysFailOracle{Oracle: c}
	bp, err := New(res, tr, forever, DefaultOptions())
	if err != nil {
		t.Fatalf("new backward pass: %v", err)
	}
	if _, err := bp.Run(); !errors.Is(err, ErrRegularizationCeiling) {
		t.Fatalf("expected ErrRegularizationCeiling, got %v", err)
	}
}

type alwaysFailOracle struct {
	cost.Oracle
}

func (a *alwaysFailOracle) Stage(x, u *mat.VecDense, exp *cost.StageExpansion) {
	a.Oracle.Stage(x, u, exp)
	exp.Luu.Set(0, 0, -5)
}

func TestPDInvariant(t *testing.T) {
	res, tr, c := lqrProblem(t, 10)
	bp, err := New(res, tr, c, DefaultOptions())
	if err != nil {
		t.Fatalf("new backward pass: %v", err)
	}
	if _, err := bp.Run(); err != nil {
		t.Fatalf("backward pass: %v", err)
	}

	// re-assemble each accepted step and eigenvalue-check QuuReg
	for k := res.N - 2; k >= 0; k-- {
		bp.or.Stage(tr.X[k], tr.TrueControl(k), bp.stage)
		bp.q.assemble(res, tr, bp.stage, k, bp.opts)
		bp.q.regularize(res, k, bp.opts)

		var es mat.EigenSym
		if !es.Factorize(bp.q.QuuReg, false) {
			t.Fatalf("eigen factorization failed at step %d", k)
		}
		for _, v := range es.Values(nil) {
			if v <= 0 {
				t.Errorf("QuuReg at step %d has non-positive eigenvalue %g", k, v)
			}
		}
	}
}

func TestDimensionMismatchRejected(t *testing.T) {
	res, tr, c := lqrProblem(t, 10)
	other := traj.New(traj.Dims{N: 10, NX: 3, NU: 1}, 0.1)
	if _, err := New(res, other, c, DefaultOptions()); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	_ = tr
}
