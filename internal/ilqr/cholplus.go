package ilqr

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// cholPlus composes two PSD contributions given as factors: for A (ra x c)
// and B (rb x c) representing A'A + B'B, the combined upper-triangular
// factor is the R of the QR decomposition of the stacked matrix [A; B].
// The result is written into dst as a c x c upper-triangular matrix.
//
// This is the single additive primitive of the square-root engine: every
// "+=" on a Hessian block in the standard engine becomes one stacking.
func cholPlus(dst *mat.Dense, a, b mat.Matrix) {
	var st mat.Dense
	st.Stack(a, b)
	var qr mat.QR
	qr.Factorize(&st)
	var r mat.Dense
	qr.RTo(&r)
	_, c := st.Dims()
	dst.CloneFrom(r.Slice(0, c, 0, c))
	// clear round-off below the diagonal so the factor is cleanly triangular
	for i := 1; i < c; i++ {
		for j := 0; j < i; j++ {
			dst.Set(i, j, 0)
		}
	}
}

// factorPSD writes into dst an upper-triangular factor U with U'U = A for
// a symmetric positive semi-definite A. Cholesky is attempted first; on
// semi-definite input a small diagonal jitter is added, growing by decades
// until the factorization succeeds.
func factorPSD(dst *mat.Dense, a mat.Matrix) error {
	n, _ := a.Dims()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}

	scale := 0.0
	for i := 0; i < n; i++ {
		scale = math.Max(scale, math.Abs(sym.At(i, i)))
	}
	if scale == 0 {
		scale = 1
	}

	var chol mat.Cholesky
	jitter := 0.0
	for trial := 0; trial < 8; trial++ {
		if trial > 0 {
			add := jitter
			if add == 0 {
				add = 1e-13 * scale
				jitter = add
			} else {
				jitter *= 10
				add = jitter
			}
			for i := 0; i < n; i++ {
				sym.SetSym(i, i, sym.At(i, i)+add)
			}
		}
		if chol.Factorize(sym) {
			u := mat.NewTriDense(n, mat.Upper, nil)
			chol.UTo(u)
			dst.CloneFrom(u)
			return nil
		}
	}
	return errFactorization
}

// triUpper views the square matrix r as an upper-triangular TriDense.
func triUpper(r *mat.Dense) *mat.TriDense {
	n, _ := r.Dims()
	t := mat.NewTriDense(n, mat.Upper, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			t.SetTri(i, j, r.At(i, j))
		}
	}
	return t
}

// solveFactor solves (R'R) X = B with two triangular solves against the
// upper-triangular factor R, writing X into dst.
func solveFactor(dst *mat.Dense, r *mat.Dense, b mat.Matrix) error {
	t := triUpper(r)
	var y mat.Dense
	if err := y.Solve(t.T(), b); err != nil {
		return err
	}
	return dst.Solve(t, &y)
}

// solveFactorVec is solveFactor for a single right-hand side.
func solveFactorVec(dst *mat.VecDense, r *mat.Dense, b mat.Vector) error {
	t := triUpper(r)
	var y mat.VecDense
	if err := y.SolveVec(t.T(), b); err != nil {
		return err
	}
	return dst.SolveVec(t, &y)
}
