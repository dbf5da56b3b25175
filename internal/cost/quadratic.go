package cost

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Quadratic is a reference-tracking cost
//
//	l(x,u)  = 1/2 (x-xref)'Q(x-xref) + 1/2 (u-uref)'R(u-uref)
//	lf(x)   = 1/2 (x-xref)'Qf(x-xref)
//
// Q and Qf must be symmetric positive semi-definite, R symmetric positive
// definite for the backward pass to succeed without regularization.
type Quadratic struct {
	Q, R, Qf   *mat.Dense
	Xref, Uref *mat.VecDense

	dx, du *mat.VecDense // scratch
	qx, ru *mat.VecDense
}

func NewQuadratic(q, r, qf *mat.Dense, xref, uref *mat.VecDense) (*Quadratic, error) {
	nx, _ := q.Dims()
	nu, _ := r.Dims()
	if rq, cq := q.Dims(); rq != cq {
		return nil, fmt.Errorf("cost: Q must be square, got %dx%d", rq, cq)
	}
	if rr, cr := r.Dims(); rr != cr {
		return nil, fmt.Errorf("cost: R must be square, got %dx%d", rr, cr)
	}
	if rf, cf := qf.Dims(); rf != nx || cf != nx {
		return nil, fmt.Errorf("cost: Qf must be %dx%d, got %dx%d", nx, nx, rf, cf)
	}
	if xref == nil {
		xref = mat.NewVecDense(nx, nil)
	}
	if uref == nil {
		uref = mat.NewVecDense(nu, nil)
	}
	if xref.Len() != nx || uref.Len() != nu {
		return nil, fmt.Errorf("cost: reference dimensions %d/%d do not match Q/R %d/%d",
			xref.Len(), uref.Len(), nx, nu)
	}
	return &Quadratic{
		Q: q, R: r, Qf: qf, Xref: xref, Uref: uref,
		dx: mat.NewVecDense(nx, nil),
		du: mat.NewVecDense(nu, nil),
		qx: mat.NewVecDense(nx, nil),
		ru: mat.NewVecDense(nu, nil),
	}, nil
}

// NewDiagonal builds a Quadratic from diagonal weights.
func NewDiagonal(qDiag, rDiag, qfDiag []float64, xref []float64) (*Quadratic, error) {
	nx, nu := len(qDiag), len(rDiag)
	if len(qfDiag) != nx {
		return nil, fmt.Errorf("cost: qf diagonal has length %d, want %d", len(qfDiag), nx)
	}
	q := mat.NewDense(nx, nx, nil)
	qf := mat.NewDense(nx, nx, nil)
	r := mat.NewDense(nu, nu, nil)
	for i := 0; i < nx; i++ {
		q.Set(i, i, qDiag[i])
		qf.Set(i, i, qfDiag[i])
	}
	for i := 0; i < nu; i++ {
		r.Set(i, i, rDiag[i])
	}
	var ref *mat.VecDense
	if xref != nil {
		if len(xref) != nx {
			return nil, fmt.Errorf("cost: xref has length %d, want %d", len(xref), nx)
		}
		ref = mat.NewVecDense(nx, xref)
	}
	return NewQuadratic(q, r, qf, ref, nil)
}

func (c *Quadratic) Stage(x, u *mat.VecDense, exp *StageExpansion) {
	c.dx.SubVec(x, c.Xref)
	c.du.SubVec(u, c.Uref)
	c.qx.MulVec(c.Q, c.dx)
	c.ru.MulVec(c.R, c.du)

	exp.Lxx.Copy(c.Q)
	exp.Luu.Copy(c.R)
	exp.Lux.Zero()
	exp.Lx.CopyVec(c.qx)
	exp.Lu.CopyVec(c.ru)
	exp.Val = 0.5*mat.Dot(c.dx, c.qx) + 0.5*mat.Dot(c.du, c.ru)
}

func (c *Quadratic) Terminal(x *mat.VecDense, exp *TerminalExpansion) {
	c.dx.SubVec(x, c.Xref)
	c.qx.MulVec(c.Qf, c.dx)
	exp.Lxx.Copy(c.Qf)
	exp.Lx.CopyVec(c.qx)
	exp.Val = 0.5 * mat.Dot(c.dx, c.qx)
}

func (c *Quadratic) StageCost(x, u *mat.VecDense) float64 {
	c.dx.SubVec(x, c.Xref)
	c.du.SubVec(u, c.Uref)
	c.qx.MulVec(c.Q, c.dx)
	c.ru.MulVec(c.R, c.du)
	return 0.5*mat.Dot(c.dx, c.qx) + 0.5*mat.Dot(c.du, c.ru)
}

func (c *Quadratic) TerminalCost(x *mat.VecDense) float64 {
	c.dx.SubVec(x, c.Xref)
	c.qx.MulVec(c.Qf, c.dx)
	return 0.5 * mat.Dot(c.dx, c.qx)
}
