package ilqr

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/traj"
)

// Results owns everything the backward pass reads and writes for one
// solve: dynamics linearizations, gains, cost-to-go, regularization state
// and (when present) constraint data. The gain and cost-to-go arrays are
// only valid after a sweep returns without error.
type Results struct {
	traj.Dims

	// Dynamics Jacobians of the discrete map, per step: Fx is nx x nx,
	// Fu is nx x nuAug (columns for slack and time blocks included).
	Fx []*mat.Dense
	Fu []*mat.Dense

	// Gains: K[k] (nuAug x nx) and d[k] (nuAug), steps 0..N-2.
	K []*mat.Dense
	D []*mat.VecDense

	// Cost-to-go: Hessian S, gradient Sx, one per knot point. Su holds
	// the factor form used by the square-root engine; its state block is
	// the top nx rows.
	S  []*mat.Dense
	Sx []*mat.VecDense
	Su []*mat.Dense

	// Reg persists across sweeps; see Regularization.
	Reg Regularization

	// Constraints is nil for unconstrained solves. Constraint-only data
	// lives exclusively here.
	Constraints *ConstraintSet
}

// ConstraintSet carries per-step constraint residuals, Jacobians, duals
// and the active-penalty diagonal, plus the terminal constraint block.
// The backward pass reads this data and never writes it.
type ConstraintSet struct {
	NC     int // stage constraints per step
	NCTerm int // terminal constraints

	C      []*mat.VecDense // residuals, steps 0..N-2
	Cx     []*mat.Dense    // nc x nx
	Cu     []*mat.Dense    // nc x nuAug
	Lambda []*mat.VecDense // duals
	Imu    []*mat.DiagDense // penalty diagonal, zero entries for inactive inequalities

	CN      *mat.VecDense
	CxN     *mat.Dense
	LambdaN *mat.VecDense
	ImuN    *mat.DiagDense
}

func NewResults(d traj.Dims) *Results {
	nx, nu := d.NX, d.NUAug()
	r := &Results{Dims: d, Reg: DefaultRegularization()}
	r.Fx = make([]*mat.Dense, d.N-1)
	r.Fu = make([]*mat.Dense, d.N-1)
	r.K = make([]*mat.Dense, d.N-1)
	r.D = make([]*mat.VecDense, d.N-1)
	for k := 0; k < d.N-1; k++ {
		r.Fx[k] = mat.NewDense(nx, nx, nil)
		r.Fu[k] = mat.NewDense(nx, nu, nil)
		r.K[k] = mat.NewDense(nu, nx, nil)
		r.D[k] = mat.NewVecDense(nu, nil)
	}
	r.S = make([]*mat.Dense, d.N)
	r.Sx = make([]*mat.VecDense, d.N)
	r.Su = make([]*mat.Dense, d.N)
	for k := 0; k < d.N; k++ {
		r.S[k] = mat.NewDense(nx, nx, nil)
		r.Sx[k] = mat.NewVecDense(nx, nil)
	}
	return r
}

// AttachConstraints allocates and installs a ConstraintSet with nc stage
// constraints and ncTerm terminal constraints.
func (r *Results) AttachConstraints(nc, ncTerm int) *ConstraintSet {
	nx, nu := r.NX, r.NUAug()
	cs := &ConstraintSet{NC: nc, NCTerm: ncTerm}
	cs.C = make([]*mat.VecDense, r.N-1)
	cs.Cx = make([]*mat.Dense, r.N-1)
	cs.Cu = make([]*mat.Dense, r.N-1)
	cs.Lambda = make([]*mat.VecDense, r.N-1)
	cs.Imu = make([]*mat.DiagDense, r.N-1)
	for k := 0; k < r.N-1; k++ {
		cs.C[k] = mat.NewVecDense(nc, nil)
		cs.Cx[k] = mat.NewDense(nc, nx, nil)
		cs.Cu[k] = mat.NewDense(nc, nu, nil)
		cs.Lambda[k] = mat.NewVecDense(nc, nil)
		cs.Imu[k] = mat.NewDiagDense(nc, nil)
	}
	if ncTerm > 0 {
		cs.CN = mat.NewVecDense(ncTerm, nil)
		cs.CxN = mat.NewDense(ncTerm, nx, nil)
		cs.LambdaN = mat.NewVecDense(ncTerm, nil)
		cs.ImuN = mat.NewDiagDense(ncTerm, nil)
	}
	r.Constraints = cs
	return cs
}

// Constrained reports whether the results object carries constraint data.
func (r *Results) Constrained() bool { return r.Constraints != nil }

func (r *Results) validate(t *traj.Trajectory) error {
	if r.Dims != t.Dims {
		return fmt.Errorf("%w: results dims %+v vs trajectory dims %+v",
			ErrDimensionMismatch, r.Dims, t.Dims)
	}
	nx, nu := r.NX, r.NUAug()
	if len(r.Fx) != r.N-1 || len(r.Fu) != r.N-1 {
		return fmt.Errorf("%w: %d Jacobian slots for %d steps",
			ErrDimensionMismatch, len(r.Fx), r.N-1)
	}
	for k := 0; k < r.N-1; k++ {
		if rr, cc := r.Fx[k].Dims(); rr != nx || cc != nx {
			return fmt.Errorf("%w: Fx[%d] is %dx%d, want %dx%d",
				ErrDimensionMismatch, k, rr, cc, nx, nx)
		}
		if rr, cc := r.Fu[k].Dims(); rr != nx || cc != nu {
			return fmt.Errorf("%w: Fu[%d] is %dx%d, want %dx%d",
				ErrDimensionMismatch, k, rr, cc, nx, nu)
		}
	}
	if cs := r.Constraints; cs != nil {
		for k := 0; k < r.N-1; k++ {
			if cs.C[k].Len() != cs.NC {
				return fmt.Errorf("%w: C[%d] has %d entries, want %d",
					ErrDimensionMismatch, k, cs.C[k].Len(), cs.NC)
			}
			if rr, cc := cs.Cu[k].Dims(); rr != cs.NC || cc != nu {
				return fmt.Errorf("%w: Cu[%d] is %dx%d, want %dx%d",
					ErrDimensionMismatch, k, rr, cc, cs.NC, nu)
			}
		}
		if cs.NCTerm > 0 && cs.CxN == nil {
			return ErrMissingConstraints
		}
	}
	return nil
}
