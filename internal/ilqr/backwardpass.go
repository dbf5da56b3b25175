package ilqr

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/cost"
	"github.com/san-kum/trajopt/internal/traj"
)

// Options selects the backward-pass engine and its damping policy.
type Options struct {
	// SquareRoot propagates the cost-to-go in Cholesky/QR factor form.
	SquareRoot bool
	// StateRegularization damps through the dynamics sensitivity
	// (rho*Fu'Fu) instead of adding rho to the Quu diagonal.
	StateRegularization bool
	// MaxRestarts bounds the regularization retry loop independently of
	// the damping ceiling.
	MaxRestarts int
	// FactorFloor is the smallest acceptable diagonal magnitude of the
	// regularized control factor in the square-root engine.
	FactorFloor float64

	// Penalty weights for the augmented control blocks.
	MinTimePenalty    float64
	InfeasiblePenalty float64
}

func DefaultOptions() Options {
	return Options{
		MaxRestarts:       25,
		FactorFloor:       1e-9,
		MinTimePenalty:    1.0,
		InfeasiblePenalty: 1e3,
	}
}

// BackwardPass runs the dynamic-programming sweep over one results
// object. A BackwardPass owns its scratch buffers and must not be shared
// between goroutines; between invocations only the regularization scalar
// on the results object carries over.
type BackwardPass struct {
	res  *Results
	tr   *traj.Trajectory
	or   cost.Oracle
	opts Options

	q     *QExpansion
	stage *cost.StageExpansion
	term  *cost.TerminalExpansion
	chol  mat.Cholesky
	sq    *sqrtScratch
}

// New validates the data contract and prepares a backward pass. All
// precondition violations (dimension mismatches, missing constraint data,
// unsupported mode combinations) surface here, before any sweep runs.
func New(res *Results, tr *traj.Trajectory, oracle cost.Oracle, opts Options) (*BackwardPass, error) {
	if err := res.validate(tr); err != nil {
		return nil, err
	}
	if opts.SquareRoot && res.MinTime {
		return nil, ErrSquareRootMinTime
	}
	if opts.MaxRestarts <= 0 {
		opts.MaxRestarts = DefaultOptions().MaxRestarts
	}
	if opts.FactorFloor <= 0 {
		opts.FactorFloor = DefaultOptions().FactorFloor
	}
	nc := 0
	if res.Constrained() {
		nc = res.Constraints.NC
	}
	bp := &BackwardPass{
		res:   res,
		tr:    tr,
		or:    oracle,
		opts:  opts,
		q:     newQExpansion(res.Dims, nc),
		stage: cost.NewStageExpansion(res.NX, res.NU),
		term:  cost.NewTerminalExpansion(res.NX),
	}
	if opts.SquareRoot {
		bp.sq = newSqrtScratch(res.Dims)
	}
	return bp, nil
}

// Run executes backward sweeps until one completes without a
// positive-definiteness failure, increasing the regularization and
// restarting from the terminal step after each failure. It returns the
// expected-cost-decrease pair (sum d'Qu, sum 1/2 d'Quu d). On error the
// gain and cost-to-go arrays must be considered stale.
func (bp *BackwardPass) Run() ([2]float64, error) {
	res := bp.res
	for restart := 0; restart <= bp.opts.MaxRestarts; restart++ {
		dv := [2]float64{}
		if err := bp.seedTerminal(); err != nil {
			return [2]float64{}, err
		}

		redo := false
		for k := res.N - 2; k >= 0; k-- {
			ok, err := bp.step(k, &dv)
			if err != nil {
				return [2]float64{}, err
			}
			if ok {
				continue
			}
			// not positive definite: raise damping, restart the sweep
			if err := res.Reg.Increase(); err != nil {
				return [2]float64{}, fmt.Errorf("%w (step %d, rho=%g)", err, k, res.Reg.Rho)
			}
			redo = true
			break
		}
		if !redo {
			res.Reg.Decrease()
			return dv, nil
		}
	}
	return [2]float64{}, fmt.Errorf("%w: %d restarts exhausted", ErrRegularizationCeiling, bp.opts.MaxRestarts)
}

func (bp *BackwardPass) step(k int, dv *[2]float64) (bool, error) {
	bp.or.Stage(bp.tr.X[k], bp.tr.TrueControl(k), bp.stage)
	if bp.opts.SquareRoot {
		return bp.sqrtStep(k, dv)
	}
	return bp.standardStep(k, dv)
}

// seedTerminal initializes the cost-to-go at the final knot point from
// the terminal cost expansion plus the terminal constraint penalty.
func (bp *BackwardPass) seedTerminal() error {
	res := bp.res
	n := res.N - 1
	bp.or.Terminal(bp.tr.X[n], bp.term)
	res.S[n].Copy(bp.term.Lxx)
	res.Sx[n].CopyVec(bp.term.Lx)

	if res.Constrained() && res.Constraints.NCTerm > 0 {
		cs := res.Constraints
		var ic, t mat.Dense
		ic.Mul(cs.ImuN, cs.CxN)
		t.Mul(cs.CxN.T(), &ic)
		res.S[n].Add(res.S[n], &t)

		var cg, tv mat.VecDense
		cg.MulVec(cs.ImuN, cs.CN)
		cg.AddVec(&cg, cs.LambdaN)
		tv.MulVec(cs.CxN.T(), &cg)
		res.Sx[n].AddVec(res.Sx[n], &tv)
	}

	if bp.opts.SquareRoot {
		return bp.seedTerminalSqrt()
	}
	return nil
}

// standardStep assembles the Q-expansion, solves the regularized gain
// systems and propagates the cost-to-go one step. It returns false when
// the regularized control Hessian is not positive definite.
func (bp *BackwardPass) standardStep(k int, dv *[2]float64) (bool, error) {
	res, q := bp.res, bp.q
	q.assemble(res, bp.tr, bp.stage, k, bp.opts)
	q.regularize(res, k, bp.opts)

	if !bp.chol.Factorize(q.QuuReg) {
		return false, nil
	}

	// gains against the regularized factor; solves, never an inverse
	if err := bp.chol.SolveTo(res.K[k], q.QuxReg); err != nil {
		return false, err
	}
	res.K[k].Scale(-1, res.K[k])
	if err := bp.chol.SolveVecTo(res.D[k], q.Qu); err != nil {
		return false, err
	}
	res.D[k].ScaleVec(-1, res.D[k])

	// cost-to-go bookkeeping deliberately uses the unregularized blocks:
	// damping the line-search model would bias the expected improvement
	K, d := res.K[k], res.D[k]
	var qd, tv mat.VecDense
	qd.MulVec(q.Quu, d)

	res.Sx[k].CopyVec(q.Qx)
	tv.MulVec(K.T(), &qd)
	res.Sx[k].AddVec(res.Sx[k], &tv)
	tv.MulVec(K.T(), q.Qu)
	res.Sx[k].AddVec(res.Sx[k], &tv)
	tv.MulVec(q.Qux.T(), d)
	res.Sx[k].AddVec(res.Sx[k], &tv)

	var kq, t mat.Dense
	res.S[k].Copy(q.Qxx)
	kq.Mul(q.Quu, K)
	t.Mul(K.T(), &kq)
	res.S[k].Add(res.S[k], &t)
	t.Reset()
	t.Mul(K.T(), q.Qux)
	res.S[k].Add(res.S[k], &t)
	t.Reset()
	t.Mul(q.Qux.T(), K)
	res.S[k].Add(res.S[k], &t)
	symmetrize(res.S[k])

	dv[0] += mat.Dot(d, q.Qu)
	dv[1] += 0.5 * mat.Dot(d, &qd)
	return true, nil
}

// symmetrize counters floating-point asymmetry drift: S = (S + S')/2.
func symmetrize(s *mat.Dense) {
	n, _ := s.Dims()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := 0.5 * (s.At(i, j) + s.At(j, i))
			s.Set(i, j, v)
			s.Set(j, i, v)
		}
	}
}
