package ilqr

import "errors"

var (
	// ErrRegularizationCeiling indicates the control Hessian could not be
	// made positive definite under the maximum permitted damping. The
	// solve attempt cannot be locally stabilized and must be aborted.
	ErrRegularizationCeiling = errors.New("ilqr: regularization ceiling exceeded")

	// ErrDimensionMismatch indicates inconsistent trajectory, Jacobian or
	// constraint dimensions.
	ErrDimensionMismatch = errors.New("ilqr: dimension mismatch")

	// ErrMissingConstraints indicates constrained mode was requested on a
	// results object without constraint data.
	ErrMissingConstraints = errors.New("ilqr: results object has no constraint data")

	// ErrSquareRootMinTime indicates an unsupported configuration: the
	// square-root engine does not handle the minimum-time control blocks.
	ErrSquareRootMinTime = errors.New("ilqr: square-root formulation does not support minimum-time mode")
)

// errFactorization reports a cost Hessian that could not be factored even
// with jitter. Surfaced wrapped by the engine that hit it.
var errFactorization = errors.New("ilqr: cost Hessian factorization failed")
