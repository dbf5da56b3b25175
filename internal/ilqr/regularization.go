package ilqr

import "math"

// Regularization is the Levenberg-Marquardt style damping applied to the
// control Hessian before each gain solve. It lives on the results object
// and persists across backward-pass invocations, so damping accumulates
// across line-search failures; it is mutated only through Increase and
// Decrease.
type Regularization struct {
	Rho  float64 // current damping
	DRho float64 // geometric rate of change

	Scale float64 // growth/shrink factor per adjustment
	Min   float64 // floor below which damping snaps to zero
	Max   float64 // ceiling; exceeding it is a solver failure
}

// DefaultRegularization mirrors the usual iLQR schedule.
func DefaultRegularization() Regularization {
	return Regularization{DRho: 1, Scale: 1.6, Min: 1e-8, Max: 1e8}
}

// Increase raises the damping by the configured factor, enforcing the
// floor. It reports ErrRegularizationCeiling when the ceiling is breached.
func (r *Regularization) Increase() error {
	r.DRho = math.Max(r.DRho*r.Scale, r.Scale)
	r.Rho = math.Max(r.Rho*r.DRho, r.Min)
	if r.Rho > r.Max {
		return ErrRegularizationCeiling
	}
	return nil
}

// Decrease lowers the damping after a clean sweep, snapping to zero once
// it falls below the floor.
func (r *Regularization) Decrease() {
	r.DRho = math.Min(r.DRho/r.Scale, 1/r.Scale)
	r.Rho *= r.DRho
	if r.Rho < r.Min {
		r.Rho = 0
	}
}
