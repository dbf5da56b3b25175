package solver

import "github.com/san-kum/trajopt/internal/ilqr"

// Options collects every tunable of the solve: inner iLQR iteration
// limits and tolerances, the line-search acceptance window, the augmented
// Lagrangian penalty schedule, and the backward-pass configuration.
type Options struct {
	// Inner (iLQR) loop.
	MaxIterations     int     // backward/forward iterations per outer step
	CostTolerance     float64 // |J_prev - J| below this counts as converged
	GradientTolerance float64 // max-norm of the feedforward terms
	DivergenceLimit   float64 // state norm beyond which a rollout is abandoned

	// Line search.
	LineSearchIters  int     // backtracking trials per iteration
	LineSearchFactor float64 // step shrink per trial
	AcceptRatioLow   float64 // actual/expected improvement window
	AcceptRatioHigh  float64
	MaxStallIters    int // consecutive rejected iterations before giving up

	// Augmented Lagrangian outer loop.
	MaxOuterIterations  int
	ConstraintTolerance float64
	PenaltyInitial      float64
	PenaltyScale        float64
	PenaltyMax          float64
	DualMax             float64

	// Minimum-time step bounds (seconds). The time slack is clamped so the
	// step duration stays inside [MinDt, MaxDt].
	MinDt float64
	MaxDt float64

	// Reg is the initial regularization schedule installed on the results
	// object before the first sweep.
	Reg      ilqr.Regularization
	Backward ilqr.Options

	// Progress, when set, is called with a stats snapshot after every
	// accepted iteration.
	Progress func(Stats)
}

func DefaultOptions() Options {
	return Options{
		MaxIterations:     100,
		CostTolerance:     1e-5,
		GradientTolerance: 1e-6,
		DivergenceLimit:   1e8,

		LineSearchIters:  12,
		LineSearchFactor: 0.5,
		AcceptRatioLow:   1e-4,
		AcceptRatioHigh:  10,
		MaxStallIters:    4,

		MaxOuterIterations:  30,
		ConstraintTolerance: 1e-4,
		PenaltyInitial:      1.0,
		PenaltyScale:        10,
		PenaltyMax:          1e8,
		DualMax:             1e8,

		MinDt: 1e-3,
		MaxDt: 1.0,

		Reg:      ilqr.DefaultRegularization(),
		Backward: ilqr.DefaultOptions(),
	}
}
