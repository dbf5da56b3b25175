// Package solver drives trajectory optimization end to end: iterative
// LQR (linearize, backward pass, line-searched rollout) with an
// augmented Lagrangian outer loop for constrained problems.
//
// A Problem bundles dynamics, a cost oracle, the horizon and any
// constraint blocks [ControlBounds] [StateBounds] [GoalConstraint];
// Solve returns a Solution carrying the optimized trajectory, the final
// feedback gains and solve statistics.
package solver
