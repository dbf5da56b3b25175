// Package ilqr implements the constrained DDP backward pass, the
// numerical core of the trajectory optimizer.
//
// Given a nominal trajectory, per-step dynamics Jacobians and a cost
// oracle, the backward pass sweeps from the terminal step to the first,
// propagating a second-order model of the optimal cost-to-go and
// extracting time-varying feedback gains K and feedforward corrections d
// for the forward rollout, plus the expected-cost-decrease pair consumed
// by the line search.
//
// Two engines share one data contract:
//
//   - [BackwardPass] with Options.SquareRoot unset propagates the
//     cost-to-go Hessian S and gradient directly, regularizing the
//     control Hessian before each gain solve.
//   - With Options.SquareRoot set, the Hessian is propagated in
//     Cholesky/QR factor form for better conditioning; additive updates
//     become stacked-QR compositions and gain solves become triangular
//     solves.
//
// A failed positive-definiteness check triggers a regularization increase
// and a restart of the whole sweep from the terminal step. The retry loop
// is bounded by the regularization ceiling; exceeding it is fatal and no
// partial gains are exposed.
//
// The package is single-threaded by construction: step k depends on step
// k+1, and all mutable state is owned by the running sweep. Only the
// regularization scalar survives between sweeps.
package ilqr
