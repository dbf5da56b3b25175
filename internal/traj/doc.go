// Package traj provides trajectory containers for optimization.
//
// A trajectory is an ordered sequence of N knot points with state and
// control vectors. Controls may carry extra dimensions beyond the true
// control when solver extensions are active:
//
//   - [Dims]: dimension layout, including augmented control blocks
//   - [Range]: a named sub-range view into an augmented vector
//   - [Trajectory]: states, controls and timing for one candidate solution
//
// The augmented layout is [u | nu | h] where u is the true control, nu is
// the infeasible-start slack block (one entry per state dimension) and h
// is the minimum-time slack whose square is the step duration. Blocks are
// only present when the corresponding mode is enabled.
package traj
