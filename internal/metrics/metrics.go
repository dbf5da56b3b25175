// Package metrics computes summary quantities of a solved trajectory.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/traj"
)

// ControlEffort integrates u'u over the trajectory, physical controls
// only. Step durations are honored, so minimum-time solves weight each
// interval by its optimized length.
func ControlEffort(t *traj.Trajectory) float64 {
	effort := 0.0
	for k := 0; k < t.N-1; k++ {
		u := t.TrueControl(k)
		effort += mat.Dot(u, u) * t.StepDuration(k)
	}
	return effort
}

// PeakControl returns the largest physical control magnitude anywhere on
// the trajectory.
func PeakControl(t *traj.Trajectory) float64 {
	peak := 0.0
	for k := 0; k < t.N-1; k++ {
		u := t.TrueControl(k)
		for i := 0; i < u.Len(); i++ {
			if v := math.Abs(u.AtVec(i)); v > peak {
				peak = v
			}
		}
	}
	return peak
}

// TerminalError returns the Euclidean distance between the final state
// and goal. A nil goal means the origin.
func TerminalError(t *traj.Trajectory, goal []float64) float64 {
	x := t.X[t.N-1]
	sum := 0.0
	for i := 0; i < x.Len(); i++ {
		d := x.AtVec(i)
		if i < len(goal) {
			d -= goal[i]
		}
		sum += d * d
	}
	return math.Sqrt(sum)
}

// PathLength sums the Euclidean state-space displacement between
// consecutive knot points.
func PathLength(t *traj.Trajectory) float64 {
	length := 0.0
	for k := 1; k < t.N; k++ {
		sum := 0.0
		for i := 0; i < t.NX; i++ {
			d := t.X[k].AtVec(i) - t.X[k-1].AtVec(i)
			sum += d * d
		}
		length += math.Sqrt(sum)
	}
	return length
}
