package traj

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Range is a half-open index interval [Lo, Hi) naming one block of an
// augmented control vector.
type Range struct {
	Lo, Hi int
}

func (r Range) Len() int { return r.Hi - r.Lo }

// Of returns a view of the block inside v. The view shares memory with v.
func (r Range) Of(v *mat.VecDense) *mat.VecDense {
	return v.SliceVec(r.Lo, r.Hi).(*mat.VecDense)
}

// Dims describes the dimension layout of a trajectory.
type Dims struct {
	N  int // knot points (states 0..N-1, controls 0..N-2)
	NX int // state dimension
	NU int // true control dimension

	Infeasible bool // slack controls absorbing dynamics defects
	MinTime    bool // step duration h^2 as a decision variable
}

// NUAug is the augmented control dimension: the true controls, followed by
// the infeasible slack block, followed by the time slack.
func (d Dims) NUAug() int {
	nu := d.NU
	if d.Infeasible {
		nu += d.NX
	}
	if d.MinTime {
		nu++
	}
	return nu
}

// TrueControls names the block holding the physical control inputs.
func (d Dims) TrueControls() Range { return Range{0, d.NU} }

// SlackBlock names the infeasible-start slack block. The second return is
// false when infeasible mode is off.
func (d Dims) SlackBlock() (Range, bool) {
	if !d.Infeasible {
		return Range{}, false
	}
	return Range{d.NU, d.NU + d.NX}, true
}

// TimeIndex is the index of the minimum-time slack control. The second
// return is false when minimum-time mode is off.
func (d Dims) TimeIndex() (int, bool) {
	if !d.MinTime {
		return -1, false
	}
	return d.NUAug() - 1, true
}

func (d Dims) Validate() error {
	if d.N < 2 {
		return fmt.Errorf("traj: need at least 2 knot points, got %d", d.N)
	}
	if d.NX <= 0 || d.NU <= 0 {
		return fmt.Errorf("traj: dimensions must be positive, got nx=%d nu=%d", d.NX, d.NU)
	}
	return nil
}
