package traj

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Trajectory holds one candidate solution: N states, N-1 augmented
// controls and the nominal step duration.
type Trajectory struct {
	Dims
	X  []*mat.VecDense // length N, dimension NX
	U  []*mat.VecDense // length N-1, dimension NUAug()
	Dt float64
}

func New(d Dims, dt float64) *Trajectory {
	t := &Trajectory{Dims: d, Dt: dt}
	t.X = make([]*mat.VecDense, d.N)
	t.U = make([]*mat.VecDense, d.N-1)
	for k := range t.X {
		t.X[k] = mat.NewVecDense(d.NX, nil)
	}
	nu := d.NUAug()
	for k := range t.U {
		t.U[k] = mat.NewVecDense(nu, nil)
	}
	if tau, ok := d.TimeIndex(); ok {
		h := math.Sqrt(dt)
		for k := range t.U {
			t.U[k].SetVec(tau, h)
		}
	}
	return t
}

// StepDuration returns the integration interval of step k. In minimum-time
// mode this is the square of the time slack control.
func (t *Trajectory) StepDuration(k int) float64 {
	if tau, ok := t.TimeIndex(); ok {
		h := t.U[k].AtVec(tau)
		return h * h
	}
	return t.Dt
}

// TotalTime sums the step durations over the trajectory.
func (t *Trajectory) TotalTime() float64 {
	total := 0.0
	for k := 0; k < t.N-1; k++ {
		total += t.StepDuration(k)
	}
	return total
}

// TrueControl returns the physical control block of step k as a view.
func (t *Trajectory) TrueControl(k int) *mat.VecDense {
	return t.TrueControls().Of(t.U[k])
}

func (t *Trajectory) Clone() *Trajectory {
	c := &Trajectory{Dims: t.Dims, Dt: t.Dt}
	c.X = make([]*mat.VecDense, len(t.X))
	c.U = make([]*mat.VecDense, len(t.U))
	for k, x := range t.X {
		c.X[k] = mat.VecDenseCopyOf(x)
	}
	for k, u := range t.U {
		c.U[k] = mat.VecDenseCopyOf(u)
	}
	return c
}

// CopyFrom overwrites the receiver's states and controls with src's.
// Layouts must match.
func (t *Trajectory) CopyFrom(src *Trajectory) {
	for k, x := range src.X {
		t.X[k].CopyVec(x)
	}
	for k, u := range src.U {
		t.U[k].CopyVec(u)
	}
	t.Dt = src.Dt
}

// IsValid reports whether every entry is finite.
func (t *Trajectory) IsValid() bool {
	for _, x := range t.X {
		for i := 0; i < x.Len(); i++ {
			if v := x.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	for _, u := range t.U {
		for i := 0; i < u.Len(); i++ {
			if v := u.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
