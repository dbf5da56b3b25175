package dynamics

import "gonum.org/v1/gonum/mat"

// Model is a continuous-time dynamical system dx/dt = f(x, u).
type Model interface {
	StateDim() int
	ControlDim() int
	// Derivative writes f(x, u) into dst.
	Derivative(dst, x, u *mat.VecDense)
}

// Linearizable models additionally supply analytic continuous-time
// Jacobians A = df/dx and B = df/du.
type Linearizable interface {
	Model
	Jacobians(a, b *mat.Dense, x, u *mat.VecDense)
}

// Scheme selects the integration rule used to discretize a Model.
type Scheme int

const (
	Euler Scheme = iota
	Midpoint
	RK4
)

func (s Scheme) String() string {
	switch s {
	case Euler:
		return "euler"
	case Midpoint:
		return "midpoint"
	case RK4:
		return "rk4"
	}
	return "unknown"
}
