package dynamics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DoubleIntegrator is a point mass on a line: position, velocity, with
// acceleration as the control.
type DoubleIntegrator struct{}

func NewDoubleIntegrator() *DoubleIntegrator { return &DoubleIntegrator{} }

func (d *DoubleIntegrator) StateDim() int   { return 2 }
func (d *DoubleIntegrator) ControlDim() int { return 1 }

func (d *DoubleIntegrator) Derivative(dst, x, u *mat.VecDense) {
	dst.SetVec(0, x.AtVec(1))
	dst.SetVec(1, u.AtVec(0))
}

func (d *DoubleIntegrator) Jacobians(a, b *mat.Dense, x, u *mat.VecDense) {
	a.Zero()
	a.Set(0, 1, 1)
	b.Zero()
	b.Set(1, 0, 1)
}

// Pendulum is a damped torque-actuated pendulum. State is (theta, omega)
// with theta = 0 hanging down.
type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    1.0,
		Length:  0.5,
		Damping: 0.1,
		Gravity: 9.81,
	}
}

func (p *Pendulum) StateDim() int   { return 2 }
func (p *Pendulum) ControlDim() int { return 1 }

func (p *Pendulum) Derivative(dst, x, u *mat.VecDense) {
	theta := x.AtVec(0)
	omega := x.AtVec(1)
	inertia := p.Mass * p.Length * p.Length
	alpha := (u.AtVec(0) - p.Damping*omega - p.Mass*p.Gravity*p.Length*math.Sin(theta)) / inertia
	dst.SetVec(0, omega)
	dst.SetVec(1, alpha)
}

func (p *Pendulum) Jacobians(a, b *mat.Dense, x, u *mat.VecDense) {
	inertia := p.Mass * p.Length * p.Length
	a.Zero()
	a.Set(0, 1, 1)
	a.Set(1, 0, -p.Mass*p.Gravity*p.Length*math.Cos(x.AtVec(0))/inertia)
	a.Set(1, 1, -p.Damping/inertia)
	b.Zero()
	b.Set(1, 0, 1/inertia)
}

// CartPole is a pole balancing on a force-actuated cart. State is
// (position, velocity, theta, omega).
type CartPole struct {
	CartMass   float64
	PoleMass   float64
	PoleLength float64
	Gravity    float64
}

func NewCartPole() *CartPole {
	return &CartPole{
		CartMass:   1.0,
		PoleMass:   0.1,
		PoleLength: 0.5,
		Gravity:    9.81,
	}
}

func (c *CartPole) StateDim() int   { return 4 }
func (c *CartPole) ControlDim() int { return 1 }

func (c *CartPole) Derivative(dst, x, u *mat.VecDense) {
	vel := x.AtVec(1)
	theta := x.AtVec(2)
	omega := x.AtVec(3)
	force := u.AtVec(0)

	mc, mp, l, g := c.CartMass, c.PoleMass, c.PoleLength, c.Gravity
	sint, cost := math.Sin(theta), math.Cos(theta)

	temp := (force + mp*l*omega*omega*sint) / (mc + mp)
	alpha := (g*sint - cost*temp) / (l * (4.0/3.0 - mp*cost*cost/(mc+mp)))
	acc := temp - mp*l*alpha*cost/(mc+mp)

	dst.SetVec(0, vel)
	dst.SetVec(1, acc)
	dst.SetVec(2, omega)
	dst.SetVec(3, alpha)
}
