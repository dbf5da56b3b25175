package dynamics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// step size base for central differences
var cubeEps = math.Cbrt(math.Nextafter(1, 2) - 1)

// Discrete is a Model under a fixed integration scheme. It exposes the
// discrete map x' = F(x, u, dt) and its Jacobians, which is what the
// backward pass consumes.
type Discrete struct {
	Model
	Scheme Scheme

	k1, k2, k3, k4 *mat.VecDense
	mid, xp, xm    *mat.VecDense
	up             *mat.VecDense
	fp, fm         *mat.VecDense
}

func Discretize(m Model, s Scheme) *Discrete {
	nx, nu := m.StateDim(), m.ControlDim()
	return &Discrete{
		Model:  m,
		Scheme: s,
		k1:     mat.NewVecDense(nx, nil),
		k2:     mat.NewVecDense(nx, nil),
		k3:     mat.NewVecDense(nx, nil),
		k4:     mat.NewVecDense(nx, nil),
		mid:    mat.NewVecDense(nx, nil),
		xp:     mat.NewVecDense(nx, nil),
		xm:     mat.NewVecDense(nx, nil),
		up:     mat.NewVecDense(nu, nil),
		fp:     mat.NewVecDense(nx, nil),
		fm:     mat.NewVecDense(nx, nil),
	}
}

// Propagate writes F(x, u, dt) into dst.
func (d *Discrete) Propagate(dst, x, u *mat.VecDense, dt float64) {
	switch d.Scheme {
	case Euler:
		d.Derivative(d.k1, x, u)
		dst.AddScaledVec(x, dt, d.k1)
	case Midpoint:
		d.Derivative(d.k1, x, u)
		d.mid.AddScaledVec(x, 0.5*dt, d.k1)
		d.Derivative(d.k2, d.mid, u)
		dst.AddScaledVec(x, dt, d.k2)
	case RK4:
		d.Derivative(d.k1, x, u)
		d.mid.AddScaledVec(x, 0.5*dt, d.k1)
		d.Derivative(d.k2, d.mid, u)
		d.mid.AddScaledVec(x, 0.5*dt, d.k2)
		d.Derivative(d.k3, d.mid, u)
		d.mid.AddScaledVec(x, dt, d.k3)
		d.Derivative(d.k4, d.mid, u)
		dst.CopyVec(x)
		dst.AddScaledVec(dst, dt/6, d.k1)
		dst.AddScaledVec(dst, dt/3, d.k2)
		dst.AddScaledVec(dst, dt/3, d.k3)
		dst.AddScaledVec(dst, dt/6, d.k4)
	}
}

// Linearize fills fx (nx x nx) and fu (nx x nu) with the Jacobians of the
// discrete map at (x, u, dt). For the Euler scheme on a Linearizable model
// the exact fx = I + dt*A, fu = dt*B is used; otherwise central finite
// differences on Propagate.
func (d *Discrete) Linearize(fx, fu *mat.Dense, x, u *mat.VecDense, dt float64) {
	nx, nu := d.StateDim(), d.ControlDim()
	if lin, ok := d.Model.(Linearizable); ok && d.Scheme == Euler {
		a := mat.NewDense(nx, nx, nil)
		b := mat.NewDense(nx, nu, nil)
		lin.Jacobians(a, b, x, u)
		fx.Scale(dt, a)
		for i := 0; i < nx; i++ {
			fx.Set(i, i, fx.At(i, i)+1)
		}
		fu.Scale(dt, b)
		return
	}

	for j := 0; j < nx; j++ {
		h := cubeEps * math.Max(1, math.Abs(x.AtVec(j)))
		d.xp.CopyVec(x)
		d.xp.SetVec(j, x.AtVec(j)+h)
		d.xm.CopyVec(x)
		d.xm.SetVec(j, x.AtVec(j)-h)
		d.Propagate(d.fp, d.xp, u, dt)
		d.Propagate(d.fm, d.xm, u, dt)
		for i := 0; i < nx; i++ {
			fx.Set(i, j, (d.fp.AtVec(i)-d.fm.AtVec(i))/(2*h))
		}
	}
	for j := 0; j < nu; j++ {
		h := cubeEps * math.Max(1, math.Abs(u.AtVec(j)))
		d.up.CopyVec(u)
		d.up.SetVec(j, u.AtVec(j)+h)
		d.Propagate(d.fp, x, d.up, dt)
		d.up.SetVec(j, u.AtVec(j)-h)
		d.Propagate(d.fm, x, d.up, dt)
		d.up.SetVec(j, u.AtVec(j))
		for i := 0; i < nx; i++ {
			fu.Set(i, j, (d.fp.AtVec(i)-d.fm.AtVec(i))/(2*h))
		}
	}
}

// TimeDerivative writes dF/d(dt) at (x, u, dt) into dst, by central
// difference on the step duration. Used by the minimum-time mode where dt
// is itself a decision variable.
func (d *Discrete) TimeDerivative(dst *mat.VecDense, x, u *mat.VecDense, dt float64) {
	h := cubeEps * math.Max(1e-3, math.Abs(dt))
	d.Propagate(d.fp, x, u, dt+h)
	d.Propagate(d.fm, x, u, dt-h)
	dst.SubVec(d.fp, d.fm)
	dst.ScaleVec(1/(2*h), dst)
}
