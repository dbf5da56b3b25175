package cost

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/traj"
)

func TestQuadraticExpansion(t *testing.T) {
	c, err := NewDiagonal([]float64{2, 4}, []float64{0.5}, []float64{10, 10}, []float64{1, 0})
	if err != nil {
		t.Fatalf("build cost: %v", err)
	}

	x := mat.NewVecDense(2, []float64{3, -1})
	u := mat.NewVecDense(1, []float64{2})
	exp := NewStageExpansion(2, 1)
	c.Stage(x, u, exp)

	// dx = (2,-1): Lx = Q dx = (4,-4); Lu = R u = 1
	if got := exp.Lx.AtVec(0); math.Abs(got-4) > 1e-12 {
		t.Errorf("Lx[0] = %f, want 4", got)
	}
	if got := exp.Lx.AtVec(1); math.Abs(got+4) > 1e-12 {
		t.Errorf("Lx[1] = %f, want -4", got)
	}
	if got := exp.Lu.AtVec(0); math.Abs(got-1) > 1e-12 {
		t.Errorf("Lu[0] = %f, want 1", got)
	}
	// 0.5*(2*4 + 4*1) + 0.5*0.5*4 = 6 + 1 = 7
	if math.Abs(exp.Val-7) > 1e-12 {
		t.Errorf("stage value = %f, want 7", exp.Val)
	}
	if got := c.StageCost(x, u); math.Abs(got-exp.Val) > 1e-12 {
		t.Errorf("StageCost %f disagrees with expansion value %f", got, exp.Val)
	}
}

func TestQuadraticGradientMatchesFiniteDifference(t *testing.T) {
	c, err := NewDiagonal([]float64{1, 3}, []float64{2}, []float64{5, 5}, nil)
	if err != nil {
		t.Fatalf("build cost: %v", err)
	}
	x := mat.NewVecDense(2, []float64{0.3, -0.7})
	u := mat.NewVecDense(1, []float64{0.2})
	exp := NewStageExpansion(2, 1)
	c.Stage(x, u, exp)

	const h = 1e-6
	for i := 0; i < 2; i++ {
		xp := mat.VecDenseCopyOf(x)
		xp.SetVec(i, x.AtVec(i)+h)
		xm := mat.VecDenseCopyOf(x)
		xm.SetVec(i, x.AtVec(i)-h)
		fd := (c.StageCost(xp, u) - c.StageCost(xm, u)) / (2 * h)
		if math.Abs(fd-exp.Lx.AtVec(i)) > 1e-6 {
			t.Errorf("Lx[%d] = %g, finite difference %g", i, exp.Lx.AtVec(i), fd)
		}
	}
}

func TestTotalWithAugmentedBlocks(t *testing.T) {
	d := traj.Dims{N: 3, NX: 1, NU: 1, Infeasible: true, MinTime: true}
	tr := traj.New(d, 0.01)
	c, err := NewDiagonal([]float64{1}, []float64{1}, []float64{1}, nil)
	if err != nil {
		t.Fatalf("build cost: %v", err)
	}

	slack, _ := d.SlackBlock()
	slack.Of(tr.U[0]).SetVec(0, 2) // penalty 0.5*w*4

	p := Penalties{MinTime: 10, Infeasible: 3}
	j := Total(c, tr, p)

	// states/controls are zero: stage cost 0, time penalty 10*0.01 per step,
	// slack penalty 0.5*3*4 on the first step
	want := 2*10*0.01 + 0.5*3*4
	if math.Abs(j-want) > 1e-12 {
		t.Errorf("total cost = %f, want %f", j, want)
	}
}
