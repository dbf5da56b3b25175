package solver

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/cost"
	"github.com/san-kum/trajopt/internal/dynamics"
)

func doubleIntegratorProblem(t *testing.T, n int) *Problem {
	t.Helper()
	c, err := cost.NewDiagonal([]float64{1, 1}, []float64{0.1}, []float64{100, 100}, nil)
	if err != nil {
		t.Fatalf("build cost: %v", err)
	}
	return &Problem{
		Dynamics: dynamics.Discretize(dynamics.NewDoubleIntegrator(), dynamics.RK4),
		Cost:     c,
		N:        n,
		Dt:       0.1,
		X0:       mat.NewVecDense(2, []float64{1, 0}),
	}
}

func TestSolveDoubleIntegrator(t *testing.T) {
	s, err := New(doubleIntegratorProblem(t, 31), DefaultOptions())
	if err != nil {
		t.Fatalf("new solver: %v", err)
	}
	sol, err := s.Solve()
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.Stats.Status != Converged {
		t.Fatalf("status = %v, want converged", sol.Stats.Status)
	}
	if !sol.Trajectory.IsValid() {
		t.Fatal("solution trajectory has non-finite entries")
	}

	// the final state should be driven near the origin
	xn := sol.Trajectory.X[30]
	if math.Abs(xn.AtVec(0)) > 0.05 || math.Abs(xn.AtVec(1)) > 0.05 {
		t.Errorf("final state (%g, %g) not near origin", xn.AtVec(0), xn.AtVec(1))
	}

	// cost history decreases monotonically over accepted iterates
	hist := sol.Stats.CostHistory
	if len(hist) < 2 {
		t.Fatalf("expected at least one accepted iteration, history %v", hist)
	}
	for i := 1; i < len(hist); i++ {
		if hist[i] > hist[i-1]+1e-12 {
			t.Errorf("cost increased at accepted iterate %d: %g -> %g", i, hist[i-1], hist[i])
		}
	}
}

func TestSolvePendulumSwingup(t *testing.T) {
	c, err := cost.NewDiagonal(
		[]float64{1, 0.1}, []float64{0.01}, []float64{100, 10},
		[]float64{math.Pi, 0},
	)
	if err != nil {
		t.Fatalf("build cost: %v", err)
	}
	p := &Problem{
		Dynamics: dynamics.Discretize(dynamics.NewPendulum(), dynamics.RK4),
		Cost:     c,
		N:        51,
		Dt:       0.05,
		X0:       mat.NewVecDense(2, nil), // hanging down
	}
	s, err := New(p, DefaultOptions())
	if err != nil {
		t.Fatalf("new solver: %v", err)
	}
	sol, err := s.Solve()
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	hist := sol.Stats.CostHistory
	if len(hist) < 2 {
		t.Fatal("no accepted iterations")
	}
	if hist[len(hist)-1] > 0.5*hist[0] {
		t.Errorf("cost barely improved: %g -> %g", hist[0], hist[len(hist)-1])
	}
	if !sol.Trajectory.IsValid() {
		t.Fatal("solution trajectory has non-finite entries")
	}
}

func TestSeedRolloutIsDynamicallyFeasible(t *testing.T) {
	p := doubleIntegratorProblem(t, 11)
	p.U0 = make([]*mat.VecDense, 10)
	for k := range p.U0 {
		p.U0[k] = mat.NewVecDense(1, []float64{0.5})
	}
	s, err := New(p, DefaultOptions())
	if err != nil {
		t.Fatalf("new solver: %v", err)
	}

	// replay the controls through the dynamics and compare states
	x := mat.VecDenseCopyOf(p.X0)
	next := mat.NewVecDense(2, nil)
	for k := 0; k < 10; k++ {
		p.Dynamics.Propagate(next, x, s.tr.TrueControl(k), p.Dt)
		x.CopyVec(next)
		if !mat.EqualApprox(x, s.tr.X[k+1], 1e-12) {
			t.Fatalf("seeded state %d deviates from rollout", k+1)
		}
	}
}

func TestInfeasibleSeedAbsorbsDefects(t *testing.T) {
	p := doubleIntegratorProblem(t, 11)
	p.Infeasible = true
	p.XGuess = make([]*mat.VecDense, 11)
	for k := range p.XGuess {
		// straight-line guess from (1,0) to the origin, not dynamically feasible
		a := 1 - float64(k)/10
		p.XGuess[k] = mat.NewVecDense(2, []float64{a, 0})
	}
	s, err := New(p, DefaultOptions())
	if err != nil {
		t.Fatalf("new solver: %v", err)
	}

	// guess states reproduced exactly: F(x_k, u_k) + slack_k == x_{k+1}
	slack, _ := s.tr.SlackBlock()
	next := mat.NewVecDense(2, nil)
	for k := 0; k < 10; k++ {
		p.Dynamics.Propagate(next, s.tr.X[k], s.tr.TrueControl(k), p.Dt)
		next.AddVec(next, slack.Of(s.tr.U[k]))
		if !mat.EqualApprox(next, s.tr.X[k+1], 1e-12) {
			t.Fatalf("slack seeding does not reproduce the guess at step %d", k)
		}
	}
}

func TestInfeasibleSolveClosesDefects(t *testing.T) {
	p := doubleIntegratorProblem(t, 11)
	p.Infeasible = true
	p.XGuess = make([]*mat.VecDense, 11)
	for k := range p.XGuess {
		a := 1 - float64(k)/10
		p.XGuess[k] = mat.NewVecDense(2, []float64{a, 0})
	}
	s, err := New(p, DefaultOptions())
	if err != nil {
		t.Fatalf("new solver: %v", err)
	}

	slack, _ := s.tr.SlackBlock()
	before := 0.0
	for k := 0; k < 10; k++ {
		before = math.Max(before, mat.Norm(slack.Of(s.tr.U[k]), math.Inf(1)))
	}

	sol, err := s.Solve()
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	after := 0.0
	sl, _ := sol.Trajectory.SlackBlock()
	for k := 0; k < 10; k++ {
		after = math.Max(after, mat.Norm(sl.Of(sol.Trajectory.U[k]), math.Inf(1)))
	}
	if after >= before {
		t.Errorf("slack defects did not shrink: %g -> %g", before, after)
	}
}

func TestGradientNormZeroAtOptimum(t *testing.T) {
	s, err := New(doubleIntegratorProblem(t, 21), DefaultOptions())
	if err != nil {
		t.Fatalf("new solver: %v", err)
	}
	if _, err := s.Solve(); err != nil {
		t.Fatalf("solve: %v", err)
	}
	// one more backward pass at the solution: feedforward should be tiny
	s.linearize()
	if _, err := s.bp.Run(); err != nil {
		t.Fatalf("backward pass: %v", err)
	}
	if g := s.gradientNorm(); g > 1e-3 {
		t.Errorf("gradient norm %g at the solution, want near zero", g)
	}
}

func TestProblemValidation(t *testing.T) {
	p := doubleIntegratorProblem(t, 11)
	p.X0 = mat.NewVecDense(3, nil)
	if _, err := New(p, DefaultOptions()); err == nil {
		t.Error("mismatched initial state accepted")
	}

	p = doubleIntegratorProblem(t, 11)
	p.Infeasible = true // no XGuess
	if _, err := New(p, DefaultOptions()); err == nil {
		t.Error("infeasible start without a state guess accepted")
	}

	p = doubleIntegratorProblem(t, 1)
	if _, err := New(p, DefaultOptions()); err == nil {
		t.Error("single knot point accepted")
	}
}
