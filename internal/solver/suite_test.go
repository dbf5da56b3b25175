package solver_test

import (
	"math"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/cost"
	"github.com/san-kum/trajopt/internal/dynamics"
	"github.com/san-kum/trajopt/internal/solver"
)

func TestSolver(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Solver Suite")
}

func baseProblem(n int) *solver.Problem {
	c, err := cost.NewDiagonal([]float64{1, 1}, []float64{0.1}, []float64{100, 100}, nil)
	Expect(err).NotTo(HaveOccurred())
	return &solver.Problem{
		Dynamics: dynamics.Discretize(dynamics.NewDoubleIntegrator(), dynamics.RK4),
		Cost:     c,
		N:        n,
		Dt:       0.1,
		X0:       mat.NewVecDense(2, []float64{1, 0}),
	}
}

var _ = Describe("constrained solves", func() {
	It("respects control bounds", func() {
		p := baseProblem(31)
		p.Stage = []solver.StageConstraint{
			&solver.ControlBounds{Lower: []float64{-0.6}, Upper: []float64{0.6}},
		}
		s, err := solver.New(p, solver.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		sol, err := s.Solve()
		Expect(err).NotTo(HaveOccurred())
		Expect(sol.Stats.MaxViolation).To(BeNumerically("<", 1e-3))
		for k := 0; k < 30; k++ {
			u := sol.Trajectory.TrueControl(k).AtVec(0)
			Expect(u).To(BeNumerically("<=", 0.6+1e-3))
			Expect(u).To(BeNumerically(">=", -0.6-1e-3))
		}
	})

	It("respects state bounds", func() {
		p := baseProblem(31)
		p.Stage = []solver.StageConstraint{
			&solver.StateBounds{Lower: []float64{-2, -0.4}, Upper: []float64{2, 0.4}},
		}
		s, err := solver.New(p, solver.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		sol, err := s.Solve()
		Expect(err).NotTo(HaveOccurred())
		Expect(sol.Stats.MaxViolation).To(BeNumerically("<", 1e-3))
		for k := 0; k < 31; k++ {
			v := sol.Trajectory.X[k].AtVec(1)
			Expect(v).To(BeNumerically("<=", 0.4+1e-3))
			Expect(v).To(BeNumerically(">=", -0.4-1e-3))
		}
	})

	It("hits a terminal goal", func() {
		p := baseProblem(31)
		p.Terminal = []solver.TerminalConstraint{
			&solver.GoalConstraint{Target: mat.NewVecDense(2, []float64{0, 0})},
		}
		s, err := solver.New(p, solver.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		sol, err := s.Solve()
		Expect(err).NotTo(HaveOccurred())
		xn := sol.Trajectory.X[30]
		Expect(math.Abs(xn.AtVec(0))).To(BeNumerically("<", 1e-3))
		Expect(math.Abs(xn.AtVec(1))).To(BeNumerically("<", 1e-3))
	})
})

var _ = Describe("backward pass variants", func() {
	It("produces the same solution with the square-root engine", func() {
		s1, err := solver.New(baseProblem(21), solver.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		sol1, err := s1.Solve()
		Expect(err).NotTo(HaveOccurred())

		opts := solver.DefaultOptions()
		opts.Backward.SquareRoot = true
		s2, err := solver.New(baseProblem(21), opts)
		Expect(err).NotTo(HaveOccurred())
		sol2, err := s2.Solve()
		Expect(err).NotTo(HaveOccurred())

		Expect(sol2.Stats.Cost).To(BeNumerically("~", sol1.Stats.Cost, 1e-6))
		for k := 0; k < 20; k++ {
			Expect(mat.EqualApprox(sol1.Trajectory.U[k], sol2.Trajectory.U[k], 1e-5)).To(BeTrue())
		}
	})
})

var _ = Describe("minimum-time solves", func() {
	It("shortens the horizon under a time penalty", func() {
		p := baseProblem(31)
		p.MinTime = true
		opts := solver.DefaultOptions()
		opts.Backward.MinTimePenalty = 5
		opts.MinDt = 0.01
		opts.MaxDt = 0.2
		s, err := solver.New(p, opts)
		Expect(err).NotTo(HaveOccurred())
		sol, err := s.Solve()
		Expect(err).NotTo(HaveOccurred())
		Expect(sol.Trajectory.IsValid()).To(BeTrue())
		Expect(sol.Trajectory.TotalTime()).To(BeNumerically("<", 30*0.1+1e-9))
	})

	It("rejects the square-root engine", func() {
		p := baseProblem(11)
		p.MinTime = true
		opts := solver.DefaultOptions()
		opts.Backward.SquareRoot = true
		_, err := solver.New(p, opts)
		Expect(err).To(HaveOccurred())
	})
})
