package config

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/trajopt/internal/cost"
	"github.com/san-kum/trajopt/internal/dynamics"
	"github.com/san-kum/trajopt/internal/ilqr"
	"github.com/san-kum/trajopt/internal/solver"
)

const (
	DefaultKnots = 51
	DefaultDt    = 0.05
)

type Config struct {
	Model      string `yaml:"model"`
	Integrator string `yaml:"integrator"`

	Knots int     `yaml:"knots"`
	Dt    float64 `yaml:"dt"`

	X0   []float64 `yaml:"x0"`
	Goal []float64 `yaml:"goal"`

	Weights WeightsConfig `yaml:"weights"`
	Bounds  BoundsConfig  `yaml:"bounds"`

	GoalConstrained bool `yaml:"goal_constrained"`
	MinTime         bool `yaml:"min_time"`
	Infeasible      bool `yaml:"infeasible"`

	Solver SolverConfig `yaml:"solver"`
}

type WeightsConfig struct {
	Q  []float64 `yaml:"q"`
	R  []float64 `yaml:"r"`
	Qf []float64 `yaml:"qf"`
}

type BoundsConfig struct {
	ControlLower []float64 `yaml:"control_lower"`
	ControlUpper []float64 `yaml:"control_upper"`
	StateLower   []float64 `yaml:"state_lower"`
	StateUpper   []float64 `yaml:"state_upper"`
}

type SolverConfig struct {
	MaxIterations       int     `yaml:"max_iterations"`
	MaxOuterIterations  int     `yaml:"max_outer_iterations"`
	CostTolerance       float64 `yaml:"cost_tolerance"`
	GradientTolerance   float64 `yaml:"gradient_tolerance"`
	ConstraintTolerance float64 `yaml:"constraint_tolerance"`

	PenaltyInitial float64 `yaml:"penalty_initial"`
	PenaltyScale   float64 `yaml:"penalty_scale"`

	RegInitial float64 `yaml:"reg_initial"`
	RegScale   float64 `yaml:"reg_scale"`
	RegMin     float64 `yaml:"reg_min"`
	RegMax     float64 `yaml:"reg_max"`

	SquareRoot          bool `yaml:"square_root"`
	StateRegularization bool `yaml:"state_regularization"`

	MinTimePenalty    float64 `yaml:"min_time_penalty"`
	InfeasiblePenalty float64 `yaml:"infeasible_penalty"`
	MinDt             float64 `yaml:"min_dt"`
	MaxDt             float64 `yaml:"max_dt"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      "pendulum",
		Integrator: "rk4",
		Knots:      DefaultKnots,
		Dt:         DefaultDt,
		X0:         []float64{0, 0},
		Goal:       []float64{3.14159265358979, 0},
		Weights: WeightsConfig{
			Q:  []float64{1, 0.1},
			R:  []float64{0.01},
			Qf: []float64{100, 10},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) scheme() (dynamics.Scheme, error) {
	switch c.Integrator {
	case "", "rk4":
		return dynamics.RK4, nil
	case "euler":
		return dynamics.Euler, nil
	case "midpoint":
		return dynamics.Midpoint, nil
	}
	return 0, fmt.Errorf("config: unknown integrator %q", c.Integrator)
}

func (c *Config) model() (dynamics.Model, error) {
	switch c.Model {
	case "pendulum":
		return dynamics.NewPendulum(), nil
	case "cartpole":
		return dynamics.NewCartPole(), nil
	case "double_integrator":
		return dynamics.NewDoubleIntegrator(), nil
	}
	return nil, fmt.Errorf("config: unknown model %q", c.Model)
}

// Options maps the yaml solver section onto solver options, leaving
// zero-valued fields at their defaults.
func (c *Config) Options() solver.Options {
	opts := solver.DefaultOptions()
	s := c.Solver
	if s.MaxIterations > 0 {
		opts.MaxIterations = s.MaxIterations
	}
	if s.MaxOuterIterations > 0 {
		opts.MaxOuterIterations = s.MaxOuterIterations
	}
	if s.CostTolerance > 0 {
		opts.CostTolerance = s.CostTolerance
	}
	if s.GradientTolerance > 0 {
		opts.GradientTolerance = s.GradientTolerance
	}
	if s.ConstraintTolerance > 0 {
		opts.ConstraintTolerance = s.ConstraintTolerance
	}
	if s.PenaltyInitial > 0 {
		opts.PenaltyInitial = s.PenaltyInitial
	}
	if s.PenaltyScale > 0 {
		opts.PenaltyScale = s.PenaltyScale
	}
	if s.RegScale > 0 {
		opts.Reg = ilqr.Regularization{
			Rho:   s.RegInitial,
			DRho:  1,
			Scale: s.RegScale,
			Min:   s.RegMin,
			Max:   s.RegMax,
		}
	} else if s.RegInitial > 0 {
		opts.Reg.Rho = s.RegInitial
	}
	if s.MinTimePenalty > 0 {
		opts.Backward.MinTimePenalty = s.MinTimePenalty
	}
	if s.InfeasiblePenalty > 0 {
		opts.Backward.InfeasiblePenalty = s.InfeasiblePenalty
	}
	if s.MinDt > 0 {
		opts.MinDt = s.MinDt
	}
	if s.MaxDt > 0 {
		opts.MaxDt = s.MaxDt
	}
	opts.Backward.SquareRoot = s.SquareRoot
	opts.Backward.StateRegularization = s.StateRegularization
	return opts
}

// Problem assembles a solver problem from the configuration: model,
// discretization, quadratic tracking cost toward the goal, bounds and
// the optional terminal goal constraint.
func (c *Config) Problem() (*solver.Problem, error) {
	m, err := c.model()
	if err != nil {
		return nil, err
	}
	scheme, err := c.scheme()
	if err != nil {
		return nil, err
	}
	nx, nu := m.StateDim(), m.ControlDim()
	if len(c.X0) != nx {
		return nil, fmt.Errorf("config: x0 has %d entries, model %q needs %d", len(c.X0), c.Model, nx)
	}
	if len(c.Weights.Q) != nx || len(c.Weights.Qf) != nx || len(c.Weights.R) != nu {
		return nil, fmt.Errorf("config: weight dimensions do not match model %q (%d states, %d controls)",
			c.Model, nx, nu)
	}
	var goal []float64
	if c.Goal != nil {
		if len(c.Goal) != nx {
			return nil, fmt.Errorf("config: goal has %d entries, want %d", len(c.Goal), nx)
		}
		goal = c.Goal
	}

	oracle, err := cost.NewDiagonal(c.Weights.Q, c.Weights.R, c.Weights.Qf, goal)
	if err != nil {
		return nil, err
	}

	p := &solver.Problem{
		Dynamics:   dynamics.Discretize(m, scheme),
		Cost:       oracle,
		N:          c.Knots,
		Dt:         c.Dt,
		X0:         mat.NewVecDense(nx, append([]float64(nil), c.X0...)),
		MinTime:    c.MinTime,
		Infeasible: c.Infeasible,
	}

	if len(c.Bounds.ControlUpper) > 0 {
		if len(c.Bounds.ControlLower) != nu || len(c.Bounds.ControlUpper) != nu {
			return nil, fmt.Errorf("config: control bounds need %d entries per side", nu)
		}
		p.Stage = append(p.Stage, &solver.ControlBounds{
			Lower: c.Bounds.ControlLower,
			Upper: c.Bounds.ControlUpper,
		})
	}
	if len(c.Bounds.StateUpper) > 0 {
		if len(c.Bounds.StateLower) != nx || len(c.Bounds.StateUpper) != nx {
			return nil, fmt.Errorf("config: state bounds need %d entries per side", nx)
		}
		p.Stage = append(p.Stage, &solver.StateBounds{
			Lower: c.Bounds.StateLower,
			Upper: c.Bounds.StateUpper,
		})
	}
	if c.GoalConstrained {
		if goal == nil {
			return nil, fmt.Errorf("config: goal_constrained requires a goal state")
		}
		p.Terminal = append(p.Terminal, &solver.GoalConstraint{
			Target: mat.NewVecDense(nx, append([]float64(nil), goal...)),
		})
	}
	if c.Infeasible {
		p.XGuess = interpolateGuess(c.X0, goal, c.Knots)
	}
	return p, nil
}

// interpolateGuess is the straight-line state guess used to seed
// infeasible starts when no explicit guess is configured.
func interpolateGuess(x0, goal []float64, n int) []*mat.VecDense {
	nx := len(x0)
	out := make([]*mat.VecDense, n)
	for k := 0; k < n; k++ {
		a := float64(k) / float64(n-1)
		v := mat.NewVecDense(nx, nil)
		for i := 0; i < nx; i++ {
			g := x0[i]
			if goal != nil {
				g = goal[i]
			}
			v.SetVec(i, (1-a)*x0[i]+a*g)
		}
		out[k] = v
	}
	return out
}
