package config

var Presets = map[string]map[string]*Config{
	"pendulum": {
		"swingup": {
			Model: "pendulum", Integrator: "rk4", Knots: 51, Dt: 0.05,
			X0: []float64{0, 0}, Goal: []float64{3.14159265358979, 0},
			Weights: WeightsConfig{Q: []float64{1, 0.1}, R: []float64{0.01}, Qf: []float64{100, 10}},
		},
		"swingup_bounded": {
			Model: "pendulum", Integrator: "rk4", Knots: 51, Dt: 0.05,
			X0: []float64{0, 0}, Goal: []float64{3.14159265358979, 0},
			Weights: WeightsConfig{Q: []float64{1, 0.1}, R: []float64{0.01}, Qf: []float64{100, 10}},
			Bounds:  BoundsConfig{ControlLower: []float64{-3}, ControlUpper: []float64{3}},
		},
		"swingup_exact": {
			Model: "pendulum", Integrator: "rk4", Knots: 51, Dt: 0.05,
			X0: []float64{0, 0}, Goal: []float64{3.14159265358979, 0},
			Weights:         WeightsConfig{Q: []float64{1, 0.1}, R: []float64{0.01}, Qf: []float64{100, 10}},
			GoalConstrained: true,
		},
	},
	"cartpole": {
		// theta = 0 is upright for the cartpole, so a swingup starts at pi
		"swingup": {
			Model: "cartpole", Integrator: "rk4", Knots: 101, Dt: 0.05,
			X0: []float64{0, 0, 3.14159265358979, 0}, Goal: []float64{0, 0, 0, 0},
			Weights: WeightsConfig{
				Q: []float64{0.1, 0.1, 1, 0.1}, R: []float64{0.01},
				Qf: []float64{10, 10, 100, 10},
			},
		},
		"swingup_infeasible": {
			Model: "cartpole", Integrator: "rk4", Knots: 101, Dt: 0.05,
			X0: []float64{0, 0, 3.14159265358979, 0}, Goal: []float64{0, 0, 0, 0},
			Weights: WeightsConfig{
				Q: []float64{0.1, 0.1, 1, 0.1}, R: []float64{0.01},
				Qf: []float64{10, 10, 100, 10},
			},
			Infeasible: true,
		},
	},
	"double_integrator": {
		"rest_to_rest": {
			Model: "double_integrator", Integrator: "rk4", Knots: 31, Dt: 0.1,
			X0: []float64{1, 0}, Goal: []float64{0, 0},
			Weights: WeightsConfig{Q: []float64{1, 1}, R: []float64{0.1}, Qf: []float64{100, 100}},
		},
		"min_time": {
			Model: "double_integrator", Integrator: "rk4", Knots: 31, Dt: 0.1,
			X0: []float64{1, 0}, Goal: []float64{0, 0},
			Weights: WeightsConfig{Q: []float64{1, 1}, R: []float64{0.1}, Qf: []float64{100, 100}},
			Bounds:  BoundsConfig{ControlLower: []float64{-2}, ControlUpper: []float64{2}},
			MinTime: true,
			Solver:  SolverConfig{MinTimePenalty: 5, MinDt: 0.01, MaxDt: 0.2},
		},
	},
}

func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	return names
}
