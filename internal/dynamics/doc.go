// Package dynamics provides discrete dynamics models and their Jacobians
// for trajectory optimization.
//
//   - [Model]: continuous dynamics dx/dt = f(x, u)
//   - [Discrete]: a Model under a fixed integration scheme, exposing the
//     discrete map x' = F(x, u, dt) and its Jacobians
//   - [DoubleIntegrator], [Pendulum], [CartPole]: built-in models
//
// Jacobians are computed by central finite differences on the discrete
// map unless the model implements [Linearizable], in which case the
// continuous Jacobians are used for the Euler scheme directly.
package dynamics
