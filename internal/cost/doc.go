// Package cost defines the cost oracle consumed by the backward pass.
//
// An [Oracle] evaluates the objective and its second-order Taylor
// expansion at a (state, control) pair:
//
//   - [StageExpansion]: Lxx, Luu, Lux Hessian blocks plus Lx, Lu gradients
//     and the raw stage cost value
//   - [TerminalExpansion]: Hessian and gradient of the terminal cost
//   - [Quadratic]: tracking cost 1/2 (x-xref)'Q(x-xref) + 1/2 u'Ru with a
//     terminal weight Qf
//
// Expansions are evaluated at the true state/control dimensions; augmented
// slack blocks are costed by the backward pass itself.
package cost
