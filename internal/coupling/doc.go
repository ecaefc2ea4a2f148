// Package coupling exchanges momentum between domains that share space.
//
// A [Bridge] is built once per scene from the scene's domains in solver
// order. For every pair the [Registry] knows a resolver for, whose bounds
// overlap and where at least one side asks for coupling, each pass:
//
//   - collects contacts against the velocities at the start of the pass,
//   - sums all impulses that land on the same particle,
//   - scales each contact so no particle is pushed past the speed limit,
//   - applies the impulses through [physics.Solver.ApplyExternalImpulse].
//
// The final hard clamp on particle speed is a stability guard for
// overlapping or degenerate obstacles. It is the one place momentum is not
// conserved, and every use is counted.
package coupling
