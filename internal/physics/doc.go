// Package physics holds the per-domain solvers.
//
// Every domain implements [Domain]: it is built once from the entities
// assigned to it, then advanced by a fixed sub-step. Solvers know nothing
// about each other; the coupling bridge reads and corrects their state
// through [ParticleSolver] and [BodySolver].
//
//   - MPM: material point method on a background grid (elastic, liquid
//     and sand models)
//   - PBD: position based dynamics with density constraints for liquids
//     and distance constraints for cloth and elastic bodies
//   - SPH: weakly compressible smoothed particle hydrodynamics
//   - Rigid: translation-only rigid bodies described by signed distance
//     fields
//
// Particle domains clamp motion to their bounds and drop spawned particles
// that start outside; both are tallied in [dynamo.Counters].
package physics
