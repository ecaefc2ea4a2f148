// Package dynamo provides the core value types shared by every simulation
// domain.
//
// The package defines the data model the scheduler and solvers agree on:
//
//   - [SimulationConfig]: outer timestep, substep count and gravity
//   - [Bounds]: axis-aligned domain extent, fixed at build time
//   - [Material], [Morph], [Surface]: the entity triple a scenario supplies
//   - [Entity]: immutable identity over one material/morph/surface
//   - [Counters]: diagnostics for conditions absorbed without an error
//   - [Engine]: seed, compute backend and logger, constructed once
//
// # Example
//
//	eng, _ := dynamo.NewEngine(dynamo.EngineOptions{Seed: 0})
//	cfg := dynamo.SimulationConfig{Dt: 2e-3, Substeps: 10, Gravity: dynamo.Vec3{0, 0, -9.81}}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// Values in this package are plain data. An [Entity] is never mutated after
// construction and may be shared freely; everything else follows the
// ownership of the scene that holds it.
package dynamo
