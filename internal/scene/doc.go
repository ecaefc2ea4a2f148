// Package scene schedules the domains of one simulation.
//
// A Scene moves through Defining, Built, Stepping and Stopped. Entities,
// emitters and cameras are added while Defining; Build rasterizes them into
// their domains, fixes the coupling pairs and publishes frame 0. Each Step
// runs the configured substeps, each one injecting pending emissions (first
// substep only), advancing every domain in the order MPM, PBD, SPH, Rigid,
// and resolving coupling. It then publishes exactly one frame.
//
// Only the goroutine calling Step mutates the scene. Readers go through the
// [snapshot.Publisher] returned by Publisher.
package scene
