// Package compute provides the loop backends the solvers run on.
//
// The package selects a backend by name:
//
//   - cpu: chunked goroutine fan-out over runtime.NumCPU workers
//   - serial: everything on the calling goroutine
//   - auto / gpu: an accelerator when the build has one, else cpu
//
// # Determinism
//
// ParallelFor only splits index ranges. Callers write per-index results, so a
// loop produces the same values on every backend; reductions that sum across
// indices stay on the stepping goroutine.
//
//	b, _, _ := compute.Select("cpu")
//	b.ParallelFor(len(pos), func(start, end int) {
//	    for i := start; i < end; i++ {
//	        vel[i] = vel[i].Add(g.Mul(dt))
//	    }
//	})
package compute
