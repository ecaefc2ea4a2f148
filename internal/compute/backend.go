package compute

import "fmt"

// Backend runs data-parallel loops for the solvers.
type Backend interface {
	Name() string
	Available() bool
	// ParallelFor calls fn over disjoint chunks covering [0, n). fn must only
	// write state owned by its own indices.
	ParallelFor(n int, fn func(start, end int))
	Cleanup()
}

// Select resolves a backend by name. "auto" and "gpu" prefer the
// accelerator and fall back to the CPU; fellBack reports the fallback.
func Select(name string) (b Backend, fellBack bool, err error) {
	switch name {
	case "cpu":
		return NewCPUBackend(), false, nil
	case "", "auto", "gpu", "accelerator":
		acc := NewAcceleratorBackend()
		if acc.Available() {
			return acc, false, nil
		}
		return NewCPUBackend(), name != "" && name != "auto", nil
	case "serial":
		return NewSerialBackend(), false, nil
	}
	return nil, false, fmt.Errorf("unknown compute backend: %s", name)
}
