//go:build !cuda

package compute

// AcceleratorBackend stands in for a device backend in builds without one.
type AcceleratorBackend struct {
	cpu *CPUBackend
}

func NewAcceleratorBackend() *AcceleratorBackend {
	return &AcceleratorBackend{cpu: NewCPUBackend()}
}

func (a *AcceleratorBackend) Name() string    { return "accelerator (not available)" }
func (a *AcceleratorBackend) Available() bool { return false }
func (a *AcceleratorBackend) Cleanup()        {}

func (a *AcceleratorBackend) ParallelFor(n int, fn func(start, end int)) {
	a.cpu.ParallelFor(n, fn)
}
