package metrics

import (
	"github.com/san-kum/cosim/internal/snapshot"
)

// Absorbed averages, per frame, how many conditions the solvers handled
// locally: clamps, dropped spawns, refused emissions and degenerate
// contacts.
type Absorbed struct {
	name    string
	first   uint64
	last    uint64
	samples int
}

func NewAbsorbed() *Absorbed {
	return &Absorbed{
		name: "absorbed_per_frame",
	}
}

func (a *Absorbed) Name() string {
	return a.name
}

func (a *Absorbed) Observe(f *snapshot.Frame) {
	n := f.Counters.Absorbed()
	if a.samples == 0 {
		a.first = n
	}
	a.last = n
	a.samples++
}

func (a *Absorbed) Value() float64 {
	if a.samples < 2 {
		return 0
	}
	return float64(a.last-a.first) / float64(a.samples-1)
}

func (a *Absorbed) Reset() {
	a.first, a.last = 0, 0
	a.samples = 0
}

// CentroidHeight tracks the particle centroid along z in the last frame.
type CentroidHeight struct {
	name string
	z    float64
}

func NewCentroidHeight() *CentroidHeight { return &CentroidHeight{name: "centroid_z"} }

func (c *CentroidHeight) Name() string { return c.name }

func (c *CentroidHeight) Observe(f *snapshot.Frame) {
	if z, ok := Centroid(f, 2); ok {
		c.z = z
	}
}

func (c *CentroidHeight) Value() float64 { return c.z }
func (c *CentroidHeight) Reset()         { c.z = 0 }
