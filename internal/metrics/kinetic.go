package metrics

import (
	"math"

	"github.com/san-kum/cosim/internal/snapshot"
)

// Kinetic averages the specific kinetic energy over observed frames.
type Kinetic struct {
	name    string
	total   float64
	samples int
}

func NewKinetic() *Kinetic { return &Kinetic{name: "kinetic"} }

func (k *Kinetic) Name() string { return k.name }

func (k *Kinetic) Observe(f *snapshot.Frame) {
	k.total += SpecificKinetic(f)
	k.samples++
}

func (k *Kinetic) Value() float64 {
	if k.samples == 0 {
		return 0
	}
	return k.total / float64(k.samples)
}

func (k *Kinetic) Reset() {
	k.total = 0
	k.samples = 0
}

// PeakSpeed is the largest particle speed seen in any frame.
type PeakSpeed struct {
	name string
	peak float64
}

func NewPeakSpeed() *PeakSpeed { return &PeakSpeed{name: "peak_speed"} }

func (p *PeakSpeed) Name() string              { return p.name }
func (p *PeakSpeed) Observe(f *snapshot.Frame) { p.peak = math.Max(p.peak, MaxSpeed(f)) }
func (p *PeakSpeed) Value() float64            { return p.peak }
func (p *PeakSpeed) Reset()                    { p.peak = 0 }
