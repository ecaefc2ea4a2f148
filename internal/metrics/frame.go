// Package metrics reduces published frames to scalars for run summaries,
// the viewer and tests.
package metrics

import (
	"slices"

	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/snapshot"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Speeds returns the speed of every particle in f.
func Speeds(f *snapshot.Frame) []float64 {
	out := make([]float64, 0, f.ParticleCount())
	for _, d := range f.Domains {
		for _, v := range d.Velocities {
			out = append(out, v.Len())
		}
	}
	return out
}

// Axis collects one coordinate of the particles in the given domains, or
// in every domain when none are named.
func Axis(f *snapshot.Frame, axis int, kinds ...dynamo.DomainKind) []float64 {
	var out []float64
	for _, d := range f.Domains {
		if len(kinds) > 0 && !slices.Contains(kinds, d.Kind) {
			continue
		}
		for _, p := range d.Positions {
			out = append(out, p[axis])
		}
	}
	return out
}

// Centroid is the mean of Axis; ok is false when there are no particles.
func Centroid(f *snapshot.Frame, axis int, kinds ...dynamo.DomainKind) (float64, bool) {
	xs := Axis(f, axis, kinds...)
	if len(xs) == 0 {
		return 0, false
	}
	return stat.Mean(xs, nil), true
}

// Spread is the standard deviation of Axis.
func Spread(f *snapshot.Frame, axis int, kinds ...dynamo.DomainKind) float64 {
	xs := Axis(f, axis, kinds...)
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}

func MaxSpeed(f *snapshot.Frame) float64 {
	s := Speeds(f)
	if len(s) == 0 {
		return 0
	}
	return floats.Max(s)
}

// SpecificKinetic is the mean of |v|²/2 over all particles.
func SpecificKinetic(f *snapshot.Frame) float64 {
	s := Speeds(f)
	if len(s) == 0 {
		return 0
	}
	return 0.5 * floats.Dot(s, s) / float64(len(s))
}
