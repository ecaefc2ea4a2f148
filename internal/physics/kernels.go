package physics

import "math"

// kernel holds the 3D smoothing kernels for support radius h with their
// normalization constants folded in once.
type kernel struct {
	h, h2  float64
	poly6C float64
	spikyC float64
	viscC  float64
}

func newKernel(h float64) kernel {
	h3 := h * h * h
	h6 := h3 * h3
	return kernel{
		h:      h,
		h2:     h * h,
		poly6C: 315.0 / (64.0 * math.Pi * h6 * h3),
		spikyC: -45.0 / (math.Pi * h6),
		viscC:  45.0 / (math.Pi * h6),
	}
}

func (k kernel) poly6(r2 float64) float64 {
	if r2 >= k.h2 {
		return 0
	}
	d := k.h2 - r2
	return k.poly6C * d * d * d
}

// spikyGrad returns the gradient of the spiky kernel at offset d (|d| = r).
func (k kernel) spikyGrad(d Vec3, r float64) Vec3 {
	if r >= k.h || r < 1e-12 {
		return Vec3{}
	}
	x := k.h - r
	return d.Mul(k.spikyC * x * x / r)
}

func (k kernel) viscLap(r float64) float64 {
	if r >= k.h {
		return 0
	}
	return k.viscC * (k.h - r)
}

// latticeSum is the poly6 density sum seen by one particle in the interior
// of a regular lattice with the given spacing. Dividing a rest density by
// it gives the particle mass that makes a fresh lattice sit at rest.
func (k kernel) latticeSum(spacing float64) float64 {
	n := int(math.Ceil(k.h / spacing))
	sum := 0.0
	for i := -n; i <= n; i++ {
		for j := -n; j <= n; j++ {
			for l := -n; l <= n; l++ {
				r2 := spacing * spacing * float64(i*i+j*j+l*l)
				sum += k.poly6(r2)
			}
		}
	}
	return sum
}
