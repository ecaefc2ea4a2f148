package dynamo

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

// Shape is a solid described in its local frame.
type Shape interface {
	Name() string
	// SDF returns the signed distance to the surface, negative inside, and
	// the outward unit normal. The normal is zero where it is undefined.
	SDF(p Vec3) (float64, Vec3)
	// HalfExtent bounds the shape; components are +Inf for unbounded shapes.
	HalfExtent() Vec3
	Volume() float64
	Validate() error
}

type Box struct{ Size Vec3 }

type Sphere struct{ Radius float64 }

// Cylinder is aligned with the local z axis.
type Cylinder struct{ Radius, Height float64 }

// Plane is the half space below local z = 0.
type Plane struct{}

// Sheet is a zero-thickness rectangle in the local xy plane.
type Sheet struct{ Width, Depth float64 }

func (Box) Name() string      { return "box" }
func (Sphere) Name() string   { return "sphere" }
func (Cylinder) Name() string { return "cylinder" }
func (Plane) Name() string    { return "plane" }
func (Sheet) Name() string    { return "sheet" }

func (b Box) HalfExtent() Vec3 { return b.Size.Mul(0.5) }
func (b Box) Volume() float64  { return b.Size[0] * b.Size[1] * b.Size[2] }
func (b Box) Validate() error {
	if !(b.Size[0] > 0 && b.Size[1] > 0 && b.Size[2] > 0) {
		return &ConfigError{Field: "morph.size", Reason: fmt.Sprintf("box size must be positive, got %v", b.Size)}
	}
	return nil
}

func (b Box) SDF(p Vec3) (float64, Vec3) {
	return boxSDF(p, b.HalfExtent())
}

func boxSDF(p, h Vec3) (float64, Vec3) {
	var q, out Vec3
	maxQ, axis := math.Inf(-1), 0
	for i := 0; i < 3; i++ {
		q[i] = math.Abs(p[i]) - h[i]
		if q[i] > 0 {
			out[i] = q[i] * sign(p[i])
		}
		if q[i] > maxQ {
			maxQ, axis = q[i], i
		}
	}
	if maxQ > 0 {
		d := out.Len()
		return d, out.Mul(1 / d)
	}
	var n Vec3
	n[axis] = sign(p[axis])
	return maxQ, n
}

func (s Sphere) HalfExtent() Vec3 { return Vec3{s.Radius, s.Radius, s.Radius} }
func (s Sphere) Volume() float64  { return 4.0 / 3.0 * math.Pi * s.Radius * s.Radius * s.Radius }
func (s Sphere) Validate() error {
	if !(s.Radius > 0) {
		return &ConfigError{Field: "morph.radius", Reason: fmt.Sprintf("must be positive, got %g", s.Radius)}
	}
	return nil
}

func (s Sphere) SDF(p Vec3) (float64, Vec3) {
	r := p.Len()
	if r == 0 {
		return -s.Radius, Vec3{}
	}
	return r - s.Radius, p.Mul(1 / r)
}

func (c Cylinder) HalfExtent() Vec3 { return Vec3{c.Radius, c.Radius, c.Height / 2} }
func (c Cylinder) Volume() float64  { return math.Pi * c.Radius * c.Radius * c.Height }
func (c Cylinder) Validate() error {
	if !(c.Radius > 0 && c.Height > 0) {
		return &ConfigError{Field: "morph.size", Reason: fmt.Sprintf("cylinder radius and height must be positive, got %g, %g", c.Radius, c.Height)}
	}
	return nil
}

func (c Cylinder) SDF(p Vec3) (float64, Vec3) {
	r := math.Hypot(p[0], p[1])
	var radial Vec3
	if r > 0 {
		radial = Vec3{p[0] / r, p[1] / r, 0}
	}
	axial := Vec3{0, 0, sign(p[2])}
	dr, dz := r-c.Radius, math.Abs(p[2])-c.Height/2
	switch {
	case dr > 0 && dz > 0:
		n := radial.Mul(dr).Add(axial.Mul(dz))
		d := math.Hypot(dr, dz)
		return d, n.Mul(1 / d)
	case dr > dz:
		return dr, radial
	default:
		return dz, axial
	}
}

func (Plane) HalfExtent() Vec3 { return Vec3{math.Inf(1), math.Inf(1), math.Inf(1)} }
func (Plane) Volume() float64  { return math.Inf(1) }
func (Plane) Validate() error  { return nil }
func (Plane) SDF(p Vec3) (float64, Vec3) {
	return p[2], Vec3{0, 0, 1}
}

func (s Sheet) HalfExtent() Vec3 { return Vec3{s.Width / 2, s.Depth / 2, 0} }
func (s Sheet) Volume() float64  { return 0 }
func (s Sheet) Validate() error {
	if !(s.Width > 0 && s.Depth > 0) {
		return &ConfigError{Field: "morph.size", Reason: fmt.Sprintf("sheet must have positive width and depth, got %g, %g", s.Width, s.Depth)}
	}
	return nil
}

func (s Sheet) SDF(p Vec3) (float64, Vec3) {
	return boxSDF(p, s.HalfExtent())
}

// Morph places a shape in the world.
type Morph struct {
	Shape Shape
	Pos   Vec3
	// Euler angles in degrees, applied in XYZ order.
	Euler Vec3
	// Fixed removes a rigid entity from integration; it stays a coupling obstacle.
	Fixed bool
}

// BoxFromCorners builds a box morph from its world-space corners.
func BoxFromCorners(lower, upper Vec3) Morph {
	return Morph{
		Shape: Box{Size: upper.Sub(lower)},
		Pos:   lower.Add(upper).Mul(0.5),
	}
}

func (m Morph) Validate() error {
	if m.Shape == nil {
		return &ConfigError{Field: "morph.shape", Reason: "missing"}
	}
	if !finite(m.Pos) || !finite(m.Euler) {
		return &ConfigError{Field: "morph.pos", Reason: "must be finite"}
	}
	return m.Shape.Validate()
}

func (m Morph) Rotation() mgl64.Quat {
	return mgl64.AnglesToQuat(
		mgl64.DegToRad(m.Euler[0]),
		mgl64.DegToRad(m.Euler[1]),
		mgl64.DegToRad(m.Euler[2]),
		mgl64.XYZ,
	)
}

// Unbounded reports whether the shape extends to infinity.
func (m Morph) Unbounded() bool {
	return math.IsInf(m.Shape.HalfExtent()[0], 1)
}

// BoundingRadius is the radius of a sphere centered at Pos enclosing the shape.
func (m Morph) BoundingRadius() float64 {
	if m.Unbounded() {
		return math.Inf(1)
	}
	return m.Shape.HalfExtent().Len()
}

// WorldBounds returns the world AABB; ok is false for unbounded shapes.
func (m Morph) WorldBounds() (Bounds, bool) {
	if m.Unbounded() {
		return Bounds{}, false
	}
	h := m.Shape.HalfExtent()
	q := m.Rotation()
	b := Bounds{Lower: m.Pos, Upper: m.Pos}
	for i := 0; i < 8; i++ {
		c := Vec3{h[0], h[1], h[2]}
		for a := 0; a < 3; a++ {
			if i&(1<<a) != 0 {
				c[a] = -c[a]
			}
		}
		w := q.Rotate(c).Add(m.Pos)
		b = b.Union(Bounds{Lower: w, Upper: w})
	}
	return b, true
}

// SDF evaluates the placed shape at a world point.
func (m Morph) SDF(p Vec3) (float64, Vec3) {
	q := m.Rotation()
	local := q.Conjugate().Rotate(p.Sub(m.Pos))
	d, n := m.Shape.SDF(local)
	if n == (Vec3{}) {
		return d, n
	}
	return d, q.Rotate(n)
}

// Sample rasterizes the morph into world-space points on a lattice of the
// given spacing. The random sampler jitters each lattice point with rng.
func (m Morph) Sample(spacing float64, sampler Sampler, rng *rand.Rand) ([]Vec3, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Unbounded() {
		return nil, &ConfigError{Field: "morph.shape", Reason: m.Shape.Name() + " cannot be sampled into particles"}
	}
	if !(spacing > 0) {
		return nil, &ConfigError{Field: "particle_size", Reason: fmt.Sprintf("must be positive, got %g", spacing)}
	}
	h := m.Shape.HalfExtent()
	var n [3]int
	for i := 0; i < 3; i++ {
		n[i] = int(math.Round(2 * h[i] / spacing))
		if n[i] < 1 {
			n[i] = 1
		}
	}
	q := m.Rotation()
	pts := make([]Vec3, 0, n[0]*n[1]*n[2])
	tol := spacing * 1e-9
	for i := 0; i < n[0]; i++ {
		for j := 0; j < n[1]; j++ {
			for k := 0; k < n[2]; k++ {
				local := Vec3{
					(float64(i) - float64(n[0]-1)/2) * spacing,
					(float64(j) - float64(n[1]-1)/2) * spacing,
					(float64(k) - float64(n[2]-1)/2) * spacing,
				}
				if d, _ := m.Shape.SDF(local); d > tol {
					continue
				}
				if sampler == SamplerRandom && rng != nil {
					for a := 0; a < 3; a++ {
						if n[a] > 1 {
							local[a] += (rng.Float64() - 0.5) * 0.5 * spacing
						}
					}
				}
				pts = append(pts, q.Rotate(local).Add(m.Pos))
			}
		}
	}
	if len(pts) == 0 {
		return nil, &ConfigError{Field: "morph", Reason: fmt.Sprintf("%s samples to zero particles at spacing %g", m.Shape.Name(), spacing)}
	}
	return pts, nil
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
