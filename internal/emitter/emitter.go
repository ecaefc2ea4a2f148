// Package emitter turns continuous emission requests into particles.
package emitter

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/physics"
)

type Vec3 = dynamo.Vec3

// Shape is the droplet cross-section.
type Shape string

const (
	Circle    Shape = "circle"
	Square    Shape = "square"
	Rectangle Shape = "rectangle"
	Sphere    Shape = "sphere"
)

// Request is one queued emit call.
type Request struct {
	Pos   Vec3
	Dir   Vec3
	Speed float64
	Shape Shape
	Size  []float64
}

func (r Request) Validate() error {
	if !dynamo.Finite(r.Pos) {
		return &dynamo.ConfigError{Field: "emit.pos", Reason: "must be finite"}
	}
	if !dynamo.Finite(r.Dir) || r.Dir.Len() < 1e-12 {
		return &dynamo.ConfigError{Field: "emit.direction", Reason: "must be a non-zero finite vector"}
	}
	if !(r.Speed > 0) || math.IsInf(r.Speed, 0) {
		return &dynamo.ConfigError{Field: "emit.speed", Reason: fmt.Sprintf("must be positive, got %g", r.Speed)}
	}
	want := 1
	switch r.Shape {
	case Circle, Square, Sphere:
	case Rectangle:
		want = 2
	default:
		return &dynamo.ConfigError{Field: "emit.shape", Reason: fmt.Sprintf("unknown droplet shape %q", r.Shape)}
	}
	if len(r.Size) != want {
		return &dynamo.ConfigError{Field: "emit.size", Reason: fmt.Sprintf("%s takes %d size values, got %d", r.Shape, want, len(r.Size))}
	}
	for _, s := range r.Size {
		if !(s > 0) || math.IsInf(s, 0) {
			return &dynamo.ConfigError{Field: "emit.size", Reason: fmt.Sprintf("must be positive, got %g", s)}
		}
	}
	return nil
}

// Emitter is a bounded particle source bound to one particle domain. The
// cap counts every particle it ever injected; particles are never recycled.
type Emitter struct {
	id       dynamo.ID
	mat      dynamo.Material
	max      int
	emitted  int
	cursor   float64
	pending  []Request
	domain   physics.ParticleSolver
	rng      *rand.Rand
	counters dynamo.Counters
}

func New(id dynamo.ID, mat dynamo.Material, maxParticles int) (*Emitter, error) {
	if err := mat.Validate(); err != nil {
		return nil, err
	}
	if !mat.Kind.IsParticle() {
		return nil, &dynamo.ConfigError{Field: "emitter.material", Reason: "emitters need a particle domain"}
	}
	if maxParticles < 1 {
		return nil, &dynamo.ConfigError{Field: "emitter.max_particles", Reason: fmt.Sprintf("must be >= 1, got %d", maxParticles)}
	}
	return &Emitter{id: id, mat: mat, max: maxParticles}, nil
}

func (e *Emitter) ID() dynamo.ID             { return e.id }
func (e *Emitter) Material() dynamo.Material { return e.mat }
func (e *Emitter) Max() int                  { return e.max }
func (e *Emitter) Emitted() int              { return e.emitted }
func (e *Emitter) Counters() dynamo.Counters { return e.counters }
func (e *Emitter) Pending() int              { return len(e.pending) }

// Bind attaches the emitter to its domain at scene build.
func (e *Emitter) Bind(d physics.ParticleSolver, rng *rand.Rand) {
	e.domain = d
	e.rng = rng
	d.RegisterMaterial(e.mat)
}

// Emit queues a request for the next injection. Once the cap is reached the
// call does nothing.
func (e *Emitter) Emit(pos, dir Vec3, speed float64, shape Shape, size ...float64) error {
	r := Request{Pos: pos, Dir: dir, Speed: speed, Shape: shape, Size: size}
	if err := r.Validate(); err != nil {
		return err
	}
	if e.emitted >= e.max {
		e.counters.EmissionRefused++
		return nil
	}
	r.Size = append([]float64(nil), size...)
	e.pending = append(e.pending, r)
	return nil
}

// Inject spawns the particles for the queued requests. dt is the outer
// step, step the index stamped on new particles.
func (e *Emitter) Inject(dt float64, step uint64) (int, error) {
	if e.domain == nil {
		return 0, dynamo.ErrNotBuilt
	}
	total := 0
	for _, r := range e.pending {
		s := e.domain.Spacing()
		thick := 1.0
		if r.Shape == Sphere {
			thick = math.Max(1, math.Round(r.Size[0]/s))
		}
		e.cursor += r.Speed * dt / s
		dir := r.Dir.Normalize()
		for layer := 0; e.cursor >= thick; layer++ {
			e.cursor -= thick
			if e.emitted >= e.max {
				e.counters.EmissionRefused++
				e.cursor = 0
				break
			}
			pts := e.droplet(r, dir, s)
			off := dir.Mul(-float64(layer) * thick * s)
			for i := range pts {
				pts[i] = pts[i].Add(off)
			}
			if left := e.max - e.emitted; len(pts) > left {
				pts = pts[:left]
			}
			n, err := e.domain.Spawn(physics.SpawnRequest{
				Owner:    e.id,
				Material: e.mat,
				Points:   pts,
				Vel:      dir.Mul(r.Speed),
				Step:     step,
			})
			if err != nil {
				return total, err
			}
			e.emitted += n
			total += n
		}
	}
	e.pending = e.pending[:0]
	return total, nil
}

// LiveCount counts the particles in the domain that this emitter owns.
func (e *Emitter) LiveCount() int {
	if e.domain == nil {
		return 0
	}
	n := 0
	for _, o := range e.domain.Particles().Owner {
		if o == e.id {
			n++
		}
	}
	return n
}

// droplet samples one droplet centered at r.Pos.
func (e *Emitter) droplet(r Request, dir Vec3, s float64) []Vec3 {
	u, w := basis(dir)
	lattice := func(size float64) []float64 {
		n := int(math.Max(1, math.Round(size/s)))
		out := make([]float64, n)
		for k := range out {
			out[k] = (float64(k) - 0.5*float64(n-1)) * s
		}
		return out
	}
	var pts []Vec3
	switch r.Shape {
	case Circle, Square, Rectangle:
		a, b := r.Size[0], r.Size[0]
		if r.Shape == Rectangle {
			b = r.Size[1]
		}
		rad2 := 0.25 * a * a * (1 + 1e-9)
		for _, x := range lattice(a) {
			for _, y := range lattice(b) {
				if r.Shape == Circle && x*x+y*y > rad2 {
					continue
				}
				pts = append(pts, r.Pos.Add(u.Mul(x)).Add(w.Mul(y)))
			}
		}
	case Sphere:
		rad2 := 0.25 * r.Size[0] * r.Size[0] * (1 + 1e-9)
		ax := lattice(r.Size[0])
		for _, x := range ax {
			for _, y := range ax {
				for _, z := range ax {
					if x*x+y*y+z*z > rad2 {
						continue
					}
					pts = append(pts, r.Pos.Add(u.Mul(x)).Add(w.Mul(y)).Add(dir.Mul(z)))
				}
			}
		}
	}
	if e.mat.Sampler == dynamo.SamplerRandom && e.rng != nil {
		for i := range pts {
			j := Vec3{e.rng.Float64() - 0.5, e.rng.Float64() - 0.5, e.rng.Float64() - 0.5}
			pts[i] = pts[i].Add(j.Mul(0.5 * s))
		}
	}
	return pts
}

// basis returns two unit vectors perpendicular to dir and to each other.
func basis(dir Vec3) (Vec3, Vec3) {
	a := Vec3{1, 0, 0}
	if math.Abs(dir[0]) > 0.9 {
		a = Vec3{0, 1, 0}
	}
	u := a.Cross(dir).Normalize()
	return u, dir.Cross(u)
}
