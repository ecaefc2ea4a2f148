package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/cosim/internal/dynamo"
)

// Particles is the structure-of-arrays state shared by the particle solvers.
type Particles struct {
	Pos   []Vec3
	Vel   []Vec3
	Mass  []float64
	Mat   []uint16
	Owner []dynamo.ID
	// Born is the step at which the particle entered the domain.
	Born []uint64
}

func (p *Particles) Len() int { return len(p.Pos) }

func (p *Particles) push(pos, vel Vec3, mass float64, mat uint16, owner dynamo.ID, born uint64) {
	p.Pos = append(p.Pos, pos)
	p.Vel = append(p.Vel, vel)
	p.Mass = append(p.Mass, mass)
	p.Mat = append(p.Mat, mat)
	p.Owner = append(p.Owner, owner)
	p.Born = append(p.Born, born)
}

// particleDomain is the bookkeeping common to MPM, PBD and SPH. The owning
// solver supplies massOf and grow for its own per-particle state.
type particleDomain struct {
	kind      dynamo.DomainKind
	opts      Options
	env       Env
	materials []dynamo.Material
	matIndex  map[dynamo.Material]uint16
	parts     Particles
	grid      *Grid
	gridStale bool
	margin    float64
	built     bool
	counters  dynamo.Counters

	massOf func(mat dynamo.Material) float64
	grow   func(mat dynamo.Material)
}

func newParticleDomain(kind dynamo.DomainKind, opts Options, env Env) particleDomain {
	return particleDomain{
		kind:     kind,
		opts:     opts.withDefaults(kind),
		env:      env,
		matIndex: make(map[dynamo.Material]uint16),
	}
}

func (d *particleDomain) Kind() dynamo.DomainKind   { return d.kind }
func (d *particleDomain) Bounds() dynamo.Bounds     { return d.opts.Bounds }
func (d *particleDomain) Spacing() float64          { return d.opts.ParticleSize }
func (d *particleDomain) Particles() *Particles     { return &d.parts }
func (d *particleDomain) Built() bool               { return d.built }
func (d *particleDomain) Counters() dynamo.Counters { return d.counters }

func (d *particleDomain) MaterialAt(i int) dynamo.Material {
	return d.materials[d.parts.Mat[i]]
}

func (d *particleDomain) RegisterMaterial(m dynamo.Material) uint16 {
	if m.Sampler == "" {
		m.Sampler = dynamo.SamplerRegular
	}
	if idx, ok := d.matIndex[m]; ok {
		return idx
	}
	idx := uint16(len(d.materials))
	d.materials = append(d.materials, m)
	d.matIndex[m] = idx
	return idx
}

func (d *particleDomain) CouplingEnabled() bool {
	for _, m := range d.materials {
		if m.NeedsCoupling {
			return true
		}
	}
	return false
}

// addEntity rasterizes e into particles. Every sample must lie inside the
// domain: an entity that does not fit is a configuration error.
func (d *particleDomain) addEntity(e *dynamo.Entity) error {
	if d.built {
		return dynamo.ErrAlreadyBuilt
	}
	mat := e.Material()
	if mat.Kind != d.kind {
		return &dynamo.ConfigError{Field: "material.kind", Reason: fmt.Sprintf("%s entity added to %s domain", mat.Kind, d.kind)}
	}
	pts, err := e.Morph().Sample(d.opts.ParticleSize, mat.Sampler, d.env.Rand)
	if err != nil {
		return err
	}
	for _, p := range pts {
		if !d.opts.Bounds.Contains(p) {
			return &dynamo.ConfigError{Field: "morph", Reason: fmt.Sprintf("entity %d has a sample at %v outside %s bounds", e.ID(), p, d.kind)}
		}
	}
	idx := d.RegisterMaterial(mat)
	for _, p := range pts {
		d.parts.push(p, Vec3{}, 0, idx, e.ID(), 0)
		if d.grow != nil {
			d.grow(mat)
		}
	}
	return nil
}

// build validates the options, allocates the neighbor grid and assigns
// masses to everything added so far.
func (d *particleDomain) build(cell float64) error {
	if d.built {
		return dynamo.ErrAlreadyBuilt
	}
	if err := d.opts.Validate(d.kind); err != nil {
		return err
	}
	d.grid = NewGrid(d.opts.Bounds, cell)
	if d.margin == 0 {
		d.margin = 0.5 * d.opts.ParticleSize
	}
	for i := range d.parts.Mass {
		d.parts.Mass[i] = d.massOf(d.materials[d.parts.Mat[i]])
	}
	d.gridStale = true
	d.built = true
	return nil
}

// Spawn injects emitted particles. Points outside the domain are dropped
// and counted.
func (d *particleDomain) Spawn(req SpawnRequest) (int, error) {
	if !d.built {
		return 0, dynamo.ErrNotBuilt
	}
	idx := d.RegisterMaterial(req.Material)
	mass := d.massOf(req.Material)
	accepted := 0
	for _, p := range req.Points {
		if !d.opts.Bounds.Contains(p) || !dynamo.Finite(p) {
			d.counters.SpawnDropped++
			continue
		}
		d.parts.push(p, req.Vel, mass, idx, req.Owner, req.Step)
		if d.grow != nil {
			d.grow(req.Material)
		}
		accepted++
	}
	if accepted > 0 {
		d.gridStale = true
	}
	return accepted, nil
}

func (d *particleDomain) index() {
	if d.gridStale {
		d.grid.Build(d.parts.Pos)
		d.gridStale = false
	}
}

func (d *particleDomain) Neighbors(p Vec3, r float64, fn func(j int)) {
	if !d.built || d.parts.Len() == 0 {
		return
	}
	d.index()
	r2 := r * r
	d.grid.Query(p, r, func(j int) {
		if d.parts.Pos[j].Sub(p).LenSqr() <= r2 {
			fn(j)
		}
	})
}

// BoundaryQuery treats each particle as a ball of diameter one spacing.
func (d *particleDomain) BoundaryQuery(p Vec3) Boundary {
	best := Boundary{Distance: math.Inf(1), Index: -1}
	s := d.opts.ParticleSize
	d.Neighbors(p, 2*s, func(j int) {
		off := p.Sub(d.parts.Pos[j])
		dist := off.Len()
		if dist-0.5*s < best.Distance {
			best.Distance = dist - 0.5*s
			best.Index = j
			best.OK = true
			if dist > 1e-12 {
				best.Normal = off.Mul(1 / dist)
			} else {
				best.Normal = Vec3{}
			}
		}
	})
	return best
}

func (d *particleDomain) ApplyExternalImpulse(indices []int, impulses []Vec3) {
	for k, i := range indices {
		if i < 0 || i >= d.parts.Len() || d.parts.Mass[i] <= 0 {
			continue
		}
		d.parts.Vel[i] = d.parts.Vel[i].Add(impulses[k].Mul(1 / d.parts.Mass[i]))
	}
}

// enforceBounds clamps every particle inside the domain and removes the
// outward velocity component on each clamped face.
func (d *particleDomain) enforceBounds() {
	b := d.opts.Bounds
	for i, p := range d.parts.Pos {
		q, mask := b.ClampInside(p, d.margin)
		if mask == 0 {
			continue
		}
		d.parts.Pos[i] = q
		v := d.parts.Vel[i]
		for a := 0; a < 3; a++ {
			if mask&(1<<a) != 0 && v[a] < 0 {
				v[a] = 0
			}
			if mask&(1<<(a+3)) != 0 && v[a] > 0 {
				v[a] = 0
			}
		}
		d.parts.Vel[i] = v
		d.counters.BoundsClamped++
	}
	d.gridStale = true
}

// checkFinite returns ErrInvalidState at the first NaN or Inf.
func (d *particleDomain) checkFinite() error {
	for i := range d.parts.Pos {
		if !dynamo.Finite(d.parts.Pos[i]) || !dynamo.Finite(d.parts.Vel[i]) {
			return fmt.Errorf("%s particle %d: %w", d.kind, i, dynamo.ErrInvalidState)
		}
	}
	return nil
}
