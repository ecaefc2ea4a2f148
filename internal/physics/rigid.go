package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/cosim/internal/dynamo"
)

// Body is one rigid entity. Bodies translate but do not rotate.
type Body struct {
	Entity   dynamo.ID
	Morph    dynamo.Morph
	Material dynamo.Material
	Mass     float64
	Vel      Vec3
	radius   float64
}

func (b *Body) Fixed() bool { return b.Morph.Fixed }

func (b *Body) SDF(p Vec3) (float64, Vec3) { return b.Morph.SDF(p) }

// WorldBounds is false for unbounded bodies such as planes.
func (b *Body) WorldBounds() (dynamo.Bounds, bool) { return b.Morph.WorldBounds() }

// Rigid owns the rigid bodies of a scene. Fixed bodies never move and
// absorb impulses without reaction.
type Rigid struct {
	opts     Options
	env      Env
	bodies   []Body
	built    bool
	counters dynamo.Counters
	coupling bool
}

func NewRigid(opts Options, env Env) *Rigid {
	if opts.Bounds == (dynamo.Bounds{}) {
		inf := math.Inf(1)
		opts.Bounds = dynamo.Bounds{Lower: Vec3{-inf, -inf, -inf}, Upper: Vec3{inf, inf, inf}}
	}
	return &Rigid{opts: opts, env: env}
}

func (r *Rigid) Kind() dynamo.DomainKind   { return dynamo.KindRigid }
func (r *Rigid) Bounds() dynamo.Bounds     { return r.opts.Bounds }
func (r *Rigid) Built() bool               { return r.built }
func (r *Rigid) Counters() dynamo.Counters { return r.counters }
func (r *Rigid) NumBodies() int            { return len(r.bodies) }
func (r *Rigid) Body(i int) *Body          { return &r.bodies[i] }
func (r *Rigid) CouplingEnabled() bool     { return r.coupling }

func (r *Rigid) RegisterMaterial(m dynamo.Material) uint16 {
	if m.NeedsCoupling {
		r.coupling = true
	}
	return 0
}

func (r *Rigid) AddEntity(e *dynamo.Entity) error {
	if r.built {
		return dynamo.ErrAlreadyBuilt
	}
	mat := e.Material()
	if mat.Kind != dynamo.KindRigid {
		return &dynamo.ConfigError{Field: "material.kind", Reason: fmt.Sprintf("%s entity added to rigid domain", mat.Kind)}
	}
	morph := e.Morph()
	mass := math.Inf(1)
	if !morph.Unbounded() {
		mass = mat.Rho * morph.Shape.Volume()
		if !(mass > 0) {
			mass = mat.Rho * math.Pow(morph.BoundingRadius(), 3)
		}
	}
	r.RegisterMaterial(mat)
	r.bodies = append(r.bodies, Body{
		Entity:   e.ID(),
		Morph:    morph,
		Material: mat,
		Mass:     mass,
		radius:   morph.BoundingRadius(),
	})
	return nil
}

func (r *Rigid) Build() error {
	if r.built {
		return dynamo.ErrAlreadyBuilt
	}
	// infinite sides are allowed, inverted or NaN ones are not
	for a := 0; a < 3; a++ {
		if !(r.opts.Bounds.Lower[a] < r.opts.Bounds.Upper[a]) {
			return &dynamo.ConfigError{Field: "rigid.bounds", Reason: fmt.Sprintf("lower %v must be below upper %v on every axis", r.opts.Bounds.Lower, r.opts.Bounds.Upper)}
		}
	}
	r.built = true
	return nil
}

func (r *Rigid) Advance(dt float64) error {
	if !r.built {
		return dynamo.ErrNotBuilt
	}
	g := r.env.Gravity
	for i := range r.bodies {
		b := &r.bodies[i]
		if b.Fixed() {
			continue
		}
		b.Vel = b.Vel.Add(g.Mul(dt))
		b.Morph.Pos = b.Morph.Pos.Add(b.Vel.Mul(dt))
	}
	r.resolveContacts()
	for i := range r.bodies {
		b := &r.bodies[i]
		if b.Fixed() {
			continue
		}
		p, mask := r.opts.Bounds.ClampInside(b.Morph.Pos, b.radius)
		if mask != 0 {
			b.Morph.Pos = p
			for a := 0; a < 3; a++ {
				if (mask&(1<<a) != 0 && b.Vel[a] < 0) || (mask&(1<<(a+3)) != 0 && b.Vel[a] > 0) {
					b.Vel[a] = 0
				}
			}
			r.counters.BoundsClamped++
		}
		if !dynamo.Finite(b.Morph.Pos) || !dynamo.Finite(b.Vel) {
			return fmt.Errorf("rigid body %d: %w", b.Entity, dynamo.ErrInvalidState)
		}
	}
	return nil
}

// resolveContacts pushes dynamic bodies out of fixed ones using the fixed
// body's distance field and separates dynamic pairs by bounding sphere.
func (r *Rigid) resolveContacts() {
	for i := range r.bodies {
		b := &r.bodies[i]
		if b.Fixed() {
			continue
		}
		for j := range r.bodies {
			o := &r.bodies[j]
			if !o.Fixed() {
				continue
			}
			d, n := o.SDF(b.Morph.Pos)
			pen := b.radius - d
			if pen <= 0 || n == (Vec3{}) {
				continue
			}
			b.Morph.Pos = b.Morph.Pos.Add(n.Mul(pen))
			vn := b.Vel.Dot(n)
			if vn < 0 {
				vt := b.Vel.Sub(n.Mul(vn))
				b.Vel = vt.Mul(1 - o.Material.CouplingFriction)
			}
		}
		for j := i + 1; j < len(r.bodies); j++ {
			o := &r.bodies[j]
			if o.Fixed() {
				continue
			}
			off := b.Morph.Pos.Sub(o.Morph.Pos)
			dist := off.Len()
			pen := b.radius + o.radius - dist
			if pen <= 0 || dist < 1e-12 {
				continue
			}
			n := off.Mul(1 / dist)
			wb, wo := 1/b.Mass, 1/o.Mass
			b.Morph.Pos = b.Morph.Pos.Add(n.Mul(pen * wb / (wb + wo)))
			o.Morph.Pos = o.Morph.Pos.Sub(n.Mul(pen * wo / (wb + wo)))
			vrel := b.Vel.Sub(o.Vel).Dot(n)
			if vrel < 0 {
				jn := -vrel / (wb + wo)
				b.Vel = b.Vel.Add(n.Mul(jn * wb))
				o.Vel = o.Vel.Sub(n.Mul(jn * wo))
			}
		}
	}
}

// BoundaryQuery returns the nearest body surface to p.
func (r *Rigid) BoundaryQuery(p Vec3) Boundary {
	best := Boundary{Distance: math.Inf(1), Index: -1}
	for i := range r.bodies {
		d, n := r.bodies[i].SDF(p)
		if d < best.Distance {
			best = Boundary{Distance: d, Normal: n, Index: i, OK: true}
		}
	}
	return best
}

// ApplyExternalImpulse changes the velocity of dynamic bodies only.
func (r *Rigid) ApplyExternalImpulse(indices []int, impulses []Vec3) {
	for k, i := range indices {
		if i < 0 || i >= len(r.bodies) {
			continue
		}
		b := &r.bodies[i]
		if b.Fixed() || !(b.Mass > 0) || math.IsInf(b.Mass, 0) {
			continue
		}
		b.Vel = b.Vel.Add(impulses[k].Mul(1 / b.Mass))
	}
}
