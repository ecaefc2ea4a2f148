package coupling

import (
	"math"

	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/physics"
)

// DefaultBeta is the fraction of the penetration removed per substep.
const DefaultBeta = 0.2

// Law is the contact velocity correction. For a contact with outward normal
// n, relative velocity v and penetration depth d it returns
//
//	dv = s * (max(0, -v.n) + beta*d/dt) * n  -  f * v_t
//
// where s is the normal scale (1 - softness, floored at 0), f the friction
// coefficient and v_t the tangential part of v.
type Law struct {
	Beta float64
}

func (l Law) DeltaV(vrel, n Vec3, depth, dt, friction, normalScale float64) Vec3 {
	vn := vrel.Dot(n)
	vt := vrel.Sub(n.Mul(vn))
	dn := normalScale * (math.Max(0, -vn) + l.Beta*depth/dt)
	return n.Mul(dn).Sub(vt.Mul(friction))
}

type Vec3 = dynamo.Vec3

type ref struct {
	dom  int
	idx  int
	body bool
}

// contact carries the impulse on a; b receives the negation.
type contact struct {
	a, b ref
	j    Vec3
}

// Pass collects the contacts of one bridge pass.
type Pass struct {
	Dt  float64
	Law Law
	// Region is the overlap of the pair being resolved, grown by the band.
	Region   dynamo.Bounds
	contacts []contact
	counters dynamo.Counters
}

func (p *Pass) reset(dt float64) {
	p.Dt = dt
	p.contacts = p.contacts[:0]
	p.counters = dynamo.Counters{}
}

func (p *Pass) degenerate() { p.counters.CouplingDegenerate++ }

func (p *Pass) add(c contact) {
	if c.j == (Vec3{}) {
		return
	}
	if !dynamo.Finite(c.j) {
		p.degenerate()
		return
	}
	p.contacts = append(p.contacts, c)
}

// RigidParticle resolves particles against the surfaces of rigid bodies.
// Fixed bodies take no reaction.
func RigidParticle(p *Pass, a, b Side) {
	rs, ok := a.Domain.(physics.BodySolver)
	if !ok {
		return
	}
	ps, ok := b.Domain.(physics.ParticleSolver)
	if !ok {
		return
	}
	band := 0.5 * ps.Spacing()
	parts := ps.Particles()

	for k := 0; k < rs.NumBodies(); k++ {
		body := rs.Body(k)
		visit := func(i int) {
			x := parts.Pos[i]
			if !p.Region.Contains(x) {
				return
			}
			pm := ps.MaterialAt(i)
			if !pm.NeedsCoupling && !body.Material.NeedsCoupling {
				return
			}
			d, n := body.SDF(x)
			if d >= band {
				return
			}
			if n == (Vec3{}) || !dynamo.Finite(n) {
				p.degenerate()
				return
			}
			dv := p.Law.DeltaV(parts.Vel[i].Sub(body.Vel), n, band-d, p.Dt,
				body.Material.CouplingFriction, body.Material.NormalScale())
			p.add(contact{
				a: ref{dom: b.Index, idx: i},
				b: ref{dom: a.Index, idx: k, body: true},
				j: dv.Mul(parts.Mass[i]),
			})
		}
		if wb, ok := body.WorldBounds(); ok {
			ps.Neighbors(wb.Center(), 0.5*wb.Extent().Len()+band, visit)
		} else {
			for i := range parts.Pos {
				visit(i)
			}
		}
	}
}

// ParticleParticle resolves particles of two particle domains as spheres
// of one spacing. The impulse uses the reduced mass, so the heavier side
// yields less.
func ParticleParticle(p *Pass, a, b Side) {
	pa, ok := a.Domain.(physics.ParticleSolver)
	if !ok {
		return
	}
	pb, ok := b.Domain.(physics.ParticleSolver)
	if !ok {
		return
	}
	r0 := 0.5 * (pa.Spacing() + pb.Spacing())
	A, B := pa.Particles(), pb.Particles()

	for i, x := range A.Pos {
		if !p.Region.Contains(x) {
			continue
		}
		ma := pa.MaterialAt(i)
		pb.Neighbors(x, r0, func(j int) {
			mb := pb.MaterialAt(j)
			if !ma.NeedsCoupling && !mb.NeedsCoupling {
				return
			}
			off := x.Sub(B.Pos[j])
			dist := off.Len()
			if dist >= r0 {
				return
			}
			if dist < 1e-12 {
				p.degenerate()
				return
			}
			n := off.Mul(1 / dist)
			friction := 0.5 * (ma.CouplingFriction + mb.CouplingFriction)
			scale := 0.5 * (ma.NormalScale() + mb.NormalScale())
			dv := p.Law.DeltaV(A.Vel[i].Sub(B.Vel[j]), n, r0-dist, p.Dt, friction, scale)
			mstar := A.Mass[i] * B.Mass[j] / (A.Mass[i] + B.Mass[j])
			p.add(contact{
				a: ref{dom: a.Index, idx: i},
				b: ref{dom: b.Index, idx: j},
				j: dv.Mul(mstar),
			})
		})
	}
}
