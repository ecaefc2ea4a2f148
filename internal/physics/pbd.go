package physics

import (
	"math"

	"github.com/san-kum/cosim/internal/dynamo"
)

type spring struct {
	i, j  int32
	rest  float64
	stiff float64
}

// PBD is a position based solver: density constraints for liquids,
// distance constraints for elastic bodies and cloth, and separation
// constraints between particles of different entities.
type PBD struct {
	particleDomain
	k       kernel
	springs []spring
	pred    []Vec3
	delta   []Vec3
	lambda  []float64
	nbrs    []int32
	nbrOff  []int32
	// dirty is set when momentum arrived from outside; the next substep
	// re-projects the distance constraints before predicting.
	dirty bool
}

const pbdEpsilon = 1e-9

func NewPBD(opts Options, env Env) *PBD {
	p := &PBD{particleDomain: newParticleDomain(dynamo.KindPBD, opts, env)}
	p.k = newKernel(2 * p.opts.ParticleSize)
	p.massOf = func(m dynamo.Material) float64 {
		if m.Model == dynamo.ModelLiquid {
			return m.Rho / p.k.latticeSum(p.opts.ParticleSize)
		}
		s := p.opts.ParticleSize
		return m.Rho * s * s * s
	}
	return p
}

func (p *PBD) AddEntity(e *dynamo.Entity) error {
	first := p.parts.Len()
	if err := p.addEntity(e); err != nil {
		return err
	}
	if m := e.Material(); m.Model == dynamo.ModelElastic || m.Model == dynamo.ModelCloth {
		p.connect(first, p.parts.Len(), m.Stiffness)
	}
	return nil
}

// connect links every pair of particles in [first, last) closer than 1.5
// spacings with a distance constraint at their rest length.
func (p *PBD) connect(first, last int, stiffness float64) {
	if last-first < 2 {
		return
	}
	pts := p.parts.Pos[first:last]
	box := dynamo.Bounds{Lower: pts[0], Upper: pts[0]}
	for _, q := range pts {
		box = box.Union(dynamo.Bounds{Lower: q, Upper: q})
	}
	r := 1.5 * p.opts.ParticleSize
	box = box.Inflate(r)
	g := NewGrid(box, r)
	g.Build(pts)
	for i, q := range pts {
		g.Query(q, r, func(j int) {
			if j <= i {
				return
			}
			d := q.Sub(pts[j]).Len()
			if d < r {
				p.springs = append(p.springs, spring{
					i: int32(first + i), j: int32(first + j), rest: d, stiff: stiffness,
				})
			}
		})
	}
}

func (p *PBD) Build() error { return p.build(p.k.h) }

func (p *PBD) ApplyExternalImpulse(indices []int, impulses []Vec3) {
	p.particleDomain.ApplyExternalImpulse(indices, impulses)
	if len(indices) > 0 {
		p.dirty = true
	}
}

func (p *PBD) resize(n int) {
	if cap(p.pred) < n {
		c := n + n/2
		p.pred = make([]Vec3, n, c)
		p.delta = make([]Vec3, n, c)
		p.lambda = make([]float64, n, c)
	}
	p.pred, p.delta, p.lambda = p.pred[:n], p.delta[:n], p.lambda[:n]
}

func (p *PBD) Advance(dt float64) error {
	if !p.built {
		return dynamo.ErrNotBuilt
	}
	n := p.parts.Len()
	if n == 0 {
		return nil
	}
	p.resize(n)
	pos, vel := p.parts.Pos, p.parts.Vel
	iters := p.opts.DensityIterations

	if p.dirty {
		p.projectSprings(pos, 1)
		p.dirty = false
	}

	g := p.env.Gravity
	p.env.Backend.ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			vel[i] = vel[i].Add(g.Mul(dt))
			p.pred[i], _ = p.opts.Bounds.ClampInside(pos[i].Add(vel[i].Mul(dt)), p.margin)
		}
	})

	p.grid.Build(p.pred)
	p.collectNeighbors()

	for it := 0; it < iters; it++ {
		p.solveDensity()
		p.projectSprings(p.pred, iters)
		p.env.Backend.ParallelFor(n, func(start, end int) {
			for i := start; i < end; i++ {
				p.pred[i], _ = p.opts.Bounds.ClampInside(p.pred[i], p.margin)
			}
		})
	}

	inv := 1 / dt
	p.env.Backend.ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			vel[i] = p.pred[i].Sub(pos[i]).Mul(inv)
		}
	})
	for it := 0; it < p.opts.ViscosityIterations; it++ {
		p.applyViscosity()
	}
	copy(pos, p.pred)
	p.enforceBounds()
	return p.checkFinite()
}

func (p *PBD) collectNeighbors() {
	n := p.parts.Len()
	p.nbrOff = append(p.nbrOff[:0], 0)
	p.nbrs = p.nbrs[:0]
	h2 := p.k.h2
	for i := 0; i < n; i++ {
		p.grid.Query(p.pred[i], p.k.h, func(j int) {
			if j != i && p.pred[i].Sub(p.pred[j]).LenSqr() < h2 {
				p.nbrs = append(p.nbrs, int32(j))
			}
		})
		p.nbrOff = append(p.nbrOff, int32(len(p.nbrs)))
	}
}

func (p *PBD) isLiquid(i int) bool {
	return p.materials[p.parts.Mat[i]].Model == dynamo.ModelLiquid
}

// solveDensity runs one Jacobi pass of the density and separation
// constraints over the predicted positions.
func (p *PBD) solveDensity() {
	n := p.parts.Len()
	pred, mass := p.pred, p.parts.Mass
	p.env.Backend.ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			p.lambda[i] = 0
			if !p.isLiquid(i) {
				continue
			}
			rho0 := p.materials[p.parts.Mat[i]].Rho
			rho := mass[i] * p.k.poly6(0)
			var gradI Vec3
			sum := 0.0
			for _, j32 := range p.nbrs[p.nbrOff[i]:p.nbrOff[i+1]] {
				j := int(j32)
				if !p.isLiquid(j) {
					continue
				}
				d := pred[i].Sub(pred[j])
				r := d.Len()
				rho += mass[j] * p.k.poly6(r*r)
				gj := p.k.spikyGrad(d, r).Mul(mass[j] / rho0)
				gradI = gradI.Add(gj)
				sum += gj.LenSqr()
			}
			c := math.Max(0, rho/rho0-1)
			p.lambda[i] = -c / (sum + gradI.LenSqr() + pbdEpsilon)
		}
	})

	s := p.opts.ParticleSize
	p.env.Backend.ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			var dp Vec3
			mi := p.materials[p.parts.Mat[i]]
			liquid := mi.Model == dynamo.ModelLiquid
			for _, j32 := range p.nbrs[p.nbrOff[i]:p.nbrOff[i+1]] {
				j := int(j32)
				d := pred[i].Sub(pred[j])
				r := d.Len()
				if liquid && p.isLiquid(j) {
					dp = dp.Add(p.k.spikyGrad(d, r).Mul((p.lambda[i] + p.lambda[j]) * mass[j] / mi.Rho * mi.DensityRelaxation))
					continue
				}
				if p.parts.Owner[i] == p.parts.Owner[j] || r >= s || r < 1e-12 {
					continue
				}
				w := mass[j] / (mass[i] + mass[j])
				dp = dp.Add(d.Mul((s - r) / r * w))
			}
			p.delta[i] = dp
		}
	})
	p.env.Backend.ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			pred[i] = pred[i].Add(p.delta[i])
		}
	})
}

// projectSprings is a sequential Gauss-Seidel sweep in constraint order.
func (p *PBD) projectSprings(x []Vec3, iters int) {
	mass := p.parts.Mass
	for _, c := range p.springs {
		d := x[c.i].Sub(x[c.j])
		l := d.Len()
		if l < 1e-12 {
			continue
		}
		wi, wj := 1/mass[c.i], 1/mass[c.j]
		k := 1 - math.Pow(1-math.Min(c.stiff, 1), 1/float64(iters))
		corr := d.Mul((l - c.rest) / l * k / (wi + wj))
		x[c.i] = x[c.i].Sub(corr.Mul(wi))
		x[c.j] = x[c.j].Add(corr.Mul(wj))
	}
}

// applyViscosity is XSPH smoothing of liquid velocities.
func (p *PBD) applyViscosity() {
	n := p.parts.Len()
	vel, mass := p.parts.Vel, p.parts.Mass
	p.env.Backend.ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			p.delta[i] = Vec3{}
			if !p.isLiquid(i) {
				continue
			}
			m := p.materials[p.parts.Mat[i]]
			var dv Vec3
			for _, j32 := range p.nbrs[p.nbrOff[i]:p.nbrOff[i+1]] {
				j := int(j32)
				if !p.isLiquid(j) {
					continue
				}
				w := mass[j] / m.Rho * p.k.poly6(p.pred[i].Sub(p.pred[j]).LenSqr())
				dv = dv.Add(vel[j].Sub(vel[i]).Mul(w))
			}
			p.delta[i] = dv.Mul(m.ViscosityRelaxation)
		}
	})
	p.env.Backend.ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			vel[i] = vel[i].Add(p.delta[i])
		}
	})
}
