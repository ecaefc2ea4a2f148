package physics

import (
	"math"

	"github.com/san-kum/cosim/internal/dynamo"
)

// SPH is weakly compressible smoothed particle hydrodynamics. Pressure
// follows a linear equation of state clamped at zero so the fluid never
// pulls itself together.
type SPH struct {
	particleDomain
	k     kernel
	rho   []float64
	press []float64
	acc   []Vec3
}

func NewSPH(opts Options, env Env) *SPH {
	s := &SPH{particleDomain: newParticleDomain(dynamo.KindSPH, opts, env)}
	s.k = newKernel(2 * s.opts.ParticleSize)
	s.massOf = func(m dynamo.Material) float64 { return m.Rho / s.k.latticeSum(s.opts.ParticleSize) }
	return s
}

func (s *SPH) AddEntity(e *dynamo.Entity) error { return s.addEntity(e) }

func (s *SPH) Build() error { return s.build(s.k.h) }

func (s *SPH) Advance(dt float64) error {
	if !s.built {
		return dynamo.ErrNotBuilt
	}
	n := s.parts.Len()
	if n == 0 {
		return nil
	}
	if len(s.rho) < n {
		s.rho = make([]float64, n, n+n/2)
		s.press = make([]float64, n, n+n/2)
		s.acc = make([]Vec3, n, n+n/2)
	}
	s.rho, s.press, s.acc = s.rho[:n], s.press[:n], s.acc[:n]

	s.gridStale = true
	s.index()
	pos, vel, mass := s.parts.Pos, s.parts.Vel, s.parts.Mass
	h := s.k.h

	s.env.Backend.ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			rho := 0.0
			s.grid.Query(pos[i], h, func(j int) {
				rho += mass[j] * s.k.poly6(pos[i].Sub(pos[j]).LenSqr())
			})
			m := s.materials[s.parts.Mat[i]]
			s.rho[i] = rho
			s.press[i] = math.Max(0, m.Stiffness*(rho/m.Rho-1))
		}
	})

	g := s.env.Gravity
	s.env.Backend.ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			a := g
			pi := s.press[i] / (s.rho[i] * s.rho[i])
			nu := s.materials[s.parts.Mat[i]].Viscosity
			s.grid.Query(pos[i], h, func(j int) {
				if j == i {
					return
				}
				d := pos[i].Sub(pos[j])
				r := d.Len()
				if r >= h {
					return
				}
				pj := s.press[j] / (s.rho[j] * s.rho[j])
				a = a.Sub(s.k.spikyGrad(d, r).Mul(mass[j] * (pi + pj)))
				a = a.Add(vel[j].Sub(vel[i]).Mul(nu * mass[j] / s.rho[j] * s.k.viscLap(r)))
			})
			s.acc[i] = a
		}
	})

	s.env.Backend.ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			vel[i] = vel[i].Add(s.acc[i].Mul(dt))
			pos[i] = pos[i].Add(vel[i].Mul(dt))
		}
	})
	s.enforceBounds()
	return s.checkFinite()
}
