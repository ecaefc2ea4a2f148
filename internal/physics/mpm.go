package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/cosim/internal/dynamo"
)

// sandShearDamping scales the affine velocity of sand particles every
// substep, standing in for internal friction.
const sandShearDamping = 0.9

// MPM is a moving least squares material point solver on a uniform
// background grid with quadratic B-spline transfers.
type MPM struct {
	particleDomain
	dx, inv float64
	dims    [3]int
	gm      []float64
	gv      []Vec3
	F       []mgl64.Mat3
	C       []mgl64.Mat3
	J       []float64
}

func NewMPM(opts Options, env Env) *MPM {
	m := &MPM{particleDomain: newParticleDomain(dynamo.KindMPM, opts, env)}
	m.dx = 1 / m.opts.GridDensity
	m.inv = m.opts.GridDensity
	m.massOf = func(mat dynamo.Material) float64 {
		s := m.opts.ParticleSize
		return mat.Rho * s * s * s
	}
	m.grow = func(dynamo.Material) {
		m.F = append(m.F, mgl64.Ident3())
		m.C = append(m.C, mgl64.Mat3{})
		m.J = append(m.J, 1)
	}
	return m
}

func (m *MPM) AddEntity(e *dynamo.Entity) error { return m.addEntity(e) }

func (m *MPM) Build() error {
	if m.built {
		return dynamo.ErrAlreadyBuilt
	}
	if err := m.opts.Validate(m.kind); err != nil {
		return err
	}
	ext := m.opts.Bounds.Extent()
	total := 1
	for a := 0; a < 3; a++ {
		m.dims[a] = int(math.Ceil(ext[a]*m.inv)) + 2
		total *= m.dims[a]
	}
	m.gm = make([]float64, total)
	m.gv = make([]Vec3, total)
	m.margin = math.Max(0.5*m.opts.ParticleSize, 2*m.dx)
	return m.build(2 * m.opts.ParticleSize)
}

func (m *MPM) node(x, y, z int) int {
	return (z*m.dims[1]+y)*m.dims[0] + x
}

type stencil struct {
	base [3]int
	fx   Vec3
	w    [3]Vec3
}

func (m *MPM) stencilAt(p Vec3) stencil {
	var s stencil
	xl := p.Sub(m.opts.Bounds.Lower).Mul(m.inv)
	for a := 0; a < 3; a++ {
		b := int(math.Floor(xl[a] - 0.5))
		if b < 0 {
			b = 0
		} else if b > m.dims[a]-3 {
			b = m.dims[a] - 3
		}
		f := xl[a] - float64(b)
		s.base[a] = b
		s.fx[a] = f
		s.w[0][a] = 0.5 * (1.5 - f) * (1.5 - f)
		s.w[1][a] = 0.75 - (f-1)*(f-1)
		s.w[2][a] = 0.5 * (f - 0.5) * (f - 0.5)
	}
	return s
}

// kirchhoff returns the Kirchhoff stress of particle i.
func (m *MPM) kirchhoff(i int, mat dynamo.Material) mgl64.Mat3 {
	switch mat.Model {
	case dynamo.ModelElastic:
		f := m.F[i]
		mu := mat.E / (2 * (1 + mat.Nu))
		la := mat.E * mat.Nu / ((1 + mat.Nu) * (1 - 2*mat.Nu))
		r := polar(f)
		j := f.Det()
		return f.Sub(r).Mul3(f.Transpose()).Mul(2 * mu).Add(mgl64.Ident3().Mul(la * j * (j - 1)))
	default:
		j := m.J[i]
		return mgl64.Ident3().Mul(mat.E * j * (j - 1))
	}
}

// polar returns the rotation factor of f by Newton iteration.
func polar(f mgl64.Mat3) mgl64.Mat3 {
	if math.Abs(f.Det()) < 1e-10 {
		return mgl64.Ident3()
	}
	r := f
	for k := 0; k < 8; k++ {
		r = r.Add(r.Inv().Transpose()).Mul(0.5)
	}
	return r
}

func (m *MPM) Advance(dt float64) error {
	if !m.built {
		return dynamo.ErrNotBuilt
	}
	n := m.parts.Len()
	if n == 0 {
		return nil
	}
	for i := range m.gm {
		m.gm[i] = 0
		m.gv[i] = Vec3{}
	}
	m.scatter(dt)
	m.updateGrid(dt)
	m.gather(dt)
	m.enforceBounds()
	return m.checkFinite()
}

// scatter transfers particle momentum to the grid. It runs serially so the
// floating point sums are identical between runs.
func (m *MPM) scatter(dt float64) {
	pos, vel, mass := m.parts.Pos, m.parts.Vel, m.parts.Mass
	vol := m.opts.ParticleSize * m.opts.ParticleSize * m.opts.ParticleSize
	scale := -dt * vol * 4 * m.inv * m.inv
	for i := range pos {
		mat := m.materials[m.parts.Mat[i]]
		s := m.stencilAt(pos[i])
		affine := m.kirchhoff(i, mat).Mul(scale).Add(m.C[i].Mul(mass[i]))
		mv := vel[i].Mul(mass[i])
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				for c := 0; c < 3; c++ {
					w := s.w[a][0] * s.w[b][1] * s.w[c][2]
					dpos := Vec3{float64(a) - s.fx[0], float64(b) - s.fx[1], float64(c) - s.fx[2]}.Mul(m.dx)
					k := m.node(s.base[0]+a, s.base[1]+b, s.base[2]+c)
					m.gv[k] = m.gv[k].Add(mv.Add(affine.Mul3x1(dpos)).Mul(w))
					m.gm[k] += w * mass[i]
				}
			}
		}
	}
}

// updateGrid turns momentum into velocity, applies gravity and stops
// outward motion in the two node layers along each wall.
func (m *MPM) updateGrid(dt float64) {
	g := m.env.Gravity.Mul(dt)
	nx, ny := m.dims[0], m.dims[1]
	m.env.Backend.ParallelFor(len(m.gm), func(start, end int) {
		for k := start; k < end; k++ {
			if m.gm[k] <= 0 {
				m.gv[k] = Vec3{}
				continue
			}
			v := m.gv[k].Mul(1 / m.gm[k]).Add(g)
			c := [3]int{k % nx, (k / nx) % ny, k / (nx * ny)}
			for a := 0; a < 3; a++ {
				if c[a] < 2 && v[a] < 0 {
					v[a] = 0
				}
				if c[a] > m.dims[a]-3 && v[a] > 0 {
					v[a] = 0
				}
			}
			m.gv[k] = v
		}
	})
}

func (m *MPM) gather(dt float64) {
	pos, vel := m.parts.Pos, m.parts.Vel
	k4 := 4 * m.inv * m.inv
	m.env.Backend.ParallelFor(len(pos), func(start, end int) {
		for i := start; i < end; i++ {
			s := m.stencilAt(pos[i])
			var nv Vec3
			var nc mgl64.Mat3
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					for c := 0; c < 3; c++ {
						w := s.w[a][0] * s.w[b][1] * s.w[c][2]
						dpos := Vec3{float64(a) - s.fx[0], float64(b) - s.fx[1], float64(c) - s.fx[2]}.Mul(m.dx)
						gv := m.gv[m.node(s.base[0]+a, s.base[1]+b, s.base[2]+c)]
						nv = nv.Add(gv.Mul(w))
						nc = nc.Add(gv.OuterProd3(dpos).Mul(w * k4))
					}
				}
			}
			vel[i] = nv
			pos[i] = pos[i].Add(nv.Mul(dt))
			mat := m.materials[m.parts.Mat[i]]
			switch mat.Model {
			case dynamo.ModelElastic:
				m.F[i] = mgl64.Ident3().Add(nc.Mul(dt)).Mul3(m.F[i])
			case dynamo.ModelSand:
				m.J[i] = math.Min(1, m.J[i]*(1+dt*nc.Trace()))
				nc = nc.Mul(sandShearDamping)
			default:
				m.J[i] *= 1 + dt*nc.Trace()
			}
			m.C[i] = nc
		}
	})
}
