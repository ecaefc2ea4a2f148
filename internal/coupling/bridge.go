package coupling

import (
	"math"

	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/physics"
)

// Pair is one coupled domain pair, fixed when the bridge is built.
type Pair struct {
	A, B    Side
	Region  dynamo.Bounds
	resolve Resolver
}

// Kinds reports the pair's domain kinds in resolution order.
func (p Pair) Kinds() (dynamo.DomainKind, dynamo.DomainKind) {
	return p.A.Domain.Kind(), p.B.Domain.Kind()
}

// sideBuf is the per-domain scratch of one pass.
type sideBuf struct {
	dv      []Vec3
	imp     []Vec3
	limit   []float64
	alpha   []float64
	seen    []bool
	touched []int
}

func (s *sideBuf) touch(i int, n int) {
	if len(s.seen) < n {
		grow := n + n/2
		s.dv = append(s.dv, make([]Vec3, grow-len(s.dv))...)
		s.imp = append(s.imp, make([]Vec3, grow-len(s.imp))...)
		s.limit = append(s.limit, make([]float64, grow-len(s.limit))...)
		s.alpha = append(s.alpha, make([]float64, grow-len(s.alpha))...)
		s.seen = append(s.seen, make([]bool, grow-len(s.seen))...)
	}
	if !s.seen[i] {
		s.seen[i] = true
		s.dv[i], s.imp[i] = Vec3{}, Vec3{}
		s.alpha[i] = 1
		s.touched = append(s.touched, i)
	}
}

func (s *sideBuf) clear() {
	for _, i := range s.touched {
		s.seen[i] = false
	}
	s.touched = s.touched[:0]
}

// Bridge runs the coupling pass between the domains of one scene.
type Bridge struct {
	domains  []physics.Domain
	pairs    []Pair
	maxSpeed float64
	pass     Pass
	bufs     []sideBuf
	counters dynamo.Counters
}

// NewBridge fixes the pair list. Pairs follow the order of domains, which
// is the scene's solver order, so every run resolves them identically.
func NewBridge(domains []physics.Domain, reg *Registry, maxSpeed float64) *Bridge {
	b := &Bridge{
		domains:  domains,
		maxSpeed: maxSpeed,
		pass:     Pass{Law: Law{Beta: DefaultBeta}},
		bufs:     make([]sideBuf, len(domains)),
	}
	for i := 0; i < len(domains); i++ {
		for j := i + 1; j < len(domains); j++ {
			da, db := domains[i], domains[j]
			fn, swap, ok := reg.Lookup(da.Kind(), db.Kind())
			if !ok {
				continue
			}
			if !da.CouplingEnabled() && !db.CouplingEnabled() {
				continue
			}
			region, ok := da.Bounds().Intersect(db.Bounds())
			if !ok {
				continue
			}
			a, c := Side{Index: i, Domain: da}, Side{Index: j, Domain: db}
			if swap {
				a, c = c, a
			}
			b.pairs = append(b.pairs, Pair{A: a, B: c, Region: region.Inflate(band(da, db)), resolve: fn})
		}
	}
	return b
}

func band(domains ...physics.Domain) float64 {
	w := 0.0
	for _, d := range domains {
		if ps, ok := d.(physics.ParticleSolver); ok {
			w = math.Max(w, 0.5*ps.Spacing())
		}
	}
	return w
}

func (b *Bridge) Pairs() []Pair { return b.pairs }

func (b *Bridge) Counters() dynamo.Counters { return b.counters }

// SetLaw replaces the contact law.
func (b *Bridge) SetLaw(l Law) { b.pass.Law = l }

// Resolve runs one coupling pass. It never fails; degenerate contacts are
// skipped and counted.
func (b *Bridge) Resolve(dt float64) {
	if len(b.pairs) == 0 {
		return
	}
	b.pass.reset(dt)
	for _, pr := range b.pairs {
		b.pass.Region = pr.Region
		pr.resolve(&b.pass, pr.A, pr.B)
	}
	b.counters.Add(b.pass.counters)
	contacts := b.pass.contacts
	if len(contacts) == 0 {
		return
	}
	b.counters.Contacts += uint64(len(contacts))

	// velocity change each particle would see from all of its contacts
	for _, c := range contacts {
		b.accumulate(c.a, c.j)
		b.accumulate(c.b, c.j.Mul(-1))
	}
	for d := range b.domains {
		ps, ok := b.domains[d].(physics.ParticleSolver)
		if !ok {
			continue
		}
		buf := &b.bufs[d]
		vel := ps.Particles().Vel
		for _, i := range buf.touched {
			buf.limit[i] = math.Max(b.maxSpeed, vel[i].Len())
			buf.alpha[i] = speedScale(vel[i], buf.dv[i], buf.limit[i])
			if buf.alpha[i] < 1 {
				b.counters.VelocityClamped++
			}
		}
	}

	for _, c := range contacts {
		s := math.Min(b.alphaOf(c.a), b.alphaOf(c.b))
		j := c.j.Mul(s)
		b.bufs[c.a.dom].imp[c.a.idx] = b.bufs[c.a.dom].imp[c.a.idx].Add(j)
		if !b.isFixed(c.b) {
			b.bufs[c.b.dom].imp[c.b.idx] = b.bufs[c.b.dom].imp[c.b.idx].Sub(j)
		}
	}

	for d, dom := range b.domains {
		buf := &b.bufs[d]
		if len(buf.touched) == 0 {
			continue
		}
		imps := make([]Vec3, len(buf.touched))
		for k, i := range buf.touched {
			imps[k] = buf.imp[i]
		}
		dom.ApplyExternalImpulse(buf.touched, imps)
		if ps, ok := dom.(physics.ParticleSolver); ok {
			b.clampSpeeds(ps, buf)
		}
		buf.clear()
	}
}

func (b *Bridge) accumulate(r ref, j Vec3) {
	buf := &b.bufs[r.dom]
	if r.body {
		bs := b.domains[r.dom].(physics.BodySolver)
		buf.touch(r.idx, bs.NumBodies())
		return
	}
	ps := b.domains[r.dom].(physics.ParticleSolver)
	buf.touch(r.idx, ps.Particles().Len())
	buf.dv[r.idx] = buf.dv[r.idx].Add(j.Mul(1 / ps.Particles().Mass[r.idx]))
}

func (b *Bridge) alphaOf(r ref) float64 {
	if r.body {
		return 1
	}
	return b.bufs[r.dom].alpha[r.idx]
}

func (b *Bridge) isFixed(r ref) bool {
	if !r.body {
		return false
	}
	return b.domains[r.dom].(physics.BodySolver).Body(r.idx).Fixed()
}

// clampSpeeds is the stability guard: whatever the contacts summed to, no
// particle leaves the pass faster than its limit.
func (b *Bridge) clampSpeeds(ps physics.ParticleSolver, buf *sideBuf) {
	vel := ps.Particles().Vel
	for _, i := range buf.touched {
		s := vel[i].Len()
		if s > buf.limit[i]*(1+1e-9) {
			vel[i] = vel[i].Mul(buf.limit[i] / s)
			// scaled contacts were already counted
			if buf.alpha[i] == 1 {
				b.counters.VelocityClamped++
			}
		}
	}
}

// speedScale returns the largest a in [0,1] with |v + a*dv| <= limit.
// It assumes |v| <= limit.
func speedScale(v, dv Vec3, limit float64) float64 {
	if v.Add(dv).Len() <= limit {
		return 1
	}
	qa := dv.LenSqr()
	if qa == 0 {
		return 1
	}
	qb := 2 * v.Dot(dv)
	qc := v.LenSqr() - limit*limit
	disc := qb*qb - 4*qa*qc
	if disc < 0 {
		return 0
	}
	a := (-qb + math.Sqrt(disc)) / (2 * qa)
	return math.Max(0, math.Min(1, a))
}
