package coupling

import (
	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/physics"
)

// Side is one participant of a pair: the domain and its position in the
// bridge's domain list.
type Side struct {
	Index  int
	Domain physics.Domain
}

// Resolver finds the contacts between two domains and records them on the
// pass. It never fails: anything it cannot resolve is skipped and counted.
type Resolver func(p *Pass, a, b Side)

type kindPair [2]dynamo.DomainKind

type entry struct {
	fn   Resolver
	swap bool
}

// Registry maps an unordered pair of domain kinds to its resolver.
type Registry struct {
	m map[kindPair]entry
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[kindPair]entry)}
}

// Register installs fn for (a, b). Lookups of (b, a) get the same resolver
// with the sides swapped back into (a, b) order.
func (r *Registry) Register(a, b dynamo.DomainKind, fn Resolver) {
	r.m[kindPair{a, b}] = entry{fn: fn}
	if a != b {
		r.m[kindPair{b, a}] = entry{fn: fn, swap: true}
	}
}

// Lookup returns the resolver for (a, b) and whether the caller must pass
// its arguments in reverse order.
func (r *Registry) Lookup(a, b dynamo.DomainKind) (Resolver, bool, bool) {
	e, ok := r.m[kindPair{a, b}]
	return e.fn, e.swap, ok
}

func (r *Registry) Len() int { return len(r.m) }

// DefaultRegistry pairs the rigid domain with every particle domain and the
// particle domains with each other.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, k := range []dynamo.DomainKind{dynamo.KindMPM, dynamo.KindPBD, dynamo.KindSPH} {
		r.Register(dynamo.KindRigid, k, RigidParticle)
	}
	r.Register(dynamo.KindMPM, dynamo.KindPBD, ParticleParticle)
	r.Register(dynamo.KindMPM, dynamo.KindSPH, ParticleParticle)
	r.Register(dynamo.KindPBD, dynamo.KindSPH, ParticleParticle)
	return r
}
