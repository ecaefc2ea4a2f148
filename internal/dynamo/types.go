package dynamo

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type Vec3 = mgl64.Vec3

// DomainKind selects which solver owns an entity or particle.
type DomainKind uint8

const (
	KindMPM DomainKind = iota
	KindPBD
	KindSPH
	KindRigid
)

// Kinds lists every domain in the fixed advance order.
var Kinds = []DomainKind{KindMPM, KindPBD, KindSPH, KindRigid}

func (k DomainKind) String() string {
	switch k {
	case KindMPM:
		return "mpm"
	case KindPBD:
		return "pbd"
	case KindSPH:
		return "sph"
	case KindRigid:
		return "rigid"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind is the inverse of String.
func ParseKind(s string) (DomainKind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, &ConfigError{Field: "kind", Reason: fmt.Sprintf("unknown domain %q", s)}
}

// IsParticle reports whether the domain stores particles.
func (k DomainKind) IsParticle() bool { return k != KindRigid }

// ID identifies an entity or emitter. Both share one counter per scene.
type ID int32

// NoOwner marks a particle without a source.
const NoOwner ID = -1

type SimulationConfig struct {
	Dt       float64
	Substeps int
	Gravity  Vec3
	// MaxCouplingSpeed bounds the particle speed a coupling pass may produce.
	MaxCouplingSpeed float64
}

const (
	DefaultDt               = 1e-2
	DefaultSubsteps         = 1
	DefaultMaxCouplingSpeed = 50.0
)

func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Dt:               DefaultDt,
		Substeps:         DefaultSubsteps,
		Gravity:          Vec3{0, 0, -9.81},
		MaxCouplingSpeed: DefaultMaxCouplingSpeed,
	}
}

// SubDt is the integration timestep handed to every solver.
func (c SimulationConfig) SubDt() float64 {
	return c.Dt / float64(c.Substeps)
}

func (c SimulationConfig) Validate() error {
	if !(c.Dt > 0) || math.IsInf(c.Dt, 0) {
		return &ConfigError{Field: "dt", Reason: fmt.Sprintf("must be positive, got %g", c.Dt)}
	}
	if c.Substeps < 1 {
		return &ConfigError{Field: "substeps", Reason: fmt.Sprintf("must be >= 1, got %d", c.Substeps)}
	}
	if !finite(c.Gravity) {
		return &ConfigError{Field: "gravity", Reason: "must be finite"}
	}
	if !(c.MaxCouplingSpeed > 0) {
		return &ConfigError{Field: "max_coupling_speed", Reason: fmt.Sprintf("must be positive, got %g", c.MaxCouplingSpeed)}
	}
	return nil
}

// Bounds is an axis-aligned box with Lower < Upper on every axis.
type Bounds struct {
	Lower, Upper Vec3
}

func (b Bounds) Validate() error {
	if !finite(b.Lower) || !finite(b.Upper) {
		return &ConfigError{Field: "bounds", Reason: "must be finite"}
	}
	for i := 0; i < 3; i++ {
		if !(b.Lower[i] < b.Upper[i]) {
			return &ConfigError{Field: "bounds", Reason: fmt.Sprintf("lower %v must be below upper %v on every axis", b.Lower, b.Upper)}
		}
	}
	return nil
}

func (b Bounds) Extent() Vec3 { return b.Upper.Sub(b.Lower) }

func (b Bounds) Center() Vec3 { return b.Lower.Add(b.Upper).Mul(0.5) }

func (b Bounds) Contains(p Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Lower[i] || p[i] > b.Upper[i] {
			return false
		}
	}
	return true
}

func (b Bounds) Overlaps(o Bounds) bool {
	for i := 0; i < 3; i++ {
		if b.Upper[i] < o.Lower[i] || o.Upper[i] < b.Lower[i] {
			return false
		}
	}
	return true
}

// Intersect returns the common box; ok is false when the boxes are disjoint.
func (b Bounds) Intersect(o Bounds) (Bounds, bool) {
	var r Bounds
	for i := 0; i < 3; i++ {
		r.Lower[i] = math.Max(b.Lower[i], o.Lower[i])
		r.Upper[i] = math.Min(b.Upper[i], o.Upper[i])
		if r.Lower[i] > r.Upper[i] {
			return Bounds{}, false
		}
	}
	return r, true
}

func (b Bounds) Inflate(d float64) Bounds {
	off := Vec3{d, d, d}
	return Bounds{Lower: b.Lower.Sub(off), Upper: b.Upper.Add(off)}
}

// Union grows b to cover o.
func (b Bounds) Union(o Bounds) Bounds {
	for i := 0; i < 3; i++ {
		b.Lower[i] = math.Min(b.Lower[i], o.Lower[i])
		b.Upper[i] = math.Max(b.Upper[i], o.Upper[i])
	}
	return b
}

// ClampInside moves p into the box shrunk by margin. The returned mask has
// bit i set when axis i was clamped at the lower face and bit i+3 when it was
// clamped at the upper face.
func (b Bounds) ClampInside(p Vec3, margin float64) (Vec3, uint8) {
	var mask uint8
	for i := 0; i < 3; i++ {
		lo, hi := b.Lower[i]+margin, b.Upper[i]-margin
		if lo > hi {
			lo, hi = b.Center()[i], b.Center()[i]
		}
		if p[i] < lo {
			p[i] = lo
			mask |= 1 << i
		} else if p[i] > hi {
			p[i] = hi
			mask |= 1 << (i + 3)
		}
	}
	return p, mask
}

func finite(v Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Finite reports whether every component of v is a real number.
func Finite(v Vec3) bool { return finite(v) }
