package physics

import (
	"math/rand"

	"github.com/charmbracelet/log"
	"github.com/san-kum/cosim/internal/compute"
	"github.com/san-kum/cosim/internal/dynamo"
)

type Vec3 = dynamo.Vec3

// Solver integrates one domain. It has no knowledge of other domains.
type Solver interface {
	Kind() dynamo.DomainKind
	Bounds() dynamo.Bounds
	// Advance integrates exactly one substep of interior physics.
	Advance(dt float64) error
	BoundaryQuery(p Vec3) Boundary
	// ApplyExternalImpulse adds momentum to the listed particles or bodies.
	ApplyExternalImpulse(indices []int, impulses []Vec3)
}

// Domain is a Solver together with its build-time contract.
type Domain interface {
	Solver
	AddEntity(e *dynamo.Entity) error
	RegisterMaterial(m dynamo.Material) uint16
	Build() error
	Built() bool
	Counters() dynamo.Counters
	// CouplingEnabled reports whether any material in the domain asks for coupling.
	CouplingEnabled() bool
}

// ParticleSolver is implemented by the MPM, PBD and SPH domains.
type ParticleSolver interface {
	Domain
	Particles() *Particles
	Spacing() float64
	MaterialAt(i int) dynamo.Material
	// Neighbors calls fn for every particle within r of p.
	Neighbors(p Vec3, r float64, fn func(j int))
	Spawn(req SpawnRequest) (int, error)
}

// BodySolver is implemented by the rigid domain.
type BodySolver interface {
	Domain
	NumBodies() int
	Body(i int) *Body
}

// Boundary is the answer to a boundary query: signed distance to the
// nearest surface of the domain, negative inside, with its outward normal.
type Boundary struct {
	Distance float64
	Normal   Vec3
	// Index is the particle or body that produced the answer.
	Index int
	OK    bool
}

type SpawnRequest struct {
	Owner    dynamo.ID
	Material dynamo.Material
	Points   []Vec3
	Vel      Vec3
	Step     uint64
}

// Env carries what a solver borrows from its scene.
type Env struct {
	Gravity Vec3
	Backend compute.Backend
	Rand    *rand.Rand
	Logger  *log.Logger
}

// Options configures one domain. Zero fields take defaults at Build.
type Options struct {
	Bounds       dynamo.Bounds
	ParticleSize float64
	// GridDensity is the MPM grid resolution in cells per unit length.
	GridDensity float64
	// DensityIterations bounds the PBD constraint solve.
	DensityIterations   int
	ViscosityIterations int
}

const (
	DefaultParticleSize        = 0.02
	DefaultGridDensity         = 64
	DefaultDensityIterations   = 10
	DefaultViscosityIterations = 1
)

func (o Options) withDefaults(kind dynamo.DomainKind) Options {
	if o.GridDensity == 0 {
		o.GridDensity = DefaultGridDensity
	}
	if o.ParticleSize == 0 {
		o.ParticleSize = DefaultParticleSize
		if kind == dynamo.KindMPM {
			o.ParticleSize = 0.5 / o.GridDensity
		}
	}
	if o.DensityIterations == 0 {
		o.DensityIterations = DefaultDensityIterations
	}
	if o.ViscosityIterations == 0 {
		o.ViscosityIterations = DefaultViscosityIterations
	}
	return o
}

func (o Options) Validate(kind dynamo.DomainKind) error {
	if err := o.Bounds.Validate(); err != nil {
		return &dynamo.ConfigError{Field: kind.String() + ".bounds", Reason: "lower must be below upper on every axis"}
	}
	if !(o.ParticleSize > 0) {
		return &dynamo.ConfigError{Field: kind.String() + ".particle_size", Reason: "must be positive"}
	}
	if kind == dynamo.KindMPM && !(o.GridDensity > 0) {
		return &dynamo.ConfigError{Field: "mpm.grid_density", Reason: "must be positive"}
	}
	if o.DensityIterations < 0 || o.ViscosityIterations < 0 {
		return &dynamo.ConfigError{Field: kind.String() + ".iterations", Reason: "must be >= 0"}
	}
	return nil
}

// New constructs the solver for a kind.
func New(kind dynamo.DomainKind, opts Options, env Env) Domain {
	switch kind {
	case dynamo.KindMPM:
		return NewMPM(opts, env)
	case dynamo.KindPBD:
		return NewPBD(opts, env)
	case dynamo.KindSPH:
		return NewSPH(opts, env)
	default:
		return NewRigid(opts, env)
	}
}
