package scene

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/san-kum/cosim/internal/capture"
	"github.com/san-kum/cosim/internal/coupling"
	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/emitter"
	"github.com/san-kum/cosim/internal/physics"
	"github.com/san-kum/cosim/internal/snapshot"
)

type State int32

const (
	Defining State = iota
	Built
	Stepping
	Stopped
)

func (s State) String() string {
	switch s {
	case Defining:
		return "defining"
	case Built:
		return "built"
	case Stepping:
		return "stepping"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Options configures a scene. A particle domain is active when its options
// are given or when an entity or emitter needs it; in the second case its
// options must still name bounds.
type Options struct {
	Name    string
	Sim     dynamo.SimulationConfig
	Domains map[dynamo.DomainKind]physics.Options
	// Registry overrides the coupling resolvers.
	Registry *coupling.Registry
}

type Scene struct {
	name     string
	engine   *dynamo.Engine
	cfg      dynamo.SimulationConfig
	opts     map[dynamo.DomainKind]physics.Options
	registry *coupling.Registry
	logger   *log.Logger
	rng      *rand.Rand

	nextID   dynamo.ID
	entities []*dynamo.Entity
	emitters []*emitter.Emitter
	cameras  []capture.Camera
	surfaces map[dynamo.ID]dynamo.Surface

	domains []physics.Domain
	byKind  map[dynamo.DomainKind]physics.Domain
	bridge  *coupling.Bridge

	pub      *snapshot.Publisher
	state    atomic.Int32
	stopReq  atomic.Bool
	stopOnce sync.Once
	step     uint64
	done     atomic.Uint64
	time     float64
	reported dynamo.Counters
}

func New(engine *dynamo.Engine, opts Options) *Scene {
	if opts.Name == "" {
		opts.Name = "scene"
	}
	if opts.Registry == nil {
		opts.Registry = coupling.DefaultRegistry()
	}
	domains := make(map[dynamo.DomainKind]physics.Options, len(opts.Domains))
	for k, v := range opts.Domains {
		domains[k] = v
	}
	return &Scene{
		name:     opts.Name,
		engine:   engine,
		cfg:      opts.Sim,
		opts:     domains,
		registry: opts.Registry,
		logger:   engine.Logger.With("scene", opts.Name),
		rng:      engine.Rand(),
		surfaces: make(map[dynamo.ID]dynamo.Surface),
		byKind:   make(map[dynamo.DomainKind]physics.Domain),
		pub:      snapshot.NewPublisher(),
	}
}

func (s *Scene) Name() string                           { return s.name }
func (s *Scene) State() State                           { return State(s.state.Load()) }
func (s *Scene) Config() dynamo.SimulationConfig        { return s.cfg }
func (s *Scene) Publisher() *snapshot.Publisher         { return s.pub }
func (s *Scene) Emitters() []*emitter.Emitter           { return s.emitters }
func (s *Scene) Entities() []*dynamo.Entity             { return s.entities }
func (s *Scene) Cameras() []capture.Camera              { return s.cameras }
func (s *Scene) Bridge() *coupling.Bridge               { return s.bridge }
func (s *Scene) Logger() *log.Logger                    { return s.logger }
func (s *Scene) Surfaces() map[dynamo.ID]dynamo.Surface { return s.surfaces }

// StepIndex is the number of completed outer steps.
func (s *Scene) StepIndex() uint64 { return s.done.Load() }

func (s *Scene) Time() float64 { return s.time }

func (s *Scene) Domain(k dynamo.DomainKind) (physics.Domain, bool) {
	d, ok := s.byKind[k]
	return d, ok
}

func (s *Scene) defining() error {
	switch s.State() {
	case Defining:
		return nil
	case Stopped:
		return dynamo.ErrStopped
	default:
		return dynamo.ErrAlreadyBuilt
	}
}

func (s *Scene) allocID() dynamo.ID {
	id := s.nextID
	s.nextID++
	return id
}

// AddEntity records an entity. Its morph and material are checked at Build.
func (s *Scene) AddEntity(mat dynamo.Material, morph dynamo.Morph, surf dynamo.Surface) (*dynamo.Entity, error) {
	if err := s.defining(); err != nil {
		return nil, err
	}
	e := dynamo.NewEntity(s.allocID(), mat, morph, surf)
	s.entities = append(s.entities, e)
	s.surfaces[e.ID()] = surf
	return e, nil
}

func (s *Scene) AddEmitter(mat dynamo.Material, maxParticles int, surf dynamo.Surface) (*emitter.Emitter, error) {
	if err := s.defining(); err != nil {
		return nil, err
	}
	e, err := emitter.New(s.nextID, mat, maxParticles)
	if err != nil {
		return nil, err
	}
	s.allocID()
	s.emitters = append(s.emitters, e)
	s.surfaces[e.ID()] = surf
	return e, nil
}

// AddCamera returns the camera's index in published frames.
func (s *Scene) AddCamera(c capture.Camera) (int, error) {
	if err := s.defining(); err != nil {
		return 0, err
	}
	s.cameras = append(s.cameras, c)
	return len(s.cameras) - 1, nil
}

func (s *Scene) activeKinds() map[dynamo.DomainKind]bool {
	active := map[dynamo.DomainKind]bool{}
	for k := range s.opts {
		active[k] = true
	}
	for _, e := range s.entities {
		active[e.Material().Kind] = true
	}
	for _, e := range s.emitters {
		active[e.Material().Kind] = true
	}
	return active
}

// Build moves the scene from Defining to Built. On error the scene stays
// in Defining with nothing allocated.
func (s *Scene) Build() error {
	if err := s.defining(); err != nil {
		return err
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	for i, c := range s.cameras {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("camera %d: %w", i, err)
		}
	}

	env := physics.Env{
		Gravity: s.cfg.Gravity,
		Backend: s.engine.Backend,
		Rand:    s.rng,
		Logger:  s.logger,
	}
	active := s.activeKinds()
	var domains []physics.Domain
	byKind := make(map[dynamo.DomainKind]physics.Domain)
	for _, k := range dynamo.Kinds {
		if !active[k] {
			continue
		}
		opts, ok := s.opts[k]
		if !ok && k.IsParticle() {
			return &dynamo.ConfigError{Field: k.String() + ".bounds", Reason: "domain is used but has no bounds"}
		}
		d := physics.New(k, opts, env)
		domains = append(domains, d)
		byKind[k] = d
	}

	for _, e := range s.entities {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entity %d: %w", e.ID(), err)
		}
		if err := byKind[e.Material().Kind].AddEntity(e); err != nil {
			return fmt.Errorf("entity %d: %w", e.ID(), err)
		}
	}
	for _, e := range s.emitters {
		ps, ok := byKind[e.Material().Kind].(physics.ParticleSolver)
		if !ok {
			return &dynamo.ConfigError{Field: "emitter.material", Reason: "emitters need a particle domain"}
		}
		e.Bind(ps, s.rng)
	}
	for _, d := range domains {
		if err := d.Build(); err != nil {
			return fmt.Errorf("build %s: %w", d.Kind(), err)
		}
	}

	s.domains, s.byKind = domains, byKind
	s.bridge = coupling.NewBridge(domains, s.registry, s.cfg.MaxCouplingSpeed)
	s.state.Store(int32(Built))

	s.logger.Info("scene built",
		"domains", len(domains),
		"entities", len(s.entities),
		"emitters", len(s.emitters),
		"pairs", len(s.bridge.Pairs()),
		"particles", s.particleCount(),
		"dt", s.cfg.Dt,
		"substeps", s.cfg.Substeps,
		"backend", s.engine.Backend.Name(),
	)
	if err := s.pub.Publish(s.frame()); err != nil {
		return err
	}
	return nil
}

func (s *Scene) particleCount() int {
	n := 0
	for _, d := range s.domains {
		if ps, ok := d.(physics.ParticleSolver); ok {
			n += ps.Particles().Len()
		}
	}
	return n
}

// Step runs one outer step and publishes its frame.
func (s *Scene) Step() error {
	switch s.State() {
	case Defining:
		return dynamo.ErrNotBuilt
	case Stopped:
		return dynamo.ErrStopped
	}
	s.state.CompareAndSwap(int32(Built), int32(Stepping))

	sub := s.cfg.SubDt()
	for k := 0; k < s.cfg.Substeps; k++ {
		if s.stopReq.Load() {
			s.halt("stop requested")
			return dynamo.ErrStopped
		}
		t := s.time + float64(k)*sub
		if k == 0 {
			for _, e := range s.emitters {
				if e.Pending() == 0 {
					continue
				}
				if _, err := e.Inject(s.cfg.Dt, s.step); err != nil {
					return s.fail(e.Material().Kind, t, err)
				}
			}
		}
		for _, d := range s.domains {
			if err := d.Advance(sub); err != nil {
				return s.fail(d.Kind(), t, err)
			}
		}
		s.bridge.Resolve(sub)
	}

	s.step++
	s.done.Store(s.step)
	s.time = float64(s.step) * s.cfg.Dt
	if err := s.pub.Publish(s.frame()); err != nil {
		s.halt("stop requested")
		return dynamo.ErrStopped
	}
	s.report()
	return nil
}

func (s *Scene) fail(k dynamo.DomainKind, t float64, err error) error {
	serr := &dynamo.SimulationError{Domain: k, Step: s.step, Time: t, Wrapped: err}
	s.logger.Error("simulation failed", "err", serr)
	s.halt("error")
	return serr
}

// report logs absorbed conditions when their counts move.
func (s *Scene) report() {
	c := s.Counters()
	if c.Absorbed() == s.reported.Absorbed() {
		return
	}
	s.logger.Debug("absorbed conditions",
		"step", s.step,
		"emission_refused", c.EmissionRefused,
		"spawn_dropped", c.SpawnDropped,
		"bounds_clamped", c.BoundsClamped,
		"coupling_degenerate", c.CouplingDegenerate,
		"velocity_clamped", c.VelocityClamped,
	)
	s.reported = c
}

// Stop is safe to call from any goroutine, any number of times. A step in
// progress finishes its current substep and publishes nothing.
func (s *Scene) Stop() {
	s.stopReq.Store(true)
	s.pub.Close()
	if st := s.State(); st == Defining || st == Built {
		s.halt("stopped")
	}
}

func (s *Scene) halt(reason string) {
	s.stopOnce.Do(func() {
		s.state.Store(int32(Stopped))
		s.pub.Close()
		s.logger.Info("scene stopped", "reason", reason, "step", s.StepIndex())
	})
}

// Counters sums the diagnostics of every domain, the bridge and the
// emitters.
func (s *Scene) Counters() dynamo.Counters {
	var c dynamo.Counters
	for _, d := range s.domains {
		c.Add(d.Counters())
	}
	if s.bridge != nil {
		c.Add(s.bridge.Counters())
	}
	for _, e := range s.emitters {
		c.Add(e.Counters())
	}
	return c
}
