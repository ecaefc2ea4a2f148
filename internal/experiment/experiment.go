// Package experiment turns a scenario config into a scene, its per-step
// emission script and a runner.
package experiment

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/cosim/internal/config"
	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/emitter"
	"github.com/san-kum/cosim/internal/scene"
	"github.com/san-kum/cosim/internal/sim"
)

type Experiment struct {
	cfg      *config.Config
	engine   *dynamo.Engine
	scene    *scene.Scene
	runner   *sim.Runner
	emitters []*emitter.Emitter
}

// New defines the scene described by cfg. Nothing is built yet; errors
// here come from the config itself.
func New(cfg *config.Config, engine *dynamo.Engine) (*Experiment, error) {
	s := scene.New(engine, scene.Options{
		Name:    cfg.Name,
		Sim:     cfg.Sim.Simulation(),
		Domains: cfg.Domains(),
	})

	for i, ec := range cfg.Entities {
		mat, err := ec.Material.Material()
		if err != nil {
			return nil, fmt.Errorf("entity %d (%s): %w", i, ec.Name, err)
		}
		morph, err := ec.Morph.Morph()
		if err != nil {
			return nil, fmt.Errorf("entity %d (%s): %w", i, ec.Name, err)
		}
		if _, err := s.AddEntity(mat, morph, ec.Surface.Surface()); err != nil {
			return nil, err
		}
	}

	e := &Experiment{cfg: cfg, engine: engine, scene: s}
	for i, ec := range cfg.Emitters {
		mat, err := ec.Material.Material()
		if err != nil {
			return nil, fmt.Errorf("emitter %d (%s): %w", i, ec.Name, err)
		}
		em, err := s.AddEmitter(mat, ec.MaxParticles, ec.Surface.Surface())
		if err != nil {
			return nil, fmt.Errorf("emitter %d (%s): %w", i, ec.Name, err)
		}
		e.emitters = append(e.emitters, em)
	}
	for _, cc := range cfg.Cameras {
		if _, err := s.AddCamera(cc.Camera()); err != nil {
			return nil, err
		}
	}

	e.runner = sim.New(s, s.Logger())
	if len(e.emitters) > 0 {
		e.runner.AddScript(e.Script())
	}
	return e, nil
}

// Setup builds the scene and attaches metrics to the runner.
func (e *Experiment) Setup(metrics []sim.Metric) error {
	if err := e.scene.Build(); err != nil {
		return err
	}
	for _, m := range metrics {
		e.runner.AddMetric(m)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.scene.State() == scene.Defining {
		return nil, dynamo.ErrNotBuilt
	}
	return e.runner.Run(ctx, sim.Config{Steps: e.cfg.Steps})
}

func (e *Experiment) Scene() *scene.Scene          { return e.scene }
func (e *Experiment) Runner() *sim.Runner          { return e.runner }
func (e *Experiment) Config() *config.Config       { return e.cfg }
func (e *Experiment) Emitters() []*emitter.Emitter { return e.emitters }

// Script issues every configured emission whose step window covers the
// step about to run.
func (e *Experiment) Script() sim.Script {
	return func(step uint64) error {
		for i, ec := range e.cfg.Emitters {
			for _, req := range ec.Emit {
				if !active(req, step) {
					continue
				}
				dir := direction(req, step)
				pos := dynamo.Vec3{req.Pos[0], req.Pos[1], req.Pos[2]}
				err := e.emitters[i].Emit(pos, dir, req.Speed, emitter.Shape(req.Shape), req.Size...)
				if err != nil {
					return fmt.Errorf("emitter %d (%s): %w", i, ec.Name, err)
				}
			}
		}
		return nil
	}
}

func active(req config.EmitConfig, step uint64) bool {
	if step < uint64(req.From) {
		return false
	}
	return req.Until == 0 || step < uint64(req.Until)
}

func direction(req config.EmitConfig, step uint64) dynamo.Vec3 {
	dir := dynamo.Vec3{req.Dir[0], req.Dir[1], req.Dir[2]}
	if req.SwayPeriod > 0 {
		s := math.Sin(float64(step) / req.SwayPeriod)
		dir = dir.Add(dynamo.Vec3{req.Sway[0], req.Sway[1], req.Sway[2]}.Mul(s))
	}
	return dir
}
