package sim_test

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/physics"
	"github.com/san-kum/cosim/internal/scene"
	"github.com/san-kum/cosim/internal/sim"
	"github.com/san-kum/cosim/internal/snapshot"
)

const throughputSteps = 400

// splash is a small SPH block falling in a unit box.
func splash(t *testing.T) *sim.Runner {
	t.Helper()
	engine, err := dynamo.NewEngine(dynamo.EngineOptions{Backend: "serial", LogOut: io.Discard})
	if err != nil {
		t.Fatal(err)
	}
	cfg := dynamo.DefaultSimulationConfig()
	cfg.Dt, cfg.Substeps = 1e-3, 1
	s := scene.New(engine, scene.Options{Name: "splash", Sim: cfg, Domains: map[dynamo.DomainKind]physics.Options{
		dynamo.KindSPH: {Bounds: dynamo.Bounds{Upper: dynamo.Vec3{1, 1, 1}}, ParticleSize: 0.05},
	}})
	mat := dynamo.NewMaterial(dynamo.KindSPH, dynamo.ModelLiquid)
	if _, err := s.AddEntity(mat, dynamo.BoxFromCorners(dynamo.Vec3{0.3, 0.3, 0.1}, dynamo.Vec3{0.5, 0.5, 0.3}), dynamo.DefaultSurface()); err != nil {
		t.Fatal(err)
	}
	if err := s.Build(); err != nil {
		t.Fatal(err)
	}
	return sim.New(s, nil)
}

func stepsPerSecond(t *testing.T, r *sim.Runner) float64 {
	t.Helper()
	res, err := r.Run(context.Background(), sim.Config{Steps: throughputSteps})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Steps != throughputSteps {
		t.Fatalf("expected %d steps, got %d", throughputSteps, res.Steps)
	}
	return res.StepsPerSecond()
}

func TestReaderDoesNotSlowStepping(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	stepsPerSecond(t, splash(t))
	alone := stepsPerSecond(t, splash(t))

	r := splash(t)
	var frames atomic.Int64
	r.AddConsumer(func(ctx context.Context, pub *snapshot.Publisher) error {
		var gen uint64
		for {
			f, err := pub.Next(ctx, gen)
			if err != nil {
				return nil
			}
			gen = f.Generation
			frames.Add(1)
			time.Sleep(5 * time.Millisecond)
		}
	})
	watched := stepsPerSecond(t, r)

	if watched < 0.5*alone {
		t.Errorf("stepping slowed by reader: %.0f steps/s watched, %.0f alone", watched, alone)
	}
	if n := frames.Load(); n >= throughputSteps {
		t.Errorf("reader saw %d frames, expected it to skip", n)
	}
}
