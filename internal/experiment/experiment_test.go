package experiment

import (
	"context"
	"io"
	"math"
	"testing"

	"github.com/san-kum/cosim/internal/config"
	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietEngine(t *testing.T) *dynamo.Engine {
	t.Helper()
	e, err := dynamo.NewEngine(dynamo.EngineOptions{Backend: "serial", LogOut: io.Discard})
	require.NoError(t, err)
	return e
}

func coarseLiquid() *config.Config {
	cfg := config.GetPreset("pbd_liquid")
	cfg.PBD.ParticleSize = 0.05
	cfg.Steps = 20
	return cfg
}

func emitting() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Name = "tap"
	cfg.Steps = 6
	cfg.Sim.Dt = 1e-3
	cfg.SPH = &config.DomainConfig{Upper: [3]float64{1, 1, 1}, ParticleSize: 0.05}
	cfg.Emitters = []config.EmitterConfig{{
		Name:         "tap",
		Material:     config.MaterialConfig{Kind: "sph"},
		MaxParticles: 1000,
		Emit: []config.EmitConfig{{
			Pos: [3]float64{0.5, 0.5, 0.8}, Dir: [3]float64{0, 0, -1}, Speed: 50,
			Shape: "square", Size: []float64{0.2}, Until: 3,
		}},
	}}
	return cfg
}

func TestExperimentRun(t *testing.T) {
	e, err := New(coarseLiquid(), quietEngine(t))
	require.NoError(t, err)
	assert.Equal(t, scene.Defining, e.Scene().State())

	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, dynamo.ErrNotBuilt)

	require.NoError(t, e.Setup(NewRegistry().DefaultMetrics()))
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(20), res.Steps)
	assert.Equal(t, scene.Stopped, e.Scene().State())
	require.NotNil(t, res.Last)
	assert.Equal(t, 128, res.Last.ParticleCount())
	assert.Len(t, res.Last.Cameras, 1)
	assert.InDelta(t, 0.3, res.Metrics["centroid_z"], 1e-3)
	assert.Equal(t, 1.0, res.Metrics["stability"])
}

func TestExperimentEmissionScript(t *testing.T) {
	e, err := New(emitting(), quietEngine(t))
	require.NoError(t, err)
	require.Len(t, e.Emitters(), 1)
	require.NoError(t, e.Setup(nil))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3*16, e.Emitters()[0].Emitted(), "one 4x4 layer per step for steps 0..2")
	d, ok := res.Last.Domain(dynamo.KindSPH)
	require.True(t, ok)
	assert.Len(t, d.Positions, 48)
	for _, o := range d.Owners {
		assert.Equal(t, e.Emitters()[0].ID(), o)
	}
}

func TestExperimentConfigErrors(t *testing.T) {
	cfg := coarseLiquid()
	cfg.Entities[0].Morph.Shape = "mesh"
	_, err := New(cfg, quietEngine(t))
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)

	cfg = emitting()
	cfg.Emitters[0].MaxParticles = 0
	_, err = New(cfg, quietEngine(t))
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)

	cfg = coarseLiquid()
	cfg.Sim.Substeps = 0
	e, err := New(cfg, quietEngine(t))
	require.NoError(t, err)
	assert.ErrorIs(t, e.Setup(nil), dynamo.ErrConfiguration)

	cfg = emitting()
	cfg.Emitters[0].Emit[0].Shape = "triangle"
	e, err = New(cfg, quietEngine(t))
	require.NoError(t, err)
	require.NoError(t, e.Setup(nil))
	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)
}

func TestEmitWindowAndSway(t *testing.T) {
	req := config.EmitConfig{Dir: [3]float64{0, 0, -1}, From: 2, Until: 5, Sway: [3]float64{0, 0.35, 0}, SwayPeriod: 10}
	for step, want := range []bool{false, false, true, true, true, false} {
		assert.Equal(t, want, active(req, uint64(step)), "step %d", step)
	}
	assert.True(t, active(config.EmitConfig{}, 1e6), "no window means always")

	d := direction(req, 5)
	assert.InDelta(t, 0.35*math.Sin(0.5), d[1], 1e-12)
	assert.Equal(t, -1.0, d[2])

	req.SwayPeriod = 0
	assert.Equal(t, dynamo.Vec3{0, 0, -1}, direction(req, 5))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"absorbed_per_frame", "centroid_z", "kinetic", "peak_speed", "stability"}, r.ListMetrics())

	ms, err := r.GetMetrics([]string{"kinetic", "stability"})
	require.NoError(t, err)
	assert.Equal(t, "kinetic", ms[0].Name())
	assert.Equal(t, "stability", ms[1].Name())

	_, err = r.GetMetric("energy")
	assert.Error(t, err)
	_, err = r.GetMetrics([]string{"kinetic", "nope"})
	assert.Error(t, err)
}
