package config

import (
	"fmt"

	"github.com/san-kum/cosim/internal/capture"
	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/physics"
)

func vec(a [3]float64) dynamo.Vec3 { return dynamo.Vec3{a[0], a[1], a[2]} }

func (s SimConfig) Simulation() dynamo.SimulationConfig {
	return dynamo.SimulationConfig{
		Dt:               s.Dt,
		Substeps:         s.Substeps,
		Gravity:          vec(s.Gravity),
		MaxCouplingSpeed: s.MaxCouplingSpeed,
	}
}

func (d DomainConfig) Options() physics.Options {
	return physics.Options{
		Bounds:              dynamo.Bounds{Lower: vec(d.Lower), Upper: vec(d.Upper)},
		ParticleSize:        d.ParticleSize,
		GridDensity:         d.GridDensity,
		DensityIterations:   d.DensityIterations,
		ViscosityIterations: d.ViscosityIterations,
	}
}

// Domains returns the options of every configured domain.
func (c *Config) Domains() map[dynamo.DomainKind]physics.Options {
	out := map[dynamo.DomainKind]physics.Options{}
	for k, d := range map[dynamo.DomainKind]*DomainConfig{
		dynamo.KindMPM:   c.MPM,
		dynamo.KindPBD:   c.PBD,
		dynamo.KindSPH:   c.SPH,
		dynamo.KindRigid: c.Rigid,
	} {
		if d != nil {
			out[k] = d.Options()
		}
	}
	return out
}

// Material resolves the overrides against the defaults. An empty kind
// means a rigid material.
func (m MaterialConfig) Material() (dynamo.Material, error) {
	if m.Kind == "" {
		m.Kind = dynamo.KindRigid.String()
	}
	kind, err := dynamo.ParseKind(m.Kind)
	if err != nil {
		return dynamo.Material{}, err
	}
	model := dynamo.Model(m.Model)
	if model == "" {
		model = dynamo.ModelLiquid
		if kind == dynamo.KindRigid {
			model = dynamo.ModelRigid
		}
	}
	mat := dynamo.NewMaterial(kind, model)
	if m.Sampler != "" {
		mat.Sampler = dynamo.Sampler(m.Sampler)
	}
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&mat.Rho, m.Rho)
	set(&mat.E, m.E)
	set(&mat.Nu, m.Nu)
	set(&mat.Stiffness, m.Stiffness)
	set(&mat.Viscosity, m.Viscosity)
	set(&mat.DensityRelaxation, m.DensityRelaxation)
	set(&mat.ViscosityRelaxation, m.ViscosityRelaxation)
	set(&mat.CouplingFriction, m.CouplingFriction)
	set(&mat.CouplingSoftness, m.CouplingSoftness)
	if m.NeedsCoupling != nil {
		mat.NeedsCoupling = *m.NeedsCoupling
	}
	return mat, mat.Validate()
}

func (m MorphConfig) Morph() (dynamo.Morph, error) {
	var shape dynamo.Shape
	switch m.Shape {
	case "box":
		if m.Lower != nil && m.Upper != nil {
			morph := dynamo.BoxFromCorners(vec(*m.Lower), vec(*m.Upper))
			morph.Euler, morph.Fixed = vec(m.Euler), m.Fixed
			return morph, morph.Validate()
		}
		shape = dynamo.Box{Size: vec(m.Size)}
	case "sphere":
		shape = dynamo.Sphere{Radius: m.Radius}
	case "cylinder":
		shape = dynamo.Cylinder{Radius: m.Radius, Height: m.Height}
	case "plane":
		shape = dynamo.Plane{}
	case "sheet":
		shape = dynamo.Sheet{Width: m.Width, Depth: m.Depth}
	default:
		return dynamo.Morph{}, &dynamo.ConfigError{Field: "morph.shape", Reason: fmt.Sprintf("unknown shape %q", m.Shape)}
	}
	morph := dynamo.Morph{Shape: shape, Pos: vec(m.Pos), Euler: vec(m.Euler), Fixed: m.Fixed}
	return morph, morph.Validate()
}

func (s SurfaceConfig) Surface() dynamo.Surface {
	surf := dynamo.DefaultSurface()
	if s.Color != nil {
		surf.Color = dynamo.Color(*s.Color)
	}
	if s.VisMode != "" {
		surf.VisMode = dynamo.VisMode(s.VisMode)
	}
	return surf
}

func (c CameraConfig) Camera() capture.Camera {
	cam := capture.NewCamera(c.Res, vec(c.Pos), vec(c.LookAt), c.Fov)
	if c.Up != nil {
		cam.Up = vec(*c.Up)
	}
	if cam.Res == [2]int{} {
		cam.Res = [2]int{640, 480}
	}
	if cam.Fov == 0 {
		cam.Fov = 40
	}
	return cam
}
