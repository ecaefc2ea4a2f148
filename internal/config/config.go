// Package config describes scenarios as yaml documents and converts them
// into the values a scene is built from.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSteps       = 1000
	DefaultRecordEvery = 1
)

type Config struct {
	Name     string `yaml:"name"`
	Seed     int64  `yaml:"seed"`
	Backend  string `yaml:"backend"`
	LogLevel string `yaml:"logging_level"`
	Steps    int    `yaml:"steps"`

	Sim   SimConfig     `yaml:"sim"`
	MPM   *DomainConfig `yaml:"mpm,omitempty"`
	PBD   *DomainConfig `yaml:"pbd,omitempty"`
	SPH   *DomainConfig `yaml:"sph,omitempty"`
	Rigid *DomainConfig `yaml:"rigid,omitempty"`

	Entities []EntityConfig  `yaml:"entities"`
	Emitters []EmitterConfig `yaml:"emitters,omitempty"`
	Cameras  []CameraConfig  `yaml:"cameras,omitempty"`
	Record   RecordConfig    `yaml:"record"`
}

type SimConfig struct {
	Dt               float64    `yaml:"dt"`
	Substeps         int        `yaml:"substeps"`
	Gravity          [3]float64 `yaml:"gravity"`
	MaxCouplingSpeed float64    `yaml:"max_coupling_speed"`
}

type DomainConfig struct {
	Lower               [3]float64 `yaml:"lower_bound"`
	Upper               [3]float64 `yaml:"upper_bound"`
	ParticleSize        float64    `yaml:"particle_size,omitempty"`
	GridDensity         float64    `yaml:"grid_density,omitempty"`
	DensityIterations   int        `yaml:"max_density_solver_iterations,omitempty"`
	ViscosityIterations int        `yaml:"max_viscosity_solver_iterations,omitempty"`
}

// MaterialConfig overrides the defaults of its kind/model pair; nil fields
// keep the default.
type MaterialConfig struct {
	Kind    string `yaml:"kind"`
	Model   string `yaml:"model"`
	Sampler string `yaml:"sampler,omitempty"`

	Rho                 *float64 `yaml:"rho,omitempty"`
	E                   *float64 `yaml:"E,omitempty"`
	Nu                  *float64 `yaml:"nu,omitempty"`
	Stiffness           *float64 `yaml:"stiffness,omitempty"`
	Viscosity           *float64 `yaml:"viscosity,omitempty"`
	DensityRelaxation   *float64 `yaml:"density_relaxation,omitempty"`
	ViscosityRelaxation *float64 `yaml:"viscosity_relaxation,omitempty"`

	NeedsCoupling    *bool    `yaml:"needs_coup,omitempty"`
	CouplingFriction *float64 `yaml:"coup_friction,omitempty"`
	CouplingSoftness *float64 `yaml:"coup_softness,omitempty"`
}

// MorphConfig names a primitive shape. A box may be given by Lower/Upper
// corners instead of Pos/Size.
type MorphConfig struct {
	Shape  string      `yaml:"shape"`
	Pos    [3]float64  `yaml:"pos"`
	Euler  [3]float64  `yaml:"euler,omitempty"`
	Size   [3]float64  `yaml:"size,omitempty"`
	Lower  *[3]float64 `yaml:"lower,omitempty"`
	Upper  *[3]float64 `yaml:"upper,omitempty"`
	Radius float64     `yaml:"radius,omitempty"`
	Height float64     `yaml:"height,omitempty"`
	Width  float64     `yaml:"width,omitempty"`
	Depth  float64     `yaml:"depth,omitempty"`
	Fixed  bool        `yaml:"fixed,omitempty"`
}

type SurfaceConfig struct {
	Color   *[4]float64 `yaml:"color,omitempty"`
	VisMode string      `yaml:"vis_mode,omitempty"`
}

type EntityConfig struct {
	Name     string         `yaml:"name,omitempty"`
	Material MaterialConfig `yaml:"material"`
	Morph    MorphConfig    `yaml:"morph"`
	Surface  SurfaceConfig  `yaml:"surface,omitempty"`
}

type EmitterConfig struct {
	Name         string         `yaml:"name,omitempty"`
	Material     MaterialConfig `yaml:"material"`
	MaxParticles int            `yaml:"max_particles"`
	Surface      SurfaceConfig  `yaml:"surface,omitempty"`
	Emit         []EmitConfig   `yaml:"emit,omitempty"`
}

// EmitConfig is a request issued before every step in [From, Until).
// Until zero means every step. The direction sways by
// Sway*sin(step/SwayPeriod) when SwayPeriod is set.
type EmitConfig struct {
	Pos        [3]float64 `yaml:"pos"`
	Dir        [3]float64 `yaml:"direction"`
	Speed      float64    `yaml:"speed"`
	Shape      string     `yaml:"droplet_shape"`
	Size       []float64  `yaml:"droplet_size"`
	From       int        `yaml:"from,omitempty"`
	Until      int        `yaml:"until,omitempty"`
	Sway       [3]float64 `yaml:"sway,omitempty"`
	SwayPeriod float64    `yaml:"sway_period,omitempty"`
}

type CameraConfig struct {
	Res    [2]int      `yaml:"res"`
	Pos    [3]float64  `yaml:"pos"`
	LookAt [3]float64  `yaml:"lookat"`
	Up     *[3]float64 `yaml:"up,omitempty"`
	Fov    float64     `yaml:"fov"`
}

type RecordConfig struct {
	Every int    `yaml:"every"`
	Dest  string `yaml:"dest,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:     "scenario",
		Backend:  "gpu",
		LogLevel: "info",
		Steps:    DefaultSteps,
		Sim: SimConfig{
			Dt:               1e-2,
			Substeps:         1,
			Gravity:          [3]float64{0, 0, -9.81},
			MaxCouplingSpeed: 50,
		},
		Record: RecordConfig{Every: DefaultRecordEvery},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
