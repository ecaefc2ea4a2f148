package config

import (
	"sort"
)

func f64(v float64) *float64 { return &v }
func flag(v bool) *bool      { return &v }
func rgba(r, g, b, a float64) *[4]float64 {
	return &[4]float64{r, g, b, a}
}
func corner(x, y, z float64) *[3]float64 { return &[3]float64{x, y, z} }

// Presets rebuild the bundled scenarios. Meshes and URDF models are
// replaced by primitive shapes of similar size.
var Presets = map[string]func() *Config{
	"pbd_liquid":     pbdLiquid,
	"elastic_dragon": elasticDragon,
	"cloth_on_rigid": clothOnRigid,
	"sand_wheel":     sandWheel,
	"flush_cubes":    flushCubes,
	"sph_mpm":        sphMPM,
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	if fn, ok := Presets[name]; ok {
		return fn()
	}
	return nil
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for k := range Presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func pbdLiquid() *Config {
	c := DefaultConfig()
	c.Name = "pbd_liquid"
	c.LogLevel = "debug"
	c.Sim.Dt = 3e-5
	c.Sim.Gravity = [3]float64{0, 0, -10}
	c.PBD = &DomainConfig{
		Upper:               [3]float64{1, 1, 1},
		DensityIterations:   10,
		ViscosityIterations: 1,
	}
	c.Entities = []EntityConfig{{
		Name: "liquid",
		Material: MaterialConfig{
			Kind: "pbd", Model: "liquid", Sampler: "regular",
			Rho: f64(1), DensityRelaxation: f64(1), ViscosityRelaxation: f64(0),
		},
		Morph: MorphConfig{Shape: "box", Lower: corner(0.2, 0.1, 0.1), Upper: corner(0.4, 0.3, 0.5)},
	}}
	c.Cameras = []CameraConfig{{Pos: [3]float64{3.5, 1, 2.5}, LookAt: [3]float64{0, 0, 0.5}, Fov: 40}}
	return c
}

func elasticDragon() *Config {
	c := DefaultConfig()
	c.Name = "elastic_dragon"
	c.LogLevel = "debug"
	c.Sim.Substeps = 10
	c.Sim.Gravity = [3]float64{0, 0, -9.8}
	c.PBD = &DomainConfig{Lower: [3]float64{-1, -1, 0}, Upper: [3]float64{1, 1, 1}}
	c.Entities = []EntityConfig{{
		Name:     "dragon",
		Material: MaterialConfig{Kind: "pbd", Model: "elastic"},
		Morph:    MorphConfig{Shape: "sphere", Radius: 0.1, Pos: [3]float64{0, 0, 0.8}, Euler: [3]float64{0, 0, 1}},
	}}
	c.Cameras = []CameraConfig{{Pos: [3]float64{2, 2, 1.5}, LookAt: [3]float64{0, 0, 0.5}, Up: corner(0, 0, 1), Fov: 40}}
	return c
}

func clothOnRigid() *Config {
	c := DefaultConfig()
	c.Name = "cloth_on_rigid"
	c.LogLevel = "debug"
	c.Sim.Dt, c.Sim.Substeps = 2e-3, 50
	c.PBD = &DomainConfig{
		Lower:        [3]float64{-1, -1, -0.3},
		Upper:        [3]float64{1, 1, 1},
		ParticleSize: 1e-2,
	}
	c.Entities = []EntityConfig{
		{
			Name:     "cube",
			Material: MaterialConfig{Kind: "rigid", NeedsCoupling: flag(true), CouplingFriction: f64(0)},
			Morph: MorphConfig{
				Shape: "box", Pos: [3]float64{0.5, 0.5, 0.2}, Size: [3]float64{0.2, 0.2, 0.2},
				Euler: [3]float64{30, 40, 0}, Fixed: true,
			},
		},
		{
			Name:     "cloth",
			Material: MaterialConfig{Kind: "pbd", Model: "cloth"},
			Morph:    MorphConfig{Shape: "sheet", Width: 0.6, Depth: 0.6, Pos: [3]float64{0.5, 0.5, 0.5}, Euler: [3]float64{180, 0, 0}},
			Surface:  SurfaceConfig{Color: rgba(0.2, 0.4, 0.8, 1)},
		},
	}
	c.Cameras = []CameraConfig{{Pos: [3]float64{3.5, 0, 2.5}, LookAt: [3]float64{0, 0, 0.5}, Fov: 40}}
	return c
}

func sandWheel() *Config {
	c := DefaultConfig()
	c.Name = "sand_wheel"
	c.LogLevel = "debug"
	c.Sim.Dt, c.Sim.Substeps = 3e-3, 10
	c.MPM = &DomainConfig{Lower: [3]float64{0, -1, -0.1}, Upper: [3]float64{0.57, 1, 2.4}, GridDensity: 64}
	c.Entities = []EntityConfig{{
		Name:     "plane",
		Material: MaterialConfig{Kind: "rigid", NeedsCoupling: flag(true), CouplingFriction: f64(0.2)},
		Morph:    MorphConfig{Shape: "plane", Fixed: true},
	}}
	for i, p := range [][3]float64{{0.5, -0.2, 1.6}, {0.5, 0.3, 1.2}, {0.5, -0.3, 0.8}, {0.5, 0.4, 0.4}} {
		c.Entities = append(c.Entities, EntityConfig{
			Name:     "wheel_" + string(rune('0'+i)),
			Material: MaterialConfig{Kind: "rigid", NeedsCoupling: flag(true), CouplingSoftness: f64(0)},
			Morph:    MorphConfig{Shape: "cylinder", Radius: 0.15, Height: 0.06, Pos: p, Euler: [3]float64{0, 90, 0}, Fixed: true},
		})
	}
	c.Emitters = []EmitterConfig{{
		Name:         "sand",
		Material:     MaterialConfig{Kind: "mpm", Model: "sand"},
		MaxParticles: 200000,
		Surface:      SurfaceConfig{Color: rgba(1, 0.9, 0.6, 1)},
		Emit: []EmitConfig{{
			Pos: [3]float64{0.5, 0, 2.3}, Dir: [3]float64{0, 0, -1}, Speed: 8,
			Shape: "rectangle", Size: []float64{0.03, 0.05},
			Sway: [3]float64{0, 0.35, 0}, SwayPeriod: 10,
		}},
	}}
	c.Cameras = []CameraConfig{{Res: [2]int{640, 480}, Pos: [3]float64{4.5, 0, 1.42}, LookAt: [3]float64{1, 0, 1}, Fov: 30}}
	return c
}

func flushCubes() *Config {
	c := DefaultConfig()
	c.Name = "flush_cubes"
	c.LogLevel = "debug"
	c.Steps = 600
	c.Sim.Dt, c.Sim.Substeps = 4e-3, 20
	c.MPM = &DomainConfig{Lower: [3]float64{-0.45, -0.65, -0.01}, Upper: [3]float64{0.45, 0.65, 1}, GridDensity: 64}
	elastic := MaterialConfig{Kind: "mpm", Model: "elastic", Rho: f64(400)}
	c.Entities = []EntityConfig{
		{Name: "plane", Morph: MorphConfig{Shape: "plane", Fixed: true}},
		{
			Name: "cube", Material: elastic,
			Morph:   MorphConfig{Shape: "box", Pos: [3]float64{0, 0.25, 0.4}, Size: [3]float64{0.12, 0.12, 0.12}},
			Surface: SurfaceConfig{Color: rgba(1, 0.5, 0.5, 1), VisMode: "particle"},
		},
		{
			Name: "ball", Material: elastic,
			Morph:   MorphConfig{Shape: "sphere", Pos: [3]float64{0.15, 0.45, 0.5}, Radius: 0.06},
			Surface: SurfaceConfig{Color: rgba(1, 1, 0.5, 1), VisMode: "particle"},
		},
		{
			Name: "can", Material: elastic,
			Morph:   MorphConfig{Shape: "cylinder", Pos: [3]float64{-0.15, 0.45, 0.6}, Radius: 0.05, Height: 0.14},
			Surface: SurfaceConfig{Color: rgba(0.5, 1, 1, 1), VisMode: "particle"},
		},
	}
	liquid := MaterialConfig{Kind: "mpm", Model: "liquid", Sampler: "random"}
	c.Emitters = []EmitterConfig{
		{
			Name: "left", Material: liquid, MaxParticles: 80000,
			Surface: SurfaceConfig{Color: rgba(0, 0.9, 0.4, 1)},
			Emit: []EmitConfig{{
				Pos: [3]float64{0.16, -0.4, 0.5}, Dir: [3]float64{0, 0, -1}, Speed: 2,
				Shape: "circle", Size: []float64{0.16}, Until: 400,
			}},
		},
		{
			Name: "right", Material: liquid, MaxParticles: 80000,
			Surface: SurfaceConfig{Color: rgba(0, 0.4, 0.9, 1)},
			Emit: []EmitConfig{{
				Pos: [3]float64{-0.16, -0.4, 0.5}, Dir: [3]float64{0, 0, -1}, Speed: 3,
				Shape: "circle", Size: []float64{0.16}, Until: 400,
			}},
		},
	}
	c.Cameras = []CameraConfig{{Res: [2]int{640, 480}, Pos: [3]float64{4.5, 1, 1.42}, LookAt: [3]float64{0, 0, 0.3}, Fov: 22}}
	return c
}

func sphMPM() *Config {
	c := DefaultConfig()
	c.Name = "sph_mpm"
	c.LogLevel = "debug"
	c.Steps = 800
	c.Sim.Dt, c.Sim.Substeps = 2e-3, 10
	c.MPM = &DomainConfig{Lower: [3]float64{0, 0, -0.1}, Upper: [3]float64{1, 1, 1}}
	c.SPH = &DomainConfig{Lower: [3]float64{-0.03, -0.03, -0.08}, Upper: [3]float64{1.03, 1.03, 1}}
	c.Entities = []EntityConfig{
		{
			Name:     "water",
			Material: MaterialConfig{Kind: "sph", Model: "liquid"},
			Morph:    MorphConfig{Shape: "box", Pos: [3]float64{0.4, 0.5, 0.25}, Size: [3]float64{0.7, 0.9, 0.5}},
			Surface:  SurfaceConfig{Color: rgba(0.2, 0.6, 1, 1), VisMode: "particle"},
		},
		{
			Name:     "duck",
			Material: MaterialConfig{Kind: "mpm", Model: "elastic", Rho: f64(200)},
			Morph:    MorphConfig{Shape: "sphere", Radius: 0.07, Pos: [3]float64{0.5, 0.5, 0.7}, Euler: [3]float64{90, 0, 90}},
			Surface:  SurfaceConfig{Color: rgba(0.9, 0.8, 0.2, 1), VisMode: "particle"},
		},
		{Name: "plane", Morph: MorphConfig{Shape: "plane", Pos: [3]float64{0, 0, -5}, Fixed: true}},
	}
	c.Cameras = []CameraConfig{{Pos: [3]float64{0.8, -3, 1.42}, LookAt: [3]float64{0.5, 0.5, 0.4}, Fov: 30}}
	return c
}
