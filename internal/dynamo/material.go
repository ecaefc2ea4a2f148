package dynamo

import "fmt"

// Model is the constitutive model inside a domain.
type Model string

const (
	ModelElastic Model = "elastic"
	ModelLiquid  Model = "liquid"
	ModelSand    Model = "sand"
	ModelCloth   Model = "cloth"
	ModelRigid   Model = "rigid"
)

// Sampler selects how a morph is turned into particles.
type Sampler string

const (
	SamplerRegular Sampler = "regular"
	SamplerRandom  Sampler = "random"
)

// Material selects the owning solver and carries its coupling parameters.
type Material struct {
	Kind    DomainKind
	Model   Model
	Rho     float64
	Sampler Sampler

	// elastic modulus and Poisson ratio (MPM elastic/sand, PBD elastic stiffness)
	E  float64
	Nu float64

	// Stiffness is the equation-of-state constant for SPH and the distance
	// constraint stiffness in [0,1] for PBD elastic and cloth.
	Stiffness float64
	Viscosity float64

	DensityRelaxation   float64
	ViscosityRelaxation float64

	NeedsCoupling    bool
	CouplingFriction float64
	CouplingSoftness float64
}

// NewMaterial returns the default material for a kind/model pair.
func NewMaterial(kind DomainKind, model Model) Material {
	m := Material{
		Kind:             kind,
		Model:            model,
		Rho:              1000,
		Sampler:          SamplerRegular,
		NeedsCoupling:    true,
		CouplingFriction: 0.1,
	}
	switch kind {
	case KindMPM:
		m.E, m.Nu = 1e5, 0.2
		if model == ModelLiquid {
			m.E = 1e6
		}
	case KindPBD:
		m.Stiffness = 1.0
		m.DensityRelaxation = 0.2
		m.ViscosityRelaxation = 0.01
		if model == ModelCloth {
			m.Rho = 4
		}
	case KindSPH:
		m.Stiffness = 50000
		m.Viscosity = 0.005
	case KindRigid:
		m.Model = ModelRigid
		m.Rho = 200
		m.CouplingFriction = 0.1
	}
	return m
}

// RigidMaterial is the material of a rigid entity declared with no material.
func RigidMaterial() Material { return NewMaterial(KindRigid, ModelRigid) }

func (m Material) Validate() error {
	allowed := map[DomainKind][]Model{
		KindMPM:   {ModelElastic, ModelLiquid, ModelSand},
		KindPBD:   {ModelLiquid, ModelElastic, ModelCloth},
		KindSPH:   {ModelLiquid},
		KindRigid: {ModelRigid},
	}
	models, ok := allowed[m.Kind]
	if !ok {
		return &ConfigError{Field: "material.kind", Reason: fmt.Sprintf("unknown domain %d", m.Kind)}
	}
	found := false
	for _, x := range models {
		if x == m.Model {
			found = true
			break
		}
	}
	if !found {
		return &ConfigError{Field: "material.model", Reason: fmt.Sprintf("%s does not support %q", m.Kind, m.Model)}
	}
	if !(m.Rho > 0) {
		return &ConfigError{Field: "material.rho", Reason: fmt.Sprintf("must be positive, got %g", m.Rho)}
	}
	if m.CouplingFriction < 0 || m.CouplingFriction > 1 {
		return &ConfigError{Field: "material.coupling_friction", Reason: fmt.Sprintf("must be in [0,1], got %g", m.CouplingFriction)}
	}
	if m.CouplingSoftness < 0 {
		return &ConfigError{Field: "material.coupling_softness", Reason: fmt.Sprintf("must be >= 0, got %g", m.CouplingSoftness)}
	}
	switch m.Sampler {
	case SamplerRegular, SamplerRandom, "":
	default:
		return &ConfigError{Field: "material.sampler", Reason: fmt.Sprintf("unknown sampler %q", m.Sampler)}
	}
	if m.Kind == KindMPM && m.Model != ModelLiquid && !(m.E > 0) {
		return &ConfigError{Field: "material.E", Reason: "must be positive"}
	}
	if m.Kind == KindMPM && (m.Nu < 0 || m.Nu >= 0.5) {
		return &ConfigError{Field: "material.nu", Reason: fmt.Sprintf("must be in [0,0.5), got %g", m.Nu)}
	}
	return nil
}

// NormalScale maps softness to the fraction of the normal correction applied.
func (m Material) NormalScale() float64 {
	if m.CouplingSoftness >= 1 {
		return 0
	}
	return 1 - m.CouplingSoftness
}
