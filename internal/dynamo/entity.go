package dynamo

// Color is linear RGBA in [0,1].
type Color [4]float64

type VisMode string

const (
	VisParticle VisMode = "particle"
	VisVisual   VisMode = "visual"
)

type Surface struct {
	Color   Color
	VisMode VisMode
}

func DefaultSurface() Surface {
	return Surface{Color: Color{0.8, 0.8, 0.8, 1}, VisMode: VisParticle}
}

// Entity is frozen at construction; solvers own whatever state it seeds.
type Entity struct {
	id       ID
	material Material
	morph    Morph
	surface  Surface
}

func NewEntity(id ID, mat Material, morph Morph, surf Surface) *Entity {
	return &Entity{id: id, material: mat, morph: morph, surface: surf}
}

func (e *Entity) ID() ID             { return e.id }
func (e *Entity) Material() Material { return e.material }
func (e *Entity) Morph() Morph       { return e.morph }
func (e *Entity) Surface() Surface   { return e.surface }

func (e *Entity) Validate() error {
	if err := e.material.Validate(); err != nil {
		return err
	}
	if err := e.morph.Validate(); err != nil {
		return err
	}
	if e.morph.Unbounded() && (e.material.Kind != KindRigid || !e.morph.Fixed) {
		return &ConfigError{Field: "morph", Reason: e.morph.Shape.Name() + " must be a fixed rigid entity"}
	}
	return nil
}
