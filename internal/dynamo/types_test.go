package dynamo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulationConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   SimulationConfig
		field string
	}{
		{"zero dt", SimulationConfig{Dt: 0, Substeps: 1, MaxCouplingSpeed: 1}, "dt"},
		{"negative dt", SimulationConfig{Dt: -1e-3, Substeps: 1, MaxCouplingSpeed: 1}, "dt"},
		{"nan dt", SimulationConfig{Dt: math.NaN(), Substeps: 1, MaxCouplingSpeed: 1}, "dt"},
		{"zero substeps", SimulationConfig{Dt: 1e-3, Substeps: 0, MaxCouplingSpeed: 1}, "substeps"},
		{"no speed cap", SimulationConfig{Dt: 1e-3, Substeps: 1}, "max_coupling_speed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
		})
	}

	cfg := DefaultSimulationConfig()
	cfg.Dt, cfg.Substeps = 2e-3, 10
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 2e-4, cfg.SubDt(), 1e-15)
}

func TestBounds(t *testing.T) {
	b := Bounds{Lower: Vec3{0, 0, 0}, Upper: Vec3{1, 1, 1}}
	require.NoError(t, b.Validate())
	assert.Error(t, Bounds{Lower: Vec3{0, 0, 1}, Upper: Vec3{1, 1, 1}}.Validate())

	o := Bounds{Lower: Vec3{0.5, -1, 0.5}, Upper: Vec3{2, 2, 2}}
	assert.True(t, b.Overlaps(o))
	in, ok := b.Intersect(o)
	require.True(t, ok)
	assert.Equal(t, Vec3{0.5, 0, 0.5}, in.Lower)
	assert.Equal(t, Vec3{1, 1, 1}, in.Upper)

	far := Bounds{Lower: Vec3{3, 3, 3}, Upper: Vec3{4, 4, 4}}
	assert.False(t, b.Overlaps(far))
	_, ok = b.Intersect(far)
	assert.False(t, ok)

	p, mask := b.ClampInside(Vec3{-0.5, 0.5, 1.5}, 0.1)
	assert.Equal(t, Vec3{0.1, 0.5, 0.9}, p)
	assert.Equal(t, uint8(1<<0|1<<5), mask)
}

func TestMaterialValidate(t *testing.T) {
	for _, k := range Kinds {
		model := ModelLiquid
		if k == KindRigid {
			model = ModelRigid
		}
		require.NoError(t, NewMaterial(k, model).Validate(), k.String())
	}

	bad := NewMaterial(KindSPH, ModelElastic)
	assert.Error(t, bad.Validate())

	bad = NewMaterial(KindRigid, ModelRigid)
	bad.CouplingFriction = 1.5
	assert.ErrorIs(t, bad.Validate(), ErrConfiguration)

	soft := NewMaterial(KindRigid, ModelRigid)
	soft.CouplingSoftness = 3
	assert.Equal(t, 0.0, soft.NormalScale())
	soft.CouplingSoftness = 0.25
	assert.Equal(t, 0.75, soft.NormalScale())
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("fem")
	assert.ErrorIs(t, err, ErrConfiguration)
}
