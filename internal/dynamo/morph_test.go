package dynamo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeSDF(t *testing.T) {
	tests := []struct {
		name   string
		shape  Shape
		p      Vec3
		dist   float64
		normal Vec3
	}{
		{"sphere outside", Sphere{Radius: 1}, Vec3{2, 0, 0}, 1, Vec3{1, 0, 0}},
		{"sphere inside", Sphere{Radius: 1}, Vec3{0, 0, 0.5}, -0.5, Vec3{0, 0, 1}},
		{"box face", Box{Size: Vec3{2, 2, 2}}, Vec3{0, 0, 1.5}, 0.5, Vec3{0, 0, 1}},
		{"box inside", Box{Size: Vec3{2, 2, 2}}, Vec3{0.9, 0, 0}, -0.1, Vec3{1, 0, 0}},
		{"box corner", Box{Size: Vec3{2, 2, 2}}, Vec3{2, 2, 1}, math.Sqrt2, Vec3{1 / math.Sqrt2, 1 / math.Sqrt2, 0}},
		{"cylinder side", Cylinder{Radius: 1, Height: 2}, Vec3{0, -3, 0}, 2, Vec3{0, -1, 0}},
		{"cylinder cap", Cylinder{Radius: 1, Height: 2}, Vec3{0.1, 0, -1.5}, 0.5, Vec3{0, 0, -1}},
		{"plane", Plane{}, Vec3{4, 5, -0.25}, -0.25, Vec3{0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, n := tt.shape.SDF(tt.p)
			assert.InDelta(t, tt.dist, d, 1e-12)
			for i := 0; i < 3; i++ {
				assert.InDelta(t, tt.normal[i], n[i], 1e-12)
			}
		})
	}

	_, n := Sphere{Radius: 1}.SDF(Vec3{})
	assert.Equal(t, Vec3{}, n, "undefined normal must be zero")
}

func TestMorphRotation(t *testing.T) {
	m := Morph{Shape: Box{Size: Vec3{2, 0.2, 0.2}}, Pos: Vec3{1, 1, 1}, Euler: Vec3{0, 0, 90}}
	d, _ := m.SDF(Vec3{1, 1.9, 1})
	assert.Less(t, d, 0.0, "long axis rotated onto y")
	d, _ = m.SDF(Vec3{1.9, 1, 1})
	assert.Greater(t, d, 0.0)

	wb, ok := m.WorldBounds()
	require.True(t, ok)
	assert.InDelta(t, 0.9, wb.Lower[0], 1e-9)
	assert.InDelta(t, 2.0, wb.Upper[1], 1e-9)
}

func TestMorphSample(t *testing.T) {
	m := BoxFromCorners(Vec3{0.2, 0.1, 0.1}, Vec3{0.4, 0.3, 0.5})
	pts, err := m.Sample(0.05, SamplerRegular, nil)
	require.NoError(t, err)
	assert.Len(t, pts, 4*4*8)
	b := Bounds{Lower: Vec3{0.2, 0.1, 0.1}, Upper: Vec3{0.4, 0.3, 0.5}}
	for _, p := range pts {
		assert.True(t, b.Contains(p), "%v", p)
	}

	a, err := m.Sample(0.05, SamplerRandom, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	c, err := m.Sample(0.05, SamplerRandom, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, a, c, "seeded sampling is reproducible")

	sheet := Morph{Shape: Sheet{Width: 0.5, Depth: 0.5}, Pos: Vec3{0, 0, 1}}
	pts, err = sheet.Sample(0.1, SamplerRegular, nil)
	require.NoError(t, err)
	assert.Len(t, pts, 25)
	for _, p := range pts {
		assert.InDelta(t, 1.0, p[2], 1e-12)
	}

	_, err = Morph{Shape: Plane{}, Fixed: true}.Sample(0.1, SamplerRegular, nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = Morph{}.Sample(0.1, SamplerRegular, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestEntityValidate(t *testing.T) {
	plane := NewEntity(0, RigidMaterial(), Morph{Shape: Plane{}}, DefaultSurface())
	assert.ErrorIs(t, plane.Validate(), ErrConfiguration, "unfixed plane")

	plane = NewEntity(0, RigidMaterial(), Morph{Shape: Plane{}, Fixed: true}, DefaultSurface())
	assert.NoError(t, plane.Validate())
}
