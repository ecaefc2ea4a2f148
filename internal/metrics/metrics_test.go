package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/snapshot"
	"github.com/stretchr/testify/assert"
)

type Vec3 = dynamo.Vec3

func testFrame() *snapshot.Frame {
	return &snapshot.Frame{
		Domains: []snapshot.DomainFrame{
			{
				Kind:       dynamo.KindSPH,
				Positions:  []Vec3{{0, 0, 1}, {0, 0, 3}},
				Velocities: []Vec3{{3, 4, 0}, {0, 0, 0}},
			},
			{
				Kind:       dynamo.KindMPM,
				Positions:  []Vec3{{1, 1, 5}},
				Velocities: []Vec3{{0, 0, -1}},
			},
		},
	}
}

func TestFrameReductions(t *testing.T) {
	f := testFrame()

	z, ok := Centroid(f, 2)
	assert.True(t, ok)
	assert.InDelta(t, 3.0, z, 1e-12)

	z, ok = Centroid(f, 2, dynamo.KindSPH)
	assert.True(t, ok)
	assert.InDelta(t, 2.0, z, 1e-12)

	_, ok = Centroid(f, 2, dynamo.KindPBD)
	assert.False(t, ok)

	assert.InDelta(t, math.Sqrt2, Spread(f, 2, dynamo.KindSPH), 1e-12)
	assert.Equal(t, 0.0, Spread(f, 2, dynamo.KindMPM))

	assert.Equal(t, []float64{5, 0, 1}, Speeds(f))
	assert.Equal(t, 5.0, MaxSpeed(f))
	assert.InDelta(t, 0.5*26/3, SpecificKinetic(f), 1e-12)

	empty := &snapshot.Frame{}
	assert.Equal(t, 0.0, MaxSpeed(empty))
	assert.Equal(t, 0.0, SpecificKinetic(empty))
}

func TestMetrics(t *testing.T) {
	f := testFrame()
	still := &snapshot.Frame{Domains: []snapshot.DomainFrame{{
		Kind: dynamo.KindPBD, Positions: []Vec3{{0, 0, 0}}, Velocities: []Vec3{{0, 0, 0.5}},
	}}}

	tests := []struct {
		name   string
		metric interface {
			Name() string
			Observe(*snapshot.Frame)
			Value() float64
			Reset()
		}
		want float64
	}{
		{"kinetic", NewKinetic(), (0.5*26/3 + 0.125) / 2},
		{"peak_speed", NewPeakSpeed(), 5},
		{"stability", NewStability(2), 0.5},
		{"centroid_z", NewCentroidHeight(), 0},
		{"absorbed_per_frame", NewAbsorbed(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.metric.Name())
			tt.metric.Observe(f)
			tt.metric.Observe(still)
			assert.InDelta(t, tt.want, tt.metric.Value(), 1e-12)
			tt.metric.Reset()
			if tt.name == "stability" {
				assert.Equal(t, 1.0, tt.metric.Value())
			} else {
				assert.Equal(t, 0.0, tt.metric.Value())
			}
		})
	}
}

func TestAbsorbedRate(t *testing.T) {
	a := NewAbsorbed()
	for i := uint64(0); i < 5; i++ {
		a.Observe(&snapshot.Frame{Counters: dynamo.Counters{BoundsClamped: 10 + 3*i, Contacts: 100 * i}})
	}
	assert.InDelta(t, 3.0, a.Value(), 1e-12)
}
