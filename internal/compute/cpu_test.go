package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelForCoversRange(t *testing.T) {
	for _, n := range []int{0, 1, 255, 256, 1000, 10007} {
		b := NewCPUBackend()
		hits := make([]int, n)
		b.ParallelFor(n, func(start, end int) {
			for i := start; i < end; i++ {
				hits[i]++
			}
		})
		for i, h := range hits {
			require.Equalf(t, 1, h, "n=%d index %d", n, i)
		}
	}
}

func TestSerialMatchesCPU(t *testing.T) {
	n := 5000
	a := make([]float64, n)
	b := make([]float64, n)
	fill := func(dst []float64) func(int, int) {
		return func(start, end int) {
			for i := start; i < end; i++ {
				dst[i] = float64(i) * 0.5
			}
		}
	}
	NewCPUBackend().ParallelFor(n, fill(a))
	NewSerialBackend().ParallelFor(n, fill(b))
	assert.Equal(t, a, b)
}

func TestSelect(t *testing.T) {
	b, fellBack, err := Select("cpu")
	require.NoError(t, err)
	assert.Equal(t, "cpu", b.Name())
	assert.False(t, fellBack)

	b, fellBack, err = Select("gpu")
	require.NoError(t, err)
	assert.True(t, b.Available())
	if b.Name() == "cpu" {
		assert.True(t, fellBack)
	}

	_, _, err = Select("quantum")
	assert.Error(t, err)
}
