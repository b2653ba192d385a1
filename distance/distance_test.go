package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	assert.InDelta(t, 32.0, Dot([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-6)
	assert.InDelta(t, 0.0, Dot([]float32{1, 0}, []float32{0, 1}), 1e-6)
}

func TestSquaredL2(t *testing.T) {
	assert.InDelta(t, 0.0, SquaredL2([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-6)
	assert.InDelta(t, 27.0, SquaredL2([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-6)
	assert.InDelta(t, 1.81, SquaredL2([]float32{1, 0, 0.1}, []float32{0, 0, 1}), 1e-5)
}

func TestSquaredL2Batch(t *testing.T) {
	targets := []float32{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
	out := make([]float32, 3)
	SquaredL2Batch([]float32{1, 0, 0}, targets, 3, out)

	assert.InDelta(t, 0.0, out[0], 1e-6)
	assert.InDelta(t, 2.0, out[1], 1e-6)
	assert.InDelta(t, 2.0, out[2], 1e-6)
}

func TestNormalizeL2(t *testing.T) {
	t.Run("Copy", func(t *testing.T) {
		v, ok := NormalizeL2Copy([]float32{3, 4})
		require.True(t, ok)
		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)
	})

	t.Run("ZeroVector", func(t *testing.T) {
		_, ok := NormalizeL2Copy([]float32{0, 0, 0})
		assert.False(t, ok)
	})

	t.Run("InPlace", func(t *testing.T) {
		v := []float32{0, 5}
		require.True(t, NormalizeL2InPlace(v))
		assert.InDelta(t, 1.0, v[1], 1e-6)
	})
}
