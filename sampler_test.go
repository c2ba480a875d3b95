package textweave

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftmaxTemperature(t *testing.T) {
	logits := []float64{2, 1, 0.5}

	t.Run("temperature one leaves distribution unmodified", func(t *testing.T) {
		got, err := softmaxTemperature(logits, 1.0)
		require.NoError(t, err)
		var norm float64
		want := make([]float64, len(logits))
		for i, l := range logits {
			want[i] = math.Exp(l)
			norm += want[i]
		}
		for i := range want {
			want[i] /= norm
		}
		assert.InDeltaSlice(t, want, got, 1e-12)
	})

	t.Run("probabilities sum to one", func(t *testing.T) {
		for _, temp := range []float64{0.1, 0.7, 1, 2, 10} {
			got, err := softmaxTemperature(logits, temp)
			require.NoError(t, err)
			var sum float64
			for _, p := range got {
				sum += p
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
		}
	})

	t.Run("low temperature converges to argmax", func(t *testing.T) {
		got, err := softmaxTemperature(logits, 0.01)
		require.NoError(t, err)
		assert.Greater(t, got[0], 0.999)
	})

	t.Run("high temperature flattens", func(t *testing.T) {
		sharp, err := softmaxTemperature(logits, 0.5)
		require.NoError(t, err)
		flat, err := softmaxTemperature(logits, 10)
		require.NoError(t, err)
		assert.Less(t, flat[0], sharp[0])
		assert.Greater(t, flat[2], sharp[2])
	})

	t.Run("non-positive temperature is a configuration error", func(t *testing.T) {
		for _, temp := range []float64{0, -0.5} {
			_, err := softmaxTemperature(logits, temp)
			assert.ErrorIs(t, err, ErrBadTemperature)
		}
	})
}

func TestMultinomialSampler(t *testing.T) {
	s := &MultinomialSampler{Rand: rand.New(rand.NewSource(7))}

	t.Run("degenerate distribution", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			assert.Equal(t, 1, s.Sample([]float64{0, 1, 0}))
		}
	})

	t.Run("respects weights over many trials", func(t *testing.T) {
		probs := []float64{0.8, 0.2}
		counts := make([]int, 2)
		for i := 0; i < 5000; i++ {
			idx := s.Sample(probs)
			require.GreaterOrEqual(t, idx, 0)
			require.Less(t, idx, 2)
			counts[idx]++
		}
		assert.InDelta(t, 4000, counts[0], 300)
	})

	t.Run("rounding falls back to last index", func(t *testing.T) {
		// probabilities that sum just below the coin's range
		idx := s.Sample([]float64{0, 0})
		assert.Equal(t, 1, idx)
	})
}

func TestGreedySampler(t *testing.T) {
	s := GreedySampler{}
	assert.Equal(t, 2, s.Sample([]float64{0.1, 0.2, 0.6, 0.1}))
	assert.Equal(t, 0, s.Sample([]float64{0.9, 0.1}))
}
