package textweave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdamWStep(t *testing.T) {
	opt := NewAdamW(2)
	params := []float64{1.0, -1.0}
	grads := []float64{0.5, -0.5}

	opt.Step(params, grads, 0.1)
	assert.Less(t, params[0], 1.0, "positive gradient must push the parameter down")
	assert.Greater(t, params[1], -1.0, "negative gradient must push the parameter up")
}

func TestAdamWConvergesOnQuadratic(t *testing.T) {
	// minimize f(x) = x^2, gradient 2x
	opt := NewAdamW(1)
	params := []float64{3.0}
	for i := 0; i < 500; i++ {
		grads := []float64{2 * params[0]}
		opt.Step(params, grads, 0.05)
	}
	assert.InDelta(t, 0.0, params[0], 0.05)
}

func TestWarmupLinearSchedule(t *testing.T) {
	s := newWarmupLinear(2, 10)

	require.InDelta(t, 0.5, s.Next(), 1e-12, "halfway through warmup")
	require.InDelta(t, 1.0, s.Next(), 1e-12, "warmup complete")
	require.InDelta(t, 7.0/8.0, s.Next(), 1e-12, "linear decay begins")

	for i := 0; i < 20; i++ {
		s.Next()
	}
	assert.Equal(t, 0.0, s.LR(), "schedule bottoms out at zero")
}

func TestWarmupLinearNoWarmup(t *testing.T) {
	s := newWarmupLinear(0, 4)
	assert.InDelta(t, 0.75, s.Next(), 1e-12)
	assert.InDelta(t, 0.5, s.Next(), 1e-12)
	assert.InDelta(t, 0.25, s.Next(), 1e-12)
	assert.InDelta(t, 0.0, s.Next(), 1e-12)
}
