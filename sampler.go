package textweave

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// ErrBadTemperature reports a non-positive sampling temperature.
var ErrBadTemperature = errors.New("temperature must be greater than zero")

// Sampler picks a label index from a probability distribution. Generation
// injects one so that tests can substitute a deterministic strategy.
type Sampler interface {
	Sample(probs []float64) int
}

// MultinomialSampler draws from the distribution by walking the CDF with a
// uniform coin. This is the default, stochastic, sampler.
type MultinomialSampler struct {
	Rand *rand.Rand
}

func (s *MultinomialSampler) Sample(probs []float64) int {
	coin := s.Rand.Float64()
	var cdf float64
	for i, prob := range probs {
		cdf += prob
		if coin < cdf {
			return i
		}
	}
	return len(probs) - 1 // handle potential rounding
}

// GreedySampler always picks the highest-probability index.
type GreedySampler struct{}

func (GreedySampler) Sample(probs []float64) int {
	return floats.MaxIdx(probs)
}

// softmaxTemperature divides logits by the temperature and normalizes them
// into a probability distribution, computed against the log-sum-exp for
// numerical stability. Temperatures below one sharpen the distribution,
// above one flatten it.
func softmaxTemperature(logits []float64, temperature float64) ([]float64, error) {
	if temperature <= 0 {
		return nil, ErrBadTemperature
	}
	scaled := make([]float64, len(logits))
	for i, l := range logits {
		scaled[i] = l / temperature
	}
	lse := floats.LogSumExp(scaled)
	for i := range scaled {
		scaled[i] = math.Exp(scaled[i] - lse)
	}
	return scaled, nil
}
