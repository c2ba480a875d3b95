package textweave

import "math"

// AdamW implements the AdamW update rule over a flat parameter slice, with
// first/second moment estimates, bias correction and decoupled weight decay.
type AdamW struct {
	Beta1, Beta2 float64
	Eps          float64
	WeightDecay  float64

	m, v []float64
	t    int
}

func NewAdamW(numParams int) *AdamW {
	return &AdamW{
		Beta1: 0.9,
		Beta2: 0.999,
		Eps:   1e-8,
		m:     make([]float64, numParams),
		v:     make([]float64, numParams),
	}
}

// Step applies one update to params given grads and the current learning
// rate, advancing the internal timestep.
func (o *AdamW) Step(params, grads []float64, lr float64) {
	o.t++
	c1 := 1.0 - math.Pow(o.Beta1, float64(o.t))
	c2 := 1.0 - math.Pow(o.Beta2, float64(o.t))
	for i := range params {
		g := grads[i]
		m := o.Beta1*o.m[i] + (1.0-o.Beta1)*g
		v := o.Beta2*o.v[i] + (1.0-o.Beta2)*g*g
		o.m[i] = m
		o.v[i] = v
		mHat := m / c1
		vHat := v / c2
		params[i] -= lr * (mHat/(math.Sqrt(vHat)+o.Eps) + o.WeightDecay*params[i])
	}
}

// warmupLinear is a learning-rate schedule: linear ramp from 0 over the
// warmup steps, then linear decay to 0 at totalSteps.
type warmupLinear struct {
	warmup int
	total  int
	step   int
}

func newWarmupLinear(warmup, total int) *warmupLinear {
	return &warmupLinear{warmup: warmup, total: total}
}

// Next advances the schedule and returns the multiplier for the base
// learning rate.
func (s *warmupLinear) Next() float64 {
	s.step++
	return s.LR()
}

// LR returns the multiplier at the current step without advancing.
func (s *warmupLinear) LR() float64 {
	if s.warmup > 0 && s.step < s.warmup {
		return float64(s.step) / float64(s.warmup)
	}
	if s.total <= s.warmup {
		return 0
	}
	frac := float64(s.total-s.step) / float64(s.total-s.warmup)
	return math.Max(0, frac)
}
