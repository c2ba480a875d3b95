package textweave

// Scorer is the capability the trainer and generator consume: score an
// encoded context window against a fixed label space, and switch between
// training and evaluation behavior. Any trainable classifier can sit behind
// this interface without touching Fit or Generate.
type Scorer interface {
	// TrainMode enables gradient bookkeeping on Forward.
	TrainMode()
	// EvalMode disables gradient bookkeeping; Backward becomes invalid.
	EvalMode()

	// Forward runs a batch through the scorer and returns the mean
	// cross-entropy loss for it. In train mode activations are cached so
	// that a following Backward can accumulate gradients.
	Forward(b Batch) (float64, error)
	// Backward accumulates gradients for the most recent Forward. Gradients
	// add up across calls until ZeroGrad, which is what makes gradient
	// accumulation over several batches possible.
	Backward() error
	// ClipGradNorm rescales accumulated gradients so their global L2 norm
	// does not exceed max.
	ClipGradNorm(max float64)
	ZeroGrad()

	// Logits scores a single encoded window and returns raw scores over the
	// label space. Never tracks gradients.
	Logits(tokens, mask, types []int) ([]float64, error)

	// Params and Grads expose the flat parameter and gradient memory for
	// the optimizer. Both slices alias scorer-owned storage.
	Params() []float64
	Grads() []float64

	// Clone returns an independent deep copy of the scorer weights.
	Clone() Scorer

	NumLabels() int

	// SaveWeights persists the scorer's native weight format.
	SaveWeights(path string) error
}
