package textweave

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/floats"
)

const (
	classifierMagic   int32 = 20260214
	classifierVersion int32 = 1
)

// ClassifierConfig holds the hyper-parameters of the classifier.
type ClassifierConfig struct {
	V int // vocabulary size (embedding rows)
	C int // embedding channels
	T int // context window length
	K int // number of output labels
}

// Classifier is the default trainable scorer: token embeddings, masked mean
// pooling over the context window and a linear projection onto the label
// space, trained with cross-entropy. The architecture is deliberately the
// smallest honest trainable scorer; everything above it only sees the Scorer
// interface.
type Classifier struct {
	Config ClassifierConfig
	// Memory is the flat parameter storage; TokEmbed, ProjW and ProjB are
	// views into it so the optimizer can walk one slice.
	Memory   []float64
	TokEmbed []float64 // V*C
	ProjW    []float64 // K*C
	ProjB    []float64 // K

	GradsMemory []float64

	training bool

	// caches from the last train-mode Forward, consumed by Backward
	lastBatch  Batch
	lastPooled []float64 // B*C
	lastProbs  []float64 // B*K
	lastB      int
}

// NewClassifier allocates a classifier with small random weights.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	c := &Classifier{Config: cfg}
	n := cfg.V*cfg.C + cfg.K*cfg.C + cfg.K
	c.Memory = make([]float64, n)
	c.GradsMemory = make([]float64, n)
	c.bindViews()
	rng := rand.New(rand.NewSource(21))
	for i := 0; i < cfg.V*cfg.C+cfg.K*cfg.C; i++ {
		c.Memory[i] = rng.NormFloat64() * 0.02
	}
	return c
}

func (c *Classifier) bindViews() {
	cfg := c.Config
	c.TokEmbed = c.Memory[:cfg.V*cfg.C]
	c.ProjW = c.Memory[cfg.V*cfg.C : cfg.V*cfg.C+cfg.K*cfg.C]
	c.ProjB = c.Memory[cfg.V*cfg.C+cfg.K*cfg.C:]
}

func (c *Classifier) TrainMode() { c.training = true }
func (c *Classifier) EvalMode()  { c.training = false }

func (c *Classifier) NumLabels() int { return c.Config.K }

func (c *Classifier) Params() []float64 { return c.Memory }
func (c *Classifier) Grads() []float64  { return c.GradsMemory }

func (c *Classifier) ZeroGrad() {
	for i := range c.GradsMemory {
		c.GradsMemory[i] = 0
	}
}

// poolForward computes the masked mean of the token embeddings for one
// encoded window.
func (c *Classifier) poolForward(tokens, mask []int, pool []float64) (int, error) {
	cfg := c.Config
	for i := range pool {
		pool[i] = 0
	}
	nmask := 0
	for t := 0; t < len(tokens); t++ {
		if t < len(mask) && mask[t] == 0 {
			continue
		}
		ix := tokens[t]
		if ix < 0 || ix >= cfg.V {
			return 0, fmt.Errorf("token id %d outside embedding table of size %d", ix, cfg.V)
		}
		row := c.TokEmbed[ix*cfg.C : ix*cfg.C+cfg.C]
		for i := 0; i < cfg.C; i++ {
			pool[i] += row[i]
		}
		nmask++
	}
	if nmask == 0 {
		return 0, errors.New("empty attention mask")
	}
	inv := 1.0 / float64(nmask)
	for i := 0; i < cfg.C; i++ {
		pool[i] *= inv
	}
	return nmask, nil
}

// projForward projects a pooled vector onto the label space.
func (c *Classifier) projForward(pool, logits []float64) {
	cfg := c.Config
	for k := 0; k < cfg.K; k++ {
		wrow := c.ProjW[k*cfg.C : k*cfg.C+cfg.C]
		logits[k] = c.ProjB[k] + floats.Dot(wrow, pool)
	}
}

// Forward computes the mean cross-entropy loss of a batch. In train mode the
// pooled activations and class probabilities are cached for Backward.
func (c *Classifier) Forward(b Batch) (float64, error) {
	cfg := c.Config
	B := len(b.Inputs)
	if B == 0 {
		return 0, errors.New("empty batch")
	}
	pooled := make([]float64, B*cfg.C)
	probs := make([]float64, B*cfg.K)
	logits := make([]float64, cfg.K)
	var loss float64
	for i := 0; i < B; i++ {
		pool := pooled[i*cfg.C : i*cfg.C+cfg.C]
		if _, err := c.poolForward(b.Inputs[i], b.Masks[i], pool); err != nil {
			return 0, err
		}
		c.projForward(pool, logits)
		lse := floats.LogSumExp(logits)
		label := b.Labels[i]
		if label < 0 || label >= cfg.K {
			return 0, fmt.Errorf("label index %d outside label space of size %d", label, cfg.K)
		}
		loss += lse - logits[label]
		p := probs[i*cfg.K : i*cfg.K+cfg.K]
		for k := 0; k < cfg.K; k++ {
			p[k] = math.Exp(logits[k] - lse)
		}
	}
	loss /= float64(B)
	if c.training {
		c.lastBatch = b
		c.lastPooled = pooled
		c.lastProbs = probs
		c.lastB = B
	}
	return loss, nil
}

// Backward accumulates gradients for the last Forward into GradsMemory.
func (c *Classifier) Backward() error {
	if !c.training || c.lastB == 0 {
		return errors.New("must Forward in train mode before Backward")
	}
	cfg := c.Config
	B := c.lastB
	grads := c.GradsMemory
	gTok := grads[:cfg.V*cfg.C]
	gW := grads[cfg.V*cfg.C : cfg.V*cfg.C+cfg.K*cfg.C]
	gB := grads[cfg.V*cfg.C+cfg.K*cfg.C:]
	dpool := make([]float64, cfg.C)
	scale := 1.0 / float64(B)
	for i := 0; i < B; i++ {
		pool := c.lastPooled[i*cfg.C : i*cfg.C+cfg.C]
		p := c.lastProbs[i*cfg.K : i*cfg.K+cfg.K]
		for j := range dpool {
			dpool[j] = 0
		}
		for k := 0; k < cfg.K; k++ {
			dl := p[k] * scale
			if k == c.lastBatch.Labels[i] {
				dl -= scale
			}
			gB[k] += dl
			wrow := c.ProjW[k*cfg.C : k*cfg.C+cfg.C]
			gwrow := gW[k*cfg.C : k*cfg.C+cfg.C]
			for j := 0; j < cfg.C; j++ {
				gwrow[j] += dl * pool[j]
				dpool[j] += dl * wrow[j]
			}
		}
		// distribute the pooled gradient back over the masked positions
		tokens, mask := c.lastBatch.Inputs[i], c.lastBatch.Masks[i]
		nmask := 0
		for t := range tokens {
			if t >= len(mask) || mask[t] != 0 {
				nmask++
			}
		}
		if nmask == 0 {
			continue
		}
		inv := 1.0 / float64(nmask)
		for t := range tokens {
			if t < len(mask) && mask[t] == 0 {
				continue
			}
			row := gTok[tokens[t]*cfg.C : tokens[t]*cfg.C+cfg.C]
			for j := 0; j < cfg.C; j++ {
				row[j] += dpool[j] * inv
			}
		}
	}
	return nil
}

// ClipGradNorm rescales the accumulated gradient so its global L2 norm does
// not exceed max.
func (c *Classifier) ClipGradNorm(max float64) {
	norm := floats.Norm(c.GradsMemory, 2)
	if norm > max && norm > 0 {
		floats.Scale(max/norm, c.GradsMemory)
	}
}

// Logits scores one encoded window. Segment ids are accepted for interface
// symmetry but carry no signal in this scorer.
func (c *Classifier) Logits(tokens, mask, _ []int) ([]float64, error) {
	cfg := c.Config
	pool := make([]float64, cfg.C)
	if _, err := c.poolForward(tokens, mask, pool); err != nil {
		return nil, err
	}
	logits := make([]float64, cfg.K)
	c.projForward(pool, logits)
	return logits, nil
}

// Clone deep-copies the weights into an independent classifier. Gradient
// memory and caches are not carried over.
func (c *Classifier) Clone() Scorer {
	cp := &Classifier{Config: c.Config}
	cp.Memory = make([]float64, len(c.Memory))
	copy(cp.Memory, c.Memory)
	cp.GradsMemory = make([]float64, len(c.GradsMemory))
	cp.bindViews()
	return cp
}

// SaveWeights writes the native weight file: a little-endian int32 header
// followed by the flat parameter memory.
func (c *Classifier) SaveWeights(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating weight file: %w", err)
	}
	defer f.Close()
	cfg := c.Config
	header := []int32{classifierMagic, classifierVersion, int32(cfg.V), int32(cfg.C), int32(cfg.T), int32(cfg.K)}
	if err := binary.Write(f, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("writing weight header: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, c.Memory); err != nil {
		return fmt.Errorf("writing weights: %w", err)
	}
	return nil
}

// LoadClassifier reads a weight file written by SaveWeights.
func LoadClassifier(path string) (*Classifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening weight file: %w", err)
	}
	defer f.Close()
	header := make([]int32, 6)
	if err := binary.Read(f, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("reading weight header: %w", err)
	}
	if header[0] != classifierMagic || header[1] != classifierVersion {
		return nil, errors.New("bad weight file format")
	}
	cfg := ClassifierConfig{V: int(header[2]), C: int(header[3]), T: int(header[4]), K: int(header[5])}
	c := &Classifier{Config: cfg}
	n := cfg.V*cfg.C + cfg.K*cfg.C + cfg.K
	c.Memory = make([]float64, n)
	c.GradsMemory = make([]float64, n)
	c.bindViews()
	if err := binary.Read(f, binary.LittleEndian, c.Memory); err != nil {
		return nil, fmt.Errorf("reading weights: %w", err)
	}
	return c, nil
}
