package textweave

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	weightsFile  = "weights.bin"
	metadataFile = "labels.json"
)

// ErrBadMetadata reports a missing or inconsistent model metadata sidecar.
var ErrBadMetadata = errors.New("model metadata missing or inconsistent")

// Model is a text generation model: an opaque trainable scorer plus the
// label mapping and context window size fixed at training time. A Model must
// be trained or loaded before generation is possible.
type Model struct {
	// Scorer is the underlying trainable classifier.
	Scorer Scorer
	// Labels maps a sampled label index back to the vocabulary token id.
	// Set exactly once, by Fit, and persisted together with the weights.
	Labels []int
	// ContextSize is the maximum number of prior tokens fed to the scorer
	// per prediction step. Set by Fit alongside Labels.
	ContextSize int

	// Sampler picks the next label index during generation. Defaults to
	// multinomial sampling.
	Sampler Sampler
	Logger  zerolog.Logger
	// EmbedDim sizes the classifier built by Fit.
	EmbedDim int
}

// NewModel returns an untrained model with default sampling and logging.
func NewModel() *Model {
	return &Model{
		Sampler:  &MultinomialSampler{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))},
		Logger:   zerolog.New(os.Stderr).With().Timestamp().Logger(),
		EmbedDim: 64,
	}
}

type modelMetadata struct {
	Labels      []int `json:"labels"`
	ContextSize int   `json:"contextsize"`
}

// Save persists the model into dir: the scorer's native weight file next to
// the metadata sidecar holding the label mapping and context size. Both are
// required to load the model again.
func (m *Model) Save(dir string) error {
	if m.Scorer == nil {
		return errors.New("cannot save an untrained model")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}
	if err := m.Scorer.SaveWeights(filepath.Join(dir, weightsFile)); err != nil {
		return err
	}
	meta := modelMetadata{Labels: m.Labels, ContextSize: m.ContextSize}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), raw, 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// LoadModel restores a model saved by Save. Both the weight file and the
// metadata sidecar must be present and mutually consistent.
func LoadModel(dir string) (*Model, error) {
	raw, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMetadata, err)
	}
	var meta modelMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMetadata, err)
	}
	if len(meta.Labels) == 0 || meta.ContextSize <= 0 {
		return nil, fmt.Errorf("%w: empty labels or context size", ErrBadMetadata)
	}
	scorer, err := LoadClassifier(filepath.Join(dir, weightsFile))
	if err != nil {
		return nil, err
	}
	if scorer.NumLabels() != len(meta.Labels) {
		return nil, fmt.Errorf("%w: %d labels but scorer has %d outputs",
			ErrBadMetadata, len(meta.Labels), scorer.NumLabels())
	}
	m := NewModel()
	m.Scorer = scorer
	m.Labels = meta.Labels
	m.ContextSize = meta.ContextSize
	return m, nil
}
