package textweave

import (
	"errors"
	"sort"
)

// Batch is a fixed-size group of encoded training examples: BERT input
// triples plus the label index of the token that follows each window.
type Batch struct {
	Inputs [][]int
	Masks  [][]int
	Types  [][]int
	Labels []int
}

type pattern struct {
	window []int // up to tokensPerPattern most recent tokens
	label  int   // label index of the next token
}

// Dataset turns a tokenized corpus into supervised next-token patterns:
// every window of up to tokensPerPattern consecutive tokens predicts the
// token that follows it. Patterns are split deterministically into a train
// and a validation part and served in fixed-size batches.
type Dataset struct {
	tokenizer        Tokenizer
	batchSize        int
	tokensPerPattern int

	uniqueTokens []int
	labelIndex   map[int]int

	train []pattern
	val   []pattern
}

// NewDataset tokenizes the corpus, appends the end-of-sequence marker so the
// model can learn to stop, and splits the resulting patterns with the last
// valRatio fraction held out for validation.
func NewDataset(tok Tokenizer, corpus string, tokensPerPattern, batchSize int, valRatio float64) (*Dataset, error) {
	if tokensPerPattern <= 0 || batchSize <= 0 {
		return nil, errors.New("tokensperpattern and batchsize must be positive")
	}
	if valRatio < 0 || valRatio >= 1 {
		return nil, errors.New("validation ratio must be in [0, 1)")
	}
	tokens, err := tok.EncodeText(corpus)
	if err != nil {
		return nil, err
	}
	tokens = append(tokens, tok.EndID())

	ds := &Dataset{
		tokenizer:        tok,
		batchSize:        batchSize,
		tokensPerPattern: tokensPerPattern,
		labelIndex:       make(map[int]int),
	}

	// The label space is the set of tokens that ever appear as a target,
	// in deterministic ascending order.
	seen := make(map[int]bool)
	for _, id := range tokens[1:] {
		if !seen[id] {
			seen[id] = true
			ds.uniqueTokens = append(ds.uniqueTokens, id)
		}
	}
	sort.Ints(ds.uniqueTokens)
	for i, id := range ds.uniqueTokens {
		ds.labelIndex[id] = i
	}

	var patterns []pattern
	for i := 1; i < len(tokens); i++ {
		start := i - tokensPerPattern
		if start < 0 {
			start = 0
		}
		patterns = append(patterns, pattern{
			window: tokens[start:i],
			label:  ds.labelIndex[tokens[i]],
		})
	}
	split := len(patterns) - int(float64(len(patterns))*valRatio)
	ds.train = patterns[:split]
	ds.val = patterns[split:]
	return ds, nil
}

// UniqueTokens is the ordered label vocabulary: label index to token id.
func (ds *Dataset) UniqueTokens() []int { return ds.uniqueTokens }

func (ds *Dataset) TokensPerPattern() int { return ds.tokensPerPattern }
func (ds *Dataset) BatchSize() int        { return ds.batchSize }
func (ds *Dataset) VocabSize() int        { return ds.tokenizer.VocabSize() }
func (ds *Dataset) LenLabels() int        { return len(ds.uniqueTokens) }
func (ds *Dataset) Tokenizer() Tokenizer  { return ds.tokenizer }

// Only full batches are served, so incomplete tails are dropped.
func (ds *Dataset) LenTrainBatches() int { return len(ds.train) / ds.batchSize }
func (ds *Dataset) LenValBatches() int   { return len(ds.val) / ds.batchSize }

// TrainBatches returns a fresh iterator over the training split. Each call
// restarts from the first batch.
func (ds *Dataset) TrainBatches() *BatchIter {
	return &BatchIter{ds: ds, patterns: ds.train, numBatches: ds.LenTrainBatches()}
}

// ValBatches returns a fresh iterator over the validation split.
func (ds *Dataset) ValBatches() *BatchIter {
	return &BatchIter{ds: ds, patterns: ds.val, numBatches: ds.LenValBatches()}
}

// BatchIter lazily encodes one batch at a time.
type BatchIter struct {
	ds         *Dataset
	patterns   []pattern
	numBatches int
	pos        int
}

// Next returns the next batch, or ok=false when the split is exhausted.
func (it *BatchIter) Next() (Batch, bool) {
	if it.pos >= it.numBatches {
		return Batch{}, false
	}
	b := Batch{
		Inputs: make([][]int, it.ds.batchSize),
		Masks:  make([][]int, it.ds.batchSize),
		Types:  make([][]int, it.ds.batchSize),
		Labels: make([]int, it.ds.batchSize),
	}
	base := it.pos * it.ds.batchSize
	for i := 0; i < it.ds.batchSize; i++ {
		p := it.patterns[base+i]
		ids, mask, types := it.ds.tokenizer.EncodeBERT(p.window)
		b.Inputs[i] = ids
		b.Masks[i] = mask
		b.Types[i] = types
		b.Labels[i] = p.label
	}
	it.pos++
	return b, true
}

// Reset rewinds the iterator to the first batch.
func (it *BatchIter) Reset() { it.pos = 0 }
