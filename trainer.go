package textweave

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
)

var (
	// ErrInsufficientData reports a dataset without at least one training
	// and one validation batch.
	ErrInsufficientData = errors.New("insufficient data for training in the current setting")
	// ErrNoImprovement reports that training finished without a single
	// epoch improving on the initial validation loss, so no best model
	// snapshot exists.
	ErrNoImprovement = errors.New("training finished without any validation improvement")
)

// FitOptions are the training hyper-parameters. Zero values fall back to the
// defaults documented on each field.
type FitOptions struct {
	// MaxEpochs bounds the number of training epochs. Default 1000.
	MaxEpochs int
	// Patience is the number of epochs without validation improvement
	// before stopping early. Default 10.
	Patience int
	// LearningRate is the base optimizer learning rate. Default 5e-5.
	LearningRate float64
	// CheckpointEpochs saves the current model every n-th epoch. Default 10.
	CheckpointEpochs int
	// GradAccumSteps accumulates gradients over n batches before an
	// optimizer update, trading update frequency for effective batch size.
	// Default 1.
	GradAccumSteps int
	// SampleLength is the length cap of the per-epoch generation sample.
	// Default 100.
	SampleLength int
}

func (o FitOptions) withDefaults() FitOptions {
	if o.MaxEpochs <= 0 {
		o.MaxEpochs = 1000
	}
	if o.Patience <= 0 {
		o.Patience = 10
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 5e-5
	}
	if o.CheckpointEpochs <= 0 {
		o.CheckpointEpochs = 10
	}
	if o.GradAccumSteps <= 0 {
		o.GradAccumSteps = 1
	}
	if o.SampleLength <= 0 {
		o.SampleLength = 100
	}
	return o
}

// Fit fine-tunes the model on the dataset, checkpointing every
// CheckpointEpochs epochs under outputdir and stopping early after Patience
// epochs without validation improvement. Whatever stops the loop, the best
// validation snapshot becomes the active model state and is saved under
// <outputdir>/best.
//
// Because epoch zero always checkpoints, at least one checkpoint exists
// whenever any epoch completes; no additional checkpoint is written at
// termination.
func (m *Model) Fit(ctx context.Context, dataset *Dataset, outputdir string, opts FitOptions) error {
	opts = opts.withDefaults()
	m.Logger.Info().
		Float64("learningrate", opts.LearningRate).
		Int("batchsize", dataset.BatchSize()).
		Int("gradient_accumulation_steps", opts.GradAccumSteps).
		Int("train_batches", dataset.LenTrainBatches()).
		Int("val_batches", dataset.LenValBatches()).
		Msg("starting training")

	if dataset.LenTrainBatches() == 0 || dataset.LenValBatches() == 0 {
		return ErrInsufficientData
	}

	// Dataset shape is captured into the model once; generation depends on
	// these matching the trained weights.
	m.Labels = dataset.UniqueTokens()
	m.ContextSize = dataset.TokensPerPattern()
	if m.Scorer == nil {
		m.Scorer = NewClassifier(ClassifierConfig{
			V: dataset.VocabSize(),
			C: m.EmbedDim,
			T: dataset.TokensPerPattern(),
			K: dataset.LenLabels(),
		})
	}

	optimizer := NewAdamW(len(m.Scorer.Params()))
	schedule := newWarmupLinear(0, opts.MaxEpochs*dataset.LenTrainBatches())

	bestEvalLoss := math.Inf(1)
	noImprovement := 0
	var best Scorer
	m.Scorer.ZeroGrad()

	for epoch := 0; epoch < opts.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var trainLoss float64
		m.Scorer.TrainMode()
		batches := dataset.TrainBatches()
		step := 0
		for {
			batch, ok := batches.Next()
			if !ok {
				break
			}
			loss, err := m.Scorer.Forward(batch)
			if err != nil {
				return fmt.Errorf("epoch %d batch %d: %w", epoch, step, err)
			}
			trainLoss += loss
			if err := m.Scorer.Backward(); err != nil {
				return fmt.Errorf("epoch %d batch %d: %w", epoch, step, err)
			}
			m.Scorer.ClipGradNorm(1.0)
			if (step+1)%opts.GradAccumSteps == 0 {
				lr := opts.LearningRate * schedule.Next()
				optimizer.Step(m.Scorer.Params(), m.Scorer.Grads(), lr)
				m.Scorer.ZeroGrad()
			}
			step++
		}
		trainLoss /= float64(dataset.LenTrainBatches())

		evalLoss, err := m.Eval(dataset)
		if err != nil {
			return err
		}

		sample, err := m.Generate(dataset.Tokenizer(), "", opts.SampleLength, 1.0)
		if err != nil {
			return fmt.Errorf("epoch %d sample: %w", epoch, err)
		}
		m.Logger.Info().
			Int("epoch", epoch).
			Float64("lr", opts.LearningRate*schedule.LR()).
			Float64("train_loss", trainLoss).
			Float64("eval_loss", evalLoss).
			Str("sample", sample).
			Msg("epoch complete")

		if evalLoss < bestEvalLoss {
			bestEvalLoss = evalLoss
			noImprovement = 0
			best = m.Scorer.Clone()
		} else {
			noImprovement++
		}
		if noImprovement >= opts.Patience {
			m.Logger.Info().
				Int("patience", opts.Patience).
				Msg("no improvement, stopping training")
			break
		}

		if epoch%opts.CheckpointEpochs == 0 {
			checkDir := filepath.Join(outputdir, fmt.Sprintf("checkpoint-%d", epoch))
			if err := m.Save(checkDir); err != nil {
				return err
			}
		}
	}

	if best == nil {
		return ErrNoImprovement
	}
	m.Scorer = best
	return m.Save(filepath.Join(outputdir, "best"))
}

// Eval computes the mean loss over the validation split. The scorer is
// switched to evaluation mode and no gradients or optimizer state are
// touched.
func (m *Model) Eval(dataset *Dataset) (float64, error) {
	if dataset.LenValBatches() == 0 {
		return 0, ErrInsufficientData
	}
	m.Scorer.EvalMode()
	var evalLoss float64
	steps := 0
	batches := dataset.ValBatches()
	for {
		batch, ok := batches.Next()
		if !ok {
			break
		}
		loss, err := m.Scorer.Forward(batch)
		if err != nil {
			return 0, fmt.Errorf("validation batch %d: %w", steps, err)
		}
		evalLoss += loss
		steps++
	}
	return evalLoss / float64(steps), nil
}
