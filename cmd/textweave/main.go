package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/textweave/textweave"
)

var (
	cfgFile string
	log     = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
)

var rootCmd = &cobra.Command{
	Use:   "textweave",
	Short: "Fine-tune a next-token classifier and generate text with it",
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fine-tune a model on a text corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := textweave.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if cfg.Corpus == "" {
			return fmt.Errorf("no corpus configured")
		}
		raw, err := os.ReadFile(cfg.Corpus)
		if err != nil {
			return fmt.Errorf("reading corpus: %w", err)
		}
		corpus := string(raw)

		tok, err := buildTokenizer(cfg, corpus, cfg.Dataset.ContextSize)
		if err != nil {
			return err
		}
		dataset, err := textweave.NewDataset(tok, corpus,
			cfg.Dataset.ContextSize, cfg.Dataset.BatchSize, cfg.Dataset.ValRatio)
		if err != nil {
			return err
		}

		model := textweave.NewModel()
		model.Logger = log
		model.EmbedDim = cfg.Train.EmbedDim

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return model.Fit(ctx, dataset, cfg.OutputDir, textweave.FitOptions{
			MaxEpochs:        cfg.Train.MaxEpochs,
			Patience:         cfg.Train.Patience,
			LearningRate:     cfg.Train.LearningRate,
			CheckpointEpochs: cfg.Train.CheckpointEpochs,
			GradAccumSteps:   cfg.Train.GradAccumSteps,
		})
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate [modeldir]",
	Short: "Generate text from a trained model",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := textweave.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		modelDir := filepath.Join(cfg.OutputDir, "best")
		if len(args) == 1 {
			modelDir = args[0]
		}
		model, err := textweave.LoadModel(modelDir)
		if err != nil {
			return err
		}
		model.Logger = log

		var corpus string
		if cfg.Tokenizer == "word" {
			raw, err := os.ReadFile(cfg.Corpus)
			if err != nil {
				return fmt.Errorf("reading corpus to rebuild vocabulary: %w", err)
			}
			corpus = string(raw)
		}
		// the encoded window width must match the trained model, not the
		// current config
		tok, err := buildTokenizer(cfg, corpus, model.ContextSize)
		if err != nil {
			return err
		}

		text, err := model.Generate(tok, cfg.Generate.Seed, cfg.Generate.MaxLength, cfg.Generate.Temperature)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}

var fetchVocabCmd = &cobra.Command{
	Use:   "fetch-vocab",
	Short: "Download the pretrained WordPiece vocabulary",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := textweave.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if cfg.VocabPath == "" {
			return fmt.Errorf("no vocabpath configured")
		}
		return textweave.DownloadVocab(log, cfg.VocabPath, textweave.DefaultVocabURL)
	},
}

func buildTokenizer(cfg *textweave.Config, corpus string, contextSize int) (textweave.Tokenizer, error) {
	switch cfg.Tokenizer {
	case "wordpiece":
		return textweave.NewWordPiece(cfg.VocabPath, contextSize)
	case "word":
		return textweave.NewWordTokenizer(corpus, contextSize), nil
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", cfg.Tokenizer)
	}
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(fetchVocabCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
