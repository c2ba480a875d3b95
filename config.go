package textweave

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config stores the application configuration. Values are read by viper
// from a config file or matching environment variables.
type Config struct {
	Corpus    string        `mapstructure:"corpus"`
	OutputDir string        `mapstructure:"outputdir"`
	VocabPath string        `mapstructure:"vocabpath"`
	Tokenizer string        `mapstructure:"tokenizer"` // "word" or "wordpiece"
	Dataset   DatasetConfig `mapstructure:"dataset"`
	Train     TrainConfig   `mapstructure:"train"`
	Generate  GenConfig     `mapstructure:"generate"`
}

// DatasetConfig shapes the corpus-to-pattern conversion.
type DatasetConfig struct {
	ContextSize int     `mapstructure:"contextsize"`
	BatchSize   int     `mapstructure:"batchsize"`
	ValRatio    float64 `mapstructure:"valratio"`
}

// TrainConfig holds the training hyper-parameters.
type TrainConfig struct {
	EmbedDim         int     `mapstructure:"embeddim"`
	MaxEpochs        int     `mapstructure:"maxepochs"`
	Patience         int     `mapstructure:"patience"`
	LearningRate     float64 `mapstructure:"learningrate"`
	CheckpointEpochs int     `mapstructure:"checkpointepochs"`
	GradAccumSteps   int     `mapstructure:"gradaccumsteps"`
}

// GenConfig holds the generation parameters.
type GenConfig struct {
	Seed        string  `mapstructure:"seed"`
	MaxLength   int     `mapstructure:"maxlength"`
	Temperature float64 `mapstructure:"temperature"`
}

// LoadConfig reads configuration from the given file, or from
// ./textweave.yaml and environment variables when no path is given.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("textweave")
		v.SetConfigType("yaml")
	}

	v.SetDefault("outputdir", "out")
	v.SetDefault("tokenizer", "word")
	v.SetDefault("dataset.contextsize", 32)
	v.SetDefault("dataset.batchsize", 16)
	v.SetDefault("dataset.valratio", 0.2)
	v.SetDefault("train.embeddim", 64)
	v.SetDefault("train.maxepochs", 1000)
	v.SetDefault("train.patience", 10)
	v.SetDefault("train.learningrate", 5e-5)
	v.SetDefault("train.checkpointepochs", 10)
	v.SetDefault("train.gradaccumsteps", 1)
	v.SetDefault("generate.maxlength", 100)
	v.SetDefault("generate.temperature", 1.0)

	v.SetEnvPrefix("textweave")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// no config file: defaults and environment only
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}
