package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/zielm/covid-analysis/internal/classify"
	"github.com/zielm/covid-analysis/internal/eval"
	"github.com/zielm/covid-analysis/internal/features"
	"github.com/zielm/covid-analysis/internal/forest"
)

// #region config
// Config holds every recognised run option.
type Config struct {
	CorrVal        float64 `json:"corr_val"`
	TrainFraction  float64 `json:"train_fraction"`
	CVFolds        int     `json:"cv_folds"`
	CVRepeats      int     `json:"cv_repeats"`
	EnsembleSize   int     `json:"ensemble_size"`
	TuneLength     int     `json:"tune_length"`
	RandomSeed     int64   `json:"random_seed"`
	Workers        int     `json:"workers"`
	MinSensitivity float64 `json:"min_sensitivity"`
	MinSpecificity float64 `json:"min_specificity"`
	MinAccuracy    float64 `json:"min_accuracy"`
}

// DefaultConfig returns the standard analysis settings.
func DefaultConfig() Config {
	harness := classify.DefaultHarnessConfig()
	return Config{
		CorrVal:       features.DefaultSelectorConfig().Threshold,
		TrainFraction: harness.TrainFraction,
		CVFolds:       harness.Folds,
		CVRepeats:     harness.Repeats,
		EnsembleSize:  harness.Forest.NumTrees,
		TuneLength:    harness.TuneLength,
		RandomSeed:    42,
	}
}

// Validate rejects values no stage can work with.
func (c Config) Validate() error {
	switch {
	case c.CorrVal <= 0 || c.CorrVal > 1:
		return fmt.Errorf("corr_val %v outside (0, 1]", c.CorrVal)
	case c.TrainFraction <= 0 || c.TrainFraction >= 1:
		return fmt.Errorf("train_fraction %v outside (0, 1)", c.TrainFraction)
	case c.CVFolds < 2:
		return fmt.Errorf("cv_folds %d below 2", c.CVFolds)
	case c.CVRepeats < 1:
		return fmt.Errorf("cv_repeats %d below 1", c.CVRepeats)
	case c.EnsembleSize < 1:
		return fmt.Errorf("ensemble_size %d below 1", c.EnsembleSize)
	case c.TuneLength < 1:
		return fmt.Errorf("tune_length %d below 1", c.TuneLength)
	case c.Workers < 0:
		return fmt.Errorf("workers %d is negative", c.Workers)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"min_sensitivity", c.MinSensitivity},
		{"min_specificity", c.MinSpecificity},
		{"min_accuracy", c.MinAccuracy},
	} {
		if f.value < 0 || f.value > 1 {
			return fmt.Errorf("%s %v outside [0, 1]", f.name, f.value)
		}
	}
	return nil
}

// #endregion config

// #region stage-configs
// SelectorConfig converts to the feature selector's configuration.
func (c Config) SelectorConfig() features.SelectorConfig {
	return features.SelectorConfig{Threshold: c.CorrVal}
}

// HarnessConfig converts to the classifier harness configuration.
func (c Config) HarnessConfig() classify.HarnessConfig {
	f := forest.DefaultConfig()
	f.NumTrees = c.EnsembleSize
	f.Workers = c.Workers
	return classify.HarnessConfig{
		TrainFraction: c.TrainFraction,
		Folds:         c.CVFolds,
		Repeats:       c.CVRepeats,
		TuneLength:    c.TuneLength,
		Forest:        f,
	}
}

// EvalConfig converts to the quality check configuration.
func (c Config) EvalConfig() eval.EvalConfig {
	return eval.EvalConfig{
		MinSensitivity: c.MinSensitivity,
		MinSpecificity: c.MinSpecificity,
		MinAccuracy:    c.MinAccuracy,
	}
}

// #endregion stage-configs

// #region config-loader
// LoadConfig reads a JSON config file. Options absent from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// #endregion config-loader
