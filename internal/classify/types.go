package classify

import "github.com/zielm/covid-analysis/internal/forest"

// #region harness-config
// HarnessConfig holds the split, resampling and ensemble settings.
type HarnessConfig struct {
	TrainFraction float64
	Folds         int
	Repeats       int
	TuneLength    int // number of mtry candidates tried by cross-validation
	Forest        forest.Config
}

// DefaultHarnessConfig returns a 70/30 split with 5 × 10-fold CV over a 10-tree forest.
func DefaultHarnessConfig() HarnessConfig {
	return HarnessConfig{
		TrainFraction: 0.7,
		Folds:         10,
		Repeats:       5,
		TuneLength:    3,
		Forest:        forest.DefaultConfig(),
	}
}

// #endregion harness-config

// #region confusion
// ConfusionMatrix counts test predictions with died as the positive class.
type ConfusionMatrix struct {
	TP int `json:"tp"` // predicted died, died
	FP int `json:"fp"` // predicted died, survived
	TN int `json:"tn"` // predicted survived, survived
	FN int `json:"fn"` // predicted survived, died
}

// Add records one prediction against its reference label.
func (c *ConfusionMatrix) Add(predicted, actual int) {
	switch {
	case predicted == forest.Positive && actual == forest.Positive:
		c.TP++
	case predicted == forest.Positive:
		c.FP++
	case actual == forest.Positive:
		c.FN++
	default:
		c.TN++
	}
}

// Matrix lays the counts out with rows as prediction and columns as
// reference, both ordered [died, survived].
func (c ConfusionMatrix) Matrix() [2][2]int {
	return [2][2]int{
		{c.TP, c.FP},
		{c.FN, c.TN},
	}
}

// Total is the number of scored rows.
func (c ConfusionMatrix) Total() int {
	return c.TP + c.FP + c.TN + c.FN
}

// Sensitivity is TP / (TP + FN), 0 when no positives were present.
func (c ConfusionMatrix) Sensitivity() float64 {
	return ratio(c.TP, c.TP+c.FN)
}

// Specificity is TN / (TN + FP), 0 when no negatives were present.
func (c ConfusionMatrix) Specificity() float64 {
	return ratio(c.TN, c.TN+c.FP)
}

// Accuracy is the share of correct predictions.
func (c ConfusionMatrix) Accuracy() float64 {
	return ratio(c.TP+c.TN, c.Total())
}

// Kappa is Cohen's kappa against chance agreement.
func (c ConfusionMatrix) Kappa() float64 {
	n := float64(c.Total())
	if n == 0 {
		return 0
	}
	po := float64(c.TP+c.TN) / n
	pe := (float64(c.TP+c.FP)*float64(c.TP+c.FN) + float64(c.FN+c.TN)*float64(c.FP+c.TN)) / (n * n)
	if pe == 1 {
		return 0
	}
	return (po - pe) / (1 - pe)
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// #endregion confusion

// #region results
// CVResult summarises one mtry candidate over all resamples.
type CVResult struct {
	MTry       int     `json:"mtry"`
	Accuracy   float64 `json:"accuracy"`
	AccuracySD float64 `json:"accuracy_sd"`
	Kappa      float64 `json:"kappa"`
	KappaSD    float64 `json:"kappa_sd"`
	Resamples  int     `json:"resamples"`
}

// CVSummary is the cross-validation outcome and the chosen mtry.
type CVSummary struct {
	Results  []CVResult `json:"results"`
	BestMTry int        `json:"best_mtry"`
}

// Model is the forest refit on the whole training partition with the chosen mtry.
type Model struct {
	Forest   *forest.Forest
	Features []string
	CV       CVSummary
}

// EvaluationResult is the held-out performance of a model.
type EvaluationResult struct {
	Confusion          ConfusionMatrix       `json:"confusion"`
	Matrix             [2][2]int             `json:"confusion_matrix"`
	Sensitivity        float64               `json:"sensitivity"`
	Specificity        float64               `json:"specificity"`
	Accuracy           float64               `json:"accuracy"`
	VariableImportance []forest.FeatureScore `json:"variable_importance"`
}

// Outcome bundles everything the harness produced for one dataset.
type Outcome struct {
	Split      Split
	Medians    map[string]float64
	Model      *Model
	Evaluation EvaluationResult
}

// #endregion results
