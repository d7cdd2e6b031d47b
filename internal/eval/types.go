package eval

// #region eval-config
// EvalConfig holds floors for held-out performance. A zero floor makes the
// check informational only.
type EvalConfig struct {
	MinSensitivity float64 `json:"min_sensitivity"`
	MinSpecificity float64 `json:"min_specificity"`
	MinAccuracy    float64 `json:"min_accuracy"`
}

// DefaultEvalConfig reports every metric without failing the run.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Floor float64 `json:"floor"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the verdict over all checks.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// #endregion eval-result
