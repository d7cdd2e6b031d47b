package eval

import (
	"fmt"
	"strings"

	"github.com/zielm/covid-analysis/internal/classify"
)

// #region eval-harness
// EvalHarness checks a held-out evaluation against configured floors.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run compares sensitivity, specificity and accuracy with their floors and
// reports the test size. The evaluation itself is not changed.
func (h *EvalHarness) Run(res classify.EvaluationResult) EvalResult {
	checks := []struct {
		name  string
		value float64
		floor float64
	}{
		{"sensitivity", res.Sensitivity, h.config.MinSensitivity},
		{"specificity", res.Specificity, h.config.MinSpecificity},
		{"accuracy", res.Accuracy, h.config.MinAccuracy},
	}

	var metrics []EvalMetric
	var failReasons []string
	for _, c := range checks {
		pass := c.value >= c.floor
		metrics = append(metrics, EvalMetric{Name: c.name, Value: c.value, Floor: c.floor, Pass: pass})
		if !pass {
			failReasons = append(failReasons, fmt.Sprintf("%s %.4f below %.4f", c.name, c.value, c.floor))
		}
	}

	// informational
	n := res.Confusion.Total()
	metrics = append(metrics, EvalMetric{Name: "test_size", Value: float64(n), Pass: n > 0})

	reason := "all checks passed"
	if len(failReasons) > 0 {
		reason = "eval failed: " + strings.Join(failReasons, "; ")
	}
	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness
