package pipeline

import (
	"time"

	"github.com/zielm/covid-analysis/internal/classify"
	"github.com/zielm/covid-analysis/internal/eval"
	"github.com/zielm/covid-analysis/internal/features"
	"github.com/zielm/covid-analysis/internal/forest"
)

// #region stage-trace
// StageTrace records what one stage did, for logs and the stage log table.
type StageTrace struct {
	Stage    string         `json:"stage"`
	Decision string         `json:"decision"` // "ok" | "warn"
	Reason   string         `json:"reason,omitempty"`
	Counts   map[string]int `json:"counts,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// #endregion stage-trace

// #region result
// Result is the complete output of one run. It is only returned when every stage succeeded.
type Result struct {
	RunID     string    `json:"run_id"`
	Config    Config    `json:"config"`
	StartedAt time.Time `json:"started_at"`

	Records  int `json:"records"`
	Patients int `json:"patients"`
	Deaths   int `json:"deaths"`

	Correlations features.CorrelationReport `json:"correlations"`
	Candidates   []string                   `json:"candidates"`
	Selected     []string                   `json:"selected"`
	Redundant    []features.Redundant       `json:"redundant,omitempty"`

	Medians    map[string]float64        `json:"medians"`
	Split      classify.Split            `json:"split"`
	CV         classify.CVSummary        `json:"cv"`
	Evaluation classify.EvaluationResult `json:"evaluation"`
	Quality    eval.EvalResult           `json:"quality"`

	Model *forest.Forest `json:"-"`
	Trace []StageTrace   `json:"trace"`
}

// #endregion result

// #region summary
// Summary is a compact view of a run for tables and logs.
type Summary struct {
	RunID       string  `json:"run_id"`
	Patients    int     `json:"patients"`
	Deaths      int     `json:"deaths"`
	Selected    int     `json:"selected"`
	TrainSize   int     `json:"train_size"`
	TestSize    int     `json:"test_size"`
	BestMTry    int     `json:"best_mtry"`
	Sensitivity float64 `json:"sensitivity"`
	Specificity float64 `json:"specificity"`
	Accuracy    float64 `json:"accuracy"`
	Passed      bool    `json:"passed"`
}

// Summarize condenses a result.
func Summarize(r Result) Summary {
	return Summary{
		RunID:       r.RunID,
		Patients:    r.Patients,
		Deaths:      r.Deaths,
		Selected:    len(r.Selected),
		TrainSize:   len(r.Split.Train),
		TestSize:    len(r.Split.Test),
		BestMTry:    r.CV.BestMTry,
		Sensitivity: r.Evaluation.Sensitivity,
		Specificity: r.Evaluation.Specificity,
		Accuracy:    r.Evaluation.Accuracy,
		Passed:      r.Quality.Passed,
	}
}

// #endregion summary
