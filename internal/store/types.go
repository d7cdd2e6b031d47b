package store

import (
	"time"

	"github.com/zielm/covid-analysis/internal/features"
	"github.com/zielm/covid-analysis/internal/forest"
	"github.com/zielm/covid-analysis/internal/pipeline"
)

// #region run-record
// RunRecord is one stored analysis run.
type RunRecord struct {
	RunID        string
	CreatedAt    time.Time
	Config       pipeline.Config
	Summary      pipeline.Summary
	Correlations []features.FeatureCorrelation // ranked, defined columns only
	Undefined    []string
	Selected     []string
	Importance   []forest.FeatureScore
	Baseline     pipeline.Baseline
	ResultJSON   string
}

// #endregion run-record
