package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/zielm/covid-analysis/internal/aggregate"
	"github.com/zielm/covid-analysis/internal/classify"
	"github.com/zielm/covid-analysis/internal/eval"
	"github.com/zielm/covid-analysis/internal/features"
	"github.com/zielm/covid-analysis/internal/impute"
	"github.com/zielm/covid-analysis/internal/records"
)

// #region run
// Run executes impute → aggregate → select → classify → evaluate on one batch.
//
// A single generator seeded from config.RandomSeed drives the split, the
// folds and the forests, in that order, so a seed reproduces the run.
// Any stage error aborts the run and no partial result is returned.
func Run(ctx context.Context, store *records.RecordStore, config Config, logger *slog.Logger) (Result, error) {
	if err := config.Validate(); err != nil {
		return Result{}, fmt.Errorf("config: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	res := Result{
		RunID:     uuid.New().String(),
		Config:    config,
		StartedAt: time.Now().UTC(),
		Records:   store.Len(),
	}
	logger = logger.With("run_id", res.RunID)
	seed := uint64(config.RandomSeed)
	rng := rand.New(rand.NewPCG(seed, seed))

	stage := func(name string, fn func() (StageTrace, error)) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		start := time.Now()
		tr, err := fn()
		if err != nil {
			logger.Error("stage failed", "stage", name, "error", err)
			return fmt.Errorf("%s: %w", name, err)
		}
		tr.Stage = name
		tr.Duration = time.Since(start)
		if tr.Decision == "" {
			tr.Decision = "ok"
		}
		res.Trace = append(res.Trace, tr)
		logger.Info("stage complete", "stage", name, "decision", tr.Decision, "counts", tr.Counts, "duration", tr.Duration)
		return nil
	}

	// 1. Impute
	var imputed *records.RecordStore
	err := stage("impute", func() (StageTrace, error) {
		var err error
		imputed, err = impute.Impute(store)
		if err != nil {
			return StageTrace{}, err
		}
		return StageTrace{Counts: map[string]int{
			"rows":         imputed.Len(),
			"missing_ids":  countMissingIDs(store),
			"nulls_before": countNulls(store),
			"nulls_after":  countNulls(imputed),
		}}, nil
	})
	if err != nil {
		return Result{}, err
	}

	// 2. Aggregate patients
	var patients []aggregate.PatientRecord
	err = stage("aggregate", func() (StageTrace, error) {
		var err error
		patients, err = aggregate.Patients(imputed)
		if err != nil {
			return StageTrace{}, err
		}
		for _, p := range patients {
			if p.Outcome == records.OutcomeDied {
				res.Deaths++
			}
		}
		res.Patients = len(patients)
		return StageTrace{Counts: map[string]int{"patients": len(patients), "deaths": res.Deaths}}, nil
	})
	if err != nil {
		return Result{}, err
	}

	// 3. Select features
	err = stage("select", func() (StageTrace, error) {
		sel, err := features.NewSelector(config.SelectorConfig()).Select(features.FromRecords(imputed))
		if err != nil {
			return StageTrace{}, err
		}
		res.Correlations = sel.Report
		res.Candidates = sel.Candidates
		res.Selected = sel.Selected
		res.Redundant = sel.Redundant
		tr := StageTrace{Counts: map[string]int{
			"columns":    len(imputed.Schema().Biomarkers),
			"undefined":  len(sel.Report.Undefined),
			"candidates": len(sel.Candidates),
			"selected":   len(sel.Selected),
		}}
		if len(sel.Selected) == 0 {
			tr.Decision = "warn"
			tr.Reason = fmt.Sprintf("no biomarker reaches |r| >= %.2f; modelling age only", config.CorrVal)
		}
		return tr, nil
	})
	if err != nil {
		return Result{}, err
	}

	// 4. Classify
	err = stage("classify", func() (StageTrace, error) {
		profiles, err := aggregate.Profiles(imputed, patients, res.Selected)
		if err != nil {
			return StageTrace{}, err
		}
		frame, err := classify.BuildFrame(patients, profiles, res.Selected)
		if err != nil {
			return StageTrace{}, err
		}
		out, err := classify.NewHarness(config.HarnessConfig()).Run(frame, rng)
		if err != nil {
			return StageTrace{}, err
		}
		res.Medians = out.Medians
		res.Split = out.Split
		res.CV = out.Model.CV
		res.Evaluation = out.Evaluation
		res.Model = out.Model.Forest
		return StageTrace{Counts: map[string]int{
			"features":  len(frame.Features),
			"train":     len(out.Split.Train),
			"test":      len(out.Split.Test),
			"best_mtry": out.Model.CV.BestMTry,
		}}, nil
	})
	if err != nil {
		return Result{}, err
	}

	// 5. Quality checks
	err = stage("evaluate", func() (StageTrace, error) {
		res.Quality = eval.NewEvalHarness(config.EvalConfig()).Run(res.Evaluation)
		tr := StageTrace{Reason: res.Quality.Reason, Counts: map[string]int{
			"tp": res.Evaluation.Confusion.TP,
			"fp": res.Evaluation.Confusion.FP,
			"tn": res.Evaluation.Confusion.TN,
			"fn": res.Evaluation.Confusion.FN,
		}}
		if !res.Quality.Passed {
			tr.Decision = "warn"
		}
		return tr, nil
	})
	if err != nil {
		return Result{}, err
	}

	return res, nil
}

// #endregion run

// #region helpers
func countMissingIDs(s *records.RecordStore) int {
	n := 0
	for i := 0; i < s.Len(); i++ {
		if !s.Row(i).PatientID.Valid {
			n++
		}
	}
	return n
}

func countNulls(s *records.RecordStore) int {
	n := 0
	for i := 0; i < s.Len(); i++ {
		for _, v := range s.Row(i).Biomarkers {
			if !v.Valid {
				n++
			}
		}
	}
	return n
}

// #endregion helpers
