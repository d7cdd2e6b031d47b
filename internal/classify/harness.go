package classify

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/zielm/covid-analysis/internal/forest"
	"github.com/zielm/covid-analysis/internal/records"
)

// #region harness
// Harness splits, cross-validates, trains and evaluates the forest.
type Harness struct {
	config HarnessConfig
}

// NewHarness creates a harness with the given configuration.
func NewHarness(config HarnessConfig) *Harness {
	return &Harness{config: config}
}

// Run fills medians, splits the frame, trains on the training side and
// evaluates on the test side. rng is the run's single generator.
func (h *Harness) Run(f Frame, rng *rand.Rand) (Outcome, error) {
	ds, medians, err := FillMedians(f)
	if err != nil {
		return Outcome{}, err
	}
	split, err := StratifiedSplit(ds.Y, h.config.TrainFraction, rng)
	if err != nil {
		return Outcome{}, err
	}
	model, err := h.Train(ds.Subset(split.Train), rng)
	if err != nil {
		return Outcome{}, err
	}
	eval, err := h.Evaluate(model, ds.Subset(split.Test))
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Split: split, Medians: medians, Model: model, Evaluation: eval}, nil
}

// #endregion harness

// #region train
// Train runs repeated k-fold cross-validation for each mtry candidate, picks
// the candidate with the best mean accuracy (smaller mtry on ties) and refits
// it on all of train.
func (h *Harness) Train(train Dataset, rng *rand.Rand) (*Model, error) {
	resamples, err := RepeatedFolds(train.Y, h.config.Folds, h.config.Repeats, rng)
	if err != nil {
		return nil, err
	}
	candidates := MTryCandidates(len(train.Features), h.config.TuneLength)

	// One generator per (candidate, resample) fit, drawn in a fixed order
	// before any fit runs.
	type job struct {
		cand, res int
		a, b      uint64
	}
	jobs := make([]job, 0, len(candidates)*len(resamples))
	for c := range candidates {
		for r := range resamples {
			jobs = append(jobs, job{c, r, rng.Uint64(), rng.Uint64()})
		}
	}

	scores := make([][]ConfusionMatrix, len(candidates))
	for c := range scores {
		scores[c] = make([]ConfusionMatrix, len(resamples))
	}

	var g errgroup.Group
	g.SetLimit(workers(h.config.Forest.Workers))
	for _, j := range jobs {
		g.Go(func() error {
			cfg := h.config.Forest
			cfg.MTry = candidates[j.cand]
			cfg.Workers = 1
			rs := resamples[j.res]
			fit := train.Subset(rs.Train)
			model, err := forest.Fit(fit.X, fit.Y, train.Features, cfg, rand.New(rand.NewPCG(j.a, j.b)))
			if err != nil {
				return fmt.Errorf("repeat %d fold %d mtry %d: %w", rs.Repeat, rs.Fold, cfg.MTry, err)
			}
			var cm ConfusionMatrix
			for _, i := range rs.Holdout {
				cm.Add(model.Predict(train.X[i]), train.Y[i])
			}
			scores[j.cand][j.res] = cm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("cross-validate: %w", err)
	}

	summary := CVSummary{Results: make([]CVResult, len(candidates))}
	best := -1
	for c, mtry := range candidates {
		acc := make([]float64, len(resamples))
		kappa := make([]float64, len(resamples))
		for r, cm := range scores[c] {
			acc[r] = cm.Accuracy()
			kappa[r] = cm.Kappa()
		}
		am, asd := stat.MeanStdDev(acc, nil)
		km, ksd := stat.MeanStdDev(kappa, nil)
		summary.Results[c] = CVResult{
			MTry:       mtry,
			Accuracy:   am,
			AccuracySD: nanToZero(asd),
			Kappa:      km,
			KappaSD:    nanToZero(ksd),
			Resamples:  len(resamples),
		}
		if best < 0 || am > summary.Results[best].Accuracy {
			best = c
		}
	}
	summary.BestMTry = candidates[best]

	cfg := h.config.Forest
	cfg.MTry = summary.BestMTry
	final, err := forest.Fit(train.X, train.Y, train.Features, cfg, rng)
	if err != nil {
		return nil, fmt.Errorf("final fit: %w", err)
	}
	return &Model{Forest: final, Features: append([]string(nil), train.Features...), CV: summary}, nil
}

// MTryCandidates mirrors the usual random forest tuning grid:
// unique(floor(seq(2, p, length = n))), or floor(sqrt(p)) when n is 1.
func MTryCandidates(p, n int) []int {
	if p <= 1 {
		return []int{1}
	}
	if n <= 1 {
		return []int{forest.DefaultMTry(p)}
	}
	var out []int
	step := float64(p-2) / float64(n-1)
	for i := 0; i < n; i++ {
		m := int(math.Floor(2 + step*float64(i)))
		if i == n-1 {
			m = p
		}
		if len(out) == 0 || out[len(out)-1] != m {
			out = append(out, m)
		}
	}
	return out
}

func workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

func nanToZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// #endregion train

// #region evaluate
// Evaluate scores the model on a held-out dataset. The test columns must be
// the same set as the training columns; their order may differ.
func (h *Harness) Evaluate(m *Model, test Dataset) (EvaluationResult, error) {
	pos, err := alignColumns(m.Features, test.Features)
	if err != nil {
		return EvaluationResult{}, err
	}

	var cm ConfusionMatrix
	row := make([]float64, len(m.Features))
	for i, x := range test.X {
		for j, p := range pos {
			row[j] = x[p]
		}
		cm.Add(m.Forest.Predict(row), test.Y[i])
	}

	return EvaluationResult{
		Confusion:          cm,
		Matrix:             cm.Matrix(),
		Sensitivity:        cm.Sensitivity(),
		Specificity:        cm.Specificity(),
		Accuracy:           cm.Accuracy(),
		VariableImportance: m.Forest.Importance(),
	}, nil
}

// alignColumns maps each training column to its position in the test columns.
func alignColumns(trained, test []string) ([]int, error) {
	for _, c := range test {
		if !slices.Contains(trained, c) {
			return nil, &records.SchemaMismatchError{Column: c, Reason: "not a training column"}
		}
	}
	pos := make([]int, len(trained))
	for j, c := range trained {
		p := slices.Index(test, c)
		if p < 0 {
			return nil, &records.SchemaMismatchError{Column: c, Reason: "missing from test data"}
		}
		pos[j] = p
	}
	if len(test) != len(trained) {
		return nil, &records.SchemaMismatchError{Column: "", Reason: "duplicate test columns"}
	}
	return pos, nil
}

// #endregion evaluate
