package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/zielm/covid-analysis/internal/classify"
	"github.com/zielm/covid-analysis/internal/records"
	"github.com/zielm/covid-analysis/internal/synth"
)

// helper: a complete synthetic cohort with no missing values.
func cohort(t *testing.T, patients int) *records.RecordStore {
	t.Helper()
	cfg := synth.DefaultConfig()
	cfg.Patients = patients
	cfg.MissingRate = 0
	rows, err := synth.Generate(cfg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	store, err := records.NewRecordStore(synth.Schema(), rows)
	if err != nil {
		t.Fatalf("NewRecordStore: %v", err)
	}
	return store
}

// helper: a config small enough to keep the test fast.
func quickConfig() Config {
	cfg := DefaultConfig()
	cfg.CVFolds = 3
	cfg.CVRepeats = 1
	cfg.TuneLength = 2
	cfg.EnsembleSize = 10
	return cfg
}

func TestRun_EndToEnd(t *testing.T) {
	res, err := Run(context.Background(), cohort(t, 100), quickConfig(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID == "" {
		t.Error("expected a run id")
	}
	if res.Patients != 100 {
		t.Errorf("expected 100 patients, got %d", res.Patients)
	}
	if res.Deaths != 30 {
		t.Errorf("expected 30 deaths, got %d", res.Deaths)
	}
	if got := len(res.Split.Train) + len(res.Split.Test); got != 100 {
		t.Errorf("expected split to cover 100 patients, got %d", got)
	}
	if len(res.Split.Test) == 0 {
		t.Error("expected a non-empty test partition")
	}
	if res.Evaluation.Confusion.Total() != len(res.Split.Test) {
		t.Errorf("confusion total %d != test size %d", res.Evaluation.Confusion.Total(), len(res.Split.Test))
	}

	for _, name := range res.Selected {
		if !slices.Contains(synth.Biomarkers, name) {
			t.Errorf("selected unknown column %q", name)
		}
	}
	want := append(slices.Clone(res.Selected), classify.AgeFeature)
	slices.Sort(want)
	var got []string
	for _, s := range res.Evaluation.VariableImportance {
		got = append(got, s.Feature)
	}
	slices.Sort(got)
	if !slices.Equal(got, want) {
		t.Errorf("importance features %v, expected %v", got, want)
	}

	stages := make([]string, len(res.Trace))
	for i, tr := range res.Trace {
		stages[i] = tr.Stage
	}
	if !slices.Equal(stages, []string{"impute", "aggregate", "select", "classify", "evaluate"}) {
		t.Errorf("unexpected stage trace %v", stages)
	}
}

func TestRun_DefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	res, err := Run(context.Background(), cohort(t, 100), cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Evaluation.Confusion.Total() != len(res.Split.Test) {
		t.Errorf("confusion total %d != test size %d", res.Evaluation.Confusion.Total(), len(res.Split.Test))
	}
	if n := len(res.CV.Results); n == 0 || n > cfg.TuneLength {
		t.Fatalf("expected 1..%d tuning results, got %d", cfg.TuneLength, n)
	}
	for _, r := range res.CV.Results {
		if r.Resamples != cfg.CVFolds*cfg.CVRepeats {
			t.Errorf("mtry %d: expected %d resamples, got %d", r.MTry, cfg.CVFolds*cfg.CVRepeats, r.Resamples)
		}
	}
	if res.Model == nil || len(res.Model.Trees) != cfg.EnsembleSize {
		t.Errorf("expected a forest of %d trees", cfg.EnsembleSize)
	}

	want := append(slices.Clone(res.Selected), classify.AgeFeature)
	slices.Sort(want)
	var got []string
	for _, s := range res.Evaluation.VariableImportance {
		got = append(got, s.Feature)
	}
	slices.Sort(got)
	if !slices.Equal(got, want) {
		t.Errorf("importance features %v, expected %v", got, want)
	}
}

func TestRun_AccuracyFloor(t *testing.T) {
	cfg := quickConfig()
	cfg.MinAccuracy = 1
	res, err := Run(context.Background(), cohort(t, 60), cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var found bool
	for _, m := range res.Quality.Metrics {
		if m.Name != "accuracy" {
			continue
		}
		found = true
		if m.Floor != 1 {
			t.Errorf("expected accuracy floor 1, got %v", m.Floor)
		}
		if m.Pass != (m.Value >= 1) {
			t.Errorf("accuracy %v with floor 1 reported pass=%v", m.Value, m.Pass)
		}
	}
	if !found {
		t.Fatal("expected an accuracy metric")
	}
}

func TestRun_Reproducible(t *testing.T) {
	store := cohort(t, 60)
	cfg := quickConfig()

	a, err := Run(context.Background(), store, cfg, nil)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	cfg.Workers = 4
	b, err := Run(context.Background(), store, cfg, nil)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if diff := Compare(BaselineOf(a), BaselineOf(b)); len(diff) != 0 {
		t.Errorf("expected identical runs, got %v", diff)
	}
	if a.RunID == b.RunID {
		t.Error("expected distinct run ids")
	}
	if !slices.Equal(a.Evaluation.VariableImportance, b.Evaluation.VariableImportance) {
		t.Error("expected identical importance for the same seed")
	}
}

func TestRun_MissingFirstPatientID(t *testing.T) {
	store := cohort(t, 20)
	rows := store.Rows()
	rows[0].PatientID = records.PatientID("")
	broken, err := records.NewRecordStore(store.Schema(), rows)
	if err != nil {
		t.Fatalf("NewRecordStore: %v", err)
	}

	_, err = Run(context.Background(), broken, quickConfig(), nil)
	var integrity *records.DataIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected DataIntegrityError, got %v", err)
	}
}

func TestRun_TooFewDeaths(t *testing.T) {
	cfg := synth.DefaultConfig()
	cfg.Patients = 20
	cfg.DeathRate = 0.05 // a single death cannot be split
	cfg.MissingRate = 0
	rows, err := synth.Generate(cfg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	store, err := records.NewRecordStore(synth.Schema(), rows)
	if err != nil {
		t.Fatalf("NewRecordStore: %v", err)
	}

	_, err = Run(context.Background(), store, quickConfig(), nil)
	var insufficient *records.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, cohort(t, 20), quickConfig(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := quickConfig()
	cfg.CorrVal = 0
	if _, err := Run(context.Background(), cohort(t, 20), cfg, nil); err == nil {
		t.Fatal("expected config error")
	}
}

func TestConfig_QualityFloors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinAccuracy = 0.8
	if got := cfg.EvalConfig().MinAccuracy; got != 0.8 {
		t.Errorf("expected min accuracy 0.8, got %v", got)
	}
	cfg.MinAccuracy = 1.1
	if err := cfg.Validate(); err == nil {
		t.Error("expected min_accuracy above 1 to be rejected")
	}
	cfg = DefaultConfig()
	cfg.MinSensitivity = -0.1
	if err := cfg.Validate(); err == nil {
		t.Error("expected negative min_sensitivity to be rejected")
	}
}

func TestCompare_ReportsDivergence(t *testing.T) {
	want := Baseline{
		Selected:  []string{"a", "b"},
		BestMTry:  2,
		Train:     []int{0, 1, 2},
		Test:      []int{3},
		Confusion: classify.ConfusionMatrix{TP: 1},
	}
	got := want
	got.Selected = []string{"a"}
	got.Confusion = classify.ConfusionMatrix{FN: 1}

	diff := Compare(want, got)
	if len(diff) != 2 {
		t.Fatalf("expected 2 mismatches, got %v", diff)
	}
	if diff[0].Field != "selected" || diff[1].Field != "confusion" {
		t.Errorf("unexpected mismatch fields %v", diff)
	}
	if len(Compare(want, want)) != 0 {
		t.Error("expected no mismatches against itself")
	}
}

func TestBaseline_WriteLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	b := Baseline{
		Description: "smoke",
		Config:      quickConfig(),
		Selected:    []string{"albumin"},
		BestMTry:    1,
		Train:       []int{0, 2},
		Test:        []int{1},
		Confusion:   classify.ConfusionMatrix{TN: 1},
	}
	if err := WriteBaseline(path, b); err != nil {
		t.Fatalf("WriteBaseline: %v", err)
	}
	loaded, err := LoadBaseline(path)
	if err != nil {
		t.Fatalf("LoadBaseline: %v", err)
	}
	if diff := Compare(b, *loaded); len(diff) != 0 {
		t.Errorf("round trip diverged: %v", diff)
	}
	if loaded.Config != b.Config {
		t.Errorf("config diverged: %+v", loaded.Config)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"cv_folds": 3, "random_seed": 7}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := DefaultConfig()
	want.CVFolds = 3
	want.RandomSeed = 7
	if cfg != want {
		t.Errorf("expected %+v, got %+v", want, cfg)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"train_fraction": 1.5}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error")
	}
}
