package features

import (
	"database/sql"
	"errors"
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/stat"

	"github.com/zielm/covid-analysis/internal/aggregate"
	"github.com/zielm/covid-analysis/internal/records"
)

// #region helpers
var outcome = []float64{1, 1, 1, 1, 1, 0, 0, 0, 0, 0}

// Outcome correlations: strong 0.98, medium 0.88, weak 0.65, noise -0.04.
// strong/medium/weak are pairwise correlated above 0.77.
var columns = map[string][]float64{
	"strong": {1.0, 1.1, 0.9, 1.0, 1.2, 0.1, -0.1, 0.0, 0.2, 0.0},
	"medium": {1.2, 1.1, 0.6, 1.0, 1.4, 0.3, -0.2, 0.1, 0.5, 0.0},
	"weak":   {1.3, 1.2, 0.3, 0.9, 1.6, 0.6, -0.3, 0.2, 0.9, 0.3},
	"noise":  {0.5, -0.3, 0.2, 0.9, -0.4, 0.3, 0.8, -0.5, 0.1, 0.4},
}

func dense(xs []float64) []sql.NullFloat64 {
	out := make([]sql.NullFloat64, len(xs))
	for i, x := range xs {
		out[i] = records.Value(x)
	}
	return out
}

func table(order ...string) Table {
	t := Table{
		Columns: order,
		Data:    make(map[string][]sql.NullFloat64),
		Outcome: outcome,
	}
	for _, c := range order {
		t.Data[c] = dense(columns[c])
	}
	return t
}

// #endregion helpers

// #region correlate-tests
func TestCorrelate_SignAndMagnitude(t *testing.T) {
	report := Correlate(table("noise", "weak", "medium", "strong"))

	if r := report.Correlations["strong"]; r < 0.97 || r > 0.99 {
		t.Errorf("expected strong ≈ 0.98, got %v", r)
	}
	if r := report.Correlations["noise"]; math.Abs(r) > 0.1 {
		t.Errorf("expected noise ≈ 0, got %v", r)
	}

	ranked := report.Ranked()
	want := []string{"strong", "medium", "weak", "noise"}
	for i, w := range want {
		if ranked[i].Feature != w {
			t.Errorf("rank %d: expected %s, got %s", i, w, ranked[i].Feature)
		}
	}
}

func TestCorrelate_PairwiseComplete(t *testing.T) {
	tb := table("strong", "medium")
	// Nulls in different rows per column: each column keeps its own subset.
	tb.Data["strong"][0] = records.Missing()
	tb.Data["strong"][9] = records.Missing()
	tb.Data["medium"][4] = records.Missing()

	report := Correlate(tb)

	if report.Pairs["strong"] != 8 {
		t.Errorf("expected 8 pairs for strong, got %d", report.Pairs["strong"])
	}
	if report.Pairs["medium"] != 9 {
		t.Errorf("expected 9 pairs for medium, got %d", report.Pairs["medium"])
	}

	xs := columns["strong"][1:9]
	ys := outcome[1:9]
	want := stat.Correlation(xs, ys, nil)
	if math.Abs(report.Correlations["strong"]-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, report.Correlations["strong"])
	}
}

func TestCorrelate_ConstantColumnUndefined(t *testing.T) {
	tb := table("strong")
	tb.Columns = append(tb.Columns, "flat")
	tb.Data["flat"] = dense([]float64{3, 3, 3, 3, 3, 3, 3, 3, 3, 3})

	report := Correlate(tb)

	if _, ok := report.Correlations["flat"]; ok {
		t.Error("constant column must not have a correlation")
	}
	if !reflect.DeepEqual(report.Undefined, []string{"flat"}) {
		t.Errorf("expected flat undefined, got %v", report.Undefined)
	}
}

// #endregion correlate-tests

// #region select-tests
func TestSelect_TransitiveClusterKeepsStrongest(t *testing.T) {
	sel, err := NewSelector(DefaultSelectorConfig()).Select(table("weak", "noise", "medium", "strong"))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if !reflect.DeepEqual(sel.Candidates, []string{"strong", "medium", "weak"}) {
		t.Errorf("unexpected candidates %v", sel.Candidates)
	}
	if !reflect.DeepEqual(sel.Selected, []string{"strong"}) {
		t.Fatalf("expected only strong selected, got %v", sel.Selected)
	}
	if len(sel.Redundant) != 2 {
		t.Fatalf("expected 2 redundant, got %d", len(sel.Redundant))
	}
	for _, r := range sel.Redundant {
		if r.KeptFor != "strong" {
			t.Errorf("%s: expected kept_for strong, got %s", r.Feature, r.KeptFor)
		}
	}
}

func TestSelect_ChainDropsWeakerOfEveryPair(t *testing.T) {
	// a-b 0.63, b-c 0.93, a-c 0.40; outcome a 0.89 > b 0.71 > c 0.64.
	tb := Table{
		Columns: []string{"c", "a", "b"},
		Outcome: []float64{1, 1, 1, 1, 0, 0, 0, 0},
		Data: map[string][]sql.NullFloat64{
			"a": dense([]float64{0.9, 1.7, 0.3, 1.1, -1.1, -0.3, -1.7, -0.9}),
			"b": dense([]float64{2.4, 1.2, 0.8, -0.4, 0.4, -0.8, -1.2, -2.4}),
			"c": dense([]float64{2.6, 0.4, 1.6, -0.6, 0.6, -1.6, -0.4, -2.6}),
		},
	}

	sel, err := NewSelector(DefaultSelectorConfig()).Select(tb)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !reflect.DeepEqual(sel.Candidates, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected candidates %v", sel.Candidates)
	}
	if !reflect.DeepEqual(sel.Selected, []string{"a"}) {
		t.Fatalf("expected only a selected, got %v", sel.Selected)
	}
	want := map[string]string{"b": "a", "c": "b"}
	if len(sel.Redundant) != 2 {
		t.Fatalf("expected 2 redundant, got %v", sel.Redundant)
	}
	for _, r := range sel.Redundant {
		if want[r.Feature] != r.KeptFor {
			t.Errorf("%s: expected dropped for %s, got %s", r.Feature, want[r.Feature], r.KeptFor)
		}
	}
	if ac := math.Abs(sel.Matrix.At(0, 2)); ac >= 0.6 {
		t.Errorf("fixture broken: a-c correlation %.3f", ac)
	}
}

func TestSelect_ThresholdFilter(t *testing.T) {
	sel, err := NewSelector(SelectorConfig{Threshold: 0.9}).Select(table("weak", "medium", "strong"))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !reflect.DeepEqual(sel.Candidates, []string{"strong"}) {
		t.Errorf("expected only strong to pass 0.9, got %v", sel.Candidates)
	}
}

func TestSelect_TieBreakCanonicalOrder(t *testing.T) {
	tb := table("strong")
	tb.Columns = []string{"copy", "strong"}
	tb.Data["copy"] = dense(columns["strong"])

	sel, err := NewSelector(DefaultSelectorConfig()).Select(tb)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !reflect.DeepEqual(sel.Selected, []string{"copy"}) {
		t.Errorf("expected first canonical column to win the tie, got %v", sel.Selected)
	}
}

func TestSelect_Deterministic(t *testing.T) {
	s := NewSelector(DefaultSelectorConfig())
	first, err := s.Select(table("weak", "noise", "medium", "strong"))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := s.Select(table("weak", "noise", "medium", "strong"))
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if !reflect.DeepEqual(first.Selected, again.Selected) {
			t.Fatalf("run %d: selection changed from %v to %v", i, first.Selected, again.Selected)
		}
	}
}

func TestSelect_RejectsBadThreshold(t *testing.T) {
	_, err := NewSelector(SelectorConfig{Threshold: 0}).Select(table("strong"))
	if err == nil {
		t.Fatal("expected error for zero threshold")
	}
}

func TestSelect_RaggedTable(t *testing.T) {
	tb := table("strong")
	tb.Data["strong"] = tb.Data["strong"][:5]

	_, err := NewSelector(DefaultSelectorConfig()).Select(tb)
	var mismatch *records.SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}
}

// #endregion select-tests

// #region table-tests
func TestFromProfiles(t *testing.T) {
	profiles := []aggregate.BiomarkerProfile{
		{PatientID: "1", Outcome: records.OutcomeDied, Values: map[string]sql.NullFloat64{"ldh": records.Value(400)}},
		{PatientID: "2", Outcome: records.OutcomeSurvived, Values: map[string]sql.NullFloat64{"ldh": records.Missing()}},
	}

	tb := FromProfiles(profiles, []string{"ldh"})

	if !reflect.DeepEqual(tb.Outcome, []float64{1, 0}) {
		t.Errorf("unexpected outcome coding %v", tb.Outcome)
	}
	if tb.Data["ldh"][1].Valid {
		t.Error("expected null ldh to stay null")
	}
}

// #endregion table-tests
