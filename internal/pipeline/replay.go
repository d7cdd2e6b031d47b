package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/zielm/covid-analysis/internal/classify"
)

// #region baseline
// Baseline is the reproducible part of a run: what a re-run with the same
// data and seed must produce again.
type Baseline struct {
	Description string                   `json:"description,omitempty"`
	Config      Config                   `json:"config"`
	Selected    []string                 `json:"selected"`
	BestMTry    int                      `json:"best_mtry"`
	Train       []int                    `json:"train"`
	Test        []int                    `json:"test"`
	Confusion   classify.ConfusionMatrix `json:"confusion"`
}

// BaselineOf extracts the baseline of a finished run.
func BaselineOf(r Result) Baseline {
	return Baseline{
		Config:    r.Config,
		Selected:  slices.Clone(r.Selected),
		BestMTry:  r.CV.BestMTry,
		Train:     sortedCopy(r.Split.Train),
		Test:      sortedCopy(r.Split.Test),
		Confusion: r.Evaluation.Confusion,
	}
}

// LoadBaseline reads a JSON baseline file.
func LoadBaseline(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read baseline %s: %w", path, err)
	}
	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse baseline %s: %w", path, err)
	}
	return &b, nil
}

// WriteBaseline writes b as indented JSON.
func WriteBaseline(path string, b Baseline) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baseline: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write baseline %s: %w", path, err)
	}
	return nil
}

// #endregion baseline

// #region compare
// Mismatch is one field where a re-run diverged from its baseline.
type Mismatch struct {
	Field string `json:"field"`
	Want  string `json:"want"`
	Got   string `json:"got"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: want %s, got %s", m.Field, m.Want, m.Got)
}

// Compare lists every divergence between want and got. An empty result
// means the run reproduced.
func Compare(want, got Baseline) []Mismatch {
	var out []Mismatch
	check := func(field string, w, g any) {
		ws, gs := fmt.Sprint(w), fmt.Sprint(g)
		if ws != gs {
			out = append(out, Mismatch{Field: field, Want: ws, Got: gs})
		}
	}
	check("selected", strings.Join(want.Selected, ","), strings.Join(got.Selected, ","))
	check("best_mtry", want.BestMTry, got.BestMTry)
	check("train", want.Train, got.Train)
	check("test", want.Test, got.Test)
	check("confusion", want.Confusion.Matrix(), got.Confusion.Matrix())
	return out
}

func sortedCopy(xs []int) []int {
	out := slices.Clone(xs)
	slices.Sort(out)
	return out
}

// #endregion compare
