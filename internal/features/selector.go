package features

import (
	"database/sql"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// #region selector
// Selector picks biomarkers that correlate strongly with the outcome and
// drops those that are redundant with a stronger pick.
//
// For every candidate pair whose mutual correlation reaches the threshold the
// one weaker against the outcome is dropped, applied transitively. Candidates
// are visited from strongest to weakest outcome correlation (ties in
// canonical column order) and one is dropped when it reaches the threshold
// against any stronger candidate, kept or already dropped.
type Selector struct {
	config SelectorConfig
}

// NewSelector creates a selector with the given configuration.
func NewSelector(config SelectorConfig) *Selector {
	return &Selector{config: config}
}

// Select computes the correlation report and the selected feature set.
func (s *Selector) Select(t Table) (Selection, error) {
	if s.config.Threshold <= 0 || s.config.Threshold > 1 {
		return Selection{}, fmt.Errorf("correlation threshold %v outside (0, 1]", s.config.Threshold)
	}
	if err := t.validate(); err != nil {
		return Selection{}, err
	}

	report := Correlate(t)

	var candidates []string
	for _, fc := range report.Ranked() {
		if math.Abs(fc.Correlation) >= s.config.Threshold {
			candidates = append(candidates, fc.Feature)
		}
	}

	matrix := correlationMatrix(t, candidates)

	var selected []string
	var redundant []Redundant
	for i, c := range candidates {
		dup := -1
		for k := 0; k < i; k++ {
			if math.Abs(matrix.At(i, k)) >= s.config.Threshold {
				dup = k
				break
			}
		}
		if dup >= 0 {
			redundant = append(redundant, Redundant{
				Feature:     c,
				KeptFor:     candidates[dup],
				Correlation: matrix.At(i, dup),
			})
			continue
		}
		selected = append(selected, c)
	}

	return Selection{
		Report:     report,
		Candidates: candidates,
		Selected:   selected,
		Redundant:  redundant,
		Matrix:     matrix,
	}, nil
}

// #endregion selector

// #region correlate
// Correlate computes each column's Pearson correlation with the outcome using
// only rows where the column is non-null.
func Correlate(t Table) CorrelationReport {
	report := CorrelationReport{
		Correlations: make(map[string]float64, len(t.Columns)),
		Pairs:        make(map[string]int, len(t.Columns)),
		Order:        append([]string(nil), t.Columns...),
	}
	outcome := make([]sql.NullFloat64, len(t.Outcome))
	for i, y := range t.Outcome {
		outcome[i] = sql.NullFloat64{Float64: y, Valid: true}
	}
	for _, c := range t.Columns {
		r, n, ok := pairwiseCorrelation(t.Data[c], outcome)
		report.Pairs[c] = n
		if !ok {
			report.Undefined = append(report.Undefined, c)
			continue
		}
		report.Correlations[c] = r
	}
	return report
}

// correlationMatrix builds the pairwise-complete correlation matrix for cols.
// Undefined pairs are stored as 0 so they never count as redundant.
func correlationMatrix(t Table, cols []string) *mat.SymDense {
	n := len(cols)
	if n == 0 {
		return nil
	}
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		m.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			r, _, ok := pairwiseCorrelation(t.Data[cols[i]], t.Data[cols[j]])
			if !ok {
				r = 0
			}
			m.SetSym(i, j, r)
		}
	}
	return m
}

// pairwiseCorrelation returns the Pearson correlation over rows where both
// values are present, the number of such rows, and whether it is defined.
func pairwiseCorrelation(x, y []sql.NullFloat64) (float64, int, bool) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if x[i].Valid && y[i].Valid {
			xs = append(xs, x[i].Float64)
			ys = append(ys, y[i].Float64)
		}
	}
	if len(xs) < 2 {
		return 0, len(xs), false
	}
	if stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		return 0, len(xs), false
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0, len(xs), false
	}
	return r, len(xs), true
}

// #endregion correlate
