package features

import (
	"database/sql"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/zielm/covid-analysis/internal/aggregate"
	"github.com/zielm/covid-analysis/internal/records"
)

// #region selector-config
// SelectorConfig holds the correlation threshold used both to keep a
// biomarker and to treat two kept biomarkers as redundant.
type SelectorConfig struct {
	Threshold float64 `json:"corr_val"`
}

// DefaultSelectorConfig returns the 0.6 threshold.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{Threshold: 0.6}
}

// #endregion selector-config

// #region table
// Table is a column-major numeric table with an outcome label per row.
// Columns lists the canonical column order.
type Table struct {
	Columns []string
	Data    map[string][]sql.NullFloat64
	Outcome []float64
}

// FromRecords builds a table with one row per test record and every schema column.
func FromRecords(store *records.RecordStore) Table {
	cols := store.Schema().Biomarkers
	t := Table{
		Columns: append([]string(nil), cols...),
		Data:    make(map[string][]sql.NullFloat64, len(cols)),
		Outcome: make([]float64, store.Len()),
	}
	for _, c := range cols {
		t.Data[c] = make([]sql.NullFloat64, store.Len())
	}
	for i := 0; i < store.Len(); i++ {
		r := store.Row(i)
		t.Outcome[i] = r.Outcome.Code()
		for _, c := range cols {
			t.Data[c][i] = r.Biomarkers[c]
		}
	}
	return t
}

// FromProfiles builds a table with one row per patient over the given columns.
func FromProfiles(profiles []aggregate.BiomarkerProfile, columns []string) Table {
	t := Table{
		Columns: append([]string(nil), columns...),
		Data:    make(map[string][]sql.NullFloat64, len(columns)),
		Outcome: make([]float64, len(profiles)),
	}
	for _, c := range columns {
		t.Data[c] = make([]sql.NullFloat64, len(profiles))
	}
	for i, p := range profiles {
		t.Outcome[i] = p.Outcome.Code()
		for _, c := range columns {
			t.Data[c][i] = p.Values[c]
		}
	}
	return t
}

func (t Table) validate() error {
	for _, c := range t.Columns {
		col, ok := t.Data[c]
		if !ok {
			return &records.SchemaMismatchError{Column: c, Reason: "no data"}
		}
		if len(col) != len(t.Outcome) {
			return &records.SchemaMismatchError{
				Column: c,
				Reason: fmt.Sprintf("has %d rows, outcome has %d", len(col), len(t.Outcome)),
			}
		}
	}
	return nil
}

// #endregion table

// #region report
// FeatureCorrelation is one biomarker's correlation with the outcome.
type FeatureCorrelation struct {
	Feature     string  `json:"feature"`
	Correlation float64 `json:"correlation"`
	Pairs       int     `json:"pairs"`
}

// CorrelationReport maps each biomarker to its Pearson correlation with the
// outcome (died=1). Columns whose correlation is undefined are listed apart.
type CorrelationReport struct {
	Correlations map[string]float64 `json:"correlations"`
	Pairs        map[string]int     `json:"pairs"`
	Undefined    []string           `json:"undefined,omitempty"`
	Order        []string           `json:"order"` // canonical column order
}

// Ranked returns defined correlations by descending absolute value; ties keep canonical order.
func (r CorrelationReport) Ranked() []FeatureCorrelation {
	out := make([]FeatureCorrelation, 0, len(r.Correlations))
	for _, c := range r.Order {
		v, ok := r.Correlations[c]
		if !ok {
			continue
		}
		out = append(out, FeatureCorrelation{Feature: c, Correlation: v, Pairs: r.Pairs[c]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Correlation) > math.Abs(out[j].Correlation)
	})
	return out
}

// #endregion report

// #region selection
// Redundant records a biomarker dropped because it tracks a stronger one.
// KeptFor names the first stronger candidate it tracks, which may itself be redundant.
type Redundant struct {
	Feature     string  `json:"feature"`
	KeptFor     string  `json:"kept_for"`
	Correlation float64 `json:"correlation"`
}

// Selection is the outcome of feature selection.
type Selection struct {
	Report     CorrelationReport `json:"report"`
	Candidates []string          `json:"candidates"` // passed the outcome threshold
	Selected   []string          `json:"selected"`
	Redundant  []Redundant       `json:"redundant,omitempty"`

	// Matrix is the pairwise-complete correlation matrix among Candidates.
	Matrix *mat.SymDense `json:"-"`
}

// #endregion selection
