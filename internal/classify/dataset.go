package classify

import (
	"database/sql"
	"slices"

	"github.com/zielm/covid-analysis/internal/aggregate"
	"github.com/zielm/covid-analysis/internal/forest"
	"github.com/zielm/covid-analysis/internal/records"
)

// AgeFeature is the demographic column always added to the selected biomarkers.
const AgeFeature = "age"

// #region frame
// Frame is the per-patient modelling table before the median fallback.
type Frame struct {
	PatientIDs []string
	Features   []string
	Values     [][]sql.NullFloat64
	Labels     []int
}

// BuildFrame joins patients with their biomarker profiles over selected ∪ {age}.
// Patient order follows patients.
func BuildFrame(patients []aggregate.PatientRecord, profiles []aggregate.BiomarkerProfile, selected []string) (Frame, error) {
	byID := make(map[string]aggregate.BiomarkerProfile, len(profiles))
	for _, p := range profiles {
		byID[p.PatientID] = p
	}

	features := make([]string, 0, len(selected)+1)
	for _, s := range selected {
		if s == AgeFeature {
			continue
		}
		features = append(features, s)
	}
	features = append(features, AgeFeature)

	f := Frame{
		PatientIDs: make([]string, len(patients)),
		Features:   features,
		Values:     make([][]sql.NullFloat64, len(patients)),
		Labels:     make([]int, len(patients)),
	}
	for i, p := range patients {
		prof, ok := byID[p.PatientID]
		if !ok {
			return Frame{}, &records.DataIntegrityError{PatientID: p.PatientID, Reason: "no biomarker profile"}
		}
		row := make([]sql.NullFloat64, len(features))
		for j, c := range features {
			if c == AgeFeature {
				row[j] = records.Value(float64(p.Age))
				continue
			}
			v, ok := prof.Values[c]
			if !ok {
				return Frame{}, &records.SchemaMismatchError{Column: c, Reason: "missing from profile of patient " + p.PatientID}
			}
			row[j] = v
		}
		f.PatientIDs[i] = p.PatientID
		f.Values[i] = row
		f.Labels[i] = Label(p.Outcome)
	}
	return f, nil
}

// Label maps an outcome to a class label; died is Positive.
func Label(o records.Outcome) int {
	if o == records.OutcomeDied {
		return forest.Positive
	}
	return forest.Negative
}

// #endregion frame

// #region medians
// Dataset is a complete numeric modelling table.
type Dataset struct {
	PatientIDs []string
	Features   []string
	X          [][]float64
	Y          []int
}

// FillMedians replaces each remaining null with its column median over the
// non-null values of the whole frame. It returns the medians used.
func FillMedians(f Frame) (Dataset, map[string]float64, error) {
	medians := make(map[string]float64, len(f.Features))
	for j, c := range f.Features {
		var xs []float64
		for _, row := range f.Values {
			if row[j].Valid {
				xs = append(xs, row[j].Float64)
			}
		}
		if len(xs) == 0 {
			return Dataset{}, nil, &records.InsufficientDataError{Stage: "median imputation", Class: c, Have: 0, Need: 1}
		}
		medians[c] = Median(xs)
	}

	d := Dataset{
		PatientIDs: append([]string(nil), f.PatientIDs...),
		Features:   append([]string(nil), f.Features...),
		X:          make([][]float64, len(f.Values)),
		Y:          append([]int(nil), f.Labels...),
	}
	for i, row := range f.Values {
		out := make([]float64, len(row))
		for j, v := range row {
			if v.Valid {
				out[j] = v.Float64
			} else {
				out[j] = medians[f.Features[j]]
			}
		}
		d.X[i] = out
	}
	return d, medians, nil
}

// Median returns the middle value, averaging the two middle values for even counts.
func Median(xs []float64) float64 {
	s := slices.Clone(xs)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Subset returns the rows at idx, in idx order.
func (d Dataset) Subset(idx []int) Dataset {
	out := Dataset{
		PatientIDs: make([]string, len(idx)),
		Features:   d.Features,
		X:          make([][]float64, len(idx)),
		Y:          make([]int, len(idx)),
	}
	for k, i := range idx {
		out.PatientIDs[k] = d.PatientIDs[i]
		out.X[k] = d.X[i]
		out.Y[k] = d.Y[i]
	}
	return out
}

// #endregion medians
