package aggregate

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/zielm/covid-analysis/internal/records"
)

// #region patients
// Patients reduces the record store to one PatientRecord per patient, in order
// of first appearance. Demographic and outcome fields must agree across all of
// a patient's rows; the first disagreement is returned as an
// InconsistentPatientDataError.
func Patients(store *records.RecordStore) ([]PatientRecord, error) {
	var out []PatientRecord
	pos := make(map[string]int)

	for i := 0; i < store.Len(); i++ {
		r := store.Row(i)
		id := r.ID()
		if id == "" {
			return nil, &records.DataIntegrityError{Row: i, Reason: "missing patient id; run imputation first"}
		}

		if p, ok := pos[id]; ok {
			if err := checkConsistent(out[p], r); err != nil {
				return nil, err
			}
			continue
		}

		if r.DischargeTime.Before(r.AdmissionTime) {
			return nil, &records.DataIntegrityError{
				Row:       i,
				PatientID: id,
				Reason: fmt.Sprintf("discharge %s precedes admission %s",
					r.DischargeTime.Format(time.RFC3339), r.AdmissionTime.Format(time.RFC3339)),
			}
		}

		pos[id] = len(out)
		out = append(out, PatientRecord{
			PatientID:        id,
			Gender:           r.Gender,
			Age:              r.Age,
			AgeGroup:         BucketAge(r.Age),
			AdmissionTime:    r.AdmissionTime,
			DischargeTime:    r.DischargeTime,
			LengthOfStayDays: LengthOfStayDays(r.AdmissionTime, r.DischargeTime),
			Outcome:          r.Outcome,
		})
	}
	return out, nil
}

// LengthOfStayDays returns the fractional number of days between admission and discharge.
func LengthOfStayDays(admission, discharge time.Time) float64 {
	return discharge.Sub(admission).Hours() / 24
}

func checkConsistent(p PatientRecord, r records.TestRecord) error {
	mismatch := func(field, first, second string) error {
		return &records.InconsistentPatientDataError{
			PatientID: p.PatientID,
			Field:     field,
			First:     first,
			Second:    second,
		}
	}
	switch {
	case p.Gender != r.Gender:
		return mismatch("gender", string(p.Gender), string(r.Gender))
	case p.Age != r.Age:
		return mismatch("age", strconv.Itoa(p.Age), strconv.Itoa(r.Age))
	case !p.AdmissionTime.Equal(r.AdmissionTime):
		return mismatch("admission_time", p.AdmissionTime.Format(time.RFC3339), r.AdmissionTime.Format(time.RFC3339))
	case !p.DischargeTime.Equal(r.DischargeTime):
		return mismatch("discharge_time", p.DischargeTime.Format(time.RFC3339), r.DischargeTime.Format(time.RFC3339))
	case p.Outcome != r.Outcome:
		return mismatch("outcome", string(p.Outcome), string(r.Outcome))
	}
	return nil
}

// #endregion patients

// #region profiles
// Profiles averages each requested biomarker over a patient's non-null
// measurements. The patients slice fixes the output order and supplies
// age and outcome.
func Profiles(store *records.RecordStore, patients []PatientRecord, columns []string) ([]BiomarkerProfile, error) {
	schema := store.Schema()
	for _, c := range columns {
		if !schema.Has(c) {
			return nil, &records.SchemaMismatchError{Column: c, Reason: "not declared in schema"}
		}
	}

	measured := make(map[string]map[string][]float64, len(patients))
	for _, p := range patients {
		measured[p.PatientID] = make(map[string][]float64, len(columns))
	}

	for i := 0; i < store.Len(); i++ {
		r := store.Row(i)
		m, ok := measured[r.ID()]
		if !ok {
			return nil, &records.DataIntegrityError{Row: i, PatientID: r.ID(), Reason: "row has no patient record"}
		}
		for _, c := range columns {
			if v := r.Biomarkers[c]; v.Valid {
				m[c] = append(m[c], v.Float64)
			}
		}
	}

	out := make([]BiomarkerProfile, len(patients))
	for i, p := range patients {
		values := make(map[string]sql.NullFloat64, len(columns))
		for _, c := range columns {
			xs := measured[p.PatientID][c]
			if len(xs) == 0 {
				values[c] = records.Missing()
				continue
			}
			values[c] = records.Value(stat.Mean(xs, nil))
		}
		out[i] = BiomarkerProfile{
			PatientID: p.PatientID,
			Age:       p.Age,
			AgeGroup:  p.AgeGroup,
			Outcome:   p.Outcome,
			Values:    values,
		}
	}
	return out, nil
}

// #endregion profiles
