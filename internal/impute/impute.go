package impute

import (
	"fmt"
	"sort"

	"github.com/zielm/covid-analysis/internal/records"
)

// #region impute
// Impute back-fills patient identifiers and then fills biomarker gaps per patient.
// The input store is left untouched; a new store is returned.
func Impute(store *records.RecordStore) (*records.RecordStore, error) {
	rows, err := FillPatientIDs(store.Rows())
	if err != nil {
		return nil, err
	}
	filled := FillBiomarkers(rows, store.Schema())
	out, err := records.NewRecordStore(store.Schema(), filled)
	if err != nil {
		return nil, fmt.Errorf("rebuild store: %w", err)
	}
	return out, nil
}

// #endregion impute

// #region patient-ids
// FillPatientIDs carries the last seen identifier forward onto rows that lack one.
// The identifier is recorded once per block of consecutive rows in the source data.
func FillPatientIDs(rows []records.TestRecord) ([]records.TestRecord, error) {
	out := make([]records.TestRecord, len(rows))
	last := ""
	for i, r := range rows {
		r = r.Clone()
		if r.PatientID.Valid && r.PatientID.String != "" {
			last = r.PatientID.String
		} else {
			if last == "" {
				return nil, &records.DataIntegrityError{
					Row:    i,
					Reason: "missing patient id with no earlier row to carry it from",
				}
			}
			r.PatientID = records.PatientID(last)
		}
		out[i] = r
	}
	return out, nil
}

// #endregion patient-ids

// #region biomarkers
// FillBiomarkers fills each biomarker column per patient: forward fill along
// observation time, then backward fill for leading gaps. A column that a
// patient never had measured stays null. Row order of the result matches rows.
func FillBiomarkers(rows []records.TestRecord, schema records.Schema) []records.TestRecord {
	out := make([]records.TestRecord, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}

	for _, idx := range patientRowIndices(out) {
		sort.SliceStable(idx, func(a, b int) bool {
			return out[idx[a]].ObservedAt.Before(out[idx[b]].ObservedAt)
		})
		for _, col := range schema.Biomarkers {
			fillColumn(out, idx, col)
		}
	}
	return out
}

// fillColumn fills one column over the time-ordered row indices of one patient.
func fillColumn(rows []records.TestRecord, idx []int, col string) {
	firstKnown := -1
	for pos, i := range idx {
		if rows[i].Biomarkers[col].Valid {
			firstKnown = pos
			break
		}
	}
	if firstKnown < 0 {
		return
	}

	// forward
	carry := rows[idx[firstKnown]].Biomarkers[col]
	for _, i := range idx[firstKnown:] {
		if v := rows[i].Biomarkers[col]; v.Valid {
			carry = v
		} else {
			rows[i].Biomarkers[col] = carry
		}
	}

	// backward over the leading gap
	lead := rows[idx[firstKnown]].Biomarkers[col]
	for _, i := range idx[:firstKnown] {
		rows[i].Biomarkers[col] = lead
	}
}

// patientRowIndices groups row indices by patient id in order of first appearance.
func patientRowIndices(rows []records.TestRecord) [][]int {
	pos := make(map[string]int)
	var groups [][]int
	for i, r := range rows {
		id := r.ID()
		g, ok := pos[id]
		if !ok {
			g = len(groups)
			pos[id] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

// #endregion biomarkers
