package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/zielm/covid-analysis/internal/records"
)

// #region write
// WriteFile writes the store as CSV to path.
func WriteFile(path string, store *records.RecordStore) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, store); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Write emits the canonical header followed by one line per record, using the
// numeric gender and outcome codes Read accepts. Nulls are written as empty cells.
func Write(w io.Writer, store *records.RecordStore) error {
	cw := csv.NewWriter(w)
	schema := store.Schema()

	header := append(append([]string{}, FixedColumns...), schema.Biomarkers...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	line := make([]string, len(header))
	for i := 0; i < store.Len(); i++ {
		rec := store.Row(i)
		line[0] = rec.PatientID.String
		line[1] = rec.ObservedAt.Format(TimeLayout)
		line[2] = genderCode(rec.Gender)
		line[3] = strconv.Itoa(rec.Age)
		line[4] = rec.AdmissionTime.Format(TimeLayout)
		line[5] = rec.DischargeTime.Format(TimeLayout)
		line[6] = strconv.Itoa(int(rec.Outcome.Code()))
		for j, name := range schema.Biomarkers {
			line[len(FixedColumns)+j] = ""
			if v := rec.Biomarkers[name]; v.Valid {
				line[len(FixedColumns)+j] = strconv.FormatFloat(v.Float64, 'g', -1, 64)
			}
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func genderCode(g records.Gender) string {
	if g == records.GenderFemale {
		return "2"
	}
	return "1"
}

// #endregion write
