package ingest

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zielm/covid-analysis/internal/records"
)

// #region layouts
// timeLayouts are tried in order when parsing timestamps.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	time.RFC3339,
	"2006-01-02",
}

// TimeLayout is the layout the writer emits.
const TimeLayout = "2006-01-02 15:04:05"

// #endregion layouts

// #region read
// ReadFile loads a CSV file of blood-test records.
func ReadFile(path string) (*records.RecordStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	store, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return store, nil
}

// Read parses CSV records. Every fixed column must be present; each other
// column is a biomarker, in header order. Empty cells and NA are null.
func Read(r io.Reader) (*records.RecordStore, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &records.SchemaMismatchError{Column: "header", Reason: "empty input"}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	layout, err := mapHeader(header)
	if err != nil {
		return nil, err
	}
	schema, err := records.NewSchema(layout.biomarkers)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	var rows []records.TestRecord
	for line := 1; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		rec, err := layout.parse(fields)
		if err != nil {
			return nil, &records.DataIntegrityError{Row: line - 1, PatientID: layout.id(fields), Reason: err.Error()}
		}
		rows = append(rows, rec)
	}
	return records.NewRecordStore(schema, rows)
}

// #endregion read

// #region header
type columnLayout struct {
	fixed      map[string]int
	biomarkers []string
	markerIdx  []int
}

func mapHeader(header []string) (*columnLayout, error) {
	l := &columnLayout{fixed: make(map[string]int)}
	seen := make(map[string]bool)
	for i, h := range header {
		name, fixed := canonical(h)
		if name == "" {
			return nil, &records.SchemaMismatchError{Column: h, Reason: fmt.Sprintf("header %d normalizes to nothing", i)}
		}
		if seen[name] {
			return nil, &records.SchemaMismatchError{Column: name, Reason: "duplicate column"}
		}
		seen[name] = true
		if fixed {
			l.fixed[name] = i
			continue
		}
		l.biomarkers = append(l.biomarkers, name)
		l.markerIdx = append(l.markerIdx, i)
	}
	for _, c := range FixedColumns {
		if _, ok := l.fixed[c]; !ok {
			return nil, &records.SchemaMismatchError{Column: c, Reason: "required column missing"}
		}
	}
	return l, nil
}

func (l *columnLayout) id(fields []string) string {
	return strings.TrimSpace(fields[l.fixed[ColPatientID]])
}

// #endregion header

// #region parse
func (l *columnLayout) parse(fields []string) (records.TestRecord, error) {
	cell := func(col string) string { return strings.TrimSpace(fields[l.fixed[col]]) }

	var rec records.TestRecord
	var err error
	if id := cell(ColPatientID); !isNull(id) {
		rec.PatientID = records.PatientID(id)
	}
	if rec.ObservedAt, err = parseTime(cell(ColObservedAt)); err != nil {
		return rec, fmt.Errorf("%s: %w", ColObservedAt, err)
	}
	if rec.Gender, err = parseGender(cell(ColGender)); err != nil {
		return rec, err
	}
	if rec.Age, err = parseAge(cell(ColAge)); err != nil {
		return rec, err
	}
	if rec.AdmissionTime, err = parseTime(cell(ColAdmissionTime)); err != nil {
		return rec, fmt.Errorf("%s: %w", ColAdmissionTime, err)
	}
	if rec.DischargeTime, err = parseTime(cell(ColDischargeTime)); err != nil {
		return rec, fmt.Errorf("%s: %w", ColDischargeTime, err)
	}
	if rec.Outcome, err = parseOutcome(cell(ColOutcome)); err != nil {
		return rec, err
	}

	rec.Biomarkers = make(map[string]sql.NullFloat64, len(l.biomarkers))
	for j, name := range l.biomarkers {
		v, err := parseValue(strings.TrimSpace(fields[l.markerIdx[j]]))
		if err != nil {
			return rec, fmt.Errorf("%s: %w", name, err)
		}
		rec.Biomarkers[name] = v
	}
	return rec, nil
}

func isNull(s string) bool {
	return s == "" || strings.EqualFold(s, "na") || strings.EqualFold(s, "nan")
}

func parseTime(s string) (time.Time, error) {
	if isNull(s) {
		return time.Time{}, errors.New("missing timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func parseGender(s string) (records.Gender, error) {
	switch strings.ToLower(s) {
	case "1", "m", "male":
		return records.GenderMale, nil
	case "2", "f", "female":
		return records.GenderFemale, nil
	}
	return "", fmt.Errorf("gender: unknown code %q", s)
}

func parseOutcome(s string) (records.Outcome, error) {
	switch strings.ToLower(s) {
	case "0", "survived":
		return records.OutcomeSurvived, nil
	case "1", "died":
		return records.OutcomeDied, nil
	}
	return "", fmt.Errorf("outcome: unknown code %q", s)
}

// parseAge accepts integral values written as floats ("58.0").
func parseAge(s string) (int, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v != math.Trunc(v) {
		return 0, fmt.Errorf("age: invalid value %q", s)
	}
	return int(v), nil
}

func parseValue(s string) (sql.NullFloat64, error) {
	if isNull(s) {
		return records.Missing(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return records.Missing(), fmt.Errorf("invalid number %q", s)
	}
	return records.Value(v), nil
}

// #endregion parse
