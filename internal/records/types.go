package records

import (
	"database/sql"
	"time"
)

// #region gender
// Gender is the recorded sex of a patient.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid reports whether g is one of the known codes.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// #endregion gender

// #region outcome
// Outcome is the final hospital outcome of a patient.
type Outcome string

const (
	OutcomeSurvived Outcome = "survived"
	OutcomeDied     Outcome = "died"
)

// Valid reports whether o is one of the known codes.
func (o Outcome) Valid() bool {
	return o == OutcomeSurvived || o == OutcomeDied
}

// Code returns the numeric outcome used for correlation: died=1, survived=0.
func (o Outcome) Code() float64 {
	if o == OutcomeDied {
		return 1
	}
	return 0
}

// #endregion outcome

// #region test-record
// TestRecord is one raw blood-test row. A patient has many of these.
type TestRecord struct {
	PatientID     sql.NullString
	ObservedAt    time.Time
	Gender        Gender
	Age           int
	AdmissionTime time.Time
	DischargeTime time.Time
	Outcome       Outcome
	Biomarkers    map[string]sql.NullFloat64
}

// Clone returns a deep copy so callers can fill values without touching the source row.
func (r TestRecord) Clone() TestRecord {
	out := r
	out.Biomarkers = make(map[string]sql.NullFloat64, len(r.Biomarkers))
	for k, v := range r.Biomarkers {
		out.Biomarkers[k] = v
	}
	return out
}

// ID returns the patient identifier, or "" when it is missing.
func (r TestRecord) ID() string {
	if !r.PatientID.Valid {
		return ""
	}
	return r.PatientID.String
}

// #endregion test-record

// #region helpers
// Value wraps a measured float as a non-null biomarker value.
func Value(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Missing is the null biomarker value.
func Missing() sql.NullFloat64 {
	return sql.NullFloat64{}
}

// PatientID wraps a non-empty identifier.
func PatientID(id string) sql.NullString {
	if id == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: id, Valid: true}
}

// #endregion helpers
