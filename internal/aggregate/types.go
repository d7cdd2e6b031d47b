package aggregate

import (
	"database/sql"
	"time"

	"github.com/zielm/covid-analysis/internal/records"
)

// #region age-group
// AgeGroup buckets patients by age.
type AgeGroup string

const (
	AgeYoungAdult AgeGroup = "young_adult" // age <= 30
	AgeAdult      AgeGroup = "adult"       // 30 < age < 65
	AgeElderly    AgeGroup = "elderly"     // age >= 65
)

// BucketAge maps an age in years to its group. 30 is young_adult and 65 is elderly.
func BucketAge(age int) AgeGroup {
	switch {
	case age <= 30:
		return AgeYoungAdult
	case age < 65:
		return AgeAdult
	default:
		return AgeElderly
	}
}

// #endregion age-group

// #region patient-record
// PatientRecord is the demographic and outcome summary of one patient.
type PatientRecord struct {
	PatientID        string
	Gender           records.Gender
	Age              int
	AgeGroup         AgeGroup
	AdmissionTime    time.Time
	DischargeTime    time.Time
	LengthOfStayDays float64
	Outcome          records.Outcome
}

// #endregion patient-record

// #region biomarker-profile
// BiomarkerProfile holds one patient's mean value per biomarker.
// A biomarker never measured for the patient is null.
type BiomarkerProfile struct {
	PatientID string
	Age       int
	AgeGroup  AgeGroup
	Outcome   records.Outcome
	Values    map[string]sql.NullFloat64
}

// #endregion biomarker-profile
