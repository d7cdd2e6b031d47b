package ingest

import (
	"strings"
	"unicode"
)

// Canonical names of the fixed columns.
const (
	ColPatientID     = "patient_id"
	ColObservedAt    = "observed_at"
	ColGender        = "gender"
	ColAge           = "age"
	ColAdmissionTime = "admission_time"
	ColDischargeTime = "discharge_time"
	ColOutcome       = "outcome"
)

// FixedColumns lists the non-biomarker columns in write order.
var FixedColumns = []string{
	ColPatientID, ColObservedAt, ColGender, ColAge,
	ColAdmissionTime, ColDischargeTime, ColOutcome,
}

// aliases maps normalized header names to canonical fixed columns.
var aliases = map[string]string{
	"patient_id":     ColPatientID,
	"patient":        ColPatientID,
	"patientid":      ColPatientID,
	"re_date":        ColObservedAt,
	"observed_at":    ColObservedAt,
	"test_date":      ColObservedAt,
	"gender":         ColGender,
	"sex":            ColGender,
	"age":            ColAge,
	"admission_time": ColAdmissionTime,
	"admission":      ColAdmissionTime,
	"discharge_time": ColDischargeTime,
	"discharge":      ColDischargeTime,
	"outcome":        ColOutcome,
	"death":          ColOutcome,
}

// Normalize lower-cases a header name, replaces every run of characters that
// are not letters or digits with a single underscore and trims underscores
// from both ends. "(%)lymphocyte" becomes "lymphocyte", "Admission time"
// becomes "admission_time".
func Normalize(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// canonical returns the fixed column a header refers to, or its normalized
// form and false for a biomarker column.
func canonical(header string) (string, bool) {
	n := Normalize(header)
	if c, ok := aliases[n]; ok {
		return c, true
	}
	return n, false
}
