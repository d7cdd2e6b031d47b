package records

import "fmt"

// #region data-integrity
// DataIntegrityError reports a gap or contradiction the pipeline cannot repair,
// such as a missing identifier on the first row.
type DataIntegrityError struct {
	Row       int
	PatientID string
	Reason    string
}

func (e *DataIntegrityError) Error() string {
	if e.PatientID != "" {
		return fmt.Sprintf("data integrity: patient %s: %s", e.PatientID, e.Reason)
	}
	return fmt.Sprintf("data integrity: row %d: %s", e.Row, e.Reason)
}

// #endregion data-integrity

// #region inconsistent-patient
// InconsistentPatientDataError reports a demographic or outcome field that
// differs between two rows of the same patient.
type InconsistentPatientDataError struct {
	PatientID string
	Field     string
	First     string
	Second    string
}

func (e *InconsistentPatientDataError) Error() string {
	return fmt.Sprintf("inconsistent patient data: patient %s: field %s has %q and %q",
		e.PatientID, e.Field, e.First, e.Second)
}

// #endregion inconsistent-patient

// #region insufficient-data
// InsufficientDataError reports that a partition, fold or median cannot be formed.
type InsufficientDataError struct {
	Stage string
	Class string // outcome class or column name, empty when not class specific
	Have  int
	Need  int
}

func (e *InsufficientDataError) Error() string {
	if e.Class != "" {
		return fmt.Sprintf("insufficient data for %s: %s has %d, need %d", e.Stage, e.Class, e.Have, e.Need)
	}
	return fmt.Sprintf("insufficient data for %s: have %d, need %d", e.Stage, e.Have, e.Need)
}

// #endregion insufficient-data

// #region schema-mismatch
// SchemaMismatchError reports a column that is missing, unexpected or mistyped.
type SchemaMismatchError struct {
	Column string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: column %q: %s", e.Column, e.Reason)
}

// #endregion schema-mismatch
