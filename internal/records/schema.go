package records

import "fmt"

// #region schema
// Schema declares the biomarker columns of a dataset once, at ingestion.
// The slice order is the canonical column order used for deterministic tie-breaks.
type Schema struct {
	Biomarkers []string
}

// NewSchema builds a schema from the given biomarker names, rejecting blanks and duplicates.
func NewSchema(biomarkers []string) (Schema, error) {
	seen := make(map[string]bool, len(biomarkers))
	cols := make([]string, 0, len(biomarkers))
	for _, b := range biomarkers {
		if b == "" {
			return Schema{}, &SchemaMismatchError{Column: b, Reason: "empty biomarker name"}
		}
		if seen[b] {
			return Schema{}, &SchemaMismatchError{Column: b, Reason: "declared twice"}
		}
		seen[b] = true
		cols = append(cols, b)
	}
	return Schema{Biomarkers: cols}, nil
}

// Has reports whether name is a declared biomarker.
func (s Schema) Has(name string) bool {
	for _, b := range s.Biomarkers {
		if b == name {
			return true
		}
	}
	return false
}

// Index returns the canonical position of name, or -1.
func (s Schema) Index(name string) int {
	for i, b := range s.Biomarkers {
		if b == name {
			return i
		}
	}
	return -1
}

// #endregion schema

// #region validate
// Validate checks one record against the schema. Every declared biomarker must
// be present as a key (null allowed) and no undeclared key may appear.
func (s Schema) Validate(rec TestRecord) error {
	if !rec.Gender.Valid() {
		return &SchemaMismatchError{Column: "gender", Reason: fmt.Sprintf("unknown value %q", rec.Gender)}
	}
	if !rec.Outcome.Valid() {
		return &SchemaMismatchError{Column: "outcome", Reason: fmt.Sprintf("unknown value %q", rec.Outcome)}
	}
	if rec.Age < 0 {
		return &SchemaMismatchError{Column: "age", Reason: fmt.Sprintf("negative value %d", rec.Age)}
	}
	for _, b := range s.Biomarkers {
		if _, ok := rec.Biomarkers[b]; !ok {
			return &SchemaMismatchError{Column: b, Reason: "missing from record"}
		}
	}
	if len(rec.Biomarkers) != len(s.Biomarkers) {
		for k := range rec.Biomarkers {
			if !s.Has(k) {
				return &SchemaMismatchError{Column: k, Reason: "not declared in schema"}
			}
		}
	}
	return nil
}

// #endregion validate
