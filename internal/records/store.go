package records

import "fmt"

// #region record-store
// RecordStore is an immutable, schema-checked table of test rows.
type RecordStore struct {
	schema Schema
	rows   []TestRecord
}

// NewRecordStore validates every row against schema and takes a private copy.
func NewRecordStore(schema Schema, rows []TestRecord) (*RecordStore, error) {
	copied := make([]TestRecord, len(rows))
	for i, r := range rows {
		if err := schema.Validate(r); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		copied[i] = r.Clone()
	}
	return &RecordStore{schema: schema, rows: copied}, nil
}

// Schema returns the declared schema.
func (s *RecordStore) Schema() Schema {
	return s.schema
}

// Len returns the number of rows.
func (s *RecordStore) Len() int {
	return len(s.rows)
}

// Row returns a copy of row i.
func (s *RecordStore) Row(i int) TestRecord {
	return s.rows[i].Clone()
}

// Rows returns a deep copy of all rows in their original order.
func (s *RecordStore) Rows() []TestRecord {
	out := make([]TestRecord, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.Clone()
	}
	return out
}

// #endregion record-store
