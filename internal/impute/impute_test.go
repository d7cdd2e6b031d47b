package impute

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/zielm/covid-analysis/internal/records"
)

// #region helpers
var day0 = time.Date(2020, 1, 10, 8, 0, 0, 0, time.UTC)

func row(id string, hour int, vals map[string]sql.NullFloat64) records.TestRecord {
	return records.TestRecord{
		PatientID:     records.PatientID(id),
		ObservedAt:    day0.Add(time.Duration(hour) * time.Hour),
		Gender:        records.GenderMale,
		Age:           50,
		AdmissionTime: day0,
		DischargeTime: day0.Add(96 * time.Hour),
		Outcome:       records.OutcomeSurvived,
		Biomarkers:    vals,
	}
}

func vals(ldh, crp sql.NullFloat64) map[string]sql.NullFloat64 {
	return map[string]sql.NullFloat64{"ldh": ldh, "crp": crp}
}

func testSchema(t *testing.T) records.Schema {
	t.Helper()
	s, err := records.NewSchema([]string{"ldh", "crp"})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return s
}

var na = records.Missing()

func v(f float64) sql.NullFloat64 { return records.Value(f) }

// #endregion helpers

// #region patient-id-tests
func TestFillPatientIDs_CarriesForward(t *testing.T) {
	rows := []records.TestRecord{
		row("1", 0, vals(na, na)),
		row("", 1, vals(na, na)),
		row("", 2, vals(na, na)),
		row("2", 3, vals(na, na)),
		row("", 4, vals(na, na)),
	}

	out, err := FillPatientIDs(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"1", "1", "1", "2", "2"}
	for i, w := range want {
		if out[i].ID() != w {
			t.Errorf("row %d: expected id %q, got %q", i, w, out[i].ID())
		}
	}
	if rows[1].PatientID.Valid {
		t.Error("input row was mutated")
	}
}

func TestFillPatientIDs_FirstRowMissing(t *testing.T) {
	rows := []records.TestRecord{
		row("", 0, vals(na, na)),
		row("1", 1, vals(na, na)),
	}

	_, err := FillPatientIDs(rows)
	var integrity *records.DataIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected DataIntegrityError, got %v", err)
	}
	if integrity.Row != 0 {
		t.Errorf("expected row 0, got %d", integrity.Row)
	}
}

// #endregion patient-id-tests

// #region biomarker-tests
func TestFillBiomarkers_ForwardThenBackward(t *testing.T) {
	rows := []records.TestRecord{
		row("1", 0, vals(na, na)),
		row("1", 1, vals(v(200), na)),
		row("1", 2, vals(na, na)),
		row("1", 3, vals(v(250), na)),
		row("1", 4, vals(na, na)),
	}

	out := FillBiomarkers(rows, testSchema(t))

	want := []float64{200, 200, 200, 250, 250}
	for i, w := range want {
		got := out[i].Biomarkers["ldh"]
		if !got.Valid || got.Float64 != w {
			t.Errorf("row %d: expected ldh %v, got %+v", i, w, got)
		}
	}
}

func TestFillBiomarkers_NeverMeasuredStaysNull(t *testing.T) {
	rows := []records.TestRecord{
		row("1", 0, vals(v(1), na)),
		row("1", 1, vals(na, na)),
		row("1", 2, vals(na, na)),
	}

	out := FillBiomarkers(rows, testSchema(t))

	for i, r := range out {
		if r.Biomarkers["crp"].Valid {
			t.Errorf("row %d: expected crp to stay null, got %v", i, r.Biomarkers["crp"].Float64)
		}
		if !r.Biomarkers["ldh"].Valid {
			t.Errorf("row %d: expected ldh filled", i)
		}
	}
}

func TestFillBiomarkers_UsesObservationOrder(t *testing.T) {
	// Rows arrive out of time order; the fill must follow observed_at.
	rows := []records.TestRecord{
		row("1", 5, vals(na, na)),
		row("1", 0, vals(v(10), na)),
		row("1", 3, vals(v(30), na)),
	}

	out := FillBiomarkers(rows, testSchema(t))

	if got := out[0].Biomarkers["ldh"].Float64; got != 30 {
		t.Errorf("expected latest earlier value 30 for hour 5, got %v", got)
	}
	if out[1].ObservedAt != rows[1].ObservedAt {
		t.Error("expected output to keep input row order")
	}
}

func TestFillBiomarkers_PatientsIndependent(t *testing.T) {
	rows := []records.TestRecord{
		row("1", 0, vals(v(5), na)),
		row("2", 1, vals(na, v(7))),
		row("1", 2, vals(na, na)),
		row("2", 3, vals(na, na)),
	}

	out := FillBiomarkers(rows, testSchema(t))

	if out[1].Biomarkers["ldh"].Valid {
		t.Error("patient 2 must not receive patient 1's ldh")
	}
	if out[2].Biomarkers["crp"].Valid {
		t.Error("patient 1 must not receive patient 2's crp")
	}
	if out[3].Biomarkers["crp"].Float64 != 7 {
		t.Errorf("expected patient 2 crp 7, got %v", out[3].Biomarkers["crp"].Float64)
	}
}

func TestFillBiomarkers_NoNullWhenAnyMeasured(t *testing.T) {
	rows := []records.TestRecord{
		row("1", 0, vals(na, na)),
		row("1", 1, vals(na, na)),
		row("1", 2, vals(na, v(3))),
		row("1", 3, vals(na, na)),
	}

	out := FillBiomarkers(rows, testSchema(t))

	for i, r := range out {
		if !r.Biomarkers["crp"].Valid {
			t.Errorf("row %d: crp still null", i)
		}
	}
}

// #endregion biomarker-tests

// #region impute-tests
func TestImpute_DoesNotMutateInput(t *testing.T) {
	schema := testSchema(t)
	store, err := records.NewRecordStore(schema, []records.TestRecord{
		row("1", 0, vals(v(1), na)),
		row("", 1, vals(na, v(2))),
	})
	if err != nil {
		t.Fatalf("NewRecordStore: %v", err)
	}

	out, err := Impute(store)
	if err != nil {
		t.Fatalf("Impute: %v", err)
	}

	if store.Row(1).PatientID.Valid {
		t.Error("input store row 1 gained an id")
	}
	if store.Row(1).Biomarkers["ldh"].Valid {
		t.Error("input store row 1 gained an ldh value")
	}
	if out.Row(1).ID() != "1" {
		t.Errorf("expected imputed id 1, got %q", out.Row(1).ID())
	}
	if out.Row(0).Biomarkers["crp"].Float64 != 2 {
		t.Errorf("expected back-filled crp 2, got %+v", out.Row(0).Biomarkers["crp"])
	}
}

// #endregion impute-tests
