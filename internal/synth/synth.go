package synth

import (
	"database/sql"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/zielm/covid-analysis/internal/records"
)

// #region config
// Config controls the shape of a synthetic cohort.
type Config struct {
	Patients    int
	DeathRate   float64 // share of patients who die
	MinRecords  int     // tests per patient, inclusive bounds
	MaxRecords  int
	MissingRate float64 // chance that any one biomarker value is null
	BlankIDs    bool    // record the patient id only on each patient's first row
	Seed        uint64
}

// DefaultConfig returns a 100-patient cohort with sparse measurements.
func DefaultConfig() Config {
	return Config{
		Patients:    100,
		DeathRate:   0.3,
		MinRecords:  2,
		MaxRecords:  6,
		MissingRate: 0.3,
		BlankIDs:    true,
		Seed:        1,
	}
}

// #endregion config

// #region markers
// Biomarker names in canonical order.
const (
	LDH         = "lactate_dehydrogenase"
	CRP         = "high_sensitivity_c_reactive_protein"
	Lymphocyte  = "lymphocyte_percent"
	Neutrophils = "neutrophils_percent"
	Albumin     = "albumin"
	Platelets   = "platelet_count"
)

// Biomarkers lists every generated biomarker.
var Biomarkers = []string{LDH, CRP, Lymphocyte, Neutrophils, Albumin, Platelets}

// Schema returns the schema of generated records.
func Schema() records.Schema {
	s, _ := records.NewSchema(Biomarkers)
	return s
}

// #endregion markers

// #region generate
var epoch = time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC)

// Generate returns the rows of a synthetic cohort, grouped by patient and
// ordered by observation time. LDH, CRP and lymphocytes separate the outcome
// classes; neutrophils mirror lymphocytes; platelets are noise.
func Generate(cfg Config) ([]records.TestRecord, error) {
	if cfg.Patients < 1 {
		return nil, fmt.Errorf("synth: %d patients", cfg.Patients)
	}
	if cfg.MinRecords < 1 || cfg.MaxRecords < cfg.MinRecords {
		return nil, fmt.Errorf("synth: records per patient [%d, %d]", cfg.MinRecords, cfg.MaxRecords)
	}
	r := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5bd1e995))

	deaths := int(float64(cfg.Patients)*cfg.DeathRate + 0.5)
	died := make([]bool, cfg.Patients)
	for _, p := range r.Perm(cfg.Patients)[:deaths] {
		died[p] = true
	}

	var rows []records.TestRecord
	for p := 0; p < cfg.Patients; p++ {
		rows = append(rows, patient(r, cfg, p+1, died[p])...)
	}
	return rows, nil
}

func patient(r *rand.Rand, cfg Config, id int, died bool) []records.TestRecord {
	outcome := records.OutcomeSurvived
	age := 20 + r.IntN(66)
	if died {
		outcome = records.OutcomeDied
		age = 45 + r.IntN(51)
	}
	gender := records.GenderMale
	if r.IntN(2) == 1 {
		gender = records.GenderFemale
	}
	admission := epoch.Add(time.Duration(r.IntN(60*24)) * time.Hour)
	discharge := admission.Add(time.Duration(24+r.IntN(30*24)) * time.Hour)

	n := cfg.MinRecords + r.IntN(cfg.MaxRecords-cfg.MinRecords+1)
	step := discharge.Sub(admission) / time.Duration(n+1)

	out := make([]records.TestRecord, n)
	for i := range out {
		rec := records.TestRecord{
			PatientID:     records.PatientID(fmt.Sprint(id)),
			ObservedAt:    admission.Add(step * time.Duration(i+1)),
			Gender:        gender,
			Age:           age,
			AdmissionTime: admission,
			DischargeTime: discharge,
			Outcome:       outcome,
			Biomarkers:    measure(r, died),
		}
		if cfg.BlankIDs && i > 0 {
			rec.PatientID = records.PatientID("")
		}
		for _, b := range Biomarkers {
			if r.Float64() < cfg.MissingRate {
				rec.Biomarkers[b] = records.Missing()
			}
		}
		out[i] = rec
	}
	return out
}

func measure(r *rand.Rand, died bool) map[string]sql.NullFloat64 {
	ldh := normal(r, 240, 40)
	crp := normal(r, 15, 10)
	lymph := normal(r, 28, 6)
	albumin := normal(r, 38, 4)
	if died {
		ldh = normal(r, 620, 110)
		crp = normal(r, 110, 35)
		lymph = normal(r, 6, 3)
		albumin = normal(r, 30, 4)
	}
	lymph = clamp(lymph, 0.5, 60)
	neut := clamp(100-lymph-normal(r, 6, 1.5), 20, 99)
	return map[string]sql.NullFloat64{
		LDH:         records.Value(clamp(ldh, 80, 1900)),
		CRP:         records.Value(clamp(crp, 0.1, 320)),
		Lymphocyte:  records.Value(lymph),
		Neutrophils: records.Value(neut),
		Albumin:     records.Value(albumin),
		Platelets:   records.Value(clamp(normal(r, 210, 60), 10, 600)),
	}
}

func normal(r *rand.Rand, mean, sd float64) float64 {
	return mean + sd*r.NormFloat64()
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

// #endregion generate
