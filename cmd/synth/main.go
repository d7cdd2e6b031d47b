package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zielm/covid-analysis/internal/ingest"
	"github.com/zielm/covid-analysis/internal/records"
	"github.com/zielm/covid-analysis/internal/synth"
)

// #region main

func main() {
	def := synth.DefaultConfig()
	outPath := flag.String("out", "", "output CSV path")
	patients := flag.Int("patients", def.Patients, "number of patients")
	deathRate := flag.Float64("death-rate", def.DeathRate, "share of patients who die")
	minRecords := flag.Int("min-records", def.MinRecords, "minimum tests per patient")
	maxRecords := flag.Int("max-records", def.MaxRecords, "maximum tests per patient")
	missing := flag.Float64("missing", def.MissingRate, "chance that a biomarker value is null")
	blankIDs := flag.Bool("blank-ids", def.BlankIDs, "record the patient id only on each patient's first row")
	seed := flag.Uint64("seed", def.Seed, "generator seed")
	flag.Parse()

	if *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: synth --out records.csv [--patients N] [--death-rate p] [--missing p] [--seed N]")
		os.Exit(2)
	}

	cfg := synth.Config{
		Patients:    *patients,
		DeathRate:   *deathRate,
		MinRecords:  *minRecords,
		MaxRecords:  *maxRecords,
		MissingRate: *missing,
		BlankIDs:    *blankIDs,
		Seed:        *seed,
	}
	if err := run(cfg, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region run

func run(cfg synth.Config, outPath string) error {
	rows, err := synth.Generate(cfg)
	if err != nil {
		return err
	}
	store, err := records.NewRecordStore(synth.Schema(), rows)
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}
	if err := ingest.WriteFile(outPath, store); err != nil {
		return err
	}
	fmt.Printf("Wrote %d records for %d patients to %s\n", store.Len(), cfg.Patients, outPath)
	return nil
}

// #endregion run
