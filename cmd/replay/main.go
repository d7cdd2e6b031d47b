package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/zielm/covid-analysis/internal/ingest"
	"github.com/zielm/covid-analysis/internal/pipeline"
	"github.com/zielm/covid-analysis/internal/store"
)

// #region main

func main() {
	input := flag.String("input", "", "path to the blood-test CSV the run was made on")
	dbPath := flag.String("db", "", "path to covid_analysis.db (DB mode, with --run)")
	runID := flag.String("run", "", "stored run to reproduce (DB mode)")
	baselinePath := flag.String("baseline", "", "path to baseline JSON (baseline mode)")
	workers := flag.Int("workers", 0, "parallel training workers (0 = all CPUs)")
	flag.Parse()

	dbMode := *dbPath != "" && *runID != ""
	if *input == "" || dbMode == (*baselinePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --input records.csv --db path/to/covid_analysis.db --run id")
		fmt.Fprintln(os.Stderr, "       replay --input records.csv --baseline path/to/baseline.json")
		os.Exit(2)
	}

	var want *pipeline.Baseline
	var err error
	if dbMode {
		want, err = loadStored(*dbPath, *runID)
	} else {
		want, err = pipeline.LoadBaseline(*baselinePath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load baseline: %v\n", err)
		os.Exit(2)
	}

	os.Exit(replay(*input, *want, *workers))
}

// #endregion main

// #region baseline-source

func loadStored(dbPath, runID string) (*pipeline.Baseline, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer s.Close()
	rec, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	return &rec.Baseline, nil
}

// #endregion baseline-source

// #region replay

// replay re-runs the pipeline with the baseline's config and prints a
// comparison. It returns the process exit code.
func replay(input string, want pipeline.Baseline, workers int) int {
	records, err := ingest.ReadFile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load records: %v\n", err)
		return 2
	}

	cfg := want.Config
	cfg.Workers = workers
	res, err := pipeline.Run(context.Background(), records, cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		return 1
	}
	return printComparison(want, pipeline.BaselineOf(res))
}

// #endregion replay

// #region output

// printComparison outputs a comparison table and returns the exit code.
func printComparison(want, got pipeline.Baseline) int {
	diffs := pipeline.Compare(want, got)
	diverged := make(map[string]pipeline.Mismatch, len(diffs))
	for _, d := range diffs {
		diverged[d.Field] = d
	}

	fmt.Printf("%-12s| %s\n", "Field", "Match")
	fmt.Printf("%-12s+%s\n", "------------", "------")
	for _, field := range []string{"selected", "best_mtry", "train", "test", "confusion"} {
		match := "OK"
		if _, ok := diverged[field]; ok {
			match = "DIFF"
		}
		fmt.Printf("%-12s| %s\n", field, match)
	}
	for _, d := range diffs {
		fmt.Printf("\n%s\n", d)
	}

	fmt.Printf("\nSummary: %d fields diverge\n", len(diffs))
	if len(diffs) > 0 {
		return 1
	}
	return 0
}

// #endregion output
