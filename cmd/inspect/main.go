package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/zielm/covid-analysis/internal/logging"
	"github.com/zielm/covid-analysis/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to covid_analysis.db")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/covid_analysis.db [--last N] [--run id] [--json]")
		os.Exit(2)
	}

	s, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	if *runID != "" {
		err = runDetailMode(s, *runID, *jsonOut)
	} else {
		err = runListMode(s, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

func runListMode(s *store.Store, last int, jsonOut bool) error {
	runs, err := s.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}
	if jsonOut {
		return printJSON(runs)
	}

	fmt.Printf("%-10s  %8s  %6s  %8s  %5s  %6s  %6s  %8s  %s\n",
		"Run", "Patients", "Deaths", "Selected", "mtry", "Sens", "Spec", "Accuracy", "Checks")
	fmt.Printf("%-10s+-%8s+-%6s+-%8s+-%5s+-%6s+-%6s+-%8s+-%s\n",
		"----------", "--------", "------", "--------", "-----", "------", "------", "--------", "------")
	for _, r := range runs {
		checks := "pass"
		if !r.Passed {
			checks = "FAIL"
		}
		fmt.Printf("%-10s  %8d  %6d  %8d  %5d  %6.3f  %6.3f  %8.4f  %s\n",
			shortID(r.RunID), r.Patients, r.Deaths, r.Selected, r.BestMTry,
			r.Sensitivity, r.Specificity, r.Accuracy, checks)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type stageRow struct {
	Stage      string  `json:"stage"`
	Decision   string  `json:"decision"`
	Reason     string  `json:"reason,omitempty"`
	Counts     string  `json:"counts,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

type detailOutput struct {
	RunID        string      `json:"run_id"`
	CreatedAt    string      `json:"created_at"`
	Summary      interface{} `json:"summary"`
	Config       interface{} `json:"config"`
	Correlations interface{} `json:"correlations"`
	Undefined    []string    `json:"undefined,omitempty"`
	Selected     []string    `json:"selected"`
	Importance   interface{} `json:"importance"`
	Stages       []stageRow  `json:"stages"`
}

func runDetailMode(s *store.Store, runID string, jsonOut bool) error {
	rec, err := s.GetRun(runID)
	if err != nil {
		return err
	}
	entries, err := logging.ListStages(s.DB(), runID)
	if err != nil {
		return err
	}
	stages := make([]stageRow, len(entries))
	for i, e := range entries {
		stages[i] = stageRow{
			Stage:      e.Stage,
			Decision:   e.Decision,
			Reason:     e.Reason,
			Counts:     e.CountsJSON,
			DurationMS: e.Duration.Seconds() * 1000,
		}
	}

	if jsonOut {
		return printJSON(detailOutput{
			RunID:        rec.RunID,
			CreatedAt:    rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
			Summary:      rec.Summary,
			Config:       rec.Config,
			Correlations: rec.Correlations,
			Undefined:    rec.Undefined,
			Selected:     rec.Selected,
			Importance:   rec.Importance,
			Stages:       stages,
		})
	}

	fmt.Printf("Run:        %s\n", rec.RunID)
	fmt.Printf("Created:    %s\n", rec.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Seed:       %d\n", rec.Config.RandomSeed)
	fmt.Printf("Threshold:  %.2f\n", rec.Config.CorrVal)
	fmt.Printf("Patients:   %d (%d died)\n", rec.Summary.Patients, rec.Summary.Deaths)
	fmt.Printf("Split:      %d train / %d test\n", rec.Summary.TrainSize, rec.Summary.TestSize)
	fmt.Printf("Best mtry:  %d\n", rec.Summary.BestMTry)
	fmt.Printf("Accuracy:   %.4f (sens %.4f, spec %.4f)\n",
		rec.Summary.Accuracy, rec.Summary.Sensitivity, rec.Summary.Specificity)

	fmt.Printf("\nCorrelations:\n")
	for _, c := range rec.Correlations {
		fmt.Printf("  %-40s %+.4f  (n=%d)\n", c.Feature, c.Correlation, c.Pairs)
	}
	for _, u := range rec.Undefined {
		fmt.Printf("  %-40s undefined\n", u)
	}

	fmt.Printf("\nSelected: %v\n", rec.Selected)

	fmt.Printf("\nImportance:\n")
	for _, v := range rec.Importance {
		fmt.Printf("  %-40s %.4f\n", v.Feature, v.Score)
	}

	if len(stages) > 0 {
		fmt.Printf("\nStages:\n")
		for _, st := range stages {
			fmt.Printf("  %-10s %-5s %8.2fms  %s %s\n", st.Stage, st.Decision, st.DurationMS, st.Counts, st.Reason)
		}
	}
	return nil
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
