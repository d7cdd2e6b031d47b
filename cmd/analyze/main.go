package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/zielm/covid-analysis/internal/ingest"
	"github.com/zielm/covid-analysis/internal/logging"
	"github.com/zielm/covid-analysis/internal/pipeline"
	"github.com/zielm/covid-analysis/internal/report"
	"github.com/zielm/covid-analysis/internal/store"
)

// #region main
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	input := flag.String("input", envOr("COVID_INPUT", ""), "path to the blood-test CSV")
	configPath := flag.String("config", envOr("COVID_CONFIG", ""), "optional JSON run config")
	dbPath := flag.String("db", envOr("COVID_DB", "covid_analysis.db"), "SQLite run store (empty disables)")
	reportAddr := flag.String("report-addr", envOr("REPORT_ADDR", ""), "gRPC report sink address (empty disables)")
	baselineOut := flag.String("baseline", "", "write the run's baseline JSON to this path")
	seed := flag.Int64("seed", 0, "override random_seed")
	corr := flag.Float64("corr", 0, "override corr_val")
	workers := flag.Int("workers", envInt("COVID_WORKERS", 0), "parallel training workers (0 = all CPUs)")
	jsonOut := flag.Bool("json", false, "print the full result as JSON")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze --input records.csv [--config run.json] [--db runs.db] [--report-addr host:port] [--json]")
		os.Exit(2)
	}

	logger := logging.NewLogger(os.Stderr, envOr("LOG_LEVEL", "info"))

	cfg := pipeline.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = pipeline.LoadConfig(*configPath); err != nil {
			log.Printf("config: %v", err)
			os.Exit(2)
		}
	}
	if *workers != 0 {
		cfg.Workers = *workers
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.RandomSeed = *seed
		case "corr":
			cfg.CorrVal = *corr
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Printf("config: %v", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := run(ctx, logger, cfg, *input, *dbPath, *reportAddr)
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}

	if *baselineOut != "" {
		if err := pipeline.WriteBaseline(*baselineOut, pipeline.BaselineOf(res)); err != nil {
			log.Fatalf("baseline: %v", err)
		}
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatalf("encode result: %v", err)
		}
		return
	}
	printResult(res)
}

// #endregion main

// #region run
func run(ctx context.Context, logger *slog.Logger, cfg pipeline.Config, input, dbPath, reportAddr string) (pipeline.Result, error) {
	records, err := ingest.ReadFile(input)
	if err != nil {
		return pipeline.Result{}, err
	}
	logger.Info("records loaded", "path", input, "rows", records.Len(), "biomarkers", len(records.Schema().Biomarkers))

	res, err := pipeline.Run(ctx, records, cfg, logger)
	if err != nil {
		return pipeline.Result{}, err
	}

	if dbPath != "" {
		s, err := store.NewStore(dbPath)
		if err != nil {
			return res, fmt.Errorf("open store: %w", err)
		}
		defer s.Close()
		if err := s.SaveRun(res); err != nil {
			return res, fmt.Errorf("save run: %w", err)
		}
		if err := logging.LogTrace(s.DB(), res.RunID, res.Trace); err != nil {
			return res, fmt.Errorf("stage log: %w", err)
		}
		logger.Info("run saved", "db", dbPath)
	}

	if reportAddr != "" {
		pub, err := report.NewPublisher(reportAddr)
		if err != nil {
			return res, err
		}
		defer pub.Close()
		pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		ack, err := pub.Publish(pctx, res)
		if err != nil {
			return res, err
		}
		logger.Info("report published", "addr", reportAddr, "accepted", ack.Accepted)
	}
	return res, nil
}

// #endregion run

// #region output
func printResult(res pipeline.Result) {
	sum := pipeline.Summarize(res)
	fmt.Printf("Run %s\n", res.RunID)
	fmt.Printf("  Patients: %d (%d died) | Records: %d\n", sum.Patients, sum.Deaths, res.Records)

	fmt.Println("\nOutcome correlation")
	for _, c := range res.Correlations.Ranked() {
		mark := " "
		for _, s := range res.Selected {
			if s == c.Feature {
				mark = "*"
			}
		}
		fmt.Printf("  %s %-40s %+.4f  (n=%d)\n", mark, c.Feature, c.Correlation, c.Pairs)
	}
	for _, u := range res.Correlations.Undefined {
		fmt.Printf("    %-40s undefined\n", u)
	}

	fmt.Printf("\nCross-validation (best mtry %d)\n", res.CV.BestMTry)
	for _, r := range res.CV.Results {
		fmt.Printf("  mtry=%-3d accuracy %.4f ± %.4f  kappa %.4f\n", r.MTry, r.Accuracy, r.AccuracySD, r.Kappa)
	}

	m := res.Evaluation.Matrix
	fmt.Printf("\nHeld-out evaluation (%d train / %d test)\n", sum.TrainSize, sum.TestSize)
	fmt.Printf("  %-18s %8s %8s\n", "prediction\\ref", "died", "survived")
	fmt.Printf("  %-18s %8d %8d\n", "died", m[0][0], m[0][1])
	fmt.Printf("  %-18s %8d %8d\n", "survived", m[1][0], m[1][1])
	fmt.Printf("  sensitivity %.4f | specificity %.4f | accuracy %.4f\n",
		sum.Sensitivity, sum.Specificity, sum.Accuracy)

	fmt.Println("\nVariable importance (mean decrease Gini)")
	for _, v := range res.Evaluation.VariableImportance {
		fmt.Printf("  %-40s %.4f\n", v.Feature, v.Score)
	}

	if !res.Quality.Passed {
		fmt.Printf("\nQuality checks failed: %s\n", res.Quality.Reason)
	}
}

// #endregion output

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

// #endregion helpers
