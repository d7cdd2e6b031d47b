package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zielm/covid-analysis/internal/features"
	"github.com/zielm/covid-analysis/internal/forest"
	"github.com/zielm/covid-analysis/internal/pipeline"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	created_at    TEXT NOT NULL,
	config_json   TEXT NOT NULL,
	summary_json  TEXT NOT NULL,
	baseline_json TEXT NOT NULL,
	result_json   TEXT NOT NULL,
	passed        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_correlations (
	run_id        TEXT NOT NULL,
	feature       TEXT NOT NULL,
	correlation   REAL,
	pairs         INTEGER NOT NULL,
	PRIMARY KEY (run_id, feature),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS run_selected_features (
	run_id        TEXT NOT NULL,
	position      INTEGER NOT NULL,
	feature       TEXT NOT NULL,
	PRIMARY KEY (run_id, position),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS run_importance (
	run_id        TEXT NOT NULL,
	feature       TEXT NOT NULL,
	score         REAL NOT NULL,
	PRIMARY KEY (run_id, feature),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS stage_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	stage         TEXT NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	counts_json   TEXT,
	duration_ms   REAL NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// #endregion schema

// #region store-struct
// Store keeps analysis runs in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region save-run
// SaveRun writes a finished run and its correlation, selection and importance
// tables in one transaction.
func (s *Store) SaveRun(res pipeline.Result) error {
	configJSON, err := json.Marshal(res.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	summaryJSON, err := json.Marshal(pipeline.Summarize(res))
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	baselineJSON, err := json.Marshal(pipeline.BaselineOf(res))
	if err != nil {
		return fmt.Errorf("marshal baseline: %w", err)
	}
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	createdAt := res.StartedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = tx.Exec(
		`INSERT INTO runs (run_id, created_at, config_json, summary_json, baseline_json, result_json, passed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, createdAt.Format(time.RFC3339Nano), string(configJSON), string(summaryJSON),
		string(baselineJSON), string(resultJSON), res.Quality.Passed,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, c := range res.Correlations.Order {
		var corr interface{}
		if v, ok := res.Correlations.Correlations[c]; ok {
			corr = v
		}
		if _, err := tx.Exec(
			`INSERT INTO run_correlations (run_id, feature, correlation, pairs) VALUES (?, ?, ?, ?)`,
			res.RunID, c, corr, res.Correlations.Pairs[c],
		); err != nil {
			return fmt.Errorf("insert correlation %s: %w", c, err)
		}
	}
	for i, f := range res.Selected {
		if _, err := tx.Exec(
			`INSERT INTO run_selected_features (run_id, position, feature) VALUES (?, ?, ?)`,
			res.RunID, i, f,
		); err != nil {
			return fmt.Errorf("insert selected %s: %w", f, err)
		}
	}
	for _, imp := range res.Evaluation.VariableImportance {
		if _, err := tx.Exec(
			`INSERT INTO run_importance (run_id, feature, score) VALUES (?, ?, ?)`,
			res.RunID, imp.Feature, imp.Score,
		); err != nil {
			return fmt.Errorf("insert importance %s: %w", imp.Feature, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// #endregion save-run

// #region get-run
// GetRun reads a stored run with its detail tables.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	var rec RunRecord
	var createdStr, configJSON, summaryJSON, baselineJSON string
	err := s.db.QueryRow(
		`SELECT run_id, created_at, config_json, summary_json, baseline_json, result_json
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&rec.RunID, &createdStr, &configJSON, &summaryJSON, &baselineJSON, &rec.ResultJSON)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	if err := json.Unmarshal([]byte(configJSON), &rec.Config); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := json.Unmarshal([]byte(summaryJSON), &rec.Summary); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	if err := json.Unmarshal([]byte(baselineJSON), &rec.Baseline); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal baseline: %w", err)
	}

	if rec.Correlations, rec.Undefined, err = s.correlations(runID); err != nil {
		return RunRecord{}, err
	}
	if rec.Selected, err = s.selected(runID); err != nil {
		return RunRecord{}, err
	}
	if rec.Importance, err = s.importance(runID); err != nil {
		return RunRecord{}, err
	}
	return rec, nil
}

func (s *Store) correlations(runID string) ([]features.FeatureCorrelation, []string, error) {
	rows, err := s.db.Query(
		`SELECT feature, correlation, pairs FROM run_correlations
		 WHERE run_id = ? ORDER BY ABS(correlation) DESC, rowid`, runID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("list correlations: %w", err)
	}
	defer rows.Close()

	var defined []features.FeatureCorrelation
	var undefined []string
	for rows.Next() {
		var fc features.FeatureCorrelation
		var corr sql.NullFloat64
		if err := rows.Scan(&fc.Feature, &corr, &fc.Pairs); err != nil {
			return nil, nil, fmt.Errorf("scan correlation: %w", err)
		}
		if !corr.Valid {
			undefined = append(undefined, fc.Feature)
			continue
		}
		fc.Correlation = corr.Float64
		defined = append(defined, fc)
	}
	return defined, undefined, rows.Err()
}

func (s *Store) selected(runID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT feature FROM run_selected_features WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list selected: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scan selected: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) importance(runID string) ([]forest.FeatureScore, error) {
	rows, err := s.db.Query(
		`SELECT feature, score FROM run_importance WHERE run_id = ? ORDER BY score DESC, rowid`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list importance: %w", err)
	}
	defer rows.Close()

	var out []forest.FeatureScore
	for rows.Next() {
		var fs forest.FeatureScore
		if err := rows.Scan(&fs.Feature, &fs.Score); err != nil {
			return nil, fmt.Errorf("scan importance: %w", err)
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}

// #endregion get-run

// #region list-runs
// ListRuns returns summaries of the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]pipeline.Summary, error) {
	rows, err := s.db.Query(
		`SELECT summary_json FROM runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Summary
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var sum pipeline.Summary
		if err := json.Unmarshal([]byte(raw), &sum); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// #endregion list-runs
