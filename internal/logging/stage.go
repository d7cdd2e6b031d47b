package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zielm/covid-analysis/internal/pipeline"
)

// #region log-stage
// LogStage writes a stage entry to the stage_log table.
func LogStage(db *sql.DB, entry StageEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO stage_log (run_id, stage, decision, reason, counts_json, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Stage,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.CountsJSON),
		float64(entry.Duration)/float64(time.Millisecond),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log stage: %w", err)
	}
	return nil
}

// LogTrace writes one stage_log row per traced stage of a run.
func LogTrace(db *sql.DB, runID string, trace []pipeline.StageTrace) error {
	for _, tr := range trace {
		entry := StageEntry{
			RunID:    runID,
			Stage:    tr.Stage,
			Decision: tr.Decision,
			Reason:   tr.Reason,
			Duration: tr.Duration,
		}
		if len(tr.Counts) > 0 {
			b, err := json.Marshal(tr.Counts)
			if err != nil {
				return fmt.Errorf("marshal counts: %w", err)
			}
			entry.CountsJSON = string(b)
		}
		if err := LogStage(db, entry); err != nil {
			return fmt.Errorf("stage %s: %w", tr.Stage, err)
		}
	}
	return nil
}

// #endregion log-stage

// #region list-stages
// ListStages reads the stage log of one run in write order.
func ListStages(db *sql.DB, runID string) ([]StageEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, stage, decision, reason, counts_json, duration_ms, created_at
		 FROM stage_log WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var out []StageEntry
	for rows.Next() {
		var e StageEntry
		var reason, counts sql.NullString
		var durationMS float64
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.Stage, &e.Decision, &reason, &counts, &durationMS, &createdStr); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		e.Reason = reason.String
		e.CountsJSON = counts.String
		e.Duration = time.Duration(durationMS * float64(time.Millisecond))
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list-stages

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
