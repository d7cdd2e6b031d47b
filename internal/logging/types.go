package logging

import "time"

// #region stage-entry
// StageEntry is a single row in the stage_log table.
type StageEntry struct {
	RunID      string
	Stage      string
	Decision   string // "ok" | "warn"
	Reason     string
	CountsJSON string
	Duration   time.Duration
	CreatedAt  time.Time
}

// #endregion stage-entry
