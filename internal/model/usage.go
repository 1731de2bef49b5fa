package model

import "time"

// UsageRecord is an append-only history entry written every time a table
// is released.  Reporting collaborators compute averages from these rows;
// the engine never reads them back for decisions.
type UsageRecord struct {
	ID              uint64    `json:"id"`               // table_usage.id
	TableID         int       `json:"table_id"`         // table_usage.table_id
	DurationSeconds float64   `json:"duration_seconds"` // table_usage.duration_seconds
	RecordedAt      time.Time `json:"recorded_at"`      // table_usage.recorded_at
}
