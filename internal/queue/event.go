// Package queue defines message payloads exchanged over the message broker
// and the background consumers that log them.
package queue

// Queue names.  Both are durable.
const (
	PartyAssignedQueue = "party.assigned"
	TableUsageQueue    = "table.usage"
)

// PartyAssignedEvent is published when a party is given its table(s).  It is
// the store-and-forward copy of the notice, for parties that are not
// connected when the assignment happens.
type PartyAssignedEvent struct {
	PartyID       string `json:"party_id"`
	TableID       int    `json:"table_id"`
	ExtraTableIDs []int  `json:"extra_table_ids,omitempty"`
	AssignedAt    string `json:"assigned_at"`
}

// TableUsageEvent is published for every usage record written when a table
// is released.
type TableUsageEvent struct {
	UsageID         uint64  `json:"usage_id"`
	TableID         int     `json:"table_id"`
	DurationSeconds float64 `json:"duration_seconds"`
	RecordedAt      string  `json:"recorded_at"`
}
