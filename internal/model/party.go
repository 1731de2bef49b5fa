package model

import "time"

// Party represents a walk-in group that is waiting for, or occupying,
// one or more tables.  A party is waiting exactly while TableID is nil.
//
// Fields:
//
//	ID        – opaque identifier (UUID string).
//	Session   – client identity used to make registration idempotent; may be empty.
//	ArrivedAt – when the party joined the queue.
//	Seats     – number of seats the party needs.
//	TableID   – primary table assigned to the party (nil while waiting).
//	MatchedAt – when a table was assigned (nil while waiting).
//	SeatedAt  – when staff confirmed the party physically sat down.
//	Order     – optional pre-submitted order text; opaque to the engine.
//	EnRoute   – the party reported it is on its way to the assigned table.
type Party struct {
	ID        string     // parties.id
	Session   string     // parties.session_key
	ArrivedAt time.Time  // parties.arrived_at
	Seats     int        // parties.seats
	TableID   *int       // parties.table_id (nullable)
	MatchedAt *time.Time // parties.matched_at (nullable)
	SeatedAt  *time.Time // parties.seated_at (nullable)
	Order     string     // parties.order_text
	EnRoute   bool       // parties.en_route
}

// Waiting reports whether the party still holds a place in the queue.
func (p Party) Waiting() bool { return p.TableID == nil }

// Before orders waiting parties: earlier arrival first, ties broken by ID.
func (p Party) Before(o Party) bool {
	if !p.ArrivedAt.Equal(o.ArrivedAt) {
		return p.ArrivedAt.Before(o.ArrivedAt)
	}
	return p.ID < o.ID
}
