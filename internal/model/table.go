package model

import "time"

// Table describes a physical seating resource.  A table is free (and
// therefore a candidate for automatic matching) only while it is neither
// occupied nor held.  Several tables may share one OccupantID; that is how
// a party seated across multiple tables is represented.
//
// Fields:
//
//	ID         – primary key; also the deterministic iteration order of the pool.
//	Capacity   – number of seats; may change only while unoccupied.
//	Occupied   – someone is seated (or assigned) at the table.
//	Held       – the table is set aside and excluded from automatic matching.
//	HeldFor    – party the hold protects; nil for a hold placed by staff.
//	OccupantID – party occupying the table; nil for a manual walk-up occupation.
//	StartedAt  – when the current occupation started.
//	Arrived    – the assigned guests are physically seated.
//	Order      – free-text order attached to the occupation.
type Table struct {
	ID         int        // restaurant_tables.id
	Capacity   int        // restaurant_tables.capacity
	Occupied   bool       // restaurant_tables.is_occupied
	Held       bool       // restaurant_tables.is_held
	HeldFor    *string    // restaurant_tables.held_for (nullable)
	OccupantID *string    // restaurant_tables.occupant_id (nullable)
	StartedAt  *time.Time // restaurant_tables.started_at (nullable)
	Arrived    bool       // restaurant_tables.guest_arrived
	Order      string     // restaurant_tables.order_text
}

// Free reports whether the table can be matched automatically.
func (t Table) Free() bool { return !t.Occupied && !t.Held }

// HeldForParty reports whether the table is held on behalf of partyID.
func (t Table) HeldForParty(partyID string) bool {
	return t.Held && t.HeldFor != nil && *t.HeldFor == partyID
}

// OccupiedBy reports whether the table is occupied by partyID.
func (t Table) OccupiedBy(partyID string) bool {
	return t.Occupied && t.OccupantID != nil && *t.OccupantID == partyID
}
