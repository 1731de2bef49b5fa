package engine

import (
	"fmt"

	"github.com/iliyamo/restaurant-queue/internal/model"
)

// CapacityRange bounds the seat capacity a table may be configured with.
type CapacityRange struct {
	Min int
	Max int
}

// DefaultCapacityRange mirrors the 1–20 seats policy of the dining room.
var DefaultCapacityRange = CapacityRange{Min: 1, Max: 20}

// Check returns ErrTableCapacityOutOfRange when n falls outside r.
func (r CapacityRange) Check(n int) error {
	if n < r.Min || n > r.Max {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrTableCapacityOutOfRange, n, r.Min, r.Max)
	}
	return nil
}

// FreeTables returns the tables that are neither occupied nor held,
// preserving the ascending id order of the pool.
func FreeTables(tables []model.Table) []model.Table {
	free := make([]model.Table, 0, len(tables))
	for _, t := range tables {
		if t.Free() {
			free = append(free, t)
		}
	}
	return free
}

// IsEligible reports whether party fits at table on its own.
func IsEligible(table model.Table, party model.Party) bool {
	return party.Seats <= table.Capacity
}

// TotalCapacity sums the capacity of tables.
func TotalCapacity(tables []model.Table) int {
	n := 0
	for _, t := range tables {
		n += t.Capacity
	}
	return n
}

// tablesByOccupant returns every occupied table of partyID in pool order.
func tablesByOccupant(tables []model.Table, partyID string) []model.Table {
	var out []model.Table
	for _, t := range tables {
		if t.OccupiedBy(partyID) {
			out = append(out, t)
		}
	}
	return out
}

// tablesHeldFor returns every table held on behalf of partyID in pool order.
func tablesHeldFor(tables []model.Table, partyID string) []model.Table {
	var out []model.Table
	for _, t := range tables {
		if t.HeldForParty(partyID) {
			out = append(out, t)
		}
	}
	return out
}

func tableIDs(tables []model.Table) []int {
	ids := make([]int, len(tables))
	for i, t := range tables {
		ids[i] = t.ID
	}
	return ids
}
