// Package engine implements the table assignment and queue matching core.
// Callers distinguish failures with errors.Is against the sentinel values
// below; every sentinel may arrive wrapped with extra context.
//
// Concurrency conflicts (ErrAlreadyAssigned, ErrTableNotFree) are expected
// when several staff actions race for the same table.  The failed
// transaction leaves state untouched, so callers may simply re-issue the
// request after refreshing their view.
package engine

import "errors"

var (
	// ErrDuplicateRegistration is returned when a session that already has
	// a waiting party registers again.
	ErrDuplicateRegistration = errors.New("duplicate registration")

	// ErrNotWaiting is returned when a queue operation targets a party that
	// has already been assigned a table.
	ErrNotWaiting = errors.New("party is not waiting")

	// ErrAlreadyAssigned is returned when an assignment targets a party
	// that another transaction assigned first.
	ErrAlreadyAssigned = errors.New("party already assigned")

	// ErrTableNotFree is returned when a table changed state before the
	// transaction could claim it.
	ErrTableNotFree = errors.New("table is not free")

	// ErrTableOccupied is returned when an operation requires an
	// unoccupied table, such as changing its capacity.
	ErrTableOccupied = errors.New("table is occupied")

	// ErrInsufficientCapacity is returned when a group of tables cannot
	// seat the party.
	ErrInsufficientCapacity = errors.New("insufficient capacity")

	// ErrTableUnavailable is returned when a table requested for a group is
	// occupied or held for a different party.
	ErrTableUnavailable = errors.New("table unavailable")

	// ErrInvalidState is returned when the requested transition is not
	// allowed from the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrTableCapacityOutOfRange is returned when a capacity falls outside
	// the configured range.
	ErrTableCapacityOutOfRange = errors.New("table capacity out of range")

	// ErrInvalidPartySize is returned when a party asks for fewer than one seat.
	ErrInvalidPartySize = errors.New("invalid party size")

	ErrPartyNotFound = errors.New("party not found")
	ErrTableNotFound = errors.New("table not found")
)

// IsConflict reports whether err is a concurrency conflict that the caller
// can resolve by retrying against fresh state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyAssigned) || errors.Is(err, ErrTableNotFree)
}
