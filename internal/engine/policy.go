package engine

import (
	"sort"

	"github.com/iliyamo/restaurant-queue/internal/model"
)

// OutcomeKind enumerates the decisions the matching policy can take for a
// freed table.
type OutcomeKind int

const (
	// NoAction leaves the table free.
	NoAction OutcomeKind = iota
	// AssignSingle seats the head of the queue at the freed table.
	AssignSingle
	// HoldForGroup reserves the freed table (and possibly more) for the
	// head of the queue, which does not fit the freed table alone.
	HoldForGroup
)

func (k OutcomeKind) String() string {
	switch k {
	case NoAction:
		return "no_action"
	case AssignSingle:
		return "assign_single"
	case HoldForGroup:
		return "hold_for_group"
	default:
		return "unknown"
	}
}

// Outcome is the decision taken for one freed table.
type Outcome struct {
	Kind  OutcomeKind
	Table model.Table // the freed table the decision was made for
	Party model.Party // head of the queue; zero for NoAction

	// NewHolds lists the tables this outcome places on hold: the freed table
	// first, then accumulated free tables in ascending id order.
	NewHolds []int
	// Hold is the complete set of tables held for Party once the outcome is
	// applied, in ascending id order.
	Hold []int
	// NeedsGrouping is set when Hold carries enough capacity for Party and
	// staff must confirm the multi-table assignment.
	NeedsGrouping bool
}

// Decide is the matching policy.  It is a pure function of the freed table,
// the pool and the waiting parties and never mutates its inputs.
//
// The policy is strict FIFO: only the head of the queue is ever considered.
// If the head does not fit the freed table, the table is held for it, and
// when the head's holds plus every free table can seat it, free tables are
// accumulated in ascending id order until they do.  A later, smaller party
// is never served from the freed table instead.  When another free table
// seats the head on its own the freed table is left for that match to
// resolve: the head takes the other table and the freed one is offered to
// the next head.
func Decide(freed model.Table, tables []model.Table, waiting []model.Party) Outcome {
	if !freed.Free() {
		return Outcome{Kind: NoAction, Table: freed}
	}
	head, ok := NextInOrder(waiting)
	if !ok {
		return Outcome{Kind: NoAction, Table: freed}
	}
	if IsEligible(freed, head) {
		return Outcome{Kind: AssignSingle, Table: freed, Party: head}
	}

	var held, others []model.Table
	for _, t := range tables {
		if t.ID == freed.ID {
			continue
		}
		switch {
		case t.HeldForParty(head.ID):
			held = append(held, t)
		case t.Free():
			others = append(others, t)
		}
	}
	for _, t := range others {
		if IsEligible(t, head) {
			// The head is seated there when that table is matched.
			return Outcome{Kind: NoAction, Table: freed}
		}
	}
	sort.SliceStable(others, func(i, j int) bool { return others[i].ID < others[j].ID })
	holdCap := TotalCapacity(held) + freed.Capacity
	newHolds := []int{freed.ID}
	needsGrouping := false
	if holdCap+TotalCapacity(others) >= head.Seats {
		needsGrouping = true
		for _, t := range others {
			if holdCap >= head.Seats {
				break
			}
			newHolds = append(newHolds, t.ID)
			holdCap += t.Capacity
		}
	}

	hold := append(tableIDs(held), newHolds...)
	sort.Ints(hold)
	return Outcome{
		Kind:          HoldForGroup,
		Table:         freed,
		Party:         head,
		NewHolds:      newHolds,
		Hold:          hold,
		NeedsGrouping: needsGrouping,
	}
}
