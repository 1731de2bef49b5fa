package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/restaurant-queue/internal/model"
)

// Assignment describes a committed seating of a party.
type Assignment struct {
	PartyID       string    `json:"party_id"`
	TableID       int       `json:"table_id"`
	ExtraTableIDs []int     `json:"extra_table_ids,omitempty"`
	MatchedAt     time.Time `json:"matched_at"`
}

// RegisterResult is returned by RegisterParty.
type RegisterResult struct {
	Party model.Party
	// Reused is set when the session's recently assigned party was
	// returned instead of creating a new one.
	Reused bool
	// Outcomes lists the matching decisions triggered by the registration.
	Outcomes []Outcome
}

// TableResult is returned by operations that change one table and may
// trigger re-matching.
type TableResult struct {
	Table    model.Table
	Outcomes []Outcome
}

// RegisterParty adds a party needing seats to the tail of the queue, then
// offers every free table to the queue.  A session that already has a
// waiting party gets ErrDuplicateRegistration and the queue is unchanged.
func (e *Engine) RegisterParty(ctx context.Context, session string, seats int) (RegisterResult, error) {
	const op = "register party"
	if seats < 1 {
		return RegisterResult{}, wrap(op, fmt.Errorf("%w: %d seats", ErrInvalidPartySize, seats))
	}
	var (
		f      effects
		party  model.Party
		reused bool
	)
	err := e.unit(ctx, &f, func(tx Tx, u *effects) error {
		now := e.now()
		if session != "" {
			existing, err := tx.PartiesBySession(ctx, session)
			if err != nil {
				return err
			}
			for _, p := range existing {
				if p.Waiting() {
					return fmt.Errorf("%w: session already waiting as %s", ErrDuplicateRegistration, p.ID)
				}
			}
			if p, ok := e.reusable(existing, now); ok {
				party, reused = p, true
				return nil
			}
		}
		party = model.Party{
			ID:        e.newID(),
			Session:   session,
			ArrivedAt: now,
			Seats:     seats,
		}
		if err := tx.CreateParty(ctx, party); err != nil {
			return err
		}
		return u.captureQueue(ctx, tx)
	})
	if err != nil {
		return RegisterResult{}, wrap(op, err)
	}
	if reused {
		e.log.Info("registration reused recent assignment", "party_id", party.ID)
		return RegisterResult{Party: party, Reused: true}, nil
	}
	e.settle(ctx, op, &f)
	if current, err := e.lookupParty(ctx, party.ID); err == nil {
		party = current
	}
	return RegisterResult{Party: party, Outcomes: f.outcomes}, nil
}

// reusable picks the most recent party of a session that was matched
// within the reuse window and still holds its table.
func (e *Engine) reusable(parties []model.Party, now time.Time) (model.Party, bool) {
	if e.reuseWindow <= 0 {
		return model.Party{}, false
	}
	var (
		best  model.Party
		found bool
	)
	for _, p := range parties {
		if p.Waiting() || p.MatchedAt == nil {
			continue
		}
		if now.Sub(*p.MatchedAt) > e.reuseWindow {
			continue
		}
		if !found || p.MatchedAt.After(*best.MatchedAt) {
			best, found = p, true
		}
	}
	return best, found
}

// CancelParty removes a waiting party from the queue.  Tables held for the
// party are released and offered to the new head of the queue.
// Cancelling an assigned party fails with an error matching both
// ErrInvalidState and ErrNotWaiting.
func (e *Engine) CancelParty(ctx context.Context, partyID string) ([]Outcome, error) {
	const op = "cancel party"
	var f effects
	err := e.unit(ctx, &f, func(tx Tx, u *effects) error {
		p, err := tx.GetParty(ctx, partyID)
		if err != nil {
			return err
		}
		if !p.Waiting() {
			return fmt.Errorf("%w: %w: party %s holds table %d", ErrInvalidState, ErrNotWaiting, p.ID, *p.TableID)
		}
		if err := e.releaseHolds(ctx, tx, u, p.ID, nil); err != nil {
			return err
		}
		if err := tx.DeleteParty(ctx, p.ID); err != nil {
			return err
		}
		return u.captureQueue(ctx, tx)
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	e.settle(ctx, op, &f)
	return f.outcomes, nil
}

// applyAutoAssign seats a waiting party at a single table.  It re-reads
// both rows and fails with ErrAlreadyAssigned or ErrTableNotFree when
// another transaction got there first.
func (e *Engine) applyAutoAssign(ctx context.Context, tx Tx, u *effects, partyID string, tableID int) error {
	p, err := tx.GetParty(ctx, partyID)
	if err != nil {
		return err
	}
	if !p.Waiting() {
		return fmt.Errorf("%w: party %s", ErrAlreadyAssigned, p.ID)
	}
	t, err := tx.GetTable(ctx, tableID)
	if err != nil {
		return err
	}
	if !t.Free() && !t.HeldForParty(p.ID) {
		return fmt.Errorf("%w: table %d", ErrTableNotFree, t.ID)
	}
	now := e.now()
	occupy(&t, p.ID, now)
	t.Order = p.Order
	if err := tx.UpdateTable(ctx, t); err != nil {
		return err
	}
	p.TableID = ptr(t.ID)
	p.MatchedAt = ptr(now)
	if err := tx.UpdateParty(ctx, p); err != nil {
		return err
	}
	if err := e.releaseHolds(ctx, tx, u, p.ID, map[int]bool{t.ID: true}); err != nil {
		return err
	}
	u.notices = append(u.notices, AssignedNotice(p.ID, t.ID, nil))
	u.tablesChanged = true
	return u.captureQueue(ctx, tx)
}

// applyHold places the outcome's new holds for its party.
func (e *Engine) applyHold(ctx context.Context, tx Tx, u *effects, out Outcome) error {
	for _, id := range out.NewHolds {
		t, err := tx.GetTable(ctx, id)
		if err != nil {
			return err
		}
		if !t.Free() {
			return fmt.Errorf("%w: table %d", ErrTableNotFree, t.ID)
		}
		t.Held = true
		t.HeldFor = ptr(out.Party.ID)
		if err := tx.UpdateTable(ctx, t); err != nil {
			return err
		}
	}
	if out.NeedsGrouping {
		u.notices = append(u.notices, NeedsGroupingNotice(out.Party.ID, out.Hold))
	}
	u.tablesChanged = true
	return nil
}

// releaseHolds frees every table held for partyID except those in keep and
// queues them for re-matching.
func (e *Engine) releaseHolds(ctx context.Context, tx Tx, u *effects, partyID string, keep map[int]bool) error {
	tables, err := tx.ListTables(ctx)
	if err != nil {
		return err
	}
	for _, t := range tablesHeldFor(tables, partyID) {
		if keep[t.ID] {
			continue
		}
		t.Held = false
		t.HeldFor = nil
		if err := tx.UpdateTable(ctx, t); err != nil {
			return err
		}
		u.rematch = append(u.rematch, t.ID)
		u.tablesChanged = true
	}
	return nil
}

// ManualGroupAssign seats a waiting party across tableIDs after staff
// confirmation.  The first id is the primary table.  Every table must be
// free, held for this party, or held by staff, and together they must seat
// the party; otherwise nothing changes.
func (e *Engine) ManualGroupAssign(ctx context.Context, partyID string, tableIDs []int) (Assignment, error) {
	const op = "group assign"
	ids := dedupe(tableIDs)
	var (
		f   effects
		res Assignment
	)
	err := e.unit(ctx, &f, func(tx Tx, u *effects) error {
		p, err := tx.GetParty(ctx, partyID)
		if err != nil {
			return err
		}
		if !p.Waiting() {
			return fmt.Errorf("%w: party %s already holds table %d", ErrAlreadyAssigned, p.ID, *p.TableID)
		}
		group := make([]model.Table, 0, len(ids))
		for _, id := range ids {
			t, err := tx.GetTable(ctx, id)
			if err != nil {
				return err
			}
			if t.Occupied || (t.Held && t.HeldFor != nil && *t.HeldFor != p.ID) {
				return fmt.Errorf("%w: table %d", ErrTableUnavailable, t.ID)
			}
			group = append(group, t)
		}
		if got := TotalCapacity(group); got < p.Seats {
			return fmt.Errorf("%w: %d seats for a party of %d", ErrInsufficientCapacity, got, p.Seats)
		}
		now := e.now()
		keep := make(map[int]bool, len(group))
		for i := range group {
			t := group[i]
			occupy(&t, p.ID, now)
			if i == 0 {
				t.Order = p.Order
			}
			if err := tx.UpdateTable(ctx, t); err != nil {
				return err
			}
			keep[t.ID] = true
		}
		p.TableID = ptr(ids[0])
		p.MatchedAt = ptr(now)
		if err := tx.UpdateParty(ctx, p); err != nil {
			return err
		}
		if err := e.releaseHolds(ctx, tx, u, p.ID, keep); err != nil {
			return err
		}
		res = Assignment{PartyID: p.ID, TableID: ids[0], ExtraTableIDs: append([]int(nil), ids[1:]...), MatchedAt: now}
		u.notices = append(u.notices, AssignedNotice(p.ID, ids[0], res.ExtraTableIDs))
		u.tablesChanged = true
		return u.captureQueue(ctx, tx)
	})
	if err != nil {
		return Assignment{}, wrap(op, err)
	}
	e.settle(ctx, op, &f)
	return res, nil
}

// ManualOccupy marks a free table occupied without any party, for guests
// seated by staff outside the queue.
func (e *Engine) ManualOccupy(ctx context.Context, tableID int) (model.Table, error) {
	const op = "manual occupy"
	var (
		f     effects
		table model.Table
	)
	err := e.unit(ctx, &f, func(tx Tx, u *effects) error {
		t, err := tx.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		if !t.Free() {
			return fmt.Errorf("%w: table %d", ErrTableNotFree, t.ID)
		}
		t.Occupied = true
		t.OccupantID = nil
		t.StartedAt = ptr(e.now())
		t.Arrived = true
		if err := tx.UpdateTable(ctx, t); err != nil {
			return err
		}
		table = t
		u.tablesChanged = true
		return nil
	})
	if err != nil {
		return model.Table{}, wrap(op, err)
	}
	e.settle(ctx, op, &f)
	return table, nil
}

// HoldTable sets a free table aside on staff request.  Such a hold has no
// owner party and may be claimed by any manual group assignment.
func (e *Engine) HoldTable(ctx context.Context, tableID int) (model.Table, error) {
	const op = "hold table"
	var (
		f     effects
		table model.Table
	)
	err := e.unit(ctx, &f, func(tx Tx, u *effects) error {
		t, err := tx.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		if !t.Free() {
			return fmt.Errorf("%w: table %d", ErrTableNotFree, t.ID)
		}
		t.Held = true
		t.HeldFor = nil
		if err := tx.UpdateTable(ctx, t); err != nil {
			return err
		}
		table = t
		u.tablesChanged = true
		return nil
	})
	if err != nil {
		return model.Table{}, wrap(op, err)
	}
	e.settle(ctx, op, &f)
	return table, nil
}

// CancelHold returns a held table to the free state and runs the matching
// policy for it.  A table still needed by the head of the queue is held
// again by that policy.
func (e *Engine) CancelHold(ctx context.Context, tableID int) (TableResult, error) {
	const op = "cancel hold"
	var f effects
	err := e.unit(ctx, &f, func(tx Tx, u *effects) error {
		t, err := tx.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		if !t.Held {
			return fmt.Errorf("%w: table %d is not held", ErrInvalidState, t.ID)
		}
		t.Held = false
		t.HeldFor = nil
		if err := tx.UpdateTable(ctx, t); err != nil {
			return err
		}
		u.rematch = append(u.rematch, t.ID)
		u.tablesChanged = true
		return nil
	})
	if err != nil {
		return TableResult{}, wrap(op, err)
	}
	e.settle(ctx, op, &f)
	return e.tableResult(ctx, tableID, f.outcomes)
}

// SetTableCapacity changes the seat count of an unoccupied table.  A free
// table is re-matched afterwards since it may now fit the head of the queue.
func (e *Engine) SetTableCapacity(ctx context.Context, tableID, capacity int) (TableResult, error) {
	const op = "set capacity"
	if err := e.capacity.Check(capacity); err != nil {
		return TableResult{}, wrap(op, err)
	}
	var f effects
	err := e.unit(ctx, &f, func(tx Tx, u *effects) error {
		t, err := tx.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		if t.Occupied {
			return fmt.Errorf("%w: table %d", ErrTableOccupied, t.ID)
		}
		t.Capacity = capacity
		if err := tx.UpdateTable(ctx, t); err != nil {
			return err
		}
		u.tablesChanged = true
		switch {
		case t.Free():
			u.rematch = append(u.rematch, t.ID)
		case t.HeldFor != nil:
			return e.recheckHold(ctx, tx, u, *t.HeldFor)
		}
		return nil
	})
	if err != nil {
		return TableResult{}, wrap(op, err)
	}
	e.settle(ctx, op, &f)
	return e.tableResult(ctx, tableID, f.outcomes)
}

// recheckHold signals staff when the tables held for a party now seat it.
func (e *Engine) recheckHold(ctx context.Context, tx Tx, u *effects, partyID string) error {
	p, err := tx.GetParty(ctx, partyID)
	if err != nil {
		return err
	}
	tables, err := tx.ListTables(ctx)
	if err != nil {
		return err
	}
	held := tablesHeldFor(tables, partyID)
	if TotalCapacity(held) >= p.Seats {
		u.notices = append(u.notices, NeedsGroupingNotice(partyID, tableIDs(held)))
	}
	return nil
}

// ConfirmTableArrival records that the guests of an occupied table sat
// down.  For a grouped party every table of the group is confirmed.
func (e *Engine) ConfirmTableArrival(ctx context.Context, tableID int) error {
	const op = "confirm arrival"
	var f effects
	err := e.unit(ctx, &f, func(tx Tx, u *effects) error {
		t, err := tx.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		if !t.Occupied {
			return fmt.Errorf("%w: table %d is not occupied", ErrInvalidState, t.ID)
		}
		if t.OccupantID == nil {
			t.Arrived = true
			u.tablesChanged = true
			return tx.UpdateTable(ctx, t)
		}
		p, err := tx.GetParty(ctx, *t.OccupantID)
		if err != nil {
			return err
		}
		return e.confirmGroup(ctx, tx, u, p)
	})
	if err != nil {
		return wrap(op, err)
	}
	e.settle(ctx, op, &f)
	return nil
}

// ConfirmPartyArrival is ConfirmTableArrival addressed by party.
func (e *Engine) ConfirmPartyArrival(ctx context.Context, partyID string) error {
	const op = "confirm arrival"
	var f effects
	err := e.unit(ctx, &f, func(tx Tx, u *effects) error {
		p, err := tx.GetParty(ctx, partyID)
		if err != nil {
			return err
		}
		if p.Waiting() {
			return fmt.Errorf("%w: party %s has no table yet", ErrInvalidState, p.ID)
		}
		return e.confirmGroup(ctx, tx, u, p)
	})
	if err != nil {
		return wrap(op, err)
	}
	e.settle(ctx, op, &f)
	return nil
}

func (e *Engine) confirmGroup(ctx context.Context, tx Tx, u *effects, p model.Party) error {
	tables, err := tx.ListTables(ctx)
	if err != nil {
		return err
	}
	for _, t := range tablesByOccupant(tables, p.ID) {
		t.Arrived = true
		if err := tx.UpdateTable(ctx, t); err != nil {
			return err
		}
	}
	if p.SeatedAt == nil {
		p.SeatedAt = ptr(e.now())
	}
	p.EnRoute = false
	u.tablesChanged = true
	return tx.UpdateParty(ctx, p)
}

// MarkEnRoute records that an assigned party is walking to its table.
func (e *Engine) MarkEnRoute(ctx context.Context, partyID string) error {
	const op = "mark en route"
	var f effects
	err := e.unit(ctx, &f, func(tx Tx, u *effects) error {
		p, err := tx.GetParty(ctx, partyID)
		if err != nil {
			return err
		}
		if p.Waiting() || p.SeatedAt != nil {
			return fmt.Errorf("%w: party %s is not awaiting arrival", ErrInvalidState, p.ID)
		}
		p.EnRoute = true
		u.tablesChanged = true
		return tx.UpdateParty(ctx, p)
	})
	if err != nil {
		return wrap(op, err)
	}
	e.settle(ctx, op, &f)
	return nil
}

// SetTableOrder attaches an opaque order payload to an occupied table.
func (e *Engine) SetTableOrder(ctx context.Context, tableID int, order string) error {
	const op = "set table order"
	var f effects
	err := e.unit(ctx, &f, func(tx Tx, u *effects) error {
		t, err := tx.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		if !t.Occupied {
			return fmt.Errorf("%w: table %d is not occupied", ErrInvalidState, t.ID)
		}
		t.Order = order
		u.tablesChanged = true
		return tx.UpdateTable(ctx, t)
	})
	if err != nil {
		return wrap(op, err)
	}
	e.settle(ctx, op, &f)
	return nil
}

// SetPartyOrder stores a pre-submitted order on a party.  Once the party
// has a table the order is mirrored onto its primary table.
func (e *Engine) SetPartyOrder(ctx context.Context, partyID, order string) error {
	const op = "set party order"
	var f effects
	err := e.unit(ctx, &f, func(tx Tx, u *effects) error {
		p, err := tx.GetParty(ctx, partyID)
		if err != nil {
			return err
		}
		p.Order = order
		if err := tx.UpdateParty(ctx, p); err != nil {
			return err
		}
		if p.Waiting() {
			return nil
		}
		t, err := tx.GetTable(ctx, *p.TableID)
		if err != nil {
			return err
		}
		t.Order = order
		u.tablesChanged = true
		return tx.UpdateTable(ctx, t)
	})
	if err != nil {
		return wrap(op, err)
	}
	e.settle(ctx, op, &f)
	return nil
}

func occupy(t *model.Table, partyID string, now time.Time) {
	t.Occupied = true
	t.OccupantID = ptr(partyID)
	t.StartedAt = ptr(now)
	t.Held = false
	t.HeldFor = nil
	t.Arrived = false
	t.Order = ""
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
