package engine

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/restaurant-queue/internal/model"
)

// PartyStatus is a party together with its place in the queue.
type PartyStatus struct {
	Party    model.Party `json:"party"`
	Position int         `json:"position"` // 1-based; 0 once assigned
	Total    int         `json:"total"`    // waiting parties
	Tables   []int       `json:"tables,omitempty"`
}

// Overdue is an assigned party that has not been seated for longer than
// the configured warning age.  It is advisory only.
type Overdue struct {
	Party   model.Party   `json:"party"`
	Waiting time.Duration `json:"waiting"`
}

// Tables returns a snapshot of the pool in ascending id order.
func (e *Engine) Tables(ctx context.Context) ([]model.Table, error) {
	var out []model.Table
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListTables(ctx)
		return err
	})
	return out, wrap("list tables", err)
}

// Waiting returns the waiting parties in queue order.
func (e *Engine) Waiting(ctx context.Context) ([]model.Party, error) {
	var out []model.Party
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListWaiting(ctx)
		return err
	})
	return out, wrap("list waiting", err)
}

// PartyStatus returns a party with its queue position and tables.
func (e *Engine) PartyStatus(ctx context.Context, partyID string) (PartyStatus, error) {
	var st PartyStatus
	err := e.store.InTx(ctx, func(tx Tx) error {
		p, err := tx.GetParty(ctx, partyID)
		if err != nil {
			return err
		}
		waiting, err := tx.ListWaiting(ctx)
		if err != nil {
			return err
		}
		st = PartyStatus{Party: p, Position: PositionOf(waiting, p.ID), Total: len(waiting)}
		if !p.Waiting() {
			tables, err := tx.ListTables(ctx)
			if err != nil {
				return err
			}
			st.Tables = tableIDs(tablesByOccupant(tables, p.ID))
		}
		return nil
	})
	return st, wrap("party status", err)
}

// PartyForSession returns the most recently registered live party of a
// session.
func (e *Engine) PartyForSession(ctx context.Context, session string) (model.Party, error) {
	var (
		out   model.Party
		found bool
	)
	err := e.store.InTx(ctx, func(tx Tx) error {
		parties, err := tx.PartiesBySession(ctx, session)
		if err != nil {
			return err
		}
		for _, p := range parties {
			if !found || p.ArrivedAt.After(out.ArrivedAt) {
				out, found = p, true
			}
		}
		return nil
	})
	if err == nil && !found {
		err = ErrPartyNotFound
	}
	return out, wrap("party for session", err)
}

// UsageSince returns usage records written at or after since.
func (e *Engine) UsageSince(ctx context.Context, since time.Time) ([]model.UsageRecord, error) {
	var out []model.UsageRecord
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.UsageSince(ctx, since)
		return err
	})
	return out, wrap("usage", err)
}

// OverdueAssignments lists assigned parties not yet seated whose match is
// older than the warning age, oldest first.
func (e *Engine) OverdueAssignments(ctx context.Context) ([]Overdue, error) {
	var out []Overdue
	err := e.store.InTx(ctx, func(tx Tx) error {
		assigned, err := tx.ListAssigned(ctx)
		if err != nil {
			return err
		}
		now := e.now()
		for _, p := range assigned {
			if p.SeatedAt != nil || p.MatchedAt == nil {
				continue
			}
			if age := now.Sub(*p.MatchedAt); age >= e.heldWarning {
				out = append(out, Overdue{Party: p, Waiting: age})
			}
		}
		return nil
	})
	return out, wrap("overdue assignments", err)
}

func (e *Engine) lookupParty(ctx context.Context, partyID string) (model.Party, error) {
	var p model.Party
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		p, err = tx.GetParty(ctx, partyID)
		return err
	})
	return p, err
}

func (e *Engine) tableResult(ctx context.Context, tableID int, outcomes []Outcome) (TableResult, error) {
	var t model.Table
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		t, err = tx.GetTable(ctx, tableID)
		return err
	})
	if err != nil && !errors.Is(err, ErrTableNotFound) {
		return TableResult{Outcomes: outcomes}, err
	}
	return TableResult{Table: t, Outcomes: outcomes}, nil
}
