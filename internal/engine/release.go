package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/restaurant-queue/internal/model"
)

// ReleaseResult is returned by ReleaseTable.
type ReleaseResult struct {
	// Released lists every table freed by the release in ascending id order.
	Released []int
	// PartyID is the occupant that left; empty for a manual occupation.
	PartyID string
	// Usage holds one record per released table.
	Usage []model.UsageRecord
	// Outcomes lists the matching decisions applied to the freed tables.
	Outcomes []Outcome
}

// ReleaseTable frees an occupied table.  When the table belongs to a party
// every table sharing that occupant is released in the same transaction,
// one usage record per table.  Afterwards each freed table is offered to
// the queue on its own, in ascending id order, before ReleaseTable returns.
func (e *Engine) ReleaseTable(ctx context.Context, tableID int) (ReleaseResult, error) {
	const op = "release table"
	var (
		f   effects
		res ReleaseResult
	)
	err := e.unit(ctx, &f, func(tx Tx, u *effects) error {
		res = ReleaseResult{}
		t, err := tx.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		if !t.Occupied {
			return fmt.Errorf("%w: table %d is not occupied", ErrInvalidState, t.ID)
		}
		group := []model.Table{t}
		if t.OccupantID != nil {
			res.PartyID = *t.OccupantID
			tables, err := tx.ListTables(ctx)
			if err != nil {
				return err
			}
			group = tablesByOccupant(tables, res.PartyID)
		}
		now := e.now()
		for _, g := range group {
			seconds := 0.0
			if g.StartedAt != nil {
				if d := now.Sub(*g.StartedAt); d > 0 {
					seconds = d.Seconds()
				}
			}
			rec, err := tx.AppendUsage(ctx, model.UsageRecord{TableID: g.ID, DurationSeconds: seconds, RecordedAt: now})
			if err != nil {
				return err
			}
			g.Occupied = false
			g.OccupantID = nil
			g.StartedAt = nil
			g.Arrived = false
			g.Order = ""
			if err := tx.UpdateTable(ctx, g); err != nil {
				return err
			}
			res.Released = append(res.Released, g.ID)
			res.Usage = append(res.Usage, rec)
			u.usage = append(u.usage, rec)
			u.rematch = append(u.rematch, g.ID)
		}
		if res.PartyID != "" {
			if err := tx.DeleteParty(ctx, res.PartyID); err != nil && !errors.Is(err, ErrPartyNotFound) {
				return err
			}
		}
		u.tablesChanged = true
		return nil
	})
	if err != nil {
		return ReleaseResult{}, wrap(op, err)
	}
	e.settle(ctx, op, &f)
	res.Outcomes = f.outcomes
	e.log.Info("table released", "table_id", tableID, "released", res.Released, "party_id", res.PartyID, "matches", len(res.Outcomes))
	return res, nil
}
