package engine

import (
	"context"
	"fmt"

	"github.com/iliyamo/restaurant-queue/internal/model"
)

// AddTables grows the pool by n free tables of the given capacity and
// offers them to the queue.
func (e *Engine) AddTables(ctx context.Context, n, capacity int) ([]model.Table, error) {
	const op = "add tables"
	if n < 1 {
		return nil, wrap(op, fmt.Errorf("%w: count must be positive, got %d", ErrInvalidState, n))
	}
	if err := e.capacity.Check(capacity); err != nil {
		return nil, wrap(op, err)
	}
	var (
		f     effects
		added []model.Table
	)
	err := e.unit(ctx, &f, func(tx Tx, u *effects) error {
		tables, err := tx.AddTables(ctx, n, capacity)
		if err != nil {
			return err
		}
		added = tables
		u.rematch = append(u.rematch, tableIDs(tables)...)
		u.tablesChanged = true
		return nil
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	e.settle(ctx, op, &f)
	return added, nil
}

// ResetState removes every party and frees every table while keeping the
// pool's capacities and the usage history.
func (e *Engine) ResetState(ctx context.Context) error {
	const op = "reset"
	var f effects
	err := e.unit(ctx, &f, func(tx Tx, u *effects) error {
		if err := tx.Reset(ctx); err != nil {
			return err
		}
		u.tablesChanged = true
		return u.captureQueue(ctx, tx)
	})
	if err != nil {
		return wrap(op, err)
	}
	e.settle(ctx, op, &f)
	return nil
}
