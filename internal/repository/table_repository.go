package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/restaurant-queue/internal/engine"
	"github.com/iliyamo/restaurant-queue/internal/model"
)

// TableRepo provides data access to the restaurant_tables table.  Every
// read takes a row lock (SELECT ... FOR UPDATE) so that a unit of work
// sees and writes a table without a concurrent unit interleaving.  The
// caller supplies the transaction and is responsible for committing or
// rolling it back.
type TableRepo struct {
	db *sql.DB // connection pool shared with PartyRepo and UsageRepo
}

// NewTableRepo returns a TableRepo bound to db.
func NewTableRepo(db *sql.DB) *TableRepo { return &TableRepo{db: db} }

const tableColumns = `id, capacity, is_occupied, is_held, held_for, occupant_id,
                      started_at, guest_arrived, order_text`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTable(s rowScanner) (model.Table, error) {
	var (
		t         model.Table
		heldFor   sql.NullString
		occupant  sql.NullString
		startedAt sql.NullTime
		order     sql.NullString
	)
	if err := s.Scan(&t.ID, &t.Capacity, &t.Occupied, &t.Held, &heldFor, &occupant,
		&startedAt, &t.Arrived, &order); err != nil {
		return model.Table{}, err
	}
	t.HeldFor = nullString(heldFor)
	t.OccupantID = nullString(occupant)
	t.StartedAt = nullTime(startedAt)
	t.Order = order.String
	return t, nil
}

// ListTx returns every table ordered by id, locking all of them.
func (r *TableRepo) ListTx(ctx context.Context, tx *sql.Tx) ([]model.Table, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+tableColumns+` FROM restaurant_tables ORDER BY id FOR UPDATE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTx locks and returns one table.  A missing table yields an error
// matching engine.ErrTableNotFound.
func (r *TableRepo) GetTx(ctx context.Context, tx *sql.Tx, id int) (model.Table, error) {
	t, err := scanTable(tx.QueryRowContext(ctx,
		`SELECT `+tableColumns+` FROM restaurant_tables WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Table{}, fmt.Errorf("%w: %d", engine.ErrTableNotFound, id)
	}
	return t, err
}

// UpdateTx writes every mutable column of t.
func (r *TableRepo) UpdateTx(ctx context.Context, tx *sql.Tx, t model.Table) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE restaurant_tables
         SET capacity = ?, is_occupied = ?, is_held = ?, held_for = ?, occupant_id = ?,
             started_at = ?, guest_arrived = ?, order_text = ?
         WHERE id = ?`,
		t.Capacity, t.Occupied, t.Held, nullable(t.HeldFor), nullable(t.OccupantID),
		nullableTime(t.StartedAt), t.Arrived, t.Order, t.ID)
	if err != nil {
		return err
	}
	return requireRow(res, fmt.Errorf("%w: %d", engine.ErrTableNotFound, t.ID))
}

// AddTx inserts n free tables of the given capacity and returns them.
func (r *TableRepo) AddTx(ctx context.Context, tx *sql.Tx, n, capacity int) ([]model.Table, error) {
	out := make([]model.Table, 0, n)
	for i := 0; i < n; i++ {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO restaurant_tables (capacity, order_text) VALUES (?, '')`, capacity)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		out = append(out, model.Table{ID: int(id), Capacity: capacity})
	}
	return out, nil
}

// ResetTx frees every table and clears holds and orders, keeping
// capacities.
func (r *TableRepo) ResetTx(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE restaurant_tables
         SET is_occupied = FALSE, is_held = FALSE, held_for = NULL, occupant_id = NULL,
             started_at = NULL, guest_arrived = FALSE, order_text = ''`)
	return err
}

// Count returns the number of tables outside any transaction.  The CLI
// uses it to decide whether the pool needs seeding.
func (r *TableRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM restaurant_tables`).Scan(&n)
	return n, err
}
