package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/restaurant-queue/internal/model"
)

// UsageRepo appends to and reads the table_usage log.  Rows are never
// updated.
type UsageRepo struct {
	db *sql.DB // used directly for the read-only statistics queries
}

// NewUsageRepo returns a UsageRepo bound to db.
func NewUsageRepo(db *sql.DB) *UsageRepo { return &UsageRepo{db: db} }

// AppendTx inserts u and returns it with its id set.
func (r *UsageRepo) AppendTx(ctx context.Context, tx *sql.Tx, u model.UsageRecord) (model.UsageRecord, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO table_usage (table_id, duration_seconds, recorded_at) VALUES (?, ?, ?)`,
		u.TableID, u.DurationSeconds, u.RecordedAt.UTC())
	if err != nil {
		return model.UsageRecord{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.UsageRecord{}, err
	}
	u.ID = uint64(id)
	return u, nil
}

// SinceTx returns records at or after since, oldest first.
func (r *UsageRepo) SinceTx(ctx context.Context, tx *sql.Tx, since time.Time) ([]model.UsageRecord, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, table_id, duration_seconds, recorded_at FROM table_usage
         WHERE recorded_at >= ? ORDER BY recorded_at, id`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.UsageRecord
	for rows.Next() {
		var u model.UsageRecord
		if err := rows.Scan(&u.ID, &u.TableID, &u.DurationSeconds, &u.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
