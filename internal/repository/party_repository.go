package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/restaurant-queue/internal/engine"
	"github.com/iliyamo/restaurant-queue/internal/model"
)

// PartyRepo provides data access to the parties table.  A row is a party
// while it waits and while it sits at a table; it is deleted when the party
// cancels or its table is released.  Like TableRepo it locks the rows it
// reads, so the queue order observed by a unit of work cannot change under
// it before commit.
type PartyRepo struct {
	db *sql.DB // connection pool; every query here runs on a caller's tx
}

// NewPartyRepo returns a PartyRepo bound to db.
func NewPartyRepo(db *sql.DB) *PartyRepo { return &PartyRepo{db: db} }

const partyColumns = `id, session_key, arrived_at, seats, table_id, matched_at,
                      seated_at, order_text, en_route`

func scanParty(s rowScanner) (model.Party, error) {
	var (
		p       model.Party
		tableID sql.NullInt64
		matched sql.NullTime
		seated  sql.NullTime
		order   sql.NullString
	)
	if err := s.Scan(&p.ID, &p.Session, &p.ArrivedAt, &p.Seats, &tableID, &matched,
		&seated, &order, &p.EnRoute); err != nil {
		return model.Party{}, err
	}
	if tableID.Valid {
		id := int(tableID.Int64)
		p.TableID = &id
	}
	p.MatchedAt = nullTime(matched)
	p.SeatedAt = nullTime(seated)
	p.Order = order.String
	return p, nil
}

func (r *PartyRepo) list(ctx context.Context, tx *sql.Tx, q string, args ...any) ([]model.Party, error) {
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListWaitingTx returns the queue in arrival order.
func (r *PartyRepo) ListWaitingTx(ctx context.Context, tx *sql.Tx) ([]model.Party, error) {
	return r.list(ctx, tx, `SELECT `+partyColumns+` FROM parties
        WHERE table_id IS NULL ORDER BY arrived_at, id FOR UPDATE`)
}

// ListAssignedTx returns the parties holding a table, oldest match first.
func (r *PartyRepo) ListAssignedTx(ctx context.Context, tx *sql.Tx) ([]model.Party, error) {
	return r.list(ctx, tx, `SELECT `+partyColumns+` FROM parties
        WHERE table_id IS NOT NULL ORDER BY matched_at, id FOR UPDATE`)
}

// BySessionTx returns the parties registered from one device session.
func (r *PartyRepo) BySessionTx(ctx context.Context, tx *sql.Tx, session string) ([]model.Party, error) {
	return r.list(ctx, tx, `SELECT `+partyColumns+` FROM parties
        WHERE session_key = ? ORDER BY arrived_at, id FOR UPDATE`, session)
}

// GetTx locks and returns one party.  A missing party yields an error
// matching engine.ErrPartyNotFound.
func (r *PartyRepo) GetTx(ctx context.Context, tx *sql.Tx, id string) (model.Party, error) {
	p, err := scanParty(tx.QueryRowContext(ctx,
		`SELECT `+partyColumns+` FROM parties WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Party{}, fmt.Errorf("%w: %s", engine.ErrPartyNotFound, id)
	}
	return p, err
}

// CreateTx inserts p.
//
// The session check in RegisterParty reads under READ COMMITTED, which takes
// no gap locks, so two registrations from one session can both pass it.
// The unique key on waiting_session (migration 0003) rejects the second
// insert, or blocks it until the first commits; that rejection is reported
// as engine.ErrDuplicateRegistration.
func (r *PartyRepo) CreateTx(ctx context.Context, tx *sql.Tx, p model.Party) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO parties (id, session_key, arrived_at, seats, table_id, matched_at,
                              seated_at, order_text, en_route)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Session, p.ArrivedAt.UTC(), p.Seats, nullableInt(p.TableID),
		nullableTime(p.MatchedAt), nullableTime(p.SeatedAt), p.Order, p.EnRoute)
	return createPartyErr(err, p)
}

// createPartyErr maps a duplicate waiting session to
// engine.ErrDuplicateRegistration.
func createPartyErr(err error, p model.Party) error {
	if err != nil && isDuplicate(err) {
		return fmt.Errorf("%w: session already waiting (party %s): %w", engine.ErrDuplicateRegistration, p.ID, err)
	}
	return err
}

// UpdateTx writes every mutable column of p.
func (r *PartyRepo) UpdateTx(ctx context.Context, tx *sql.Tx, p model.Party) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE parties
         SET seats = ?, table_id = ?, matched_at = ?, seated_at = ?, order_text = ?, en_route = ?
         WHERE id = ?`,
		p.Seats, nullableInt(p.TableID), nullableTime(p.MatchedAt), nullableTime(p.SeatedAt),
		p.Order, p.EnRoute, p.ID)
	if err != nil {
		return err
	}
	return requireRow(res, fmt.Errorf("%w: %s", engine.ErrPartyNotFound, p.ID))
}

// DeleteTx removes a party.
func (r *PartyRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM parties WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, fmt.Errorf("%w: %s", engine.ErrPartyNotFound, id))
}

// DeleteAllTx removes every party.
func (r *PartyRepo) DeleteAllTx(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM parties`)
	return err
}
