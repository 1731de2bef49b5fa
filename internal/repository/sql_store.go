package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/restaurant-queue/internal/engine"
	"github.com/iliyamo/restaurant-queue/internal/model"
)

// MySQL error numbers that mean the transaction lost a lock race and can be
// retried from the start.
const (
	mysqlDeadlock        = 1213
	mysqlLockWaitTimeout = 1205
	mysqlDuplicateEntry  = 1062
)

// SQLStore is the MySQL implementation of engine.Store.  Each unit of work
// runs in one database transaction; the repositories lock every table and
// party row they read, so concurrent units touching the same rows are
// serialized by InnoDB.  A unit aborted by a deadlock is retried.
type SQLStore struct {
	db      *sql.DB
	tables  *TableRepo
	parties *PartyRepo
	usage   *UsageRepo
	retries int          // extra attempts for a unit aborted by deadlock
	log     *slog.Logger // reports retried units
}

// NewSQLStore returns a store over db.
func NewSQLStore(db *sql.DB, log *slog.Logger) *SQLStore {
	if log == nil {
		log = slog.Default()
	}
	return &SQLStore{
		db:      db,
		tables:  NewTableRepo(db),
		parties: NewPartyRepo(db),
		usage:   NewUsageRepo(db),
		retries: 3,
		log:     log,
	}
}

// Tables exposes the table repository for seeding.
func (s *SQLStore) Tables() *TableRepo { return s.tables }

// InTx implements engine.Store.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx engine.Tx) error) error {
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			s.log.Debug("retrying unit of work", "attempt", attempt, "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
			}
		}
		err = s.runOnce(ctx, fn)
		if !isRetryable(err) {
			return err
		}
	}
	return err
}

func (s *SQLStore) runOnce(ctx context.Context, fn func(tx engine.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&sqlTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func isRetryable(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == mysqlDeadlock || me.Number == mysqlLockWaitTimeout
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// sqlTx adapts the repositories to engine.Tx for one transaction.
type sqlTx struct {
	s  *SQLStore
	tx *sql.Tx
}

func (t *sqlTx) ListTables(ctx context.Context) ([]model.Table, error) {
	return t.s.tables.ListTx(ctx, t.tx)
}

func (t *sqlTx) GetTable(ctx context.Context, id int) (model.Table, error) {
	return t.s.tables.GetTx(ctx, t.tx, id)
}

func (t *sqlTx) UpdateTable(ctx context.Context, tb model.Table) error {
	return t.s.tables.UpdateTx(ctx, t.tx, tb)
}

func (t *sqlTx) AddTables(ctx context.Context, n, capacity int) ([]model.Table, error) {
	return t.s.tables.AddTx(ctx, t.tx, n, capacity)
}

func (t *sqlTx) ListWaiting(ctx context.Context) ([]model.Party, error) {
	return t.s.parties.ListWaitingTx(ctx, t.tx)
}

func (t *sqlTx) ListAssigned(ctx context.Context) ([]model.Party, error) {
	return t.s.parties.ListAssignedTx(ctx, t.tx)
}

func (t *sqlTx) GetParty(ctx context.Context, id string) (model.Party, error) {
	return t.s.parties.GetTx(ctx, t.tx, id)
}

func (t *sqlTx) PartiesBySession(ctx context.Context, session string) ([]model.Party, error) {
	return t.s.parties.BySessionTx(ctx, t.tx, session)
}

func (t *sqlTx) CreateParty(ctx context.Context, p model.Party) error {
	return t.s.parties.CreateTx(ctx, t.tx, p)
}

func (t *sqlTx) UpdateParty(ctx context.Context, p model.Party) error {
	return t.s.parties.UpdateTx(ctx, t.tx, p)
}

func (t *sqlTx) DeleteParty(ctx context.Context, id string) error {
	return t.s.parties.DeleteTx(ctx, t.tx, id)
}

func (t *sqlTx) AppendUsage(ctx context.Context, u model.UsageRecord) (model.UsageRecord, error) {
	return t.s.usage.AppendTx(ctx, t.tx, u)
}

func (t *sqlTx) UsageSince(ctx context.Context, since time.Time) ([]model.UsageRecord, error) {
	return t.s.usage.SinceTx(ctx, t.tx, since)
}

func (t *sqlTx) Reset(ctx context.Context) error {
	if err := t.s.parties.DeleteAllTx(ctx, t.tx); err != nil {
		return err
	}
	return t.s.tables.ResetTx(ctx, t.tx)
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// requireRow turns a zero-row update into notFound.  It relies on the
// connection reporting matched rows (clientFoundRows=true), since an update
// that rewrites identical values changes nothing.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
