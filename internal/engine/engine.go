package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/restaurant-queue/internal/model"
)

// Engine is the table assignment and queue matching core.  Every inbound
// event runs as one atomic unit of work on the Store; tables freed by the
// unit are then re-matched one by one in separate units, and the notices
// of all units are handed to the Notifier after the last commit.
type Engine struct {
	store       Store
	clock       Clock
	notifier    Notifier
	log         *slog.Logger
	capacity    CapacityRange
	reuseWindow time.Duration
	heldWarning time.Duration
	newID       func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source.
func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

// WithNotifier sets the receiver of post-commit notices.
func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithCapacityRange bounds table capacities accepted by SetTableCapacity
// and AddTables.
func WithCapacityRange(r CapacityRange) Option { return func(e *Engine) { e.capacity = r } }

// WithReuseWindow enables returning a session's recently assigned party
// on re-registration.  Zero disables reuse.
func WithReuseWindow(d time.Duration) Option { return func(e *Engine) { e.reuseWindow = d } }

// WithHeldWarning sets the age after which an assigned party that has not
// been seated shows up in OverdueAssignments.
func WithHeldWarning(d time.Duration) Option { return func(e *Engine) { e.heldWarning = d } }

// WithIDGenerator replaces the party id generator.
func WithIDGenerator(f func() string) Option { return func(e *Engine) { e.newID = f } }

// New returns an Engine bound to store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		clock:       CivilClock{Loc: time.UTC},
		notifier:    discardNotifier{},
		log:         slog.Default(),
		capacity:    DefaultCapacityRange,
		heldWarning: 10 * time.Minute,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// effects collects what one operation did across its units of work.
type effects struct {
	notices       []Notice
	rematch       []int
	outcomes      []Outcome
	usage         []model.UsageRecord
	tablesChanged bool
	// waiting is the queue as of the latest commit that changed it.
	waiting      []model.Party
	queueChanged bool
	// moved is set when the queue changed since free tables were last swept.
	moved bool
}

func (f *effects) captureQueue(ctx context.Context, tx Tx) error {
	waiting, err := tx.ListWaiting(ctx)
	if err != nil {
		return err
	}
	f.waiting = waiting
	f.queueChanged = true
	f.moved = true
	return nil
}

// unit runs fn in its own transaction.  Effects recorded by fn are merged
// into f only if the transaction commits.
func (e *Engine) unit(ctx context.Context, f *effects, fn func(tx Tx, u *effects) error) error {
	var u effects
	err := e.store.InTx(ctx, func(tx Tx) error {
		u = effects{}
		return fn(tx, &u)
	})
	if err != nil {
		return err
	}
	f.notices = append(f.notices, u.notices...)
	f.rematch = append(f.rematch, u.rematch...)
	f.outcomes = append(f.outcomes, u.outcomes...)
	f.usage = append(f.usage, u.usage...)
	f.tablesChanged = f.tablesChanged || u.tablesChanged
	if u.queueChanged {
		f.waiting = u.waiting
		f.queueChanged = true
		f.moved = true
	}
	return nil
}

// settle re-matches every table queued for re-matching, in order, then
// publishes the notices gathered by the operation.  Whenever the queue moved,
// every free table is offered again to the new head; this repeats until a
// pass leaves the queue as it was, so no free table that seats the head is
// left idle.
func (e *Engine) settle(ctx context.Context, op string, f *effects) {
	for {
		for len(f.rematch) > 0 {
			id := f.rematch[0]
			f.rematch = f.rematch[1:]
			if err := e.unit(ctx, f, func(tx Tx, u *effects) error {
				return e.matchTable(ctx, tx, u, id)
			}); err != nil {
				// The triggering operation already committed; a failed
				// re-match leaves the table free for the next event.
				e.log.Warn("rematch failed", "op", op, "table_id", id, "err", err)
			}
		}
		if !f.moved {
			break
		}
		f.moved = false
		if err := e.sweep(ctx, f); err != nil {
			e.log.Warn("sweep failed", "op", op, "err", err)
			break
		}
	}
	e.publish(ctx, op, f)
}

func (e *Engine) publish(ctx context.Context, op string, f *effects) {
	notices := append([]Notice(nil), f.notices...)
	if f.queueChanged {
		notices = append(notices, QueuePositionNotices(f.waiting)...)
	}
	if f.tablesChanged {
		notices = append(notices, TablesChangedNotice())
	}
	for i := range f.usage {
		u := f.usage[i]
		notices = append(notices, Notice{Kind: NoticeUsageRecorded, TableID: u.TableID, Usage: &u})
	}
	e.log.Debug("engine commit", "op", op, "notices", len(notices), "outcomes", len(f.outcomes))
	if len(notices) == 0 {
		return
	}
	e.notifier.Notify(context.WithoutCancel(ctx), notices)
}

// matchTable applies the matching policy to one table inside tx.  A table
// that is no longer free when the unit starts is left alone.
func (e *Engine) matchTable(ctx context.Context, tx Tx, u *effects, tableID int) error {
	table, err := tx.GetTable(ctx, tableID)
	if err != nil {
		return err
	}
	if !table.Free() {
		return nil
	}
	tables, err := tx.ListTables(ctx)
	if err != nil {
		return err
	}
	waiting, err := tx.ListWaiting(ctx)
	if err != nil {
		return err
	}
	out := Decide(table, tables, waiting)
	switch out.Kind {
	case AssignSingle:
		if err := e.applyAutoAssign(ctx, tx, u, out.Party.ID, out.Table.ID); err != nil {
			if IsConflict(err) {
				e.log.Info("auto assign lost race", "party_id", out.Party.ID, "table_id", out.Table.ID, "err", err)
				return nil
			}
			return err
		}
	case HoldForGroup:
		if err := e.applyHold(ctx, tx, u, out); err != nil {
			return err
		}
	default:
		return nil
	}
	u.outcomes = append(u.outcomes, out)
	return nil
}

// sweep offers every free table to the queue, in ascending id order.
func (e *Engine) sweep(ctx context.Context, f *effects) error {
	var free []int
	err := e.store.InTx(ctx, func(tx Tx) error {
		tables, err := tx.ListTables(ctx)
		if err != nil {
			return err
		}
		free = tableIDs(FreeTables(tables))
		return nil
	})
	if err != nil {
		return err
	}
	f.rematch = append(f.rematch, free...)
	return nil
}

func (e *Engine) now() time.Time { return e.clock.Now() }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

func ptr[T any](v T) *T { return &v }
