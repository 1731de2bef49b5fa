package engine

import (
	"context"
	"time"

	"github.com/iliyamo/restaurant-queue/internal/model"
)

// Store runs units of work atomically.  InTx must either apply every
// mutation fn performed or none of them, and must serialize units that touch
// the same tables or parties (row locks or an equivalent mutex).  Any error
// returned by fn aborts the unit.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the view of state inside one unit of work.  Reads made through a Tx
// reflect the locked, current state; implementations return ErrTableNotFound
// and ErrPartyNotFound for missing rows.
type Tx interface {
	// ListTables returns the whole pool in ascending id order.
	ListTables(ctx context.Context) ([]model.Table, error)
	GetTable(ctx context.Context, id int) (model.Table, error)
	UpdateTable(ctx context.Context, t model.Table) error
	// AddTables appends n free tables with the given capacity.
	AddTables(ctx context.Context, n, capacity int) ([]model.Table, error)

	// ListWaiting returns waiting parties ordered by arrival then id.
	ListWaiting(ctx context.Context) ([]model.Party, error)
	GetParty(ctx context.Context, id string) (model.Party, error)
	// PartiesBySession returns every live party registered by session.
	PartiesBySession(ctx context.Context, session string) ([]model.Party, error)
	CreateParty(ctx context.Context, p model.Party) error
	UpdateParty(ctx context.Context, p model.Party) error
	DeleteParty(ctx context.Context, id string) error
	// ListAssigned returns parties that hold a table, ordered by match time.
	ListAssigned(ctx context.Context) ([]model.Party, error)

	AppendUsage(ctx context.Context, u model.UsageRecord) (model.UsageRecord, error)
	UsageSince(ctx context.Context, since time.Time) ([]model.UsageRecord, error)

	// Reset removes every party and frees every table, keeping capacities
	// and usage history.
	Reset(ctx context.Context) error
}
