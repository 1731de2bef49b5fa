package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/restaurant-queue/internal/engine"
	"github.com/iliyamo/restaurant-queue/internal/model"
)

// MemoryStore keeps the pool and the queue in process memory.  Units of
// work are serialized by a single mutex and run against a copy of the
// state, which replaces the committed state only when the unit succeeds.
// It backs the development mode of the server and the engine tests.
type MemoryStore struct {
	mu    sync.Mutex // held for the whole of a unit of work
	state memState   // last committed state
}

// memState is one complete copy of the floor.  clone must copy every map
// and slice so that a failed unit leaves the committed state untouched.
type memState struct {
	tables    map[int]model.Table    // pool keyed by table id
	parties   map[string]model.Party // waiting and seated parties keyed by id
	usage     []model.UsageRecord    // append-only usage log, oldest first
	nextTable int                    // id given to the next added table
	nextUsage uint64                 // id given to the next usage record
}

// NewMemoryStore returns a store seeded with tables of the given capacities,
// numbered from 1 in order.
func NewMemoryStore(capacities ...int) *MemoryStore {
	s := &MemoryStore{state: memState{
		tables:    make(map[int]model.Table, len(capacities)),
		parties:   make(map[string]model.Party),
		nextTable: 1,
		nextUsage: 1,
	}}
	for _, c := range capacities {
		id := s.state.nextTable
		s.state.tables[id] = model.Table{ID: id, Capacity: c}
		s.state.nextTable++
	}
	return s
}

func (st memState) clone() memState {
	out := memState{
		tables:    make(map[int]model.Table, len(st.tables)),
		parties:   make(map[string]model.Party, len(st.parties)),
		usage:     st.usage[:len(st.usage):len(st.usage)],
		nextTable: st.nextTable,
		nextUsage: st.nextUsage,
	}
	for k, v := range st.tables {
		out.tables[k] = v
	}
	for k, v := range st.parties {
		out.parties[k] = v
	}
	return out
}

// InTx implements engine.Store.
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx engine.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{st: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.st
	return nil
}

type memTx struct {
	st memState
}

func (t *memTx) ListTables(ctx context.Context) ([]model.Table, error) {
	out := make([]model.Table, 0, len(t.st.tables))
	for _, tb := range t.st.tables {
		out = append(out, tb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) GetTable(ctx context.Context, id int) (model.Table, error) {
	tb, ok := t.st.tables[id]
	if !ok {
		return model.Table{}, fmt.Errorf("%w: %d", engine.ErrTableNotFound, id)
	}
	return tb, nil
}

func (t *memTx) UpdateTable(ctx context.Context, tb model.Table) error {
	if _, ok := t.st.tables[tb.ID]; !ok {
		return fmt.Errorf("%w: %d", engine.ErrTableNotFound, tb.ID)
	}
	t.st.tables[tb.ID] = tb
	return nil
}

func (t *memTx) AddTables(ctx context.Context, n, capacity int) ([]model.Table, error) {
	out := make([]model.Table, 0, n)
	for i := 0; i < n; i++ {
		tb := model.Table{ID: t.st.nextTable, Capacity: capacity}
		t.st.tables[tb.ID] = tb
		t.st.nextTable++
		out = append(out, tb)
	}
	return out, nil
}

func (t *memTx) ListWaiting(ctx context.Context) ([]model.Party, error) {
	var out []model.Party
	for _, p := range t.st.parties {
		if p.Waiting() {
			out = append(out, p)
		}
	}
	engine.SortWaiting(out)
	return out, nil
}

func (t *memTx) ListAssigned(ctx context.Context) ([]model.Party, error) {
	var out []model.Party
	for _, p := range t.st.parties {
		if !p.Waiting() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].MatchedAt, out[j].MatchedAt
		if a == nil || b == nil || a.Equal(*b) {
			return out[i].ID < out[j].ID
		}
		return a.Before(*b)
	})
	return out, nil
}

func (t *memTx) GetParty(ctx context.Context, id string) (model.Party, error) {
	p, ok := t.st.parties[id]
	if !ok {
		return model.Party{}, fmt.Errorf("%w: %s", engine.ErrPartyNotFound, id)
	}
	return p, nil
}

func (t *memTx) PartiesBySession(ctx context.Context, session string) ([]model.Party, error) {
	var out []model.Party
	for _, p := range t.st.parties {
		if p.Session == session {
			out = append(out, p)
		}
	}
	engine.SortWaiting(out)
	return out, nil
}

func (t *memTx) CreateParty(ctx context.Context, p model.Party) error {
	if _, ok := t.st.parties[p.ID]; ok {
		return fmt.Errorf("party %s already exists", p.ID)
	}
	t.st.parties[p.ID] = p
	return nil
}

func (t *memTx) UpdateParty(ctx context.Context, p model.Party) error {
	if _, ok := t.st.parties[p.ID]; !ok {
		return fmt.Errorf("%w: %s", engine.ErrPartyNotFound, p.ID)
	}
	t.st.parties[p.ID] = p
	return nil
}

func (t *memTx) DeleteParty(ctx context.Context, id string) error {
	if _, ok := t.st.parties[id]; !ok {
		return fmt.Errorf("%w: %s", engine.ErrPartyNotFound, id)
	}
	delete(t.st.parties, id)
	return nil
}

func (t *memTx) AppendUsage(ctx context.Context, u model.UsageRecord) (model.UsageRecord, error) {
	u.ID = t.st.nextUsage
	t.st.nextUsage++
	t.st.usage = append(t.st.usage, u)
	return u, nil
}

func (t *memTx) UsageSince(ctx context.Context, since time.Time) ([]model.UsageRecord, error) {
	var out []model.UsageRecord
	for _, u := range t.st.usage {
		if !u.RecordedAt.Before(since) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (t *memTx) Reset(ctx context.Context) error {
	t.st.parties = make(map[string]model.Party)
	for id, tb := range t.st.tables {
		t.st.tables[id] = model.Table{ID: tb.ID, Capacity: tb.Capacity}
	}
	return nil
}
