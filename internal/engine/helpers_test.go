package engine_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-queue/internal/engine"
	"github.com/iliyamo/restaurant-queue/internal/model"
	"github.com/iliyamo/restaurant-queue/internal/repository"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu      sync.Mutex
	notices []engine.Notice
}

func (r *recorder) Notify(_ context.Context, notices []engine.Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, notices...)
	r.mu.Unlock()
}

func (r *recorder) of(kind engine.NoticeKind) []engine.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []engine.Notice
	for _, n := range r.notices {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func (r *recorder) clear() {
	r.mu.Lock()
	r.notices = nil
	r.mu.Unlock()
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	eng   *engine.Engine
	clock *manualClock
	rec   *recorder
}

// newHarness builds an engine over an in-memory pool with tables of the
// given capacities, numbered from 1.  Party ids are p01, p02, ...
func newHarness(t *testing.T, capacities []int, opts ...engine.Option) *harness {
	t.Helper()
	clock := &manualClock{now: time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	var (
		mu  sync.Mutex
		seq int
	)
	base := []engine.Option{
		engine.WithClock(clock),
		engine.WithNotifier(rec),
		engine.WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("p%02d", seq)
		}),
	}
	eng := engine.New(repository.NewMemoryStore(capacities...), append(base, opts...)...)
	return &harness{t: t, ctx: context.Background(), eng: eng, clock: clock, rec: rec}
}

// register queues a party one second after the previous one.
func (h *harness) register(session string, seats int) model.Party {
	h.t.Helper()
	h.clock.Advance(time.Second)
	res, err := h.eng.RegisterParty(h.ctx, session, seats)
	require.NoError(h.t, err)
	return res.Party
}

func (h *harness) table(id int) model.Table {
	h.t.Helper()
	tables, err := h.eng.Tables(h.ctx)
	require.NoError(h.t, err)
	for _, t := range tables {
		if t.ID == id {
			return t
		}
	}
	h.t.Fatalf("table %d not in pool", id)
	return model.Table{}
}

func (h *harness) status(partyID string) engine.PartyStatus {
	h.t.Helper()
	st, err := h.eng.PartyStatus(h.ctx, partyID)
	require.NoError(h.t, err)
	return st
}

func (h *harness) occupy(ids ...int) {
	h.t.Helper()
	for _, id := range ids {
		_, err := h.eng.ManualOccupy(h.ctx, id)
		require.NoError(h.t, err)
	}
}

func heldFor(t model.Table) string {
	if t.HeldFor == nil {
		return ""
	}
	return *t.HeldFor
}

func occupant(t model.Table) string {
	if t.OccupantID == nil {
		return ""
	}
	return *t.OccupantID
}
