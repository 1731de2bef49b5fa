package engine_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-queue/internal/engine"
)

func TestRegister_SeatsHeadAtFreeTable(t *testing.T) {
	h := newHarness(t, []int{2, 4})

	res, err := h.eng.RegisterParty(h.ctx, "s1", 3)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, engine.AssignSingle, res.Outcomes[0].Kind)
	require.NotNil(t, res.Party.TableID)
	assert.Equal(t, 2, *res.Party.TableID)

	assigned := h.rec.of(engine.NoticeAssigned)
	require.Len(t, assigned, 1)
	assert.Equal(t, res.Party.ID, assigned[0].PartyID)
	assert.Equal(t, 2, assigned[0].TableID)
	assert.NotEmpty(t, h.rec.of(engine.NoticeTablesChanged))
}

func TestRegister_RejectsBadSize(t *testing.T) {
	h := newHarness(t, []int{4})
	_, err := h.eng.RegisterParty(h.ctx, "s1", 0)
	assert.ErrorIs(t, err, engine.ErrInvalidPartySize)
}

func TestRegister_Idempotent(t *testing.T) {
	h := newHarness(t, nil)
	first := h.register("s1", 2)

	_, err := h.eng.RegisterParty(h.ctx, "s1", 4)
	assert.ErrorIs(t, err, engine.ErrDuplicateRegistration)

	waiting, err := h.eng.Waiting(h.ctx)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, first.ID, waiting[0].ID)
	assert.Equal(t, 2, waiting[0].Seats)

	// Anonymous registrations are never deduplicated.
	h.register("", 2)
	h.register("", 2)
	waiting, err = h.eng.Waiting(h.ctx)
	require.NoError(t, err)
	assert.Len(t, waiting, 3)
}

func TestRegister_ReuseWindow(t *testing.T) {
	h := newHarness(t, []int{4}, engine.WithReuseWindow(5*time.Minute))
	first := h.register("s1", 2)
	require.NotNil(t, first.TableID)

	h.clock.Advance(2 * time.Minute)
	res, err := h.eng.RegisterParty(h.ctx, "s1", 2)
	require.NoError(t, err)
	assert.True(t, res.Reused)
	assert.Equal(t, first.ID, res.Party.ID)

	h.clock.Advance(10 * time.Minute)
	res, err = h.eng.RegisterParty(h.ctx, "s1", 2)
	require.NoError(t, err)
	assert.False(t, res.Reused)
	assert.NotEqual(t, first.ID, res.Party.ID)
	assert.True(t, res.Party.Waiting())
}

func TestRegister_NoReuseByDefault(t *testing.T) {
	h := newHarness(t, []int{4})
	first := h.register("s1", 2)
	require.NotNil(t, first.TableID)

	second := h.register("s1", 2)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.Waiting())
}

// One table of four frees with parties of 2 and 6 queued in that order.
func TestRelease_HeadFitsIsSeated(t *testing.T) {
	h := newHarness(t, []int{4})
	h.occupy(1)
	small := h.register("a", 2)
	big := h.register("b", 6)
	h.rec.clear()

	res, err := h.eng.ReleaseTable(h.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Released)
	assert.Empty(t, res.PartyID)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, engine.AssignSingle, res.Outcomes[0].Kind)
	assert.Equal(t, small.ID, res.Outcomes[0].Party.ID)

	assert.Equal(t, small.ID, occupant(h.table(1)))
	st := h.status(big.ID)
	assert.True(t, st.Party.Waiting())
	assert.Equal(t, 1, st.Position)

	positions := h.rec.of(engine.NoticeQueuePosition)
	require.NotEmpty(t, positions)
	last := positions[len(positions)-1]
	assert.Equal(t, big.ID, last.PartyID)
	assert.Equal(t, 1, last.Position)
	assert.Equal(t, 1, last.Total)
}

// A freed table of four is held for a party of six; grouping is signalled
// only once enough capacity is reserved.
func TestRelease_HoldsForLargeHead(t *testing.T) {
	h := newHarness(t, []int{4})
	h.occupy(1)
	big := h.register("b", 6)
	h.rec.clear()

	res, err := h.eng.ReleaseTable(h.ctx, 1)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, engine.HoldForGroup, res.Outcomes[0].Kind)
	assert.False(t, res.Outcomes[0].NeedsGrouping)

	tb := h.table(1)
	assert.True(t, tb.Held)
	assert.False(t, tb.Occupied)
	assert.Equal(t, big.ID, heldFor(tb))
	assert.Empty(t, h.rec.of(engine.NoticeNeedsGrouping))
	assert.True(t, h.status(big.ID).Party.Waiting())

	added, err := h.eng.AddTables(h.ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, 2, added[0].ID)

	grouping := h.rec.of(engine.NoticeNeedsGrouping)
	require.Len(t, grouping, 1)
	assert.Equal(t, big.ID, grouping[0].PartyID)
	assert.Equal(t, []int{1, 2}, grouping[0].HeldTableIDs)
	assert.Equal(t, big.ID, heldFor(h.table(2)))

	a, err := h.eng.ManualGroupAssign(h.ctx, big.ID, []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 1, a.TableID)
	assert.Equal(t, []int{2}, a.ExtraTableIDs)
	for _, id := range []int{1, 2} {
		tb := h.table(id)
		assert.True(t, tb.Occupied)
		assert.False(t, tb.Held)
		assert.Equal(t, big.ID, occupant(tb))
	}
	st := h.status(big.ID)
	assert.Equal(t, 0, st.Position)
	assert.Equal(t, []int{1, 2}, st.Tables)
}

func TestRelease_GroupReleasesEveryTable(t *testing.T) {
	h := newHarness(t, []int{2, 2, 2, 2, 2})
	h.occupy(1, 2, 4)
	p := h.register("a", 4)

	tables, err := h.eng.Tables(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, p.ID, heldFor(tables[2]))
	assert.Equal(t, p.ID, heldFor(tables[4]))

	_, err = h.eng.ManualGroupAssign(h.ctx, p.ID, []int{3, 5})
	require.NoError(t, err)

	h.clock.Advance(90 * time.Second)
	res, err := h.eng.ReleaseTable(h.ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, res.Released)
	assert.Equal(t, p.ID, res.PartyID)
	require.Len(t, res.Usage, 2)
	assert.Equal(t, 3, res.Usage[0].TableID)
	assert.Equal(t, 5, res.Usage[1].TableID)
	for _, u := range res.Usage {
		assert.InDelta(t, 90, u.DurationSeconds, 0.001)
	}
	assert.True(t, h.table(3).Free())
	assert.True(t, h.table(5).Free())

	_, err = h.eng.PartyStatus(h.ctx, p.ID)
	assert.ErrorIs(t, err, engine.ErrPartyNotFound)
	assert.Len(t, h.rec.of(engine.NoticeUsageRecorded), 2)
}

func TestRelease_ManualOccupationDurations(t *testing.T) {
	h := newHarness(t, []int{2, 2})
	h.occupy(1)
	h.clock.Advance(time.Minute)
	h.occupy(2)
	h.clock.Advance(time.Minute)

	first, err := h.eng.ReleaseTable(h.ctx, 1)
	require.NoError(t, err)
	second, err := h.eng.ReleaseTable(h.ctx, 2)
	require.NoError(t, err)

	require.Len(t, first.Usage, 1)
	require.Len(t, second.Usage, 1)
	assert.InDelta(t, 120, first.Usage[0].DurationSeconds, 0.001)
	assert.InDelta(t, 60, second.Usage[0].DurationSeconds, 0.001)

	usage, err := h.eng.UsageSince(h.ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, usage, 2)
}

func TestRelease_GroupServesSeveralParties(t *testing.T) {
	h := newHarness(t, []int{2, 2})
	big := h.register("a", 4)
	_, err := h.eng.ManualGroupAssign(h.ctx, big.ID, []int{1, 2})
	require.NoError(t, err)
	p2 := h.register("b", 2)
	p3 := h.register("c", 2)

	res, err := h.eng.ReleaseTable(h.ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, res.Released)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, p2.ID, occupant(h.table(1)))
	assert.Equal(t, p3.ID, occupant(h.table(2)))
}

// Releasing a group frees tables of 2, 4 and 8 for parties of 8, 4 and 2
// queued in that order.  Each party ends up at the table that seats it,
// including the smallest table that the first head passed over.
func TestRelease_EveryFreedTableReachesTheNextHead(t *testing.T) {
	h := newHarness(t, []int{2, 4, 8})
	first := h.register("p", 14)
	_, err := h.eng.ManualGroupAssign(h.ctx, first.ID, []int{1, 2, 3})
	require.NoError(t, err)
	a := h.register("a", 8)
	b := h.register("b", 4)
	c := h.register("c", 2)

	res, err := h.eng.ReleaseTable(h.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, res.Released)

	assert.Equal(t, a.ID, occupant(h.table(3)))
	assert.Equal(t, b.ID, occupant(h.table(2)))
	assert.Equal(t, c.ID, occupant(h.table(1)), "the smallest table is not left idle")
	for _, tb := range []int{1, 2, 3} {
		assert.False(t, h.table(tb).Held, "table %d", tb)
	}
	waiting, err := h.eng.Waiting(h.ctx)
	require.NoError(t, err)
	assert.Empty(t, waiting)
}

// A head that needs a group keeps the tables held for it while a smaller
// party waits behind; the spare holds go to that party once staff group
// the head.
func TestRelease_FreedTableHeldEvenWhenHeadCovered(t *testing.T) {
	h := newHarness(t, []int{2, 2, 2})
	h.occupy(3)
	big := h.register("a", 4)
	require.Equal(t, big.ID, heldFor(h.table(1)))
	require.Equal(t, big.ID, heldFor(h.table(2)))
	small := h.register("b", 2)

	_, err := h.eng.ReleaseTable(h.ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, big.ID, heldFor(h.table(3)))
	assert.True(t, h.status(small.ID).Party.Waiting())

	_, err = h.eng.ManualGroupAssign(h.ctx, big.ID, []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, small.ID, occupant(h.table(3)))
}

func TestRelease_NotOccupied(t *testing.T) {
	h := newHarness(t, []int{2})
	_, err := h.eng.ReleaseTable(h.ctx, 1)
	assert.ErrorIs(t, err, engine.ErrInvalidState)

	_, err = h.eng.ReleaseTable(h.ctx, 9)
	assert.ErrorIs(t, err, engine.ErrTableNotFound)
}

func TestStrictFIFO_NoSkipForSmallerParty(t *testing.T) {
	h := newHarness(t, []int{2, 2, 2, 2, 2})
	big := h.register("a", 5)

	for id := 1; id <= 5; id++ {
		assert.Equal(t, big.ID, heldFor(h.table(id)), "table %d", id)
	}
	grouping := h.rec.of(engine.NoticeNeedsGrouping)
	require.NotEmpty(t, grouping)
	assert.Equal(t, []int{1, 2, 3}, grouping[0].HeldTableIDs)

	small := h.register("b", 2)
	assert.True(t, h.status(small.ID).Party.Waiting(), "a later party is not served ahead of the head")
	assert.Equal(t, big.ID, heldFor(h.table(4)))

	_, err := h.eng.ManualGroupAssign(h.ctx, big.ID, []int{1, 2, 3})
	require.NoError(t, err)

	st := h.status(small.ID)
	require.NotNil(t, st.Party.TableID)
	assert.Equal(t, 4, *st.Party.TableID)
	assert.True(t, h.table(5).Free())
}

func TestGroupAssign_AllOrNothing(t *testing.T) {
	h := newHarness(t, []int{2, 2, 4})
	h.occupy(3)
	p := h.register("a", 4)
	before, err := h.eng.Tables(h.ctx)
	require.NoError(t, err)
	require.Equal(t, p.ID, heldFor(before[0]))
	require.Equal(t, p.ID, heldFor(before[1]))

	_, err = h.eng.ManualGroupAssign(h.ctx, p.ID, []int{1, 3})
	assert.ErrorIs(t, err, engine.ErrTableUnavailable)

	_, err = h.eng.ManualGroupAssign(h.ctx, p.ID, []int{1})
	assert.ErrorIs(t, err, engine.ErrInsufficientCapacity)

	_, err = h.eng.ManualGroupAssign(h.ctx, p.ID, []int{1, 7})
	assert.ErrorIs(t, err, engine.ErrTableNotFound)

	after, err := h.eng.Tables(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.True(t, h.status(p.ID).Party.Waiting())
}

func TestGroupAssign_TableHeldForAnotherParty(t *testing.T) {
	h := newHarness(t, []int{2, 2})
	first := h.register("a", 6)
	second := h.register("b", 2)
	require.Equal(t, first.ID, heldFor(h.table(1)))

	_, err := h.eng.ManualGroupAssign(h.ctx, second.ID, []int{1})
	assert.ErrorIs(t, err, engine.ErrTableUnavailable)
}

func TestGroupAssign_ClaimsStaffHoldAndReleasesSpareHolds(t *testing.T) {
	h := newHarness(t, []int{4, 2, 2, 2})
	_, err := h.eng.HoldTable(h.ctx, 1)
	require.NoError(t, err)
	p := h.register("a", 6)
	// Tables 2-4 together seat six.
	for _, id := range []int{2, 3, 4} {
		require.Equal(t, p.ID, heldFor(h.table(id)))
	}
	next := h.register("b", 2)

	_, err = h.eng.ManualGroupAssign(h.ctx, p.ID, []int{1, 2})
	require.NoError(t, err)

	assert.Equal(t, p.ID, occupant(h.table(1)))
	assert.Equal(t, p.ID, occupant(h.table(2)))
	assert.Equal(t, next.ID, occupant(h.table(3)))
	assert.True(t, h.table(4).Free())
}

func TestGroupAssign_AlreadyAssigned(t *testing.T) {
	h := newHarness(t, []int{4, 4})
	p := h.register("a", 2)
	_, err := h.eng.ManualGroupAssign(h.ctx, p.ID, []int{2})
	assert.ErrorIs(t, err, engine.ErrAlreadyAssigned)
	assert.True(t, engine.IsConflict(err))
}

func TestSetTableCapacity(t *testing.T) {
	h := newHarness(t, []int{2})
	h.occupy(1)

	_, err := h.eng.SetTableCapacity(h.ctx, 1, 6)
	assert.ErrorIs(t, err, engine.ErrTableOccupied)
	assert.Equal(t, 2, h.table(1).Capacity)

	_, err = h.eng.SetTableCapacity(h.ctx, 1, 25)
	assert.ErrorIs(t, err, engine.ErrTableCapacityOutOfRange)

	_, err = h.eng.ReleaseTable(h.ctx, 1)
	require.NoError(t, err)
	res, err := h.eng.SetTableCapacity(h.ctx, 1, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Table.Capacity)
}

func TestSetTableCapacity_HeldTableSignalsGrouping(t *testing.T) {
	h := newHarness(t, []int{2})
	p := h.register("a", 4)
	require.Equal(t, p.ID, heldFor(h.table(1)))
	assert.Empty(t, h.rec.of(engine.NoticeNeedsGrouping))

	_, err := h.eng.SetTableCapacity(h.ctx, 1, 4)
	require.NoError(t, err)
	grouping := h.rec.of(engine.NoticeNeedsGrouping)
	require.Len(t, grouping, 1)
	assert.Equal(t, []int{1}, grouping[0].HeldTableIDs)
}

func TestCancelParty(t *testing.T) {
	h := newHarness(t, []int{2, 2})
	big := h.register("a", 6)
	small := h.register("b", 2)
	require.Equal(t, big.ID, heldFor(h.table(1)))
	require.Equal(t, big.ID, heldFor(h.table(2)))

	outcomes, err := h.eng.CancelParty(h.ctx, big.ID)
	require.NoError(t, err)
	require.NotEmpty(t, outcomes)

	assert.Equal(t, small.ID, occupant(h.table(1)))
	assert.True(t, h.table(2).Free())
	_, err = h.eng.PartyStatus(h.ctx, big.ID)
	assert.ErrorIs(t, err, engine.ErrPartyNotFound)
}

func TestCancelParty_AssignedIsRejected(t *testing.T) {
	h := newHarness(t, []int{4})
	p := h.register("a", 2)
	require.NotNil(t, p.TableID)

	_, err := h.eng.CancelParty(h.ctx, p.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrInvalidState)
	assert.ErrorIs(t, err, engine.ErrNotWaiting)
	assert.Equal(t, p.ID, occupant(h.table(1)))
}

func TestHoldAndCancelHold(t *testing.T) {
	h := newHarness(t, []int{4})
	tb, err := h.eng.HoldTable(h.ctx, 1)
	require.NoError(t, err)
	assert.True(t, tb.Held)
	assert.Nil(t, tb.HeldFor)

	p := h.register("a", 2)
	assert.True(t, p.Waiting())

	_, err = h.eng.HoldTable(h.ctx, 1)
	assert.ErrorIs(t, err, engine.ErrTableNotFree)

	res, err := h.eng.CancelHold(h.ctx, 1)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, engine.AssignSingle, res.Outcomes[0].Kind)
	assert.Equal(t, p.ID, occupant(res.Table))

	_, err = h.eng.CancelHold(h.ctx, 1)
	assert.ErrorIs(t, err, engine.ErrInvalidState)
}

func TestManualOccupy(t *testing.T) {
	h := newHarness(t, []int{4})
	tb, err := h.eng.ManualOccupy(h.ctx, 1)
	require.NoError(t, err)
	assert.True(t, tb.Occupied)
	assert.Nil(t, tb.OccupantID)
	assert.True(t, tb.Arrived)

	_, err = h.eng.ManualOccupy(h.ctx, 1)
	assert.ErrorIs(t, err, engine.ErrTableNotFree)
}

func TestArrivalAndOrders(t *testing.T) {
	h := newHarness(t, []int{2, 2})
	p := h.register("a", 4)
	require.NoError(t, h.eng.SetPartyOrder(h.ctx, p.ID, "2x milanesa"))
	_, err := h.eng.ManualGroupAssign(h.ctx, p.ID, []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "2x milanesa", h.table(1).Order)
	assert.Empty(t, h.table(2).Order)

	require.NoError(t, h.eng.MarkEnRoute(h.ctx, p.ID))
	assert.True(t, h.status(p.ID).Party.EnRoute)

	require.NoError(t, h.eng.ConfirmTableArrival(h.ctx, 2))
	assert.True(t, h.table(1).Arrived)
	assert.True(t, h.table(2).Arrived)
	st := h.status(p.ID)
	assert.NotNil(t, st.Party.SeatedAt)
	assert.False(t, st.Party.EnRoute)

	assert.ErrorIs(t, h.eng.MarkEnRoute(h.ctx, p.ID), engine.ErrInvalidState)

	require.NoError(t, h.eng.SetPartyOrder(h.ctx, p.ID, "flan"))
	assert.Equal(t, "flan", h.table(1).Order)
	require.NoError(t, h.eng.SetTableOrder(h.ctx, 2, "coffee"))
	assert.Equal(t, "coffee", h.table(2).Order)
}

func TestArrival_InvalidStates(t *testing.T) {
	h := newHarness(t, []int{2})
	assert.ErrorIs(t, h.eng.ConfirmTableArrival(h.ctx, 1), engine.ErrInvalidState)
	assert.ErrorIs(t, h.eng.SetTableOrder(h.ctx, 1, "x"), engine.ErrInvalidState)

	h.occupy(1)
	waiting := h.register("a", 2)
	assert.ErrorIs(t, h.eng.ConfirmPartyArrival(h.ctx, waiting.ID), engine.ErrInvalidState)
	assert.ErrorIs(t, h.eng.MarkEnRoute(h.ctx, waiting.ID), engine.ErrInvalidState)
}

func TestOverdueAssignments(t *testing.T) {
	h := newHarness(t, []int{4, 4}, engine.WithHeldWarning(10*time.Minute))
	first := h.register("a", 2)
	h.clock.Advance(5 * time.Minute)
	h.register("b", 2)
	h.clock.Advance(6 * time.Minute)

	overdue, err := h.eng.OverdueAssignments(h.ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, first.ID, overdue[0].Party.ID)
	assert.GreaterOrEqual(t, overdue[0].Waiting, 10*time.Minute)

	require.NoError(t, h.eng.ConfirmPartyArrival(h.ctx, first.ID))
	overdue, err = h.eng.OverdueAssignments(h.ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

func TestAddTables_Validation(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.eng.AddTables(h.ctx, 0, 4)
	assert.ErrorIs(t, err, engine.ErrInvalidState)
	_, err = h.eng.AddTables(h.ctx, 1, 0)
	assert.ErrorIs(t, err, engine.ErrTableCapacityOutOfRange)

	p := h.register("a", 3)
	added, err := h.eng.AddTables(h.ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, p.ID, occupant(h.table(1)))
	assert.True(t, h.table(2).Free())
}

func TestResetState(t *testing.T) {
	h := newHarness(t, []int{2, 6})
	h.register("a", 2)
	h.register("b", 8)
	_, err := h.eng.ReleaseTable(h.ctx, 1)
	require.NoError(t, err)

	require.NoError(t, h.eng.ResetState(h.ctx))

	waiting, err := h.eng.Waiting(h.ctx)
	require.NoError(t, err)
	assert.Empty(t, waiting)
	tables, err := h.eng.Tables(h.ctx)
	require.NoError(t, err)
	for _, tb := range tables {
		assert.True(t, tb.Free(), "table %d", tb.ID)
	}
	assert.Equal(t, 6, tables[1].Capacity)
	usage, err := h.eng.UsageSince(h.ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, usage, 1)
}

func TestPartyForSession(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.eng.PartyForSession(h.ctx, "nobody")
	assert.ErrorIs(t, err, engine.ErrPartyNotFound)

	p := h.register("s1", 2)
	got, err := h.eng.PartyForSession(h.ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestNotifierSeesCommittedStateOnly(t *testing.T) {
	h := newHarness(t, []int{4})
	h.occupy(1)
	h.rec.clear()

	_, err := h.eng.SetTableCapacity(h.ctx, 1, 2)
	require.Error(t, err)
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	assert.Empty(t, h.rec.notices)
}

func TestConcurrentRegistrationsAndReleases(t *testing.T) {
	const tables, parties = 5, 30
	caps := make([]int, tables)
	for i := range caps {
		caps[i] = 4
	}
	h := newHarness(t, caps)

	var wg sync.WaitGroup
	errs := make(chan error, parties)
	for i := 0; i < parties; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := h.eng.RegisterParty(h.ctx, fmt.Sprintf("s%d", i), 2); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	for round := 0; round < 2; round++ {
		var rg sync.WaitGroup
		for id := 1; id <= tables; id++ {
			rg.Add(1)
			go func(id int) {
				defer rg.Done()
				_, err := h.eng.ReleaseTable(h.ctx, id)
				if err != nil && !errors.Is(err, engine.ErrInvalidState) {
					t.Error(err)
				}
			}(id)
		}
		rg.Wait()
	}

	all, err := h.eng.Tables(h.ctx)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, tb := range all {
		assert.False(t, tb.Held && tb.Occupied, "table %d held and occupied", tb.ID)
		require.True(t, tb.Occupied, "table %d idle with parties waiting", tb.ID)
		assert.False(t, seen[occupant(tb)], "party seated twice")
		seen[occupant(tb)] = true
	}
	waiting, err := h.eng.Waiting(h.ctx)
	require.NoError(t, err)
	assert.Len(t, waiting, parties-3*tables)
}
