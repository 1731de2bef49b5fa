package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/restaurant-queue/internal/engine"
	"github.com/iliyamo/restaurant-queue/internal/model"
)

func TestNextInOrder(t *testing.T) {
	tableID := 3
	assigned := party("early", 2, -time.Minute)
	assigned.TableID = &tableID

	parties := []model.Party{
		party("c", 8, 2*time.Second),
		assigned,
		party("b", 2, time.Second),
		party("a", 2, time.Second),
	}
	head, ok := engine.NextInOrder(parties)
	assert.True(t, ok)
	assert.Equal(t, "a", head.ID, "ties on arrival break by id")

	_, ok = engine.NextInOrder([]model.Party{assigned})
	assert.False(t, ok)
}

func TestPositionOf(t *testing.T) {
	parties := []model.Party{party("c", 8, 3*time.Second), party("a", 1, time.Second), party("b", 6, 2*time.Second)}

	assert.Equal(t, 1, engine.PositionOf(parties, "a"))
	assert.Equal(t, 2, engine.PositionOf(parties, "b"))
	assert.Equal(t, 3, engine.PositionOf(parties, "c"))
	assert.Equal(t, 0, engine.PositionOf(parties, "missing"))
}

func TestSortWaiting(t *testing.T) {
	parties := []model.Party{party("b", 2, time.Second), party("c", 2, 0), party("a", 2, time.Second)}
	engine.SortWaiting(parties)
	assert.Equal(t, []string{"c", "a", "b"}, []string{parties[0].ID, parties[1].ID, parties[2].ID})
}

func TestPoolQueries(t *testing.T) {
	tables := []model.Table{
		{ID: 1, Capacity: 2},
		{ID: 2, Capacity: 4, Occupied: true},
		{ID: 3, Capacity: 6, Held: true},
		{ID: 4, Capacity: 4},
	}
	free := engine.FreeTables(tables)
	assert.Len(t, free, 2)
	assert.Equal(t, 1, free[0].ID)
	assert.Equal(t, 4, free[1].ID)
	assert.Equal(t, 6, engine.TotalCapacity(free))

	assert.True(t, engine.IsEligible(tables[1], model.Party{Seats: 4}))
	assert.False(t, engine.IsEligible(tables[0], model.Party{Seats: 3}))
}

func TestCapacityRange(t *testing.T) {
	r := engine.CapacityRange{Min: 2, Max: 8}
	assert.NoError(t, r.Check(2))
	assert.NoError(t, r.Check(8))

	err := r.Check(9)
	assert.True(t, errors.Is(err, engine.ErrTableCapacityOutOfRange))
	assert.ErrorIs(t, r.Check(1), engine.ErrTableCapacityOutOfRange)
}

func TestCivilClock(t *testing.T) {
	c, err := engine.NewCivilClock("")
	assert.NoError(t, err)
	assert.Equal(t, time.UTC, c.Now().Location())

	c, err = engine.NewCivilClock("Nowhere/Atlantis")
	assert.Error(t, err)
	assert.Equal(t, time.UTC, c.Loc)

	c, err = engine.NewCivilClock("America/Argentina/Buenos_Aires")
	if err != nil {
		t.Skipf("zone database unavailable: %v", err)
	}
	assert.Equal(t, "America/Argentina/Buenos_Aires", c.Now().Location().String())
}

func TestIsConflict(t *testing.T) {
	assert.True(t, engine.IsConflict(engine.ErrAlreadyAssigned))
	assert.True(t, engine.IsConflict(errors.Join(errors.New("x"), engine.ErrTableNotFree)))
	assert.False(t, engine.IsConflict(engine.ErrInvalidState))
}
