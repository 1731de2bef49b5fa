package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_PartyStreams(t *testing.T) {
	r := NewRegistry(2)
	a := r.Add("p1")
	b := r.Add("p1")
	assert.Equal(t, 2, r.Lookup("p1"))
	assert.Equal(t, "p1", a.PartyID())

	require.NoError(t, r.SendParty("p1", Event{Name: "assigned"}))
	assert.Equal(t, "assigned", (<-a.C).Name)
	assert.Equal(t, "assigned", (<-b.C).Name)

	assert.ErrorIs(t, r.SendParty("p2", Event{Name: "assigned"}), ErrNotConnected)

	r.Remove(a)
	r.Remove(a)
	_, open := <-a.C
	assert.False(t, open)
	assert.Equal(t, 1, r.Lookup("p1"))
	r.Remove(b)
	assert.Equal(t, 0, r.Lookup("p1"))
}

func TestRegistry_FullStreamDropsEvents(t *testing.T) {
	r := NewRegistry(1)
	s := r.Add("p1")
	require.NoError(t, r.SendParty("p1", Event{Name: "one"}))
	assert.ErrorIs(t, r.SendParty("p1", Event{Name: "two"}), ErrNotConnected)
	assert.Equal(t, "one", (<-s.C).Name)
}

func TestRegistry_Broadcast(t *testing.T) {
	r := NewRegistry(4)
	s1 := r.AddStaff()
	s2 := r.AddStaff()
	r.Add("p1")
	assert.Equal(t, 2, r.StaffCount())

	assert.Equal(t, 2, r.Broadcast(Event{Name: "tables_changed"}))
	assert.Equal(t, "tables_changed", (<-s1.C).Name)
	assert.Equal(t, "tables_changed", (<-s2.C).Name)

	r.Remove(s1)
	assert.Equal(t, 1, r.StaffCount())
	assert.Equal(t, 1, r.Broadcast(Event{Name: "tables_changed"}))
}

func TestRedisRelay_LocalOnly(t *testing.T) {
	reg := NewRegistry(4)
	relay := NewRedisRelay(nil, reg, nil)
	assert.Same(t, reg, relay.Registry())
	ctx := context.Background()

	assert.ErrorIs(t, relay.SendParty(ctx, "p1", Event{Name: "x"}), ErrNotConnected)
	s := reg.Add("p1")
	require.NoError(t, relay.SendParty(ctx, "p1", Event{Name: "x"}))
	assert.Equal(t, "x", (<-s.C).Name)

	staff := reg.AddStaff()
	require.NoError(t, relay.BroadcastStaff(ctx, Event{Name: "y"}))
	assert.Equal(t, "y", (<-staff.C).Name)

	assert.NoError(t, relay.Run(ctx))
}

func TestRedisRelay_Deliver(t *testing.T) {
	reg := NewRegistry(4)
	relay := NewRedisRelay(nil, reg, nil)
	party := reg.Add("p1")
	staff := reg.AddStaff()

	b, err := json.Marshal(envelope{PartyID: "p1", Event: Event{Name: "assigned", Data: []byte(`{"table_id":3}`)}})
	require.NoError(t, err)
	relay.deliver(string(b))
	ev := <-party.C
	assert.Equal(t, "assigned", ev.Name)
	assert.JSONEq(t, `{"table_id":3}`, string(ev.Data))

	b, err = json.Marshal(envelope{Staff: true, Event: Event{Name: "tables_changed"}})
	require.NoError(t, err)
	relay.deliver(string(b))
	assert.Equal(t, "tables_changed", (<-staff.C).Name)

	relay.deliver("not json")
	relay.deliver(`{"party_id":"gone","event":{"name":"x"}}`)
	assert.Len(t, party.C, 0)
}
