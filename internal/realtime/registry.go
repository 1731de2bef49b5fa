// Package realtime keeps the live event streams opened by parties and staff
// and delivers events to them.  A Registry serves the streams connected to
// this process; a RedisRelay fans events out to every process sharing the
// same Redis.
package realtime

import (
	"errors"
	"sync"
)

// ErrNotConnected is returned when a party has no open stream.
var ErrNotConnected = errors.New("party not connected")

// Event is one message for a stream.  Data is already JSON encoded.
type Event struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// Subscription is one open stream.  Events arrive on C until the
// subscription is removed from its registry.
type Subscription struct {
	C       <-chan Event
	ch      chan Event
	partyID string
	staff   bool
	once    sync.Once
}

// PartyID returns the party the stream belongs to, empty for staff.
func (s *Subscription) PartyID() string { return s.partyID }

func (s *Subscription) close() { s.once.Do(func() { close(s.ch) }) }

// Registry maps party ids to their open streams and tracks staff streams.
// A party may have several streams (several tabs); all of them receive the
// party's events.
type Registry struct {
	mu      sync.RWMutex
	parties map[string]map[*Subscription]struct{}
	staff   map[*Subscription]struct{}
	buffer  int
}

// NewRegistry returns a registry whose streams buffer up to buffer events.
// A stream whose buffer is full drops new events.
func NewRegistry(buffer int) *Registry {
	if buffer < 1 {
		buffer = 16
	}
	return &Registry{
		parties: make(map[string]map[*Subscription]struct{}),
		staff:   make(map[*Subscription]struct{}),
		buffer:  buffer,
	}
}

func (r *Registry) newSubscription(partyID string, staff bool) *Subscription {
	ch := make(chan Event, r.buffer)
	return &Subscription{C: ch, ch: ch, partyID: partyID, staff: staff}
}

// Add opens a stream for a party.
func (r *Registry) Add(partyID string) *Subscription {
	s := r.newSubscription(partyID, false)
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.parties[partyID]
	if !ok {
		set = make(map[*Subscription]struct{})
		r.parties[partyID] = set
	}
	set[s] = struct{}{}
	return s
}

// AddStaff opens a staff stream.
func (r *Registry) AddStaff() *Subscription {
	s := r.newSubscription("", true)
	r.mu.Lock()
	r.staff[s] = struct{}{}
	r.mu.Unlock()
	return s
}

// Remove closes a stream and forgets it.  Removing twice is harmless.
func (r *Registry) Remove(s *Subscription) {
	r.mu.Lock()
	if s.staff {
		delete(r.staff, s)
	} else if set, ok := r.parties[s.partyID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(r.parties, s.partyID)
		}
	}
	r.mu.Unlock()
	s.close()
}

// Lookup reports how many streams a party has open.
func (r *Registry) Lookup(partyID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.parties[partyID])
}

// StaffCount reports how many staff streams are open.
func (r *Registry) StaffCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.staff)
}

// SendParty delivers ev to every stream of a party without blocking.  It
// returns ErrNotConnected when the party has no stream or every stream
// was full.
func (r *Registry) SendParty(partyID string, ev Event) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	delivered := 0
	for s := range r.parties[partyID] {
		if offer(s, ev) {
			delivered++
		}
	}
	if delivered == 0 {
		return ErrNotConnected
	}
	return nil
}

// Broadcast delivers ev to every staff stream and returns how many took it.
func (r *Registry) Broadcast(ev Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for s := range r.staff {
		if offer(s, ev) {
			n++
		}
	}
	return n
}

func offer(s *Subscription, ev Event) bool {
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}
