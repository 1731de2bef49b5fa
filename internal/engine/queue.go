package engine

import (
	"sort"

	"github.com/iliyamo/restaurant-queue/internal/model"
)

// SortWaiting orders parties in queue order (arrival, then id) in place.
func SortWaiting(parties []model.Party) {
	sort.SliceStable(parties, func(i, j int) bool { return parties[i].Before(parties[j]) })
}

// NextInOrder returns the head of the queue: the waiting party with the
// earliest arrival.  It never skips a party because of its size; deciding
// whether the head fits belongs to the matching policy.
func NextInOrder(parties []model.Party) (model.Party, bool) {
	var (
		head  model.Party
		found bool
	)
	for _, p := range parties {
		if !p.Waiting() {
			continue
		}
		if !found || p.Before(head) {
			head, found = p, true
		}
	}
	return head, found
}

// PositionOf returns the 1-based rank of partyID among the waiting parties,
// or 0 when the party is not waiting.
func PositionOf(parties []model.Party, partyID string) int {
	var target model.Party
	found := false
	for _, p := range parties {
		if p.ID == partyID && p.Waiting() {
			target, found = p, true
			break
		}
	}
	if !found {
		return 0
	}
	pos := 1
	for _, p := range parties {
		if p.Waiting() && p.ID != partyID && p.Before(target) {
			pos++
		}
	}
	return pos
}
