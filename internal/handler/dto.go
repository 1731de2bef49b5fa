package handler

import (
	"time"

	"github.com/iliyamo/restaurant-queue/internal/engine"
	"github.com/iliyamo/restaurant-queue/internal/model"
)

// ----- DTOs -----

type tableResp struct {
	ID         int        `json:"id"`
	Capacity   int        `json:"capacity"`
	Status     string     `json:"status"` // FREE | HELD | OCCUPIED
	Occupied   bool       `json:"occupied"`
	Held       bool       `json:"held"`
	HeldFor    *string    `json:"held_for,omitempty"`
	OccupantID *string    `json:"occupant_id,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	Arrived    bool       `json:"arrived"`
	Order      string     `json:"order,omitempty"`
}

func tableStatus(t model.Table) string {
	switch {
	case t.Occupied:
		return "OCCUPIED"
	case t.Held:
		return "HELD"
	default:
		return "FREE"
	}
}

func toTable(t model.Table) tableResp {
	return tableResp{
		ID: t.ID, Capacity: t.Capacity, Status: tableStatus(t),
		Occupied: t.Occupied, Held: t.Held, HeldFor: t.HeldFor, OccupantID: t.OccupantID,
		StartedAt: t.StartedAt, Arrived: t.Arrived, Order: t.Order,
	}
}

func toTables(ts []model.Table) []tableResp {
	out := make([]tableResp, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTable(t))
	}
	return out
}

type partyResp struct {
	ID        string     `json:"id"`
	Seats     int        `json:"seats"`
	Status    string     `json:"status"` // WAITING | ASSIGNED | SEATED
	ArrivedAt time.Time  `json:"arrived_at"`
	TableID   *int       `json:"table_id,omitempty"`
	MatchedAt *time.Time `json:"matched_at,omitempty"`
	SeatedAt  *time.Time `json:"seated_at,omitempty"`
	EnRoute   bool       `json:"en_route"`
	Order     string     `json:"order,omitempty"`
}

func partyStatus(p model.Party) string {
	switch {
	case p.Waiting():
		return "WAITING"
	case p.SeatedAt != nil:
		return "SEATED"
	default:
		return "ASSIGNED"
	}
}

func toParty(p model.Party) partyResp {
	return partyResp{
		ID: p.ID, Seats: p.Seats, Status: partyStatus(p), ArrivedAt: p.ArrivedAt,
		TableID: p.TableID, MatchedAt: p.MatchedAt, SeatedAt: p.SeatedAt,
		EnRoute: p.EnRoute, Order: p.Order,
	}
}

type statusResp struct {
	Party    partyResp `json:"party"`
	Position int       `json:"position"`
	Total    int       `json:"total"`
	Tables   []int     `json:"tables,omitempty"`
}

func toStatus(s engine.PartyStatus) statusResp {
	return statusResp{Party: toParty(s.Party), Position: s.Position, Total: s.Total, Tables: s.Tables}
}

type outcomeResp struct {
	Kind          string `json:"kind"`
	TableID       int    `json:"table_id"`
	PartyID       string `json:"party_id,omitempty"`
	Hold          []int  `json:"hold,omitempty"`
	NeedsGrouping bool   `json:"needs_grouping,omitempty"`
}

func toOutcomes(os []engine.Outcome) []outcomeResp {
	out := make([]outcomeResp, 0, len(os))
	for _, o := range os {
		out = append(out, outcomeResp{
			Kind: o.Kind.String(), TableID: o.Table.ID, PartyID: o.Party.ID,
			Hold: o.Hold, NeedsGrouping: o.NeedsGrouping,
		})
	}
	return out
}
