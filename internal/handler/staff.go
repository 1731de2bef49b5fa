package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-queue/internal/engine"
	"github.com/iliyamo/restaurant-queue/internal/model"
	"github.com/iliyamo/restaurant-queue/internal/notify"
	"github.com/iliyamo/restaurant-queue/internal/realtime"
)

// StaffHandler serves the floor-staff endpoints: the pool snapshot, table
// actions, group assignment and the staff event stream.
type StaffHandler struct {
	Engine  *engine.Engine     // every table and party action goes through it
	Streams *realtime.Registry // the staff event stream
}

func NewStaffHandler(e *engine.Engine, r *realtime.Registry) *StaffHandler {
	return &StaffHandler{Engine: e, Streams: r}
}

func tableParam(c echo.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	return id, err == nil && id > 0
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// Tables returns the pool snapshot.
func (h *StaffHandler) Tables(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	ts, err := h.Engine.Tables(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toTables(ts))
}

// Queue returns the waiting parties in order.
func (h *StaffHandler) Queue(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	ps, err := h.Engine.Waiting(ctx)
	if err != nil {
		return fail(c, err)
	}
	out := make([]partyResp, 0, len(ps))
	for _, p := range ps {
		out = append(out, toParty(p))
	}
	return c.JSON(http.StatusOK, out)
}

type releaseResp struct {
	Released []int         `json:"released"`           // ids of every table freed, the whole group for a grouped party
	PartyID  string        `json:"party_id,omitempty"` // the party that left, empty for a walk-in
	Outcomes []outcomeResp `json:"outcomes"`           // what the engine did with each freed table
}

// Release handles POST /v1/staff/tables/:id/release.  It frees an occupied
// table, together with every other table seating the same party, records
// how long each was in use and offers the freed tables to the queue.  It
// returns 200 OK with the released ids and the resulting outcomes, 404 when
// the table does not exist and 409 when it is not occupied.
func (h *StaffHandler) Release(c echo.Context) error {
	id, ok := tableParam(c)
	if !ok {
		return badRequest(c, "invalid table id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Engine.ReleaseTable(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, releaseResp{
		Released: res.Released, PartyID: res.PartyID, Outcomes: toOutcomes(res.Outcomes),
	})
}

// Occupy marks a free table as taken by a walk-in outside the queue.
func (h *StaffHandler) Occupy(c echo.Context) error {
	return h.tableAction(c, h.Engine.ManualOccupy)
}

// Hold reserves a free table.
func (h *StaffHandler) Hold(c echo.Context) error {
	return h.tableAction(c, h.Engine.HoldTable)
}

func (h *StaffHandler) tableAction(c echo.Context, fn func(context.Context, int) (model.Table, error)) error {
	id, ok := tableParam(c)
	if !ok {
		return badRequest(c, "invalid table id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	t, err := fn(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toTable(t))
}

type tableResultResp struct {
	Table    tableResp     `json:"table"`
	Outcomes []outcomeResp `json:"outcomes"`
}

// CancelHold clears a hold and offers the table to the queue again.
func (h *StaffHandler) CancelHold(c echo.Context) error {
	id, ok := tableParam(c)
	if !ok {
		return badRequest(c, "invalid table id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Engine.CancelHold(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, tableResultResp{Table: toTable(res.Table), Outcomes: toOutcomes(res.Outcomes)})
}

type capacityReq struct {
	Capacity int `json:"capacity"`
}

// SetCapacity changes the seat count of an unoccupied table.
func (h *StaffHandler) SetCapacity(c echo.Context) error {
	id, ok := tableParam(c)
	if !ok {
		return badRequest(c, "invalid table id")
	}
	var req capacityReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Engine.SetTableCapacity(ctx, id, req.Capacity)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, tableResultResp{Table: toTable(res.Table), Outcomes: toOutcomes(res.Outcomes)})
}

// ConfirmTableArrival marks the guests of a table (and its group) seated.
func (h *StaffHandler) ConfirmTableArrival(c echo.Context) error {
	id, ok := tableParam(c)
	if !ok {
		return badRequest(c, "invalid table id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Engine.ConfirmTableArrival(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetTableOrder replaces the order attached to an occupied table.
func (h *StaffHandler) SetTableOrder(c echo.Context) error {
	id, ok := tableParam(c)
	if !ok {
		return badRequest(c, "invalid table id")
	}
	var req orderReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Engine.SetTableOrder(ctx, id, req.Order); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type groupAssignReq struct {
	TableIDs []int `json:"table_ids"` // tables to combine, free or held for this party
}

// GroupAssign handles POST /v1/staff/parties/:id/assign.  Staff use it to
// seat a waiting party at several tables at once, usually after the engine
// reported that the party needs grouping.  All listed tables are taken or
// none are: 409 when one is occupied or held for someone else, 422 when
// their combined capacity is short, 404 for an unknown party or table.  On
// success it returns 200 OK with the assignment, and any other tables held
// for the party are released back to the queue.
func (h *StaffHandler) GroupAssign(c echo.Context) error {
	var req groupAssignReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if len(req.TableIDs) == 0 {
		return badRequest(c, "table_ids required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	a, err := h.Engine.ManualGroupAssign(ctx, c.Param("id"), req.TableIDs)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// ConfirmPartyArrival marks a party seated.
func (h *StaffHandler) ConfirmPartyArrival(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Engine.ConfirmPartyArrival(ctx, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CancelParty removes a waiting party on the guest's behalf.
func (h *StaffHandler) CancelParty(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	if _, err := h.Engine.CancelParty(ctx, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type overdueResp struct {
	Party          partyResp `json:"party"`
	WaitingMinutes int       `json:"waiting_minutes"`
}

// Overdue lists assigned parties that have not shown up in time.
func (h *StaffHandler) Overdue(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.Engine.OverdueAssignments(ctx)
	if err != nil {
		return fail(c, err)
	}
	out := make([]overdueResp, 0, len(list))
	for _, o := range list {
		out = append(out, overdueResp{Party: toParty(o.Party), WaitingMinutes: int(o.Waiting / time.Minute)})
	}
	return c.JSON(http.StatusOK, out)
}

// Usage returns usage records since the RFC 3339 "since" parameter, or
// the last 24 hours.
func (h *StaffHandler) Usage(c echo.Context) error {
	since := time.Now().Add(-24 * time.Hour)
	if s := c.QueryParam("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return badRequest(c, "since must be RFC 3339")
		}
		since = t
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	recs, err := h.Engine.UsageSince(ctx, since)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, recs)
}

// Events streams staff notices over SSE, starting with a pool refresh hint.
func (h *StaffHandler) Events(c echo.Context) error {
	sub := h.Streams.AddStaff()
	first := notify.Event(engine.TablesChangedNotice())
	return stream(c, h.Streams, sub, &first)
}
