package handler

import (
	"context"       // per-request deadlines for engine calls
	"encoding/json" // decoding the order body
	"errors"
	"net/http" // HTTP status codes
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-queue/internal/engine"
	"github.com/iliyamo/restaurant-queue/internal/realtime"
)

const requestTimeout = 5 * time.Second

// PartyHandler serves the guest-facing queue endpoints.  A guest is
// identified by the signed session cookie, never by a party id in the URL,
// so one device can only see and change its own party.  Every change goes
// through the engine, which settles the floor and publishes the resulting
// notices before the handler answers.
type PartyHandler struct {
	Engine   *engine.Engine     // queue and table-assignment engine
	Sessions *PartySessions     // reads and issues the device session cookie
	Streams  *realtime.Registry // per-party event streams
}

func NewPartyHandler(e *engine.Engine, s *PartySessions, r *realtime.Registry) *PartyHandler {
	return &PartyHandler{Engine: e, Sessions: s, Streams: r}
}

type registerReq struct {
	Seats int    `json:"seats"` // party size, at least 1
	Order string `json:"order"` // optional pre-order attached to the party
}

type registerResp struct {
	statusResp
	Reused   bool          `json:"reused"`             // true when a recent assignment was returned
	Outcomes []outcomeResp `json:"outcomes,omitempty"` // matches made while settling the registration
}

// Register handles POST /v1/queue.  It puts the device's party at the back
// of the queue and lets the engine seat it straight away if a free table
// fits.  It returns 201 Created with the party's status and position, or
// 200 OK when the device was assigned a table within the reuse window and
// that assignment is returned instead.  A device that already has a waiting
// party gets 409 Conflict; a seat count below 1 gets 400.
func (h *PartyHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Seats < 1 {
		return badRequest(c, "seats must be at least 1")
	}
	sid, err := h.Sessions.Ensure(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Engine.RegisterParty(ctx, sid, req.Seats)
	if err != nil {
		return fail(c, err)
	}
	if order := strings.TrimSpace(req.Order); order != "" && !res.Reused {
		if err := h.Engine.SetPartyOrder(ctx, res.Party.ID, order); err != nil {
			c.Logger().Warnf("register: attach order to %s: %v", res.Party.ID, err)
		}
	}
	st, err := h.Engine.PartyStatus(ctx, res.Party.ID)
	if err != nil {
		return fail(c, err)
	}
	code := http.StatusCreated
	if res.Reused {
		code = http.StatusOK
	}
	return c.JSON(code, registerResp{
		statusResp: toStatus(st),
		Reused:     res.Reused,
		Outcomes:   toOutcomes(res.Outcomes),
	})
}

// current resolves the caller's party.
func (h *PartyHandler) current(ctx context.Context, c echo.Context) (engine.PartyStatus, error) {
	sid, ok := h.Sessions.Get(c)
	if !ok {
		return engine.PartyStatus{}, engine.ErrPartyNotFound
	}
	p, err := h.Engine.PartyForSession(ctx, sid)
	if err != nil {
		return engine.PartyStatus{}, err
	}
	return h.Engine.PartyStatus(ctx, p.ID)
}

// Status returns the caller's party with its queue position.
func (h *PartyHandler) Status(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	st, err := h.current(ctx, c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toStatus(st))
}

// Cancel leaves the queue.  Only waiting parties can cancel.
func (h *PartyHandler) Cancel(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	st, err := h.current(ctx, c)
	if err != nil {
		return fail(c, err)
	}
	if _, err := h.Engine.CancelParty(ctx, st.Party.ID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// EnRoute records that the assigned party is walking to its table.
func (h *PartyHandler) EnRoute(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	st, err := h.current(ctx, c)
	if err != nil {
		return fail(c, err)
	}
	if err := h.Engine.MarkEnRoute(ctx, st.Party.ID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type orderReq struct {
	Order string `json:"order"`
}

// SetOrder stores the caller's pre-submitted order.
func (h *PartyHandler) SetOrder(c echo.Context) error {
	var req orderReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	st, err := h.current(ctx, c)
	if err != nil {
		return fail(c, err)
	}
	if err := h.Engine.SetPartyOrder(ctx, st.Party.ID, req.Order); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Events streams the caller's notices over SSE, starting with its current
// status.
func (h *PartyHandler) Events(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	st, err := h.current(ctx, c)
	cancel()
	if err != nil {
		if errors.Is(err, engine.ErrPartyNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no party for this session"})
		}
		return fail(c, err)
	}
	b, err := json.Marshal(toStatus(st))
	if err != nil {
		return fail(c, err)
	}
	sub := h.Streams.Add(st.Party.ID)
	return stream(c, h.Streams, sub, &realtime.Event{Name: "status", Data: b})
}
