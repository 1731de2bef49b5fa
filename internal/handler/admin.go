package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-queue/internal/engine"
	"github.com/iliyamo/restaurant-queue/internal/repository"
)

// AdminHandler serves pool maintenance and staff account endpoints.
type AdminHandler struct {
	Engine     *engine.Engine        // pool maintenance and reset
	Staff      repository.StaffStore // staff account storage
	BcryptCost int                   // cost used when hashing new passwords
}

func NewAdminHandler(e *engine.Engine, s repository.StaffStore, cost int) *AdminHandler {
	return &AdminHandler{Engine: e, Staff: s, BcryptCost: cost}
}

type addTablesReq struct {
	Count    int `json:"count"`    // number of tables to add
	Capacity int `json:"capacity"` // seats per table, within the configured range
}

// AddTables grows the pool.
func (h *AdminHandler) AddTables(c echo.Context) error {
	var req addTablesReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Count < 1 {
		return badRequest(c, "count must be at least 1")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	ts, err := h.Engine.AddTables(ctx, req.Count, req.Capacity)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toTables(ts))
}

// Reset clears the queue and frees every table.
func (h *AdminHandler) Reset(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Engine.ResetState(ctx); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type createStaffReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"` // STAFF | ADMIN
}

// CreateStaff registers a staff account.
func (h *AdminHandler) CreateStaff(c echo.Context) error {
	var req createStaffReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Email == "" || len(req.Password) < 8 {
		return badRequest(c, "email and a password of 8+ characters required")
	}
	role, ok := NormalizeRole(req.Role)
	if !ok {
		return badRequest(c, "role must be STAFF or ADMIN")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	id, err := h.Staff.Create(ctx, req.Email, req.Password, role, h.BcryptCost)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, staffPart{ID: id, Email: strings.ToLower(strings.TrimSpace(req.Email)), Role: role})
}
