package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-queue/internal/middleware"
	"github.com/iliyamo/restaurant-queue/internal/repository"
	"github.com/iliyamo/restaurant-queue/internal/utils"
)

// AuthHandler bundles dependencies for staff auth endpoints.  Staff log in
// with email and password and receive a signed access token; there is no
// refresh flow, a staff member logs in again once the token expires.
type AuthHandler struct {
	Staff        repository.StaffStore // looks accounts up by email
	JWTSecret    string                // HMAC key for signing access tokens
	AccessTTLMin int                   // access token lifetime in minutes
}

func NewAuthHandler(s repository.StaffStore, secret string, ttlMin int) *AuthHandler {
	return &AuthHandler{Staff: s, JWTSecret: secret, AccessTTLMin: ttlMin}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type staffPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResp struct {
	Staff  staffPart `json:"staff"`
	Access tokenPart `json:"access"`
}

// Login verifies credentials and issues an access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Staff.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrStaffNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return fail(c, err)
	}
	if !s.IsActive || !utils.VerifyPassword(s.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	at, err := utils.NewAccessToken(h.JWTSecret, s.ID, s.Role, h.AccessTTLMin)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, authResp{
		Staff:  staffPart{ID: s.ID, Email: s.Email, Role: s.Role},
		Access: tokenPart{Token: at.Token, Expires: at.Exp},
	})
}

// Me returns the authenticated staff member.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := c.Get(middleware.KeyStaffID).(uint64)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	s, err := h.Staff.GetByID(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, staffPart{ID: s.ID, Email: s.Email, Role: s.Role})
}
