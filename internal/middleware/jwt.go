package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-queue/internal/utils"
)

// Context keys set by JWTAuth.
const (
	KeyStaffID = "staff_id"
	KeyRole    = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the staff id (uint64) and role (string) in the context.
//
// Browsers cannot set headers on an EventSource, so the token is also
// accepted from the access_token query parameter.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := ""
			if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				raw = strings.TrimPrefix(auth, "Bearer ")
			} else if q := c.QueryParam("access_token"); q != "" {
				raw = q
			}
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			id, _ := claims.StaffID()
			c.Set(KeyStaffID, id)
			c.Set(KeyRole, claims.Role)
			return next(c)
		}
	}
}
