package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-queue/internal/handler"
	"github.com/iliyamo/restaurant-queue/internal/middleware"
	"github.com/iliyamo/restaurant-queue/internal/model"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterParty registers the guest queue endpoints under /v1/queue.  They
// are identified by the session cookie and go through the rate limiter.
func RegisterParty(e *echo.Echo, p *handler.PartyHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/queue", p.Sessions.Identify, limit)
	g.POST("", p.Register)
	g.GET("/me", p.Status)
	g.DELETE("/me", p.Cancel)
	g.POST("/me/en-route", p.EnRoute)
	g.PUT("/me/order", p.SetOrder)
	// Streams are long-lived and stay outside the limiter.
	e.GET("/v1/queue/me/events", p.Events)
}

// RegisterAuth registers staff login and the token-protected /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	e.POST("/v1/auth/login", a.Login)
	auth := e.Group("/v1")
	auth.GET("/me", a.Me, middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleStaff, model.RoleAdmin))
}

// RegisterStaff registers the floor endpoints under /v1/staff.  Any staff
// role may use them.
func RegisterStaff(e *echo.Echo, s *handler.StaffHandler, jwtSecret string) {
	g := e.Group("/v1/staff")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleStaff, model.RoleAdmin))

	g.GET("/tables", s.Tables)
	g.POST("/tables/:id/release", s.Release)
	g.POST("/tables/:id/occupy", s.Occupy)
	g.POST("/tables/:id/hold", s.Hold)
	g.DELETE("/tables/:id/hold", s.CancelHold)
	g.PUT("/tables/:id/capacity", s.SetCapacity)
	g.POST("/tables/:id/arrival", s.ConfirmTableArrival)
	g.PUT("/tables/:id/order", s.SetTableOrder)

	g.GET("/queue", s.Queue)
	g.POST("/parties/:id/assign", s.GroupAssign)
	g.POST("/parties/:id/arrival", s.ConfirmPartyArrival)
	g.DELETE("/parties/:id", s.CancelParty)

	g.GET("/alerts/overdue", s.Overdue)
	g.GET("/usage", s.Usage)
	g.GET("/events", s.Events)
}

// RegisterAdmin registers pool maintenance and account management under
// /v1/admin, restricted to ADMIN.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin))

	g.POST("/tables", a.AddTables)
	g.POST("/reset", a.Reset)
	g.POST("/staff", a.CreateStaff)
}
