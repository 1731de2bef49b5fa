package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-queue/internal/engine"
	"github.com/iliyamo/restaurant-queue/internal/repository"
)

// errorStatus maps engine and repository errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrPartyNotFound),
		errors.Is(err, engine.ErrTableNotFound),
		errors.Is(err, repository.ErrStaffNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrDuplicateRegistration),
		errors.Is(err, engine.ErrNotWaiting),
		errors.Is(err, engine.ErrAlreadyAssigned),
		errors.Is(err, engine.ErrTableNotFree),
		errors.Is(err, engine.ErrTableOccupied),
		errors.Is(err, engine.ErrTableUnavailable),
		errors.Is(err, engine.ErrInvalidState),
		errors.Is(err, repository.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInsufficientCapacity),
		errors.Is(err, engine.ErrTableCapacityOutOfRange),
		errors.Is(err, engine.ErrInvalidPartySize):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error body.  Internal errors are logged and
// reported without detail.
func fail(c echo.Context, err error) error {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
