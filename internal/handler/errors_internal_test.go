package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/restaurant-queue/internal/engine"
	"github.com/iliyamo/restaurant-queue/internal/model"
	"github.com/iliyamo/restaurant-queue/internal/repository"
)

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{engine.ErrPartyNotFound, http.StatusNotFound},
		{fmt.Errorf("release table: %w", engine.ErrTableNotFound), http.StatusNotFound},
		{repository.ErrStaffNotFound, http.StatusNotFound},
		{engine.ErrDuplicateRegistration, http.StatusConflict},
		{engine.ErrTableOccupied, http.StatusConflict},
		{repository.ErrEmailExists, http.StatusConflict},
		{engine.ErrInsufficientCapacity, http.StatusUnprocessableEntity},
		{engine.ErrInvalidPartySize, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, errorStatus(tc.err), tc.err.Error())
	}
}

func TestNormalizeRole(t *testing.T) {
	r, ok := NormalizeRole("")
	assert.True(t, ok)
	assert.Equal(t, model.RoleStaff, r)

	r, ok = NormalizeRole(" admin ")
	assert.True(t, ok)
	assert.Equal(t, model.RoleAdmin, r)

	_, ok = NormalizeRole("chef")
	assert.False(t, ok)
}
