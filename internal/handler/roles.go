package handler

import (
	"strings"

	"github.com/iliyamo/restaurant-queue/internal/model"
)

// NormalizeRole upper-cases role and defaults empty to STAFF.  It reports
// false for unknown roles.
func NormalizeRole(role string) (string, bool) {
	switch r := strings.ToUpper(strings.TrimSpace(role)); r {
	case "":
		return model.RoleStaff, true
	case model.RoleStaff, model.RoleAdmin:
		return r, true
	default:
		return "", false
	}
}
