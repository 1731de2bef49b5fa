package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// KeyPartySession is where the guest session middleware stores the
// session id of the request's device.
const KeyPartySession = "party_session"

// callerID identifies the caller for rate limiting: the staff id when a
// token was verified, else the party session, else "anon".
func callerID(c echo.Context) string {
	if id, ok := c.Get(KeyStaffID).(uint64); ok && id != 0 {
		return "staff-" + strconv.FormatUint(id, 10)
	}
	if s, ok := c.Get(KeyPartySession).(string); ok && s != "" {
		return "party-" + s
	}
	return "anon"
}
