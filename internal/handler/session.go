package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-queue/internal/middleware"
)

const partySessionName = "tq_session"

// PartySessions issues and reads the signed cookie that identifies a
// guest's device.  The session id is what duplicate registration and the
// reuse window key on.
type PartySessions struct {
	sc     *securecookie.SecureCookie // signs and verifies the cookie value
	secure bool                       // set the Secure flag on issued cookies
}

// NewPartySessions signs cookies with hashKey.  secure marks cookies
// HTTPS-only.
func NewPartySessions(hashKey []byte, secure bool) *PartySessions {
	sc := securecookie.New(hashKey, nil)
	sc.MaxAge(int((24 * time.Hour).Seconds()))
	return &PartySessions{sc: sc, secure: secure}
}

// Get returns the session id carried by the request.
func (s *PartySessions) Get(c echo.Context) (string, bool) {
	ck, err := c.Cookie(partySessionName)
	if err != nil {
		return "", false
	}
	value := map[string]string{}
	if err := s.sc.Decode(partySessionName, ck.Value, &value); err != nil {
		return "", false
	}
	sid := value["sid"]
	return sid, sid != ""
}

// Identify records the request's session id, when it has one, under
// middleware.KeyPartySession so the rate limiter can key on the device.
func (s *PartySessions) Identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if sid, ok := s.Get(c); ok {
			c.Set(middleware.KeyPartySession, sid)
		}
		return next(c)
	}
}

// Ensure returns the request's session id, issuing a new cookie when the
// request has none.
func (s *PartySessions) Ensure(c echo.Context) (string, error) {
	if sid, ok := s.Get(c); ok {
		return sid, nil
	}
	sid := uuid.NewString()
	encoded, err := s.sc.Encode(partySessionName, map[string]string{"sid": sid})
	if err != nil {
		return "", err
	}
	c.SetCookie(&http.Cookie{
		Name: partySessionName, Value: encoded, Path: "/",
		HttpOnly: true, Secure: s.secure, SameSite: http.SameSiteLaxMode,
		MaxAge: int((24 * time.Hour).Seconds()),
	})
	return sid, nil
}
