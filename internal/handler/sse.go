package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-queue/internal/realtime"
)

const heartbeatEvery = 15 * time.Second

// sseSink writes Server-Sent Events to an echo response.
type sseSink struct{ c echo.Context }

func (s sseSink) start() {
	h := s.c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.c.Response().WriteHeader(http.StatusOK)
	s.c.Response().Flush()
}

// send writes one event; data must be a single line of JSON.
func (s sseSink) send(ev realtime.Event) error {
	if _, err := fmt.Fprintf(s.c.Response(), "event: %s\ndata: %s\n\n", ev.Name, ev.Data); err != nil {
		return err
	}
	s.c.Response().Flush()
	return nil
}

func (s sseSink) ping() error {
	if _, err := fmt.Fprint(s.c.Response(), ": ping\n\n"); err != nil {
		return err
	}
	s.c.Response().Flush()
	return nil
}

// stream pumps sub into the response until the client goes away or the
// subscription is closed.  first, when set, is sent before anything else.
func stream(c echo.Context, reg *realtime.Registry, sub *realtime.Subscription, first *realtime.Event) error {
	defer reg.Remove(sub)
	sink := sseSink{c: c}
	sink.start()
	if first != nil {
		if err := sink.send(*first); err != nil {
			return nil
		}
	}
	tick := time.NewTicker(heartbeatEvery)
	defer tick.Stop()
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := sink.send(ev); err != nil {
				return nil
			}
		case <-tick.C:
			if err := sink.ping(); err != nil {
				return nil
			}
		}
	}
}
