package engine

import (
	"time"
)

// Clock is the single time source of the engine.  Every business timestamp
// (arrival, match, seat, usage) is taken from it.
type Clock interface {
	Now() time.Time
}

// CivilClock reports wall time in one fixed civil timezone regardless of
// the server locale.
type CivilClock struct {
	Loc *time.Location
}

// NewCivilClock loads the named zone.  An empty name or a zone missing from
// the host database yields a UTC clock together with the load error, so
// callers can log it and carry on.
func NewCivilClock(name string) (CivilClock, error) {
	if name == "" {
		return CivilClock{Loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return CivilClock{Loc: time.UTC}, err
	}
	return CivilClock{Loc: loc}, nil
}

// Now returns the current time in the clock's zone.
func (c CivilClock) Now() time.Time {
	if c.Loc == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Loc)
}
