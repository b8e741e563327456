package clock

import "time"

// Source returns the current time. All reminder matching goes through it.
type Source interface {
	Now() time.Time
}

// System reads the wall clock in a fixed location.
type System struct {
	Location *time.Location
}

// NewSystem creates a clock for the named IANA time zone.
// An empty name means the process local time zone.
func NewSystem(tz string) (*System, error) {
	if tz == "" {
		return &System{Location: time.Local}, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	return &System{Location: loc}, nil
}

func (s *System) Now() time.Time {
	if s.Location == nil {
		return time.Now()
	}
	return time.Now().In(s.Location)
}

// Fixed always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

// Func adapts a plain function.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }
