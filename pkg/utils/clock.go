package utils

import "time"

// Clock is the time source for anything that issues or checks expiry
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// SystemClock returns wall-clock time normalized to UTC
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always reports the same instant
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time {
	return c.T.UTC()
}

// Advance moves the clock forward by d
func (c *FixedClock) Advance(d time.Duration) {
	c.T = c.T.Add(d)
}
