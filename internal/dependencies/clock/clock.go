// internal/dependencies/clock/clock.go
package clock

import "time"

// Clock is injected wherever a rule module or store needs the current time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func New() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}
