// Package clock provides the wall clock used by pipeline components.
package clock

import "time"

// System reads the real wall clock.
type System struct{}

// NewSystem returns a System clock.
func NewSystem() *System {
	return &System{}
}

// Now returns the current time.
func (System) Now() time.Time {
	return time.Now()
}
