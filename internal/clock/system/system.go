// Package system provides the real clock used outside of tests.
package system

import "time"

// Clock implements hunter.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC. Persisted timestamps are always UTC
// so records from different runners compare cleanly.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
