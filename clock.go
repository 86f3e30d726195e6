package main

import "time"

// Clock abstracts the current time so tests can control it directly,
// rather than sleeping real wall-clock time to exercise the sweeper's
// timeouts, per §4.E.
type Clock interface {
	Now() time.Time
}

// realClock is the production Clock: time.Now().
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
