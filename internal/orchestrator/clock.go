package orchestrator

import "time"

// Clock is the timestamp source for history entries and events.
// It is injectable so tests can run with deterministic time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
