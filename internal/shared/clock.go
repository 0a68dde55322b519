package shared

import "time"

// Timer is the cancellable handle returned by [Clock.AfterFunc].
type Timer interface {
	Stop() bool
}

// Clock abstracts wall time and delayed callbacks so timer-driven behavior
// (optimistic read windows, delayed read receipts) can run against a fake in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// SystemClock returns a [Clock] backed by the time package.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
