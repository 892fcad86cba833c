// Package clock provides a testable time source with cancellable timers.
//
// Reducers never read a Clock. Runtimes use it to stamp inputs and to arm
// timers whose callbacks re-enter the owning actor as events.
package clock

import "time"

// Timer is a pending callback armed by AfterFunc.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the timer was
	// stopped before it fired.
	Stop() bool
}

// Clock provides the current time and one-shot timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the production Clock backed by the time package.
type Real struct{}

var _ Clock = Real{}

// Now implements Clock.
func (Real) Now() time.Time { return time.Now() }

// AfterFunc implements Clock.
func (Real) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
