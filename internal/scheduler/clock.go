package scheduler

import "time"

type Timer interface {
	Stop() bool
}

// Clock is the timer source. The real clock uses time.AfterFunc.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
func (realClock) Now() time.Time                            { return time.Now() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
