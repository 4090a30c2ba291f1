package cache

import "time"

// Clock is the subset of a clock the cache needs. It is compatible with
// the jonboulle/clockwork package so tests can drive expiry with a fake
// clock; non-test code uses the real one.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}
