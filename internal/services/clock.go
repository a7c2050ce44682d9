package services

import "time"

// Clock abstracts wall-clock reads so rate-limit windows, cache TTLs and
// fallback cooldowns can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the process wall clock.
func SystemClock() Clock { return systemClock{} }
