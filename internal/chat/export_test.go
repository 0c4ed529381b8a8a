package chat

import "time"

// SetClock replaces the clock used for timestamps and expiry.
func SetClock(sys System, now func() time.Time) {
	sys.(*registry).now = now
}

// Sweep runs one expiry pass and returns the number of sessions removed.
func Sweep(sys System) int {
	return sys.(*registry).sweep()
}
