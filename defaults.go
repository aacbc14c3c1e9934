package depcache

import "time"

const (
	// DefaultTimeout bounds a loader invocation when Config.Timeout is zero.
	DefaultTimeout = time.Second

	// DefaultErrorTTL is the flight-level error cache window applied when
	// Options.ErrorTTL is left at zero. A negative ErrorTTL disables error
	// caching for that cache entirely.
	DefaultErrorTTL = 5 * time.Second
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
