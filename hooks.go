package depcache

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "value_decode"}
	SelfHeal(storageKey, reason string)

	// A loader failed or timed out and the stale value was served instead.
	StaleServed(entity string, age time.Duration)

	// A loader exceeded its deadline (before any stale fallback was applied).
	LoaderTimeout(entity string, timeout time.Duration)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// Writing the loaded value (or its meta associations) failed; the value
	// was still returned to the caller.
	WriteError(storageKey string, err error)

	// Invalidate ran in degraded non-cascading mode because the provider has
	// no meta-key support.
	InvalidateFallback(entity string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)             {}
func (NopHooks) StaleServed(string, time.Duration)   {}
func (NopHooks) LoaderTimeout(string, time.Duration) {}
func (NopHooks) ProviderSetRejected(string)          {}
func (NopHooks) WriteError(string, error)            {}
func (NopHooks) InvalidateFallback(string)           {}
