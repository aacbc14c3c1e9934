package depcache

import (
	"context"
	"time"
)

// StaleValue is the fallback context handed to a loader when a stale entry is
// still within its grace window.
type StaleValue[V any] struct {
	Value V
	// Age is the time since the stale entry was written.
	Age time.Duration
}

// Loader produces the value for a cache entry on miss or staleness. stale is
// non-nil only when a grace-window fallback exists.
type Loader[V any] func(ctx context.Context, stale *StaleValue[V]) Outcome[V]

type outcomeKind int

const (
	outcomeValue outcomeKind = iota
	outcomeSkip
	outcomeFail
)

// Outcome is the loader's tagged result: a value to cache and return, an
// explicit skip (cache nothing, return nothing), or a soft failure that may
// be rescued by a stale fallback.
type Outcome[V any] struct {
	kind  outcomeKind
	value V
	err   error
}

// Value proceeds with v: it is written to the backend (subject to CacheNull)
// and returned to all callers.
func Value[V any](v V) Outcome[V] {
	return Outcome[V]{kind: outcomeValue, value: v}
}

// Skip caches nothing and surfaces no value and no error.
func Skip[V any]() Outcome[V] {
	return Outcome[V]{kind: outcomeSkip}
}

// Fail signals a soft failure. When a stale fallback exists it is served
// instead; otherwise err propagates to all callers.
func Fail[V any](err error) Outcome[V] {
	return Outcome[V]{kind: outcomeFail, err: err}
}
