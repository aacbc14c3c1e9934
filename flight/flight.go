// Package flight deduplicates concurrent executions per key and absorbs error
// storms with a short-lived per-key error cache.
//
// While a computation for a key is in flight, every caller of Do with that key
// waits for it and observes the same outcome; at most one invocation of fn
// drives the work. After a failure, callers arriving within the error TTL get
// the cached error back without invoking fn at all, which keeps a failing
// dependency from being hammered by retries. Successes clear any cached error.
package flight

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type failure struct {
	err       error
	expiresAt time.Time
}

// Group deduplicates executions of a function keyed by string. The zero value
// has error caching disabled; use New to enable it.
type Group[T any] struct {
	sf singleflight.Group

	errTTL time.Duration
	mu     sync.Mutex
	fails  map[string]failure
}

// New returns a Group whose failures are cached for errTTL. errTTL <= 0
// disables error caching entirely (every call after a settled failure
// recomputes).
func New[T any](errTTL time.Duration) *Group[T] {
	g := &Group[T]{errTTL: errTTL}
	if errTTL > 0 {
		g.fails = make(map[string]failure)
	}
	return g
}

// Do executes fn, collapsing concurrent callers with the same key into one
// invocation. shared reports whether the result was delivered to more than
// one caller. A cached error short-circuits without invoking fn.
func (g *Group[T]) Do(key string, fn func() (T, error)) (v T, shared bool, err error) {
	if cached, ok := g.cachedError(key); ok {
		var zero T
		return zero, false, cached
	}

	res, err, shared := g.sf.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		g.storeError(key, err)
		var zero T
		return zero, shared, err
	}
	g.clearError(key)
	return res.(T), shared, nil
}

// Forget drops both the in-flight computation and any cached error for key,
// so the next Do recomputes unconditionally.
func (g *Group[T]) Forget(key string) {
	g.sf.Forget(key)
	g.clearError(key)
}

// ForgetError drops only the cached error, leaving any in-flight computation
// untouched.
func (g *Group[T]) ForgetError(key string) {
	g.clearError(key)
}

// Len reports how many keys currently hold a cached error, expired entries
// included until their next lookup. Introspection for tests and metrics.
func (g *Group[T]) Len() int {
	if g.fails == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.fails)
}

func (g *Group[T]) cachedError(key string) (error, bool) {
	if g.fails == nil {
		return nil, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	f, ok := g.fails[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(f.expiresAt) {
		delete(g.fails, key)
		return nil, false
	}
	return f.err, true
}

func (g *Group[T]) storeError(key string, err error) {
	if g.fails == nil {
		return
	}
	g.mu.Lock()
	g.fails[key] = failure{err: err, expiresAt: time.Now().Add(g.errTTL)}
	g.mu.Unlock()
}

func (g *Group[T]) clearError(key string) {
	if g.fails == nil {
		return
	}
	g.mu.Lock()
	delete(g.fails, key)
	g.mu.Unlock()
}
