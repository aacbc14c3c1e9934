package depcache

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNilParams is returned when a nil parameter map is supplied to an
// operation that derives a key from it.
var ErrNilParams = errors.New("depcache: nil params")

// MissingParamError reports a declared required parameter that was absent
// (or nil) at key-derivation time. Always fatal for the call; two entities
// silently collapsing onto one key would corrupt unrelated entries.
type MissingParamError struct {
	Entity string
	Param  string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("depcache: entity %q: missing required param %q", e.Entity, e.Param)
}

// InvalidConfigError reports a malformed Config, detected at construction.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("depcache: invalid config: %s: %s", e.Field, e.Reason)
}

// TimeoutError reports a loader that did not settle within its deadline.
// Recoverable: GetOrSet serves the stale value instead when one is available.
type TimeoutError struct {
	Entity  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("depcache: entity %q: loader timed out after %s", e.Entity, e.Timeout)
}

// CycleError reports a dependency cycle discovered by Registry.ValidateNoCycles.
// Intended to abort startup, never to be handled per-request.
type CycleError struct {
	// Path is the offending walk, first and last element equal.
	Path []string
}

func (e *CycleError) Error() string {
	return "depcache: dependency cycle: " + strings.Join(e.Path, " -> ")
}
