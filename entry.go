package depcache

import "time"

// Freshness classifies a stored entry relative to a point in time.
type Freshness int

const (
	// Fresh: now < expiresAt. Served directly, loader never runs.
	Fresh Freshness = iota
	// Stale: expiresAt <= now < graceExpiresAt. Loader runs; the stale value
	// stays available as a fallback.
	Stale
	// Expired: past the grace window (or no grace). Treated as a miss.
	Expired
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "expired"
	}
}

// Entry is the stored wrapper around one encoded value. Timestamps are epoch
// milliseconds. Entries are never mutated in place; a write replaces the
// whole entry.
type Entry struct {
	// Payload is the codec-encoded value. Empty when Nil is set.
	Payload []byte
	// Nil marks a cached null value (Config.CacheNull).
	Nil bool

	CreatedAt int64
	ExpiresAt int64
	// GraceExpiresAt is zero when no grace window applies.
	GraceExpiresAt int64
}

// Freshness compares now against the entry's expiry timestamps.
func (e *Entry) Freshness(now time.Time) Freshness {
	ms := now.UnixMilli()
	if ms < e.ExpiresAt {
		return Fresh
	}
	if e.GraceExpiresAt > 0 && ms < e.GraceExpiresAt {
		return Stale
	}
	return Expired
}

// Age is the time elapsed since the entry was written.
func (e *Entry) Age(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-e.CreatedAt) * time.Millisecond
}
