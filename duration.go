package depcache

import (
	"fmt"
	"strconv"
	"time"
)

// MaxTTL caps any parsed TTL/grace duration.
const MaxTTL = 365 * 24 * time.Hour

// ParseTTL converts a human-readable duration ("5m", "1h30m") or a raw second
// count ("300") into a duration truncated to whole seconds. Negative, zero-
// unparsable, or > MaxTTL inputs are rejected.
func ParseTTL(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("depcache: empty duration")
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return TTLFromSeconds(secs)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("depcache: parse duration %q: %w", s, err)
	}
	return boundTTL(d.Truncate(time.Second))
}

// TTLFromSeconds converts raw seconds into a duration, applying the same
// bounds as ParseTTL. Non-finite values are rejected.
func TTLFromSeconds(secs float64) (time.Duration, error) {
	if secs != secs || secs > float64(MaxTTL/time.Second) || secs < -float64(MaxTTL/time.Second) {
		return 0, fmt.Errorf("depcache: seconds out of range: %v", secs)
	}
	return boundTTL(time.Duration(int64(secs)) * time.Second)
}

func boundTTL(d time.Duration) (time.Duration, error) {
	if d < 0 {
		return 0, fmt.Errorf("depcache: negative duration %s", d)
	}
	if d > MaxTTL {
		return 0, fmt.Errorf("depcache: duration %s exceeds %s", d, MaxTTL)
	}
	return d, nil
}
