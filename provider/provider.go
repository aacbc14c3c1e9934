// Package provider defines the storage abstraction used by depcache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no prepended
// metadata, no re-encoding, no mutation). If a store performs internal
// transforms (e.g. compression), they MUST be fully reversed.
//
// Important: the "cache:", "cache:meta:" and "cache:tag:" keyspaces are owned
// by depcache. External code MUST NOT write values under these prefixes;
// foreign writes are treated as corruption by strict wire validation and
// deleted on read.
package provider

import (
	"context"
	"time"
)

// TTL sentinels, matching the Redis convention.
const (
	// TTLNone: the key exists but carries no expiry.
	TTLNone int64 = -1
	// TTLMissing: the key does not exist.
	TTLMissing int64 = -2
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent
// use. Deletion counts are best-effort where the backend cannot report them
// precisely.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. May ignore cost if unsupported.
	// ttl <= 0 means no expiry. Returns ok=false when the store rejected the
	// write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key, reporting how many entries were removed (0 or 1).
	Del(ctx context.Context, key string) (int64, error)

	// DelMany removes several keys, reporting how many existed.
	DelMany(ctx context.Context, keys []string) (int64, error)

	// Exists reports whether the key currently holds a live value.
	Exists(ctx context.Context, key string) (bool, error)

	// TTL returns the key's remaining lifetime in whole seconds, TTLNone for
	// a key without expiry, or TTLMissing for an absent key.
	TTL(ctx context.Context, key string) (int64, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// MetaProvider extends Provider with set-shaped meta-key associations, the
// substrate for cascade invalidation. A cache key written via SetWithMeta is
// added to the member set of every meta key; DelByMeta deletes all members of
// a meta key (and the set itself) in one logical operation.
type MetaProvider interface {
	Provider

	// SetWithMeta stores value under key and associates key with each meta
	// key. The association must outlive the entry at least as long as its TTL.
	SetWithMeta(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration, metaKeys []string) (ok bool, err error)

	// DelByMeta deletes every key associated with metaKey, returning the
	// number of cache entries removed.
	DelByMeta(ctx context.Context, metaKey string) (int64, error)

	// DelByMetaMany deletes by the union of several meta keys.
	DelByMetaMany(ctx context.Context, metaKeys []string) (int64, error)
}
