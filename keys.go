package depcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Params carries the caller-supplied parameters identifying one cache entry
// (tenant uuid, project uuid, ...). Nil values count as absent.
type Params map[string]any

// Key prefixes. A meta key string-prefixes a cache key, so membership checks
// below are delimiter-aware rather than naive HasPrefix.
const (
	cachePrefix = "cache:"
	metaPrefix  = "cache:meta:"
	tagPrefix   = "cache:tag:"
)

// CacheKey derives the storage key for one parameterized cache entry:
// "cache:" + hash over {entity, params restricted to declared}.
//
// Every declared param must be present and non-nil; a missing one is a
// *MissingParamError, never a silently collapsed key. Params outside declared
// are ignored, so over-supplying is harmless.
func CacheKey(entity string, declared []string, params Params) (string, error) {
	if entity == "" {
		return "", &InvalidConfigError{Field: "entity", Reason: "empty"}
	}
	if params == nil {
		return "", ErrNilParams
	}
	extracted := make(Params, len(declared))
	for _, p := range declared {
		v, ok := params[p]
		if !ok || v == nil {
			return "", &MissingParamError{Entity: entity, Param: p}
		}
		extracted[p] = v
	}
	material := map[string]any{"entity": entity, "params": map[string]any(extracted)}
	h, err := hashMaterial(material)
	if err != nil {
		return "", err
	}
	return cachePrefix + h, nil
}

// MetaKey derives the invalidation meta key for an entity at a scope:
// "cache:meta:" + hash over {entity, ...params}. Nil-valued params are
// stripped first, so {"a": "x"} and {"a": "x", "b": nil} hash identically.
func MetaKey(entity string, params Params) (string, error) {
	if entity == "" {
		return "", &InvalidConfigError{Field: "entity", Reason: "empty"}
	}
	material := map[string]any{"entity": entity}
	for k, v := range params {
		if v == nil {
			continue
		}
		material[k] = v
	}
	h, err := hashMaterial(material)
	if err != nil {
		return "", err
	}
	return metaPrefix + h, nil
}

// TagKey derives the meta key for an opaque invalidation tag.
func TagKey(tag string) string {
	sum := sha256.Sum256([]byte(tag))
	return tagPrefix + hex.EncodeToString(sum[:16])
}

// CacheKeyToMetaKey rewrites a cache key into the meta namespace, keeping the
// trailing hash. Input must satisfy IsCacheKey.
func CacheKeyToMetaKey(cacheKey string) (string, error) {
	if !IsCacheKey(cacheKey) {
		return "", fmt.Errorf("depcache: not a cache key: %q", cacheKey)
	}
	return metaPrefix + cacheKey[len(cachePrefix):], nil
}

// IsCacheKey reports whether k lives in the cache-entry namespace.
// "cache:meta:..." and "cache:tag:..." are excluded even though they share
// the "cache:" prefix byte-wise.
func IsCacheKey(k string) bool {
	return strings.HasPrefix(k, cachePrefix) && !IsMetaKey(k) && !IsTagKey(k)
}

// IsMetaKey reports whether k lives in the entity-meta namespace.
func IsMetaKey(k string) bool { return strings.HasPrefix(k, metaPrefix) }

// IsTagKey reports whether k lives in the tag-meta namespace.
func IsTagKey(k string) bool { return strings.HasPrefix(k, tagPrefix) }

// hashMaterial canonicalizes material (stable key order at every nesting
// level) and returns the first 16 bytes of its SHA-256 as 32 hex chars.
// Canonicalization makes derived keys invariant to map iteration order.
func hashMaterial(material map[string]any) (string, error) {
	canonical, err := canonicalize(material)
	if err != nil {
		return "", fmt.Errorf("depcache: canonicalize key material: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:16]), nil
}

func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case Params:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			out = append(out, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		out = append(out, kb...)
		out = append(out, ':')
		vb, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		out = append(out, vb...)
	}
	return append(out, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	out := []byte{'['}
	for i, v := range s {
		if i > 0 {
			out = append(out, ',')
		}
		vb, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		out = append(out, vb...)
	}
	return append(out, ']'), nil
}
