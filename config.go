package depcache

import "time"

// TagFunc computes cross-scope invalidation tags for a write, from the call's
// params. Tags let entities that share no structural dependency be invalidated
// together.
type TagFunc func(Params) []string

// Config describes one logical cache. Built once at startup (typically by an
// upstream scope/entity builder) and treated as immutable afterwards.
//
// An entity name is not unique across configs: several configs may target the
// same entity with different TTLs. All of them contribute the same dependency
// edges to the registry graph.
type Config struct {
	// Entity is the cached entity type, e.g. "user". Required.
	Entity string

	// Scope names the parameter scope this entity belongs to (tenant,
	// project, ...). Informational in the core; the upstream builder uses it
	// to compute MetaParams.
	Scope string

	// TTL is the freshness window. Zero means entries expire immediately.
	TTL time.Duration

	// Grace extends availability after TTL: within the grace window loaders
	// still run, but may fall back to the stale value on failure or timeout.
	// Zero falls back to the engine-wide default.
	Grace time.Duration

	// Params are the parameter names that identify one cache entry. A call
	// missing any of them fails with MissingParamError.
	Params []string

	// MetaParams is the subset of Params (a scope-derived prefix) hashed into
	// this entity's own invalidation meta key. It sets the granularity of
	// "invalidate all <Entity> caches for scope X".
	MetaParams []string

	// DependsOn maps a depended-on entity name to the param names needed to
	// derive that entity's meta key. These are the static dependency edges.
	DependsOn map[string][]string

	// CacheNull caches a nil produced value instead of skipping the write.
	CacheNull bool

	// Timeout bounds one loader invocation. Zero uses the engine default.
	Timeout time.Duration

	// Tags, if set, computes tag meta keys to associate at write time.
	Tags TagFunc
}

func (c *Config) validate() error {
	if c.Entity == "" {
		return &InvalidConfigError{Field: "entity", Reason: "empty"}
	}
	if c.TTL < 0 {
		return &InvalidConfigError{Field: "ttl", Reason: "negative"}
	}
	if c.Grace < 0 {
		return &InvalidConfigError{Field: "grace", Reason: "negative"}
	}
	if c.Timeout < 0 {
		return &InvalidConfigError{Field: "timeout", Reason: "negative"}
	}
	declared := make(map[string]struct{}, len(c.Params))
	for _, p := range c.Params {
		if p == "" {
			return &InvalidConfigError{Field: "params", Reason: "empty param name"}
		}
		declared[p] = struct{}{}
	}
	for _, p := range c.MetaParams {
		if _, ok := declared[p]; !ok {
			return &InvalidConfigError{Field: "metaParams", Reason: "param " + p + " not in params"}
		}
	}
	for dep, depParams := range c.DependsOn {
		if dep == "" {
			return &InvalidConfigError{Field: "dependsOn", Reason: "empty entity name"}
		}
		for _, p := range depParams {
			if p == "" {
				return &InvalidConfigError{Field: "dependsOn", Reason: "empty param name for " + dep}
			}
		}
	}
	return nil
}

// metaParamSubset restricts params to names, silently skipping absent ones.
// Used for dependency meta keys, where the caller may legitimately not hold
// every param of the depended-on entity.
func metaParamSubset(names []string, params Params) Params {
	out := make(Params, len(names))
	for _, n := range names {
		if v, ok := params[n]; ok && v != nil {
			out[n] = v
		}
	}
	return out
}
