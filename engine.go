package depcache

import (
	"context"
	"sort"
	"time"

	"github.com/unkn0wn-root/depcache/provider"
)

// SetCostFunc computes the cost passed to the provider for one write.
// metaKeys is the number of meta associations recorded alongside the entry.
type SetCostFunc func(key string, raw []byte, metaKeys int) int64

// Engine is the shared orchestration core behind every Cache[V]: one
// provider, one registry, invalidation, and service-wide defaults. Construct
// with NewEngine, then bind typed caches to it with New.
type Engine struct {
	provider provider.Provider
	registry *Registry
	log      Logger
	hooks    Hooks

	defaultGrace   time.Duration
	defaultTimeout time.Duration
	computeSetCost SetCostFunc
	enabled        bool
}

func (e *Engine) Enabled() bool { return e.enabled }

// Registry exposes the engine's config/dependency registry, e.g. to register
// invalidation-tag functions or inspect the dependency graph.
func (e *Engine) Registry() *Registry { return e.registry }

// Validate checks the startup invariants of everything registered so far,
// chiefly that the dependency graph is acyclic. Call once after all caches
// are constructed; a CycleError here should abort startup.
func (e *Engine) Validate() error {
	return e.registry.ValidateNoCycles()
}

func (e *Engine) Close(ctx context.Context) error {
	if e.provider != nil {
		return e.provider.Close(ctx)
	}
	return nil
}

// Invalidate cascades: it derives the entity's meta key at the given scope
// params, adds the entity's registered tag keys, and deletes every cache
// entry associated with any of them. Returns the number of entries removed.
//
// On providers without meta support it degrades to a direct delete of the
// meta key (non-cascading), reported through Hooks.InvalidateFallback.
func (e *Engine) Invalidate(ctx context.Context, entity string, params Params) (int64, error) {
	return e.invalidate(ctx, entity, params, true)
}

// InvalidateDirect deletes only the entity's meta key, skipping the cascade
// and tag fan-out even on meta-capable providers.
func (e *Engine) InvalidateDirect(ctx context.Context, entity string, params Params) (int64, error) {
	return e.invalidate(ctx, entity, params, false)
}

// Target names one (entity, scope params) pair for batch invalidation.
type Target struct {
	Entity string
	Params Params
}

// InvalidateMany batches several targets through the same cascade-or-direct
// path and returns the total count deleted. The first error stops the batch.
func (e *Engine) InvalidateMany(ctx context.Context, targets []Target) (int64, error) {
	var total int64
	for _, t := range targets {
		n, err := e.invalidate(ctx, t.Entity, t.Params, true)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (e *Engine) invalidate(ctx context.Context, entity string, params Params, cascade bool) (int64, error) {
	if !e.enabled {
		return 0, nil
	}
	metaKey, err := MetaKey(entity, params)
	if err != nil {
		return 0, err
	}

	mp, hasMeta := e.provider.(provider.MetaProvider)
	if cascade && hasMeta {
		keys := []string{metaKey}
		if fn := e.registry.TagsFor(entity); fn != nil {
			for _, t := range fn(params) {
				keys = append(keys, TagKey(t))
			}
		}
		n, err := mp.DelByMetaMany(ctx, keys)
		if err != nil {
			return n, err
		}
		e.log.Debug("cascade invalidated", Fields{"entity": entity, "metaKeys": len(keys), "deleted": n})
		return n, nil
	}

	if cascade {
		// degraded non-cascading mode for providers without meta support
		e.hooks.InvalidateFallback(entity)
	}
	return e.provider.Del(ctx, metaKey)
}

// metaKeysFor derives the full association set for one write: the entity's
// own meta key at metaParams granularity, one meta key per declared
// dependency (dependency params absent from the call are silently skipped),
// and one tag key per tag. Dependency order is stabilized so writes are
// deterministic.
func (e *Engine) metaKeysFor(cfg *Config, params Params) ([]string, error) {
	keys := make([]string, 0, 1+len(cfg.DependsOn))

	own, err := MetaKey(cfg.Entity, metaParamSubset(cfg.MetaParams, params))
	if err != nil {
		return nil, err
	}
	keys = append(keys, own)

	deps := make([]string, 0, len(cfg.DependsOn))
	for dep := range cfg.DependsOn {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	for _, dep := range deps {
		mk, err := MetaKey(dep, metaParamSubset(cfg.DependsOn[dep], params))
		if err != nil {
			return nil, err
		}
		keys = append(keys, mk)
	}

	if cfg.Tags != nil {
		for _, t := range cfg.Tags(params) {
			keys = append(keys, TagKey(t))
		}
	}
	return keys, nil
}
