package depcache

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/unkn0wn-root/depcache/codec"
	"github.com/unkn0wn-root/depcache/flight"
	"github.com/unkn0wn-root/depcache/internal/wire"
	"github.com/unkn0wn-root/depcache/provider"
)

// hit is the singleflight-shared outcome of one GetOrSet: ok=false means
// "nothing to return" (miss with Skip, cached null with CacheNull, ...).
type hit[V any] struct {
	val V
	ok  bool
}

// Cache is the typed read-through surface for one Config. All instances bound
// to the same Engine share its provider, registry, and invalidation paths.
type Cache[V any] struct {
	cfg    Config
	engine *Engine
	codec  codec.Codec[V]
	flight *flight.Group[hit[V]]
}

// GetOrSet returns the cached value for params, or produces it via load.
//
// The whole call runs under singleflight keyed by the derived cache key, so
// concurrent callers for the same key trigger at most one read+load and all
// observe the same outcome. A fresh entry short-circuits before load; a stale
// entry (within grace) still runs load but keeps the stale value as a
// fallback for Fail/timeout outcomes.
func (c *Cache[V]) GetOrSet(ctx context.Context, params Params, load Loader[V]) (V, bool, error) {
	var zero V
	key, err := CacheKey(c.cfg.Entity, c.cfg.Params, params)
	if err != nil {
		return zero, false, err
	}
	res, _, err := c.flight.Do(key, func() (hit[V], error) {
		return c.lookupOrLoad(ctx, key, params, load)
	})
	if err != nil {
		return zero, false, err
	}
	return res.val, res.ok, nil
}

func (c *Cache[V]) lookupOrLoad(ctx context.Context, key string, params Params, load Loader[V]) (hit[V], error) {
	e := c.engine
	now := time.Now()

	var stale *StaleValue[V]
	if e.enabled {
		raw, ok, err := e.provider.Get(ctx, key)
		if err != nil {
			// backend trouble on the read path shares the loader-failure
			// fallback semantics: let the loader rescue the call
			e.log.Warn("read failed, treating as miss", Fields{"key": key, "err": err})
		} else if ok {
			went, derr := wire.DecodeEntry(raw)
			if derr != nil {
				_, _ = e.provider.Del(ctx, key)
				e.hooks.SelfHeal(key, "corrupt")
			} else {
				ent := entryFromWire(went)
				switch ent.Freshness(now) {
				case Fresh:
					v, verr := c.decode(ent)
					if verr == nil {
						return hit[V]{val: v, ok: true}, nil
					}
					_, _ = e.provider.Del(ctx, key)
					e.hooks.SelfHeal(key, "value_decode")
				case Stale:
					if v, verr := c.decode(ent); verr == nil {
						stale = &StaleValue[V]{Value: v, Age: ent.Age(now)}
					} else {
						_, _ = e.provider.Del(ctx, key)
						e.hooks.SelfHeal(key, "value_decode")
					}
				case Expired:
					// miss; backend TTL reclaims the entry
				}
			}
		}
	}

	out, lerr := c.runLoader(ctx, load, stale)
	if lerr != nil {
		var te *TimeoutError
		if errors.As(lerr, &te) {
			e.hooks.LoaderTimeout(c.cfg.Entity, te.Timeout)
		}
		if stale != nil {
			e.hooks.StaleServed(c.cfg.Entity, stale.Age)
			e.log.Debug("loader failed, serving stale", Fields{"entity": c.cfg.Entity, "err": lerr})
			return hit[V]{val: stale.Value, ok: true}, nil
		}
		return hit[V]{}, lerr
	}

	switch out.kind {
	case outcomeSkip:
		return hit[V]{}, nil
	case outcomeFail:
		if stale != nil {
			e.hooks.StaleServed(c.cfg.Entity, stale.Age)
			e.log.Debug("loader soft-failed, serving stale", Fields{"entity": c.cfg.Entity, "err": out.err})
			return hit[V]{val: stale.Value, ok: true}, nil
		}
		err := out.err
		if err == nil {
			err = errors.New("depcache: loader failed")
		}
		return hit[V]{}, err
	}

	if e.enabled {
		// expiry anchors at write time, not at the pre-load read: a loader
		// slower than the TTL must still produce a fresh entry
		if werr := c.write(ctx, key, params, out.value, time.Now()); werr != nil {
			// value is already in hand; report, don't fail the call
			e.hooks.WriteError(key, werr)
			e.log.Warn("write failed after load", Fields{"key": key, "err": werr})
		}
	}
	return hit[V]{val: out.value, ok: true}, nil
}

// runLoader races the loader against its deadline. The result channel is
// buffered so a late settle is dropped rather than leaking the goroutine's
// send.
func (c *Cache[V]) runLoader(ctx context.Context, load Loader[V], stale *StaleValue[V]) (Outcome[V], error) {
	timeout := coalesce(c.cfg.Timeout, c.engine.defaultTimeout)
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan Outcome[V], 1)
	go func() { ch <- load(lctx, stale) }()

	select {
	case out := <-ch:
		return out, nil
	case <-lctx.Done():
		if ctx.Err() != nil {
			return Outcome[V]{}, ctx.Err()
		}
		return Outcome[V]{}, &TimeoutError{Entity: c.cfg.Entity, Timeout: timeout}
	}
}

// Get reads without any loader semantics. A hit is anything still servable:
// fresh or within its grace window. Expired entries and decode failures miss.
func (c *Cache[V]) Get(ctx context.Context, params Params) (V, bool, error) {
	var zero V
	if !c.engine.enabled {
		return zero, false, nil
	}
	key, err := CacheKey(c.cfg.Entity, c.cfg.Params, params)
	if err != nil {
		return zero, false, err
	}
	raw, ok, err := c.engine.provider.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	went, derr := wire.DecodeEntry(raw)
	if derr != nil {
		_, _ = c.engine.provider.Del(ctx, key)
		c.engine.hooks.SelfHeal(key, "corrupt")
		return zero, false, nil
	}
	ent := entryFromWire(went)
	if ent.Freshness(time.Now()) == Expired {
		return zero, false, nil
	}
	v, verr := c.decode(ent)
	if verr != nil {
		_, _ = c.engine.provider.Del(ctx, key)
		c.engine.hooks.SelfHeal(key, "value_decode")
		return zero, false, nil
	}
	return v, true, nil
}

// Set writes a value directly, recording the same meta-key associations a
// GetOrSet write would. Subject to CacheNull.
func (c *Cache[V]) Set(ctx context.Context, params Params, v V) error {
	if !c.engine.enabled {
		return nil
	}
	key, err := CacheKey(c.cfg.Entity, c.cfg.Params, params)
	if err != nil {
		return err
	}
	return c.write(ctx, key, params, v, time.Now())
}

// Delete removes the single entry for params. It does not cascade; use
// Engine.Invalidate for that.
func (c *Cache[V]) Delete(ctx context.Context, params Params) (int64, error) {
	if !c.engine.enabled {
		return 0, nil
	}
	key, err := CacheKey(c.cfg.Entity, c.cfg.Params, params)
	if err != nil {
		return 0, err
	}
	return c.engine.provider.Del(ctx, key)
}

// Forget drops any in-flight computation and cached flight error for params,
// so the next GetOrSet recomputes unconditionally.
func (c *Cache[V]) Forget(params Params) error {
	key, err := CacheKey(c.cfg.Entity, c.cfg.Params, params)
	if err != nil {
		return err
	}
	c.flight.Forget(key)
	return nil
}

func (c *Cache[V]) write(ctx context.Context, key string, params Params, v V, now time.Time) error {
	nilValue := isNilValue(v)
	if nilValue && !c.cfg.CacheNull {
		return nil
	}

	grace := coalesce(c.cfg.Grace, c.engine.defaultGrace)
	ent := Entry{
		Nil:       nilValue,
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.UnixMilli() + c.cfg.TTL.Milliseconds(),
	}
	if grace > 0 {
		ent.GraceExpiresAt = ent.ExpiresAt + grace.Milliseconds()
	}
	if !nilValue {
		payload, err := c.codec.Encode(v)
		if err != nil {
			return err
		}
		ent.Payload = payload
	}

	raw := wire.EncodeEntry(ent.toWire())
	storeTTL := c.cfg.TTL + grace

	metaKeys, err := c.engine.metaKeysFor(&c.cfg, params)
	if err != nil {
		return err
	}
	cost := c.engine.computeSetCost(key, raw, len(metaKeys))

	if mp, hasMeta := c.engine.provider.(provider.MetaProvider); hasMeta && len(metaKeys) > 0 {
		ok, err := mp.SetWithMeta(ctx, key, raw, cost, storeTTL, metaKeys)
		if err != nil {
			return err
		}
		if !ok {
			c.engine.hooks.ProviderSetRejected(key)
		}
		return nil
	}

	ok, err := c.engine.provider.Set(ctx, key, raw, cost, storeTTL)
	if err != nil {
		return err
	}
	if !ok {
		c.engine.hooks.ProviderSetRejected(key)
	}
	return nil
}

func (c *Cache[V]) decode(ent *Entry) (V, error) {
	var zero V
	if ent.Nil {
		return zero, nil
	}
	return c.codec.Decode(ent.Payload)
}

func entryFromWire(we wire.Entry) *Entry {
	return &Entry{
		Payload:        we.Payload,
		Nil:            we.Nil,
		CreatedAt:      we.CreatedAt,
		ExpiresAt:      we.ExpiresAt,
		GraceExpiresAt: we.GraceExpiresAt,
	}
}

func (e *Entry) toWire() wire.Entry {
	return wire.Entry{
		Payload:        e.Payload,
		Nil:            e.Nil,
		CreatedAt:      e.CreatedAt,
		ExpiresAt:      e.ExpiresAt,
		GraceExpiresAt: e.GraceExpiresAt,
	}
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
