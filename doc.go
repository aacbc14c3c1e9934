// Package depcache implements a read-through cache with TTL + grace (stale-
// while-revalidate) semantics and dependency-graph driven cascade invalidation
// over a pluggable byte store.
//
// Components:
//   - Provider: byte store with TTL (e.g. Redis, Ristretto, BigCache, memory).
//     Providers that also implement MetaProvider support set-shaped meta-key
//     associations, which is what makes cascade invalidation possible.
//   - Codec[V]: (de)serializes V <-> []byte inside the stored entry envelope.
//   - Registry: static index of cache configs plus the forward/reverse
//     dependency graph between entity names, with startup cycle detection.
//   - Engine: shared orchestration (invalidation, meta-key fan-out, defaults).
//   - Cache[V]: typed per-config surface (GetOrSet / Get / Set / Delete).
//
// Keys (bit-exact, shared with any other consumer of the same store):
//
//	cache:<hash>       - cache entries
//	cache:meta:<hash>  - entity meta keys (dependency tracking)
//	cache:tag:<hash>   - tag meta keys (cross-scope invalidation)
//
// Read-through pattern:
//
//	users, _ := depcache.New[User](depcache.Options[User]{
//	    Config: depcache.Config{
//	        Entity:     "user",
//	        TTL:        5 * time.Minute,
//	        Params:     []string{"accountUuid", "userUuid"},
//	        MetaParams: []string{"accountUuid"},
//	        DependsOn:  map[string][]string{"account": {"accountUuid"}},
//	    },
//	    Engine: engine,
//	    Codec:  codec.JSON[User]{},
//	})
//	u, ok, err := users.GetOrSet(ctx, params, loadUser)
//
// Invalidation flows the opposite direction: Engine.Invalidate derives the
// entity's meta key (plus any registered tag keys) and deletes every cache key
// recorded against them at write time. No graph walk happens at invalidation
// time; the walk happened once, at write time, when associations were stored.
package depcache
