package depcache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	c "github.com/unkn0wn-root/depcache/codec"
	"github.com/unkn0wn-root/depcache/provider"
	"github.com/unkn0wn-root/depcache/provider/memory"
)

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestEngine(t *testing.T, p provider.Provider, optsOpt func(*EngineOptions)) *Engine {
	t.Helper()
	opts := EngineOptions{Provider: p}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	e, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func newUserCache(t *testing.T, e *Engine, cfgOpt func(*Config)) *Cache[user] {
	t.Helper()
	cfg := Config{
		Entity:     "user",
		TTL:        time.Minute,
		Params:     []string{"accountUuid", "userUuid"},
		MetaParams: []string{"accountUuid"},
		DependsOn:  map[string][]string{"account": {"accountUuid"}},
	}
	if cfgOpt != nil {
		cfgOpt(&cfg)
	}
	cc, err := New[user](Options[user]{Config: cfg, Engine: e, Codec: c.JSON[user]{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return cc
}

func loadConst(v user) Loader[user] {
	return func(context.Context, *StaleValue[user]) Outcome[user] {
		return Value(v)
	}
}

// ==============================
// Read-through flow
// ==============================

func TestGetOrSetMissThenFresh(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)
	cc := newUserCache(t, e, nil)

	params := Params{"accountUuid": "a-1", "userUuid": "u-1"}
	want := user{ID: "u-1", Name: "Ada"}

	var calls atomic.Int32
	load := func(_ context.Context, stale *StaleValue[user]) Outcome[user] {
		calls.Add(1)
		if stale != nil {
			t.Error("no stale fallback expected on a cold miss")
		}
		return Value(want)
	}

	got, ok, err := cc.GetOrSet(ctx, params, load)
	if err != nil || !ok || got != want {
		t.Fatalf("miss path: ok=%v err=%v got=%v", ok, err, got)
	}

	// fresh hit: loader must not run again
	got, ok, err = cc.GetOrSet(ctx, params, load)
	if err != nil || !ok || got != want {
		t.Fatalf("fresh path: ok=%v err=%v got=%v", ok, err, got)
	}
	if calls.Load() != 1 {
		t.Fatalf("loader ran %d times, want 1", calls.Load())
	}

	// direct Get agrees
	if got, ok, err := cc.Get(ctx, params); err != nil || !ok || got != want {
		t.Fatalf("Get: ok=%v err=%v got=%v", ok, err, got)
	}
}

func TestGetOrSetMissingParam(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)
	cc := newUserCache(t, e, nil)

	_, _, err := cc.GetOrSet(ctx, Params{"accountUuid": "a-1"}, loadConst(user{}))
	var mp *MissingParamError
	if !errors.As(err, &mp) || mp.Param != "userUuid" {
		t.Fatalf("expected MissingParamError for userUuid, got %v", err)
	}
}

// ==============================
// Freshness / grace
// ==============================

func TestExpiryWithoutGrace(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)
	cc := newUserCache(t, e, func(cfg *Config) {
		cfg.TTL = 100 * time.Millisecond
		cfg.Grace = 0
	})

	params := Params{"accountUuid": "a-1", "userUuid": "u-1"}
	if err := cc.Set(ctx, params, user{ID: "u-1"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if _, ok, err := cc.Get(ctx, params); err != nil || ok {
		t.Fatalf("expired entry should miss: ok=%v err=%v", ok, err)
	}
}

func TestStaleFallbackOnFail(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)
	cc := newUserCache(t, e, func(cfg *Config) {
		cfg.TTL = 100 * time.Millisecond
		cfg.Grace = time.Minute
	})

	params := Params{"accountUuid": "a-1", "userUuid": "u-1"}
	orig := user{ID: "u-1", Name: "Ada"}
	if err := cc.Set(ctx, params, orig); err != nil {
		t.Fatalf("Set: %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	var sawStale *StaleValue[user]
	got, ok, err := cc.GetOrSet(ctx, params, func(_ context.Context, stale *StaleValue[user]) Outcome[user] {
		sawStale = stale
		return Fail[user](errors.New("upstream down"))
	})
	if err != nil || !ok || got != orig {
		t.Fatalf("stale fallback: ok=%v err=%v got=%v", ok, err, got)
	}
	if sawStale == nil || sawStale.Value != orig {
		t.Fatalf("loader did not receive stale context: %+v", sawStale)
	}
	if sawStale.Age < 100*time.Millisecond {
		t.Fatalf("stale age too small: %s", sawStale.Age)
	}
}

func TestFailWithoutStalePropagates(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)
	cc := newUserCache(t, e, nil)

	boom := errors.New("boom")
	_, ok, err := cc.GetOrSet(ctx, Params{"accountUuid": "a-1", "userUuid": "u-1"},
		func(context.Context, *StaleValue[user]) Outcome[user] { return Fail[user](boom) })
	if ok || !errors.Is(err, boom) {
		t.Fatalf("Fail should propagate without fallback: ok=%v err=%v", ok, err)
	}
}

func TestStaleBeyondGraceIsMiss(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)
	cc := newUserCache(t, e, func(cfg *Config) {
		cfg.TTL = 50 * time.Millisecond
		cfg.Grace = 50 * time.Millisecond
	})

	params := Params{"accountUuid": "a-1", "userUuid": "u-1"}
	if err := cc.Set(ctx, params, user{ID: "u-1"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(150 * time.Millisecond)

	var sawStale *StaleValue[user]
	_, ok, err := cc.GetOrSet(ctx, params, func(_ context.Context, stale *StaleValue[user]) Outcome[user] {
		sawStale = stale
		return Skip[user]()
	})
	if err != nil || ok {
		t.Fatalf("skip beyond grace: ok=%v err=%v", ok, err)
	}
	if sawStale != nil {
		t.Fatalf("no stale fallback should survive past grace, got %+v", sawStale)
	}
}

func TestWriteExpiryAnchoredAfterLoad(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)
	cc := newUserCache(t, e, func(cfg *Config) {
		cfg.TTL = 100 * time.Millisecond
		cfg.Timeout = time.Second
	})

	params := Params{"accountUuid": "a-1", "userUuid": "u-1"}
	want := user{ID: "u-1", Name: "Ada"}

	// loader slower than the TTL but well inside its timeout
	got, ok, err := cc.GetOrSet(ctx, params, func(context.Context, *StaleValue[user]) Outcome[user] {
		time.Sleep(150 * time.Millisecond)
		return Value(want)
	})
	if err != nil || !ok || got != want {
		t.Fatalf("GetOrSet: ok=%v err=%v got=%v", ok, err, got)
	}

	// expiry anchors when the value is written, so the entry is still fresh
	if got, ok, err := cc.Get(ctx, params); err != nil || !ok || got != want {
		t.Fatalf("entry written moments ago should be fresh: ok=%v err=%v got=%v", ok, err, got)
	}
}

// ==============================
// Loader outcomes
// ==============================

func TestSkipCachesNothing(t *testing.T) {
	ctx := context.Background()
	mp := memory.New(memory.Config{})
	e := newTestEngine(t, mp, nil)
	defer e.Close(ctx)
	cc := newUserCache(t, e, nil)

	params := Params{"accountUuid": "a-1", "userUuid": "u-1"}
	got, ok, err := cc.GetOrSet(ctx, params,
		func(context.Context, *StaleValue[user]) Outcome[user] { return Skip[user]() })
	if err != nil || ok || got != (user{}) {
		t.Fatalf("skip: ok=%v err=%v got=%v", ok, err, got)
	}
	if _, ok, _ := cc.Get(ctx, params); ok {
		t.Fatal("skip must not write")
	}
}

func TestLoaderTimeout(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)
	cc := newUserCache(t, e, func(cfg *Config) {
		cfg.Timeout = 50 * time.Millisecond
	})

	_, ok, err := cc.GetOrSet(ctx, Params{"accountUuid": "a-1", "userUuid": "u-1"},
		func(ctx context.Context, _ *StaleValue[user]) Outcome[user] {
			select {
			case <-time.After(200 * time.Millisecond):
			case <-ctx.Done():
			}
			return Value(user{ID: "late"})
		})

	var te *TimeoutError
	if ok || !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got ok=%v err=%v", ok, err)
	}
	if !strings.Contains(err.Error(), "50ms") {
		t.Fatalf("timeout error should name the deadline: %q", err.Error())
	}
}

func TestLoaderTimeoutServesStale(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)
	cc := newUserCache(t, e, func(cfg *Config) {
		cfg.TTL = 50 * time.Millisecond
		cfg.Grace = time.Minute
		cfg.Timeout = 50 * time.Millisecond
	})

	params := Params{"accountUuid": "a-1", "userUuid": "u-1"}
	orig := user{ID: "u-1", Name: "Ada"}
	if err := cc.Set(ctx, params, orig); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(80 * time.Millisecond)

	got, ok, err := cc.GetOrSet(ctx, params,
		func(ctx context.Context, _ *StaleValue[user]) Outcome[user] {
			<-ctx.Done()
			return Value(user{ID: "late"})
		})
	if err != nil || !ok || got != orig {
		t.Fatalf("timeout with stale: ok=%v err=%v got=%v", ok, err, got)
	}
}

// ==============================
// Null caching
// ==============================

func TestCacheNull(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)

	cfg := Config{
		Entity:    "profile",
		TTL:       time.Minute,
		Params:    []string{"userUuid"},
		CacheNull: true,
	}
	cc, err := New[*user](Options[*user]{Config: cfg, Engine: e, Codec: c.JSON[*user]{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params := Params{"userUuid": "u-1"}
	var calls atomic.Int32
	load := func(context.Context, *StaleValue[*user]) Outcome[*user] {
		calls.Add(1)
		return Value[*user](nil)
	}

	got, ok, err := cc.GetOrSet(ctx, params, load)
	if err != nil || !ok || got != nil {
		t.Fatalf("null write: ok=%v err=%v got=%v", ok, err, got)
	}
	// cached null satisfies the next read without the loader
	got, ok, err = cc.GetOrSet(ctx, params, load)
	if err != nil || !ok || got != nil {
		t.Fatalf("null hit: ok=%v err=%v got=%v", ok, err, got)
	}
	if calls.Load() != 1 {
		t.Fatalf("loader ran %d times, want 1", calls.Load())
	}
}

func TestNullNotCachedByDefault(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)

	cfg := Config{Entity: "profile", TTL: time.Minute, Params: []string{"userUuid"}}
	cc, err := New[*user](Options[*user]{Config: cfg, Engine: e, Codec: c.JSON[*user]{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params := Params{"userUuid": "u-1"}
	var calls atomic.Int32
	load := func(context.Context, *StaleValue[*user]) Outcome[*user] {
		calls.Add(1)
		return Value[*user](nil)
	}

	_, _, _ = cc.GetOrSet(ctx, params, load)
	_, _, _ = cc.GetOrSet(ctx, params, load)
	if calls.Load() != 2 {
		t.Fatalf("nil value should not be cached: loader ran %d times, want 2", calls.Load())
	}
}

// ==============================
// Error caching
// ==============================

func TestErrorTTLDefaultCachesFailures(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)
	// ErrorTTL left at zero applies the default window
	cc := newUserCache(t, e, nil)

	boom := errors.New("boom")
	var calls atomic.Int32
	fail := func(context.Context, *StaleValue[user]) Outcome[user] {
		calls.Add(1)
		return Fail[user](boom)
	}

	params := Params{"accountUuid": "a-1", "userUuid": "u-1"}
	if _, _, err := cc.GetOrSet(ctx, params, fail); !errors.Is(err, boom) {
		t.Fatalf("first call: %v", err)
	}
	if _, _, err := cc.GetOrSet(ctx, params, fail); !errors.Is(err, boom) {
		t.Fatalf("call inside error window: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("loader ran %d times inside the default error window, want 1", calls.Load())
	}
}

func TestErrorTTLNegativeDisables(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)

	cfg := Config{Entity: "user", TTL: time.Minute, Params: []string{"userUuid"}}
	cc, err := New[user](Options[user]{Config: cfg, Engine: e, Codec: c.JSON[user]{}, ErrorTTL: -1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	boom := errors.New("boom")
	var calls atomic.Int32
	fail := func(context.Context, *StaleValue[user]) Outcome[user] {
		calls.Add(1)
		return Fail[user](boom)
	}

	params := Params{"userUuid": "u-1"}
	_, _, _ = cc.GetOrSet(ctx, params, fail)
	_, _, _ = cc.GetOrSet(ctx, params, fail)
	if calls.Load() != 2 {
		t.Fatalf("loader ran %d times with error caching disabled, want 2", calls.Load())
	}
}

// ==============================
// Singleflight inside GetOrSet
// ==============================

func TestGetOrSetCollapsesConcurrentLoads(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)
	cc := newUserCache(t, e, func(cfg *Config) {
		cfg.Timeout = time.Second
	})

	params := Params{"accountUuid": "a-1", "userUuid": "u-1"}
	want := user{ID: "u-1", Name: "Ada"}

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context, *StaleValue[user]) Outcome[user] {
		calls.Add(1)
		<-release
		return Value(want)
	}

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, ok, err := cc.GetOrSet(ctx, params, load)
			if err != nil || !ok || got != want {
				t.Errorf("concurrent GetOrSet: ok=%v err=%v got=%v", ok, err, got)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("loader ran %d times, want 1", got)
	}
}

// ==============================
// Cascade invalidation
// ==============================

func TestCascadeInvalidationByDependency(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)
	cc := newUserCache(t, e, nil)

	pA := Params{"accountUuid": "a-1", "userUuid": "u-1"}
	pB := Params{"accountUuid": "a-2", "userUuid": "u-2"}
	if err := cc.Set(ctx, pA, user{ID: "u-1"}); err != nil {
		t.Fatalf("Set A: %v", err)
	}
	if err := cc.Set(ctx, pB, user{ID: "u-2"}); err != nil {
		t.Fatalf("Set B: %v", err)
	}

	// account a-1 changed: every user entry written under that account goes
	n, err := e.Invalidate(ctx, "account", Params{"accountUuid": "a-1"})
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted %d entries, want 1", n)
	}
	if _, ok, _ := cc.Get(ctx, pA); ok {
		t.Fatal("entry under invalidated account survived")
	}
	if _, ok, _ := cc.Get(ctx, pB); !ok {
		t.Fatal("entry under a different account was removed")
	}
}

func TestInvalidateOwnEntityMeta(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)
	cc := newUserCache(t, e, nil)

	p1 := Params{"accountUuid": "a-1", "userUuid": "u-1"}
	p2 := Params{"accountUuid": "a-1", "userUuid": "u-2"}
	_ = cc.Set(ctx, p1, user{ID: "u-1"})
	_ = cc.Set(ctx, p2, user{ID: "u-2"})

	// metaParams granularity: all user entries for the account
	n, err := e.Invalidate(ctx, "user", Params{"accountUuid": "a-1"})
	if err != nil || n != 2 {
		t.Fatalf("Invalidate: n=%d err=%v", n, err)
	}
	if _, ok, _ := cc.Get(ctx, p1); ok {
		t.Fatal("u-1 survived")
	}
	if _, ok, _ := cc.Get(ctx, p2); ok {
		t.Fatal("u-2 survived")
	}
}

func TestTagInvalidationCrossesEntities(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)

	tenantTag := func(p Params) []string {
		return []string{"tenant:" + p["accountUuid"].(string)}
	}

	// report has no structural dependency on account, only a shared tag
	cfg := Config{
		Entity: "report",
		TTL:    time.Minute,
		Params: []string{"accountUuid", "reportUuid"},
		Tags:   tenantTag,
	}
	reports, err := New[user](Options[user]{Config: cfg, Engine: e, Codec: c.JSON[user]{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.Registry().RegisterTags("account", tenantTag)

	p := Params{"accountUuid": "a-1", "reportUuid": "r-1"}
	if err := reports.Set(ctx, p, user{ID: "r-1"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	n, err := e.Invalidate(ctx, "account", Params{"accountUuid": "a-1"})
	if err != nil || n != 1 {
		t.Fatalf("tag invalidate: n=%d err=%v", n, err)
	}
	if _, ok, _ := reports.Get(ctx, p); ok {
		t.Fatal("tagged entry survived cross-entity invalidation")
	}
}

func TestInvalidateMany(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)
	cc := newUserCache(t, e, nil)

	_ = cc.Set(ctx, Params{"accountUuid": "a-1", "userUuid": "u-1"}, user{ID: "u-1"})
	_ = cc.Set(ctx, Params{"accountUuid": "a-2", "userUuid": "u-2"}, user{ID: "u-2"})

	n, err := e.InvalidateMany(ctx, []Target{
		{Entity: "account", Params: Params{"accountUuid": "a-1"}},
		{Entity: "account", Params: Params{"accountUuid": "a-2"}},
	})
	if err != nil || n != 2 {
		t.Fatalf("InvalidateMany: n=%d err=%v", n, err)
	}
}

// basicProvider hides meta support to exercise the degraded invalidation path.
type basicProvider struct{ provider.Provider }

func TestInvalidateDegradedWithoutMeta(t *testing.T) {
	ctx := context.Background()
	mp := memory.New(memory.Config{})

	var fallbacks atomic.Int32
	e := newTestEngine(t, basicProvider{mp}, func(o *EngineOptions) {
		o.Hooks = fallbackCounter{&fallbacks}
	})
	defer e.Close(ctx)
	cc := newUserCache(t, e, nil)

	p := Params{"accountUuid": "a-1", "userUuid": "u-1"}
	if err := cc.Set(ctx, p, user{ID: "u-1"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// degraded mode deletes only the literal meta key, so the entry stays
	if _, err := e.Invalidate(ctx, "account", Params{"accountUuid": "a-1"}); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := cc.Get(ctx, p); !ok {
		t.Fatal("degraded invalidation should not cascade")
	}
	if fallbacks.Load() != 1 {
		t.Fatalf("InvalidateFallback fired %d times, want 1", fallbacks.Load())
	}
}

type fallbackCounter struct{ n *atomic.Int32 }

func (fallbackCounter) SelfHeal(string, string)             {}
func (fallbackCounter) StaleServed(string, time.Duration)   {}
func (fallbackCounter) LoaderTimeout(string, time.Duration) {}
func (fallbackCounter) ProviderSetRejected(string)          {}
func (fallbackCounter) WriteError(string, error)            {}
func (f fallbackCounter) InvalidateFallback(string)         { f.n.Add(1) }

// ==============================
// Self-heal / disabled engine
// ==============================

func TestSelfHealOnCorrupt(t *testing.T) {
	ctx := context.Background()
	mp := memory.New(memory.Config{})
	e := newTestEngine(t, mp, nil)
	defer e.Close(ctx)
	cc := newUserCache(t, e, nil)

	params := Params{"accountUuid": "a-1", "userUuid": "u-1"}
	key, err := CacheKey("user", []string{"accountUuid", "userUuid"}, params)
	if err != nil {
		t.Fatalf("CacheKey: %v", err)
	}

	// inject foreign bytes directly into the provider
	if ok, err := mp.Set(ctx, key, []byte("not-wire-format"), 1, time.Minute); err != nil || !ok {
		t.Fatalf("inject: ok=%v err=%v", ok, err)
	}

	if _, ok, err := cc.Get(ctx, params); err != nil || ok {
		t.Fatalf("corrupt entry should miss: ok=%v err=%v", ok, err)
	}
	if ok, _ := mp.Exists(ctx, key); ok {
		t.Fatal("corrupt entry was not deleted by self-heal")
	}
}

func TestDisabledEngine(t *testing.T) {
	ctx := context.Background()
	mp := memory.New(memory.Config{})
	e := newTestEngine(t, mp, func(o *EngineOptions) { o.Disabled = true })
	defer e.Close(ctx)
	cc := newUserCache(t, e, nil)

	if e.Enabled() {
		t.Fatal("engine should be disabled")
	}

	params := Params{"accountUuid": "a-1", "userUuid": "u-1"}
	want := user{ID: "u-1"}

	var calls atomic.Int32
	load := func(context.Context, *StaleValue[user]) Outcome[user] {
		calls.Add(1)
		return Value(want)
	}

	// loader still produces, nothing is cached
	got, ok, err := cc.GetOrSet(ctx, params, load)
	if err != nil || !ok || got != want {
		t.Fatalf("disabled GetOrSet: ok=%v err=%v got=%v", ok, err, got)
	}
	_, _, _ = cc.GetOrSet(ctx, params, load)
	if calls.Load() != 2 {
		t.Fatalf("loader ran %d times, want 2 (no caching while disabled)", calls.Load())
	}
	if _, ok, _ := cc.Get(ctx, params); ok {
		t.Fatal("disabled Get should miss")
	}
}

// ==============================
// Startup validation
// ==============================

func TestEngineValidateCycles(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)

	mk := func(entity, dep string) Config {
		return Config{
			Entity:    entity,
			TTL:       time.Minute,
			Params:    []string{"id"},
			DependsOn: map[string][]string{dep: {"id"}},
		}
	}
	if _, err := New[user](Options[user]{Config: mk("a", "b"), Engine: e, Codec: c.JSON[user]{}}); err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := New[user](Options[user]{Config: mk("b", "a"), Engine: e, Codec: c.JSON[user]{}}); err != nil {
		t.Fatalf("New: %v", err)
	}

	var ce *CycleError
	if err := e.Validate(); !errors.As(err, &ce) {
		t.Fatalf("expected CycleError, got %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(context.Background())

	bad := []Config{
		{Entity: "", TTL: time.Minute},
		{Entity: "user", TTL: -time.Second},
		{Entity: "user", TTL: time.Minute, Params: []string{"a"}, MetaParams: []string{"b"}},
	}
	for i, cfg := range bad {
		_, err := New[user](Options[user]{Config: cfg, Engine: e, Codec: c.JSON[user]{}})
		var ic *InvalidConfigError
		if !errors.As(err, &ic) {
			t.Fatalf("config %d: expected InvalidConfigError, got %v", i, err)
		}
	}
}

// ==============================
// Dependency params partially absent
// ==============================

func TestWriteSkipsAbsentDependencyParams(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(memory.Config{}), nil)
	defer e.Close(ctx)

	// project depends on org via orgUuid, which callers don't always hold
	cfg := Config{
		Entity:     "project",
		TTL:        time.Minute,
		Params:     []string{"projectUuid"},
		MetaParams: []string{"projectUuid"},
		DependsOn:  map[string][]string{"org": {"orgUuid"}},
	}
	cc, err := New[user](Options[user]{Config: cfg, Engine: e, Codec: c.JSON[user]{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	p := Params{"projectUuid": "p-1"}
	if err := cc.Set(ctx, p, user{ID: "p-1"}); err != nil {
		t.Fatalf("Set with absent dep param: %v", err)
	}

	// the dep meta key was still recorded (with an empty param subset)
	n, err := e.Invalidate(ctx, "org", Params{})
	if err != nil || n != 1 {
		t.Fatalf("Invalidate org: n=%d err=%v", n, err)
	}
}
