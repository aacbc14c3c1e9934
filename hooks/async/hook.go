// Package asynchook decouples hook callbacks from the cache hot path by
// pushing them through a bounded queue to worker goroutines. Events are
// dropped when the queue is full.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery: 10, // sample logs: ~every 10th self-heal
//	})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	engine, _ := depcache.NewEngine(depcache.EngineOptions{
//	    Provider: provider,
//	    Hooks:    hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/depcache"
)

type Hooks struct {
	inner depcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ depcache.Hooks = (*Hooks)(nil)

func New(inner depcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) SelfHeal(k, r string)           { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string)   { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) InvalidateFallback(ent string)  { h.try(func() { h.inner.InvalidateFallback(ent) }) }
func (h *Hooks) WriteError(k string, err error) { h.try(func() { h.inner.WriteError(k, err) }) }
func (h *Hooks) StaleServed(ent string, age time.Duration) {
	h.try(func() { h.inner.StaleServed(ent, age) })
}
func (h *Hooks) LoaderTimeout(ent string, d time.Duration) {
	h.try(func() { h.inner.LoaderTimeout(ent, d) })
}
