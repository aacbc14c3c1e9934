// Package memory implements an in-process MetaProvider backed by a plain map.
// It is the test backbone and a reasonable single-process backend for small
// deployments; it is not shared across replicas.
package memory

import (
	"context"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/depcache/provider"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

// Provider stores entries and meta-key member sets under one mutex. Expiry is
// lazy on access, with an optional background sweep to reclaim never-read
// keys.
type Provider struct {
	mu    sync.Mutex
	m     map[string]entry
	meta  map[string]map[string]struct{} // meta key -> member cache keys
	clock func() time.Time

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ pr.MetaProvider = (*Provider)(nil)

type Config struct {
	// CleanupInterval enables a periodic sweep of expired entries.
	// Zero disables the sweep; lazy expiry still applies.
	CleanupInterval time.Duration
}

func New(cfg Config) *Provider {
	p := &Provider{
		m:     make(map[string]entry),
		meta:  make(map[string]map[string]struct{}),
		clock: time.Now,
	}
	if cfg.CleanupInterval > 0 {
		p.ticker = time.NewTicker(cfg.CleanupInterval)
		p.stopCh = make(chan struct{})
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-p.ticker.C:
					p.sweep()
				case <-p.stopCh:
					return
				}
			}
		}()
	}
	return p
}

// SetClock overrides the time source. Test use only.
func (p *Provider) SetClock(clock func() time.Time) {
	p.mu.Lock()
	p.clock = clock
	p.mu.Unlock()
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.liveLocked(key)
	if !ok {
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	p.setLocked(key, value, ttl)
	p.mu.Unlock()
	return true, nil
}

func (p *Provider) SetWithMeta(_ context.Context, key string, value []byte, _ int64, ttl time.Duration, metaKeys []string) (bool, error) {
	p.mu.Lock()
	p.setLocked(key, value, ttl)
	for _, mk := range metaKeys {
		set, ok := p.meta[mk]
		if !ok {
			set = make(map[string]struct{})
			p.meta[mk] = set
		}
		set[key] = struct{}{}
	}
	p.mu.Unlock()
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.liveLocked(key); !ok {
		return 0, nil
	}
	delete(p.m, key)
	return 1, nil
}

func (p *Provider) DelMany(ctx context.Context, keys []string) (int64, error) {
	var n int64
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		if _, ok := p.liveLocked(k); ok {
			delete(p.m, k)
			n++
		}
	}
	return n, nil
}

func (p *Provider) DelByMeta(ctx context.Context, metaKey string) (int64, error) {
	return p.DelByMetaMany(ctx, []string{metaKey})
}

func (p *Provider) DelByMetaMany(_ context.Context, metaKeys []string) (int64, error) {
	var n int64
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, mk := range metaKeys {
		for member := range p.meta[mk] {
			if _, ok := p.liveLocked(member); ok {
				delete(p.m, member)
				n++
			}
		}
		delete(p.meta, mk)
	}
	return n, nil
}

func (p *Provider) Exists(_ context.Context, key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.liveLocked(key)
	return ok, nil
}

func (p *Provider) TTL(_ context.Context, key string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.liveLocked(key)
	if !ok {
		return pr.TTLMissing, nil
	}
	if e.exp.IsZero() {
		return pr.TTLNone, nil
	}
	return int64(e.exp.Sub(p.clock()) / time.Second), nil
}

func (p *Provider) Close(context.Context) error {
	p.once.Do(func() {
		if p.stopCh != nil {
			close(p.stopCh)
			p.ticker.Stop()
			p.wg.Wait()
		}
	})
	return nil
}

// liveLocked returns the entry if present and unexpired, expiring it lazily
// otherwise. Caller holds p.mu.
func (p *Provider) liveLocked(key string) (entry, bool) {
	e, ok := p.m[key]
	if !ok {
		return entry{}, false
	}
	if !e.exp.IsZero() && p.clock().After(e.exp) {
		delete(p.m, key)
		return entry{}, false
	}
	return e, true
}

func (p *Provider) setLocked(key string, value []byte, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = p.clock().Add(ttl)
	}
	p.m[key] = entry{v: value, exp: exp}
}

func (p *Provider) sweep() {
	p.mu.Lock()
	now := p.clock()
	for k, e := range p.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(p.m, k)
		}
	}
	for mk, set := range p.meta {
		for member := range set {
			if _, ok := p.m[member]; !ok {
				delete(set, member)
			}
		}
		if len(set) == 0 {
			delete(p.meta, mk)
		}
	}
	p.mu.Unlock()
}
