// Package ristretto implements a cost-aware in-process Provider over
// dgraph-io/ristretto. It has no meta-key support, so engines on top of it
// fall back to direct (non-cascading) invalidation.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/depcache/provider"
)

type Provider struct {
	c *rc.Cache
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// Cost in Ristretto is provided by the caller (depcache passes cost per Set).
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	return p.c.SetWithTTL(key, value, cost, ttl), nil
}

func (p *Provider) Del(ctx context.Context, key string) (int64, error) {
	// Ristretto does not report whether the key existed; probe first so the
	// count stays meaningful for the common case.
	var n int64
	if _, ok := p.c.Get(key); ok {
		n = 1
	}
	p.c.Del(key)
	return n, nil
}

func (p *Provider) DelMany(ctx context.Context, keys []string) (int64, error) {
	var n int64
	for _, k := range keys {
		d, _ := p.Del(ctx, k)
		n += d
	}
	return n, nil
}

func (p *Provider) Exists(_ context.Context, key string) (bool, error) {
	_, ok := p.c.Get(key)
	return ok, nil
}

func (p *Provider) TTL(_ context.Context, key string) (int64, error) {
	d, ok := p.c.GetTTL(key)
	if !ok {
		return pr.TTLMissing, nil
	}
	if d == 0 {
		return pr.TTLNone, nil
	}
	return int64(d / time.Second), nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto metrics to the application (not part of the
// provider contract).
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
