// Package bigcache implements an in-process Provider over allegro/bigcache.
// BigCache has a single global life window rather than per-entry TTLs, and no
// meta-key support; engines on top of it fall back to direct invalidation.
package bigcache

import (
	"context"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/unkn0wn-root/depcache/provider"
)

type Provider struct {
	c          *bc.BigCache
	lifeWindow time.Duration
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Provider, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, lifeWindow: cfg.LifeWindow}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if err == bc.ErrEntryNotFound {
		return nil, false, nil
	}
	return b, err == nil, err
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	// BigCache does not support per-entry TTL; uses global LifeWindow.
	return true, p.c.Set(key, value)
}

func (p *Provider) Del(_ context.Context, key string) (int64, error) {
	err := p.c.Delete(key)
	if err == bc.ErrEntryNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func (p *Provider) DelMany(ctx context.Context, keys []string) (int64, error) {
	var n int64
	for _, k := range keys {
		d, err := p.Del(ctx, k)
		if err != nil {
			return n, err
		}
		n += d
	}
	return n, nil
}

func (p *Provider) Exists(_ context.Context, key string) (bool, error) {
	_, err := p.c.Get(key)
	if err == bc.ErrEntryNotFound {
		return false, nil
	}
	return err == nil, err
}

func (p *Provider) TTL(_ context.Context, key string) (int64, error) {
	_, resp, err := p.c.GetWithInfo(key)
	if err == bc.ErrEntryNotFound || resp.EntryStatus == bc.Expired {
		return pr.TTLMissing, nil
	}
	if err != nil {
		return 0, err
	}
	// Per-entry remaining lifetime is not tracked; report the global window.
	return int64(p.lifeWindow / time.Second), nil
}

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}
