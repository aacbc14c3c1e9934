// Package redis implements a Redis-backed MetaProvider. Meta-key member sets
// are Redis sets; SetWithMeta pipelines the value write and the SADD/EXPIRE
// per meta key into one round-trip, and DelByMeta resolves members with
// SMEMBERS before deleting them.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/depcache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

const defaultMetaTTL = 24 * time.Hour

type Redis struct {
	rdb         goredis.UniversalClient
	metaTTL     time.Duration
	closeClient bool
}

var _ pr.MetaProvider = (*Redis)(nil)

type Config struct {
	Client goredis.UniversalClient

	// MetaTTL bounds the lifetime of meta-key member sets so orphaned
	// associations don't accumulate forever. It should comfortably exceed the
	// longest entry TTL+grace written through this provider. 0 => 24h.
	MetaTTL time.Duration

	// CloseClient: set true only if this provider exclusively owns the client.
	CloseClient bool
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	metaTTL := cfg.MetaTTL
	if metaTTL <= 0 {
		metaTTL = defaultMetaTTL
	}
	return &Redis{rdb: cfg.Client, metaTTL: metaTTL, closeClient: cfg.CloseClient}, nil
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 0 // non-positive TTL means "no expiry" per provider contract
	}
	if err := p.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) SetWithMeta(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration, metaKeys []string) (bool, error) {
	if ttl <= 0 {
		ttl = 0
	}
	_, err := p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, key, value, ttl)
		for _, mk := range metaKeys {
			pipe.SAdd(ctx, mk, key)
			pipe.Expire(ctx, mk, p.metaTTL)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) Del(ctx context.Context, key string) (int64, error) {
	return p.rdb.Del(ctx, key).Result()
}

func (p *Redis) DelMany(ctx context.Context, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return p.rdb.Del(ctx, keys...).Result()
}

func (p *Redis) DelByMeta(ctx context.Context, metaKey string) (int64, error) {
	return p.DelByMetaMany(ctx, []string{metaKey})
}

func (p *Redis) DelByMetaMany(ctx context.Context, metaKeys []string) (int64, error) {
	if len(metaKeys) == 0 {
		return 0, nil
	}
	members, err := p.rdb.SUnion(ctx, metaKeys...).Result()
	if err != nil {
		return 0, err
	}
	var n int64
	if len(members) > 0 {
		n, err = p.rdb.Del(ctx, members...).Result()
		if err != nil {
			return 0, err
		}
	}
	if err := p.rdb.Del(ctx, metaKeys...).Err(); err != nil {
		return n, err
	}
	return n, nil
}

func (p *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

func (p *Redis) TTL(ctx context.Context, key string) (int64, error) {
	d, err := p.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// go-redis surfaces the Redis -1/-2 sentinels as negative durations.
	switch {
	case d == -2 || d == -2*time.Second:
		return pr.TTLMissing, nil
	case d == -1 || d == -1*time.Second:
		return pr.TTLNone, nil
	}
	return int64(d / time.Second), nil
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
