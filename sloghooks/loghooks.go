// Package sloghooks logs depcache hook events through log/slog, with
// sampling on the chattier events.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/depcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery    uint64
	StaleServedEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	staleCtr    atomic.Uint64
}

var _ depcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("depcache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) StaleServed(entity string, age time.Duration) {
	if h.l == nil || !sample(h.opts.StaleServedEvery, &h.staleCtr) {
		return
	}
	h.l.Info("depcache.stale_served",
		"entity", entity,
		"age", age)
}

func (h *Hooks) LoaderTimeout(entity string, timeout time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Warn("depcache.loader_timeout",
		"entity", entity,
		"timeout", timeout)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("depcache.provider_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) WriteError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("depcache.write_error",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) InvalidateFallback(entity string) {
	if h.l == nil {
		return
	}
	h.l.Warn("depcache.invalidate_fallback",
		"entity", entity,
		"msg", "provider has no meta support; invalidation did not cascade")
}
