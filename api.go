package depcache

import (
	"fmt"
	"time"

	c "github.com/unkn0wn-root/depcache/codec"
	"github.com/unkn0wn-root/depcache/flight"
	pr "github.com/unkn0wn-root/depcache/provider"
)

// EngineOptions tune the shared orchestration core.
// Only Provider is required; others have sensible defaults.
type EngineOptions struct {
	// Required
	Provider pr.Provider

	// Registry holds configs and the dependency graph. Nil constructs a fresh
	// one; pass an explicit instance to share it or to pre-register tag
	// functions. Define once at startup, read many times.
	Registry *Registry

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used

	// DefaultGrace applies when a Config leaves Grace at zero. 0 => no grace.
	DefaultGrace time.Duration
	// DefaultTimeout bounds loaders when a Config leaves Timeout at zero.
	// 0 => 1s.
	DefaultTimeout time.Duration

	ComputeSetCost SetCostFunc // default 1
	Disabled       bool        // default false (enabled)
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("depcache: provider is required")
	}

	e := &Engine{
		provider: opts.Provider,
		enabled:  !opts.Disabled,
	}

	// defaults
	if opts.Registry != nil {
		e.registry = opts.Registry
	} else {
		e.registry = NewRegistry()
	}
	e.log = coalesce[Logger](opts.Logger, NopLogger{})
	e.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	e.defaultGrace = opts.DefaultGrace
	e.defaultTimeout = coalesce(opts.DefaultTimeout, DefaultTimeout)

	if opts.ComputeSetCost != nil {
		e.computeSetCost = opts.ComputeSetCost
	} else {
		e.computeSetCost = func(_ string, _ []byte, _ int) int64 { return 1 }
	}

	return e, nil
}

// Options binds one Config to an engine and a codec.
type Options[V any] struct {
	// Required
	Config Config
	Engine *Engine
	Codec  c.Codec[V]

	// ErrorTTL is the flight-level error cache window for this cache's keys:
	// after a loader failure settles, callers arriving within the window get
	// the cached error back without re-running the loader. Zero applies
	// DefaultErrorTTL. Pass a negative value to disable error caching, e.g.
	// for caches whose grace window already absorbs loader failures.
	ErrorTTL time.Duration
}

// New validates and registers the config and returns the typed cache surface.
// Call Engine.Validate once after the last New to enforce graph acyclicity.
func New[V any](opts Options[V]) (*Cache[V], error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("depcache: engine is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("depcache: codec is required")
	}
	if err := opts.Config.validate(); err != nil {
		return nil, err
	}

	opts.Engine.registry.Register(opts.Config)

	errTTL := coalesce(opts.ErrorTTL, DefaultErrorTTL)
	if errTTL < 0 {
		errTTL = 0 // flight treats 0 as disabled
	}

	return &Cache[V]{
		cfg:    opts.Config,
		engine: opts.Engine,
		codec:  opts.Codec,
		flight: flight.New[hit[V]](errTTL),
	}, nil
}
