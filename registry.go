package depcache

import (
	"sort"
	"sync"
)

// Registry indexes cache configs by entity name and maintains the dependency
// graph between entities. Registration is additive and happens at startup;
// afterwards the registry is read-only (Reset exists for test isolation).
//
// Edges come from Config.DependsOn: registering a config for E that depends
// on D adds E->D to the forward graph and D->E to the reverse graph. Multiple
// configs for one entity contribute the same edges into sets, so duplicates
// are harmless.
type Registry struct {
	mu      sync.RWMutex
	configs map[string][]Config
	forward map[string]map[string]struct{}
	reverse map[string]map[string]struct{}
	tags    map[string]TagFunc
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.init()
	return r
}

func (r *Registry) init() {
	r.configs = make(map[string][]Config)
	r.forward = make(map[string]map[string]struct{})
	r.reverse = make(map[string]map[string]struct{})
	r.tags = make(map[string]TagFunc)
}

// Register adds a config and folds its dependency edges into both graphs.
// Both graphs are maintained incrementally; they are never recomputed from
// scratch on query.
func (r *Registry) Register(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[cfg.Entity] = append(r.configs[cfg.Entity], cfg)
	if _, ok := r.forward[cfg.Entity]; !ok {
		r.forward[cfg.Entity] = make(map[string]struct{})
	}
	for dep := range cfg.DependsOn {
		r.forward[cfg.Entity][dep] = struct{}{}
		if _, ok := r.reverse[dep]; !ok {
			r.reverse[dep] = make(map[string]struct{})
		}
		r.reverse[dep][cfg.Entity] = struct{}{}
	}
}

// RegisterTags installs the invalidation-tag function for an entity. It is
// looked up by entity name at invalidation time, independent of any specific
// config.
func (r *Registry) RegisterTags(entity string, fn TagFunc) {
	r.mu.Lock()
	r.tags[entity] = fn
	r.mu.Unlock()
}

// TagsFor returns the entity's invalidation-tag function, or nil.
func (r *Registry) TagsFor(entity string) TagFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tags[entity]
}

// Configs returns all configs registered for an entity.
func (r *Registry) Configs(entity string) []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Config, len(r.configs[entity]))
	copy(out, r.configs[entity])
	return out
}

// Dependencies returns the entities this entity depends on, sorted.
func (r *Registry) Dependencies(entity string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedMembers(r.forward[entity])
}

// Dependents returns the entities that depend on this entity, sorted. This is
// the blast radius to consider when the entity changes; the actual cascade
// delete operates on meta-key associations recorded at write time, not on a
// live walk of this graph.
func (r *Registry) Dependents(entity string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedMembers(r.reverse[entity])
}

// ValidateNoCycles walks the forward graph depth-first and returns a
// *CycleError naming the full cycle path if any entity can reach itself.
// Call once after all configs for the process are registered; this is a
// startup invariant, not a per-request guard.
func (r *Registry) ValidateNoCycles() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roots := make([]string, 0, len(r.forward))
	for e := range r.forward {
		roots = append(roots, e)
	}
	sort.Strings(roots)

	visited := make(map[string]bool, len(r.forward))
	onStack := make(map[string]bool)
	var path []string

	var walk func(entity string) *CycleError
	walk = func(entity string) *CycleError {
		visited[entity] = true
		onStack[entity] = true
		path = append(path, entity)

		for _, dep := range sortedMembers(r.forward[entity]) {
			if onStack[dep] {
				// close the loop for the error message
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, path[start:]...), dep)
				return &CycleError{Path: cycle}
			}
			if visited[dep] {
				continue
			}
			if err := walk(dep); err != nil {
				return err
			}
		}

		onStack[entity] = false
		path = path[:len(path)-1]
		return nil
	}

	for _, e := range roots {
		if visited[e] {
			continue
		}
		if err := walk(e); err != nil {
			return err
		}
	}
	return nil
}

// Reset bulk-clears everything. Test isolation only.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.init()
	r.mu.Unlock()
}

func sortedMembers(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
