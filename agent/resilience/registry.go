package resilience

import (
	"slices"
	"sort"
)

// Registry holds one breaker per named dependency. It is built once at
// startup and is read-only afterwards.
type Registry struct {
	breakers map[string]*Breaker
	names    []string
}

func NewRegistry(configs map[string]BreakerConfig, opts ...BreakerOption) *Registry {
	r := &Registry{
		breakers: make(map[string]*Breaker, len(configs)),
		names:    make([]string, 0, len(configs)),
	}
	for name, cfg := range configs {
		r.breakers[name] = NewBreaker(name, cfg, opts...)
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r
}

func (r *Registry) Get(name string) (*Breaker, bool) {
	if r == nil {
		return nil, false
	}
	b, ok := r.breakers[name]
	return b, ok
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.names)
}

func (r *Registry) AllStats() map[string]Stats {
	if r == nil {
		return nil
	}
	out := make(map[string]Stats, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.Stats()
	}
	return out
}
