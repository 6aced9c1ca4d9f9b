package papersources

import (
	"errors"
	"fmt"
	"strings"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

// Registry holds the configured adapters keyed by source name. It is built
// once at startup and is read-only afterwards, so it is safe for concurrent use.
// Iteration order is registration order; it also decides which duplicate wins
// during a merge.
type Registry struct {
	adapters []Adapter
	byName   map[domain.SourceType]Adapter
}

// NewRegistry creates a registry from the given adapters. Nil adapters and
// duplicate source names are rejected.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{
		adapters: make([]Adapter, 0, len(adapters)),
		byName:   make(map[domain.SourceType]Adapter, len(adapters)),
	}

	for i, adapter := range adapters {
		if adapter == nil {
			return nil, fmt.Errorf("adapter %d is nil", i)
		}
		name := adapter.SourceName()
		if name == "" {
			return nil, fmt.Errorf("adapter %d has an empty source name", i)
		}
		if string(name) == domain.SelectorAll {
			return nil, fmt.Errorf("source name %q is reserved", domain.SelectorAll)
		}
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("duplicate source %q", name)
		}
		r.adapters = append(r.adapters, adapter)
		r.byName[name] = adapter
	}

	return r, nil
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	return len(r.adapters)
}

// Names returns the registered source names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		names = append(names, string(a.SourceName()))
	}
	return names
}

// Selectors returns every accepted source selector: the registered names
// followed by domain.SelectorAll.
func (r *Registry) Selectors() []string {
	return append(r.Names(), domain.SelectorAll)
}

// Adapters returns the registered adapters in registration order.
// The returned slice is a copy.
func (r *Registry) Adapters() []Adapter {
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// Lookup returns the adapter registered under name. Matching ignores case and
// surrounding whitespace. An unknown name yields *domain.UnknownSourceError.
func (r *Registry) Lookup(name string) (Adapter, error) {
	key := domain.SourceType(strings.ToLower(strings.TrimSpace(name)))
	if adapter, ok := r.byName[key]; ok {
		return adapter, nil
	}
	return nil, domain.NewUnknownSourceError(name, r.Selectors())
}

// Resolve turns a selector into the adapters it addresses: every adapter for
// domain.SelectorAll, otherwise the single named one.
func (r *Registry) Resolve(selector string) ([]Adapter, error) {
	if IsAll(selector) {
		if len(r.adapters) == 0 {
			return nil, errors.New("no paper sources are registered")
		}
		return r.Adapters(), nil
	}

	adapter, err := r.Lookup(selector)
	if err != nil {
		return nil, err
	}
	return []Adapter{adapter}, nil
}

// IsAll reports whether selector addresses every registered source.
// An empty selector is treated as domain.SelectorAll.
func IsAll(selector string) bool {
	s := strings.ToLower(strings.TrimSpace(selector))
	return s == "" || s == domain.SelectorAll
}
