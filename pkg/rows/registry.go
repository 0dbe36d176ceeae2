package rows

import (
	"fmt"
	"sort"
	"strings"
)

// Registry holds named producers. Names are case-insensitive.
type Registry struct {
	producers map[string]Producer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		producers: map[string]Producer{},
	}
}

// Register adds a producer under name.
func (r *Registry) Register(name string, p Producer) error {
	key := normalizeName(name)
	if key == "" {
		return fmt.Errorf("producer name is required")
	}
	if p == nil {
		return fmt.Errorf("producer %q is nil", name)
	}
	if _, ok := r.producers[key]; ok {
		return fmt.Errorf("producer %q already registered", name)
	}
	r.producers[key] = p
	return nil
}

// Get returns the producer registered under name.
func (r *Registry) Get(name string) (Producer, bool) {
	p, ok := r.producers[normalizeName(name)]
	return p, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.producers))
	for name := range r.producers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered producers.
func (r *Registry) Len() int {
	return len(r.producers)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
