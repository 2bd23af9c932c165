// Package registry holds the capabilities requests can be routed to.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"worldbuilder-agent/internal/domain"
)

// Registry is the ordered set of registered capabilities. It is built once at
// startup and only read afterwards.
type Registry struct {
	mu          sync.RWMutex
	order       []string
	byName      map[string]domain.Capability
	defaultName string
}

// Option configures a Registry.
type Option func(*Registry)

// WithDefault designates the capability the fallback classifier returns when
// every keyword score is equal.
func WithDefault(name string) Option {
	return func(r *Registry) {
		r.defaultName = strings.TrimSpace(name)
	}
}

// New builds a registry from caps in registration order.
func New(caps []domain.Capability, opts ...Option) (*Registry, error) {
	r := &Registry{byName: make(map[string]domain.Capability, len(caps))}
	for _, opt := range opts {
		opt(r)
	}
	for _, c := range caps {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds c. Incomplete capabilities and duplicate names are rejected.
func (r *Registry) Register(c domain.Capability) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("registry: invalid capability %q: %w", c.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[c.Name]; ok {
		return fmt.Errorf("registry: capability %q already registered", c.Name)
	}
	r.byName[c.Name] = clone(c)
	r.order = append(r.order, c.Name)
	return nil
}

// Get returns the capability registered under name.
func (r *Registry) Get(name string) (domain.Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	if !ok {
		return domain.Capability{}, fmt.Errorf("registry: %w: %q", domain.ErrUnknownCapability, name)
	}
	return clone(c), nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// List returns the capabilities in registration order.
func (r *Registry) List() []domain.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Capability, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, clone(r.byName[name]))
	}
	return out
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Describe returns the declared description of name.
func (r *Registry) Describe(name string) (string, error) {
	c, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return c.Description, nil
}

// Default returns the designated default capability, or the first registered
// one when no registered default was designated. ok is false for an empty
// registry.
func (r *Registry) Default() (domain.Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byName[r.defaultName]; ok {
		return clone(c), true
	}
	if len(r.order) == 0 {
		return domain.Capability{}, false
	}
	return clone(r.byName[r.order[0]]), true
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func clone(c domain.Capability) domain.Capability {
	c.Keywords = append([]string(nil), c.Keywords...)
	return c
}
