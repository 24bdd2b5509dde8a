package index

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownFamily is returned for a family name with no registered factory.
var ErrUnknownFamily = errors.New("unknown index family")

// UnknownFamilyError names the family that was not found.
type UnknownFamilyError struct {
	Family string
	Known  []string
}

func (e *UnknownFamilyError) Error() string {
	return fmt.Sprintf("%s: %q (registered: %s)", ErrUnknownFamily, e.Family, strings.Join(e.Known, ", "))
}

func (e *UnknownFamilyError) Unwrap() error { return ErrUnknownFamily }

// Factory constructs an unbuilt instance bound to env.
type Factory func(env Env) (Index, error)

// Registry maps family names to factories. Names are case-sensitive.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Lookup returns the factory for name.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownFamilyError{Family: name, Known: r.Names()}
	}
	return f, nil
}

// New constructs an instance of family name.
func (r *Registry) New(name string, env Env) (Index, error) {
	f, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	env.Family = name
	return f(env)
}

// Names returns the registered family names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
