// Package provider implements bus.DependencyProvider as an explicit registry
// populated at startup. Handlers and subscribers are constructed by the host and
// registered here; the mediator and emitter only look them up.
package provider

import (
	"fmt"
	"reflect"
	"sync"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	berr "github.com/next-trace/scg-saas-dispatch/contract/errors"
)

// Registry is a concurrency-safe name → instance registry.
// Registration order is kept so SubTypesOf is deterministic.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]any
	order     []string
}

var _ cbus.DependencyProvider = (*Registry)(nil)

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{instances: make(map[string]any)}
}

// Register stores instance under its own type name.
func (r *Registry) Register(instance any) error {
	return r.RegisterAs(cbus.NameOf(instance), instance)
}

// RegisterAs stores instance under name. Duplicate names are rejected.
func (r *Registry) RegisterAs(name string, instance any) error {
	if instance == nil {
		return fmt.Errorf("register %s: nil instance", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[name]; exists {
		return fmt.Errorf("register %s: %w", name, berr.ErrHandlerExists)
	}

	r.instances[name] = instance
	r.order = append(r.order, name)

	return nil
}

// SingleInstanceOf implements bus.DependencyProvider.
func (r *Registry) SingleInstanceOf(name string) (any, error) {
	r.mu.RLock()
	inst, ok := r.instances[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("resolve %s: %w", name, berr.ErrHandlerNotFound)
	}

	return inst, nil
}

// SubTypesOf implements bus.DependencyProvider. For an interface base it returns
// the registered types implementing it; otherwise the types assignable to it.
func (r *Registry) SubTypesOf(base reflect.Type) []reflect.Type {
	if base == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []reflect.Type

	for _, name := range r.order {
		t := reflect.TypeOf(r.instances[name])

		var ok bool
		if base.Kind() == reflect.Interface {
			ok = t.Implements(base)
		} else {
			ok = t.AssignableTo(base)
		}

		if ok {
			out = append(out, t)
		}
	}

	return out
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}
