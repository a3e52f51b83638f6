package quiver

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Lifetime controls how often a registered factory runs.
type Lifetime int

const (
	// Singleton builds the value once on first resolve and caches it.
	Singleton Lifetime = iota

	// Transient runs the factory on every resolve.
	Transient
)

// ErrNotRegistered is returned by Resolve when no entry exists for the
// requested type.
var ErrNotRegistered = errors.New("quiver: type not registered")

// Registry is an explicit, test-constructible registration table. The
// generated RegisterHandlers function populates one at startup; nothing in
// quiver touches ambient global state. Registrations map a type (usually a
// contract like Handler[Req, Res], or a concrete handler type) to a
// factory with a lifetime.
//
// Registering the same type twice replaces the earlier entry, which is how
// tests substitute fakes after the generated wiring has run.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[reflect.Type]*entry
	markers map[reflect.Type][]Marker
}

type entry struct {
	lifetime Lifetime
	factory  func(*Registry) any

	once  sync.Once
	value any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[reflect.Type]*entry),
		markers: make(map[reflect.Type][]Marker),
	}
}

// RegisterOption configures a registration.
type RegisterOption func(*entry)

// WithLifetime overrides the default Singleton lifetime.
func WithLifetime(lt Lifetime) RegisterOption {
	return func(e *entry) {
		e.lifetime = lt
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Register binds a factory for T. The default lifetime is Singleton.
func Register[T any](r *Registry, factory func(*Registry) T, opts ...RegisterOption) {
	e := &entry{
		lifetime: Singleton,
		factory:  func(reg *Registry) any { return factory(reg) },
	}
	for _, opt := range opts {
		opt(e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[typeOf[T]()] = e
}

// RegisterValue binds an already-constructed value for T.
func RegisterValue[T any](r *Registry, v T) {
	Register(r, func(*Registry) T { return v })
}

// Resolve returns the value registered for T, building it if necessary.
func Resolve[T any](r *Registry) (T, error) {
	var zero T

	r.mu.RLock()
	e, ok := r.entries[typeOf[T]()]
	r.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("%w: %v", ErrNotRegistered, typeOf[T]())
	}

	// The factory runs without the registry lock held so it can resolve
	// its own dependencies.
	var v any
	switch e.lifetime {
	case Transient:
		v = e.factory(r)
	default:
		e.once.Do(func() {
			e.value = e.factory(r)
		})
		v = e.value
	}

	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("quiver: registered factory for %v returned %T", typeOf[T](), v)
	}
	return t, nil
}

// MustResolve is Resolve, panicking on failure. Generated factories use it
// so a wiring mistake surfaces at registration time rather than being
// swallowed.
func MustResolve[T any](r *Registry) T {
	v, err := Resolve[T](r)
	if err != nil {
		panic(err)
	}
	return v
}

// Annotate records the markers applied to a request type. The generated
// registration function writes these so callers can inspect which pipeline
// a request runs through; the runtime never branches on them.
func Annotate[Req any](r *Registry, markers ...Marker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers[typeOf[Req]()] = append([]Marker(nil), markers...)
}

// Markers returns the markers recorded for a request type, in declared
// pipeline order, or nil if none were recorded.
func Markers[Req any](r *Registry) []Marker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms := r.markers[typeOf[Req]()]
	if ms == nil {
		return nil
	}
	return append([]Marker(nil), ms...)
}
