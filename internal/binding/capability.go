package binding

import (
	"sync"

	"github.com/marcus/folio/internal/plugin"
)

// Lookup mirrors the availability of one plugin id.
type Lookup[T any] struct {
	scope   *Scope
	id      string
	resolve func(plugin.Plugin) (T, bool)

	mu       sync.Mutex
	provides plugin.Optional[T]
	status   plugin.Status
}

// UsePlugin tracks the plugin instance registered under id.
func UsePlugin[T any](s *Scope, id string) *Lookup[T] {
	l := pluginLookup[T](s, id)
	s.add(l)
	return l
}

// UseCapability tracks the capability of the plugin registered under id.
func UseCapability[T any](s *Scope, id string) *Lookup[T] {
	l := capabilityLookup[T](s, id)
	s.add(l)
	return l
}

func pluginLookup[T any](s *Scope, id string) *Lookup[T] {
	return &Lookup[T]{scope: s, id: id, resolve: func(p plugin.Plugin) (T, bool) {
		v, ok := p.(T)
		return v, ok
	}}
}

// capabilityLookup builds a lookup that is not attached to s; composite
// bindings render it themselves.
func capabilityLookup[T any](s *Scope, id string) *Lookup[T] {
	return &Lookup[T]{scope: s, id: id, resolve: func(p plugin.Plugin) (T, bool) {
		v, ok := p.Capability().(T)
		return v, ok
	}}
}

func (l *Lookup[T]) render() {
	next := plugin.None[T]()
	if p, ok := l.scope.acc.Get(l.id).Get(); ok {
		if v, ok := l.resolve(p); ok {
			next = plugin.Some(v)
		}
	}
	status := l.scope.acc.Status(l.id)

	l.mu.Lock()
	l.provides = next
	l.status = status
	l.mu.Unlock()
}

func (l *Lookup[T]) release() {
	l.mu.Lock()
	l.provides = plugin.None[T]()
	l.mu.Unlock()
}

// Provides returns the tracked value, absent until the plugin is ready.
func (l *Lookup[T]) Provides() plugin.Optional[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.provides
}

// Ready reports whether the value is available.
func (l *Lookup[T]) Ready() bool { return l.Provides().IsPresent() }

// IsLoading reports whether the plugin is registered but not ready yet.
func (l *Lookup[T]) IsLoading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status == plugin.StatusRegistered || l.status == plugin.StatusInitializing
}

// Status returns the last observed lifecycle status.
func (l *Lookup[T]) Status() plugin.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}
