// Package binding mirrors plugin capabilities into UI-local state.
//
// A Scope plays the role of one UI component: bindings created through the
// Use* functions are re-evaluated by Render and released by Close. Each
// binding subscribes when its capability becomes available, resubscribes
// when the capability reference changes, and unsubscribes on Close.
package binding

import (
	"reflect"
	"sync"

	"github.com/marcus/folio/internal/event"
	"github.com/marcus/folio/internal/plugin"
)

// Accessor looks up plugins by id. *plugin.Registry implements it.
type Accessor interface {
	Get(id string) plugin.Optional[plugin.Plugin]
	Status(id string) plugin.Status
	OnChange(fn func(id string)) event.Unsubscribe
}

// binding is re-evaluated on every render and released on close.
type binding interface {
	render()
	release()
}

// Scope owns the bindings of one UI component.
type Scope struct {
	acc Accessor

	mu       sync.Mutex
	bindings []binding
	closed   bool

	unwatch    event.Unsubscribe
	invalidate *event.Emitter[struct{}]
}

// NewScope creates a scope that re-renders whenever the accessor reports a
// plugin status change.
func NewScope(acc Accessor) *Scope {
	s := &Scope{
		acc:        acc,
		invalidate: event.NewEmitter[struct{}](event.WithName("binding.scope")),
	}
	s.unwatch = acc.OnChange(func(string) { s.Render() })
	return s
}

func (s *Scope) add(b binding) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.bindings = append(s.bindings, b)
	s.mu.Unlock()
	b.render()
}

// Render re-evaluates every binding. Rendering with unchanged capabilities
// acquires nothing new.
func (s *Scope) Render() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	bs := make([]binding, len(s.bindings))
	copy(bs, s.bindings)
	s.mu.Unlock()

	for _, b := range bs {
		b.render()
	}
}

// OnInvalidate is notified whenever mirrored state changes and the host
// should redraw.
func (s *Scope) OnInvalidate(fn func()) event.Unsubscribe {
	return s.invalidate.On(func(struct{}) { fn() })
}

func (s *Scope) changed() { s.invalidate.Emit(struct{}{}) }

// Close releases every binding. It is safe to call more than once.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	bs := s.bindings
	s.bindings = nil
	s.mu.Unlock()

	s.unwatch()
	for i := len(bs) - 1; i >= 0; i-- {
		bs[i].release()
	}
	s.invalidate.Clear()
}

// Effect runs acquire whenever its key changes and releases the previous
// acquisition first, like a dependency-keyed lifecycle effect.
type Effect struct {
	mu      sync.Mutex
	key     any
	active  bool
	cleanup func()
}

// Run acquires for key unless key equals the key of the live acquisition.
// acquire may return nil when there is nothing to release.
func (e *Effect) Run(key any, acquire func() func()) {
	e.mu.Lock()
	if e.active && sameKey(e.key, key) {
		e.mu.Unlock()
		return
	}
	prev := e.cleanup
	e.key, e.active, e.cleanup = key, true, nil
	e.mu.Unlock()

	if prev != nil {
		prev()
	}
	cleanup := acquire()

	e.mu.Lock()
	e.cleanup = cleanup
	e.mu.Unlock()
}

// Release runs the pending cleanup, if any.
func (e *Effect) Release() {
	e.mu.Lock()
	prev := e.cleanup
	e.key, e.active, e.cleanup = nil, false, nil
	e.mu.Unlock()
	if prev != nil {
		prev()
	}
}

func sameKey(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
