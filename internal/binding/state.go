package binding

import (
	"reflect"
	"sync"

	"github.com/marcus/folio/internal/event"
	"github.com/marcus/folio/internal/plugin"
)

// StateSource is any capability that exposes reducer state.
type StateSource[S any] interface {
	State() S
	OnStateChange(fn func(S)) event.Unsubscribe
}

// State mirrors the state of a capability that implements StateSource.
type State[S any] struct {
	scope   *Scope
	lookup  *Lookup[StateSource[S]]
	effect  Effect
	initial S

	mu    sync.Mutex
	state S
}

// UseState binds the state of plugin id, reporting initial until the
// capability is available.
func UseState[S any](s *Scope, id string, initial S) *State[S] {
	b := &State[S]{
		scope:   s,
		lookup:  capabilityLookup[StateSource[S]](s, id),
		initial: initial,
		state:   initial,
	}
	s.add(b)
	return b
}

func (b *State[S]) render() {
	b.lookup.render()
	src, ok := b.lookup.Provides().Get()
	if !ok {
		b.effect.Release()
		b.set(b.initial)
		return
	}
	b.effect.Run(src, func() func() {
		b.set(src.State())
		return src.OnStateChange(b.set)
	})
}

func (b *State[S]) set(st S) {
	b.mu.Lock()
	changed := !reflect.DeepEqual(b.state, st)
	b.state = st
	b.mu.Unlock()
	if changed {
		b.scope.changed()
	}
}

func (b *State[S]) release() {
	b.effect.Release()
	b.lookup.release()
	b.mu.Lock()
	b.state = b.initial
	b.mu.Unlock()
}

// Provides reports whether the capability is available.
func (b *State[S]) Provides() plugin.Optional[StateSource[S]] {
	return b.lookup.Provides()
}

// Get returns the mirrored state.
func (b *State[S]) Get() S {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
