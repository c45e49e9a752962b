// Package store holds plugin state behind a pure reducer and broadcasts
// every change to subscribers.
package store

import (
	"log/slog"
	"reflect"
	"sync"

	"github.com/marcus/folio/internal/event"
)

// Action is a logical update applied by a Reducer.
type Action struct {
	Type    string
	Payload any
}

// Reducer returns the state that results from applying action to state.
// Reducers must be pure and must not mutate state in place.
type Reducer[S any] func(state S, action Action) S

// Identity is a Reducer that never changes state.
func Identity[S any](state S, _ Action) S { return state }

// Store owns one plugin's state.
//
// Update policy: a dispatch whose result equals the previous state is not
// broadcast. Every dispatch that changes state is broadcast on its own;
// changes are never merged.
type Store[S any] struct {
	mu      sync.Mutex
	state   S
	reducer Reducer[S]
	equal   func(a, b S) bool
	changes *event.Emitter[S]
	actions *event.Emitter[Action]
}

// Option configures a Store.
type Option[S any] func(*Store[S])

// WithEqual overrides the equality check that decides whether a dispatch
// changed state. The default is reflect.DeepEqual.
func WithEqual[S any](eq func(a, b S) bool) Option[S] {
	return func(s *Store[S]) { s.equal = eq }
}

// WithLogger sets the logger that reports listener faults.
func WithLogger[S any](name string, l *slog.Logger) Option[S] {
	return func(s *Store[S]) {
		s.changes = event.NewEmitter[S](event.WithName(name+".state"), event.WithLogger(l))
		s.actions = event.NewEmitter[Action](event.WithName(name+".action"), event.WithLogger(l))
	}
}

// New creates a store seeded with initial.
func New[S any](initial S, reducer Reducer[S], opts ...Option[S]) *Store[S] {
	if reducer == nil {
		reducer = Identity[S]
	}
	s := &Store[S]{
		state:   initial,
		reducer: reducer,
		equal:   func(a, b S) bool { return reflect.DeepEqual(a, b) },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.changes == nil {
		s.changes = event.NewEmitter[S]()
	}
	if s.actions == nil {
		s.actions = event.NewEmitter[Action]()
	}
	return s
}

// State returns the current state.
func (s *Store[S]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies action and returns the resulting state. Subscribers are
// notified after the store lock is released, so a listener may dispatch.
func (s *Store[S]) Dispatch(action Action) S {
	s.mu.Lock()
	prev := s.state
	next := s.reducer(prev, action)
	changed := !s.equal(prev, next)
	s.state = next
	if changed {
		// Queued under the lock so delivery order matches transition order.
		s.changes.Queue(next)
	}
	s.actions.Queue(action)
	s.mu.Unlock()

	s.changes.Flush()
	s.actions.Flush()
	return next
}

// OnStateChange registers a listener for future state changes. The current
// state is not delivered; read State() first to seed a snapshot.
func (s *Store[S]) OnStateChange(fn func(S)) event.Unsubscribe {
	return s.changes.On(fn)
}

// OnAction registers a listener for every dispatched action, changed or not.
func (s *Store[S]) OnAction(fn func(Action)) event.Unsubscribe {
	return s.actions.On(fn)
}
