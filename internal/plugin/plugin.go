// Package plugin hosts plugin packages and exposes their capabilities.
package plugin

import (
	"github.com/marcus/folio/internal/event"
	"github.com/marcus/folio/internal/store"
)

// Plugin defines the interface for all folio plugins.
type Plugin interface {
	ID() string
	Init(ctx *Context) error
	// Capability returns the narrowed view consumers use. It must return the
	// same value for the lifetime of the instance.
	Capability() any
	Destroy()
}

// DiagnosticProvider is implemented by plugins that expose diagnostics.
type DiagnosticProvider interface {
	Diagnostics() []Diagnostic
}

// Diagnostic represents a health/status check result.
type Diagnostic struct {
	ID     string
	Status string
	Detail string
}

// StateBinder is implemented by plugins that keep their state in a
// registry-created store. Embedding Base satisfies it.
type StateBinder[S any] interface {
	BindStore(s *store.Store[S])
}

// Base gives a plugin a reducer-backed state store.
type Base[S any] struct {
	store *store.Store[S]
}

// BindStore attaches the store the registry built from the package's
// reducer and initial state.
func (b *Base[S]) BindStore(s *store.Store[S]) { b.store = s }

// Store returns the bound store.
func (b *Base[S]) Store() *store.Store[S] { return b.store }

// State returns the current state.
func (b *Base[S]) State() S { return b.store.State() }

// Dispatch applies an action to the plugin state.
func (b *Base[S]) Dispatch(typ string, payload any) S {
	return b.store.Dispatch(store.Action{Type: typ, Payload: payload})
}

// OnStateChange subscribes to future state changes.
func (b *Base[S]) OnStateChange(fn func(S)) event.Unsubscribe {
	return b.store.OnStateChange(fn)
}
