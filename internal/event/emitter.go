// Package event provides typed listener sets with ordered, fault-isolated
// delivery. It is the notification primitive behind every plugin's
// OnStateChange-style subscription.
package event

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Unsubscribe removes a listener. Calling it more than once is a no-op.
type Unsubscribe func()

// Listener receives one delivered value.
type Listener[T any] func(T)

type entry[T any] struct {
	id     uint64
	fn     Listener[T]
	active atomic.Bool
}

// Emitter is a set of listeners for values of type T.
//
// On never delivers anything by itself: a new listener only sees values
// flushed after it was added, so subscribing never replays. Values are delivered in
// FIFO order: a listener that emits while being notified (or another
// goroutine emitting concurrently) has its value queued behind the value
// currently being delivered, so every listener observes the same sequence.
type Emitter[T any] struct {
	name   string
	logger *slog.Logger

	mu       sync.Mutex
	nextID   uint64
	entries  []*entry[T]
	queue    []T
	draining bool
}

// Option configures an Emitter.
type Option func(*options)

type options struct {
	name   string
	logger *slog.Logger
}

// WithName labels the emitter in fault logs.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger used to report listener faults.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewEmitter creates an empty emitter.
func NewEmitter[T any](opts ...Option) *Emitter[T] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Emitter[T]{name: o.name, logger: o.logger}
}

// On registers a listener and returns its Unsubscribe.
func (e *Emitter[T]) On(fn Listener[T]) Unsubscribe {
	if fn == nil {
		return func() {}
	}

	e.mu.Lock()
	e.nextID++
	ent := &entry[T]{id: e.nextID, fn: fn}
	ent.active.Store(true)
	e.entries = append(e.entries, ent)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			ent.active.Store(false)
			e.remove(ent.id)
		})
	}
}

func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, ent := range e.entries {
		if ent.id == id {
			// Copy so a delivery holding the old slice is unaffected.
			next := make([]*entry[T], 0, len(e.entries)-1)
			next = append(next, e.entries[:i]...)
			next = append(next, e.entries[i+1:]...)
			e.entries = next
			return
		}
	}
}

// Emit queues v for delivery to every current listener and drains the queue
// unless another call is already draining it.
func (e *Emitter[T]) Emit(v T) {
	e.Queue(v)
	e.Flush()
}

// Queue appends v to the delivery queue without delivering it. Callers that
// must fix the order of values under their own lock queue under that lock
// and Flush after releasing it.
func (e *Emitter[T]) Queue(v T) {
	e.mu.Lock()
	e.queue = append(e.queue, v)
	e.mu.Unlock()
}

// Flush delivers queued values in FIFO order. If another call is already
// flushing, Flush returns at once and that call delivers the values.
func (e *Emitter[T]) Flush() {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		return
	}
	e.draining = true

	for len(e.queue) > 0 {
		next := e.queue[0]
		e.queue = e.queue[1:]
		listeners := e.entries
		e.mu.Unlock()

		for _, ent := range listeners {
			if !ent.active.Load() {
				continue
			}
			e.deliver(ent, next)
		}

		e.mu.Lock()
	}

	e.queue = nil
	e.draining = false
	e.mu.Unlock()
}

// deliver calls one listener, recovering a panic so the remaining
// listeners still receive the value.
func (e *Emitter[T]) deliver(ent *entry[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event: listener panicked",
				"emitter", e.name,
				"listener", ent.id,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	ent.fn(v)
}

// Len returns the number of registered listeners.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// Clear removes every listener. Outstanding Unsubscribe funcs stay safe to call.
func (e *Emitter[T]) Clear() {
	e.mu.Lock()
	for _, ent := range e.entries {
		ent.active.Store(false)
	}
	e.entries = nil
	e.mu.Unlock()
}
