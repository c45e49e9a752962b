package binding

import (
	"sync"

	"github.com/marcus/folio/internal/event"
	"github.com/marcus/folio/internal/plugin"
	"github.com/marcus/folio/internal/plugins/interaction"
)

// InteractionManager mirrors the interaction manager's state.
type InteractionManager struct {
	scope  *Scope
	lookup *Lookup[interaction.Capability]
	effect Effect

	mu    sync.Mutex
	state interaction.State
}

// UseInteractionManager binds the interaction manager's state. Until the
// capability is available State returns interaction.InitialState().
func UseInteractionManager(s *Scope) *InteractionManager {
	b := &InteractionManager{
		scope:  s,
		lookup: capabilityLookup[interaction.Capability](s, interaction.PluginID),
		state:  interaction.InitialState(),
	}
	s.add(b)
	return b
}

func (b *InteractionManager) render() {
	b.lookup.render()
	capability, ok := b.lookup.Provides().Get()
	if !ok {
		b.effect.Release()
		b.set(interaction.InitialState())
		return
	}
	b.effect.Run(capability, func() func() {
		b.set(capability.State())
		return capability.OnStateChange(b.set)
	})
}

func (b *InteractionManager) set(st interaction.State) {
	b.mu.Lock()
	changed := b.state != st
	b.state = st
	b.mu.Unlock()
	if changed {
		b.scope.changed()
	}
}

func (b *InteractionManager) release() {
	b.effect.Release()
	b.lookup.release()
	b.mu.Lock()
	b.state = interaction.InitialState()
	b.mu.Unlock()
}

// Provides returns the capability, absent until it is ready.
func (b *InteractionManager) Provides() plugin.Optional[interaction.Capability] {
	return b.lookup.Provides()
}

// State returns the mirrored state.
func (b *InteractionManager) State() interaction.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Cursor sets and clears cursor claims. Both calls are silent no-ops while
// the interaction manager is unavailable.
type Cursor struct {
	lookup *Lookup[interaction.Capability]
}

// UseCursor binds cursor claims.
func UseCursor(s *Scope) *Cursor {
	c := &Cursor{lookup: capabilityLookup[interaction.Capability](s, interaction.PluginID)}
	s.add(c)
	return c
}

func (c *Cursor) render()  { c.lookup.render() }
func (c *Cursor) release() { c.lookup.release() }

// SetCursor claims the cursor for token.
func (c *Cursor) SetCursor(token, cursor string, priority int) {
	if capability, ok := c.lookup.Provides().Get(); ok {
		capability.SetCursor(token, cursor, priority)
	}
}

// RemoveCursor drops token's claim.
func (c *Cursor) RemoveCursor(token string) {
	if capability, ok := c.lookup.Provides().Get(); ok {
		capability.RemoveCursor(token)
	}
}

// PointerHandlersOptions selects where handlers are registered. A non-empty
// ModeID registers mode-scoped handlers; an empty one registers
// always-active handlers, page-scoped when PageIndex is set.
type PointerHandlersOptions struct {
	ModeID    string
	PageIndex *int
}

// pointerTarget is the registration path chosen for a call site.
type pointerTarget interface {
	register(c interaction.Capability, h interaction.PointerEventHandlers) event.Unsubscribe
}

type modeScoped struct {
	modeID    string
	pageIndex *int
}

func (t modeScoped) register(c interaction.Capability, h interaction.PointerEventHandlers) event.Unsubscribe {
	return c.RegisterHandlers(interaction.HandlerRegistration{
		ModeID:    t.modeID,
		Handlers:  h,
		PageIndex: t.pageIndex,
	})
}

type alwaysActive struct {
	scope interaction.Scope
}

func (t alwaysActive) register(c interaction.Capability, h interaction.PointerEventHandlers) event.Unsubscribe {
	return c.RegisterAlways(interaction.AlwaysRegistration{Scope: t.scope, Handlers: h})
}

func targetFor(opts PointerHandlersOptions) pointerTarget {
	var page *int
	if opts.PageIndex != nil {
		v := *opts.PageIndex
		page = &v
	}
	if opts.ModeID != "" {
		return modeScoped{modeID: opts.ModeID, pageIndex: page}
	}
	if page != nil {
		return alwaysActive{scope: interaction.PageScope(*page)}
	}
	return alwaysActive{scope: interaction.GlobalScope()}
}

// PointerHandlers keeps one set of handlers registered with the interaction
// manager while it is available.
type PointerHandlers struct {
	lookup   *Lookup[interaction.Capability]
	target   pointerTarget
	handlers interaction.PointerEventHandlers
	effect   Effect
}

// UsePointerHandlers registers handlers through the path opts selects. The
// registration follows the capability: it is made when the capability
// appears, moved when the reference changes and dropped on Close.
func UsePointerHandlers(s *Scope, opts PointerHandlersOptions, handlers interaction.PointerEventHandlers) *PointerHandlers {
	p := &PointerHandlers{
		lookup:   capabilityLookup[interaction.Capability](s, interaction.PluginID),
		target:   targetFor(opts),
		handlers: handlers,
	}
	s.add(p)
	return p
}

func (p *PointerHandlers) render() {
	p.lookup.render()
	capability, ok := p.lookup.Provides().Get()
	if !ok {
		p.effect.Release()
		return
	}
	p.effect.Run(capability, func() func() {
		return p.target.register(capability, p.handlers)
	})
}

func (p *PointerHandlers) release() {
	p.effect.Release()
	p.lookup.release()
}

// Registered reports whether the handlers are currently registered.
func (p *PointerHandlers) Registered() bool {
	p.effect.mu.Lock()
	defer p.effect.mu.Unlock()
	return p.effect.active
}

// IsPageExclusive tracks whether the active mode is an exclusive page-scoped
// mode. It is false while the interaction manager is unavailable.
type IsPageExclusive struct {
	scope  *Scope
	lookup *Lookup[interaction.Capability]
	effect Effect

	mu    sync.Mutex
	value bool
}

// UseIsPageExclusive binds the page exclusivity flag.
func UseIsPageExclusive(s *Scope) *IsPageExclusive {
	b := &IsPageExclusive{
		scope:  s,
		lookup: capabilityLookup[interaction.Capability](s, interaction.PluginID),
	}
	s.add(b)
	return b
}

func (b *IsPageExclusive) render() {
	b.lookup.render()
	capability, ok := b.lookup.Provides().Get()
	if !ok {
		b.effect.Release()
		b.set(false)
		return
	}
	b.effect.Run(capability, func() func() {
		b.set(pageExclusive(capability))
		return capability.OnModeChange(func(interaction.ModeChange) {
			b.set(pageExclusive(capability))
		})
	})
}

func pageExclusive(c interaction.Capability) bool {
	m, ok := c.ActiveInteractionMode()
	return ok && m.Scope == interaction.ScopePage && m.Exclusive
}

func (b *IsPageExclusive) set(v bool) {
	b.mu.Lock()
	changed := b.value != v
	b.value = v
	b.mu.Unlock()
	if changed {
		b.scope.changed()
	}
}

func (b *IsPageExclusive) release() {
	b.effect.Release()
	b.lookup.release()
	b.mu.Lock()
	b.value = false
	b.mu.Unlock()
}

// Value returns the current flag.
func (b *IsPageExclusive) Value() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}
