// Package interaction implements the interaction manager plugin: named
// pointer modes, prioritized cursor claims and routing of pointer events to
// mode-scoped or always-active handlers.
package interaction

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/marcus/folio/internal/engine"
	"github.com/marcus/folio/internal/event"
	"github.com/marcus/folio/internal/plugin"
	"github.com/marcus/folio/internal/store"
)

const (
	pluginID   = "interaction-manager"
	pluginName = "Interaction Manager"
)

// PluginID is the registry id of the interaction manager.
const PluginID = pluginID

// Config configures the interaction manager.
type Config struct {
	DefaultMode string
	Modes       []InteractionMode
}

type cursorClaim struct {
	cursor   string
	priority int
	seq      uint64
}

type modeHandler struct {
	id        uint64
	handlers  PointerEventHandlers
	pageIndex *int
}

type alwaysHandler struct {
	id       uint64
	scope    Scope
	handlers PointerEventHandlers
}

// Plugin implements Capability.
type Plugin struct {
	plugin.Base[State]

	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	lastMode  string
	modes     map[string]InteractionMode
	modeOrder []string
	claims    map[string]cursorClaim
	seq       uint64
	byMode    map[string][]*modeHandler
	always    []*alwaysHandler

	modeChanges    *event.Emitter[ModeChange]
	cursorChanges  *event.Emitter[string]
	handlerChanges *event.Emitter[HandlerChange]
}

var _ Capability = (*Plugin)(nil)

// New creates an interaction manager. It is usable once the registry has
// bound its store.
func New(cfg Config) *Plugin {
	p := &Plugin{
		cfg:    cfg,
		logger: slog.Default(),
		modes:  make(map[string]InteractionMode),
		claims: make(map[string]cursorClaim),
		byMode: make(map[string][]*modeHandler),
	}
	p.modeChanges = event.NewEmitter[ModeChange](event.WithName(pluginID + ".mode"))
	p.cursorChanges = event.NewEmitter[string](event.WithName(pluginID + ".cursor"))
	p.handlerChanges = event.NewEmitter[HandlerChange](event.WithName(pluginID + ".handlers"))
	p.registerModeLocked(InteractionMode{ID: DefaultModeID, Scope: ScopeGlobal, Cursor: DefaultCursor})
	return p
}

// ID returns the plugin identifier.
func (p *Plugin) ID() string { return pluginID }

// BindStore attaches the plugin store. Mode changes are derived from its
// state notifications so listeners see them in transition order, even when
// a listener activates another mode.
func (p *Plugin) BindStore(s *store.Store[State]) {
	p.Base.BindStore(s)
	p.mu.Lock()
	p.lastMode = s.State().ActiveMode
	p.mu.Unlock()
	s.OnStateChange(p.onState)
}

func (p *Plugin) onState(st State) {
	p.mu.Lock()
	prev := p.lastMode
	p.lastMode = st.ActiveMode
	p.mu.Unlock()
	if prev == st.ActiveMode {
		return
	}
	p.logger.Debug("interaction mode changed", "mode", st.ActiveMode, "previous", prev)
	p.modeChanges.Emit(ModeChange{Mode: st.ActiveMode, Previous: prev})
}

// Init registers configured modes and applies the configured default mode.
func (p *Plugin) Init(ctx *plugin.Context) error {
	if ctx != nil && ctx.Logger != nil {
		p.logger = ctx.Logger
	}
	for _, m := range p.cfg.Modes {
		if err := p.RegisterMode(m); err != nil {
			return err
		}
	}
	if p.cfg.DefaultMode != "" && p.cfg.DefaultMode != DefaultModeID {
		if err := p.SetDefaultMode(p.cfg.DefaultMode); err != nil {
			return err
		}
		p.ActivateDefaultMode()
	}
	return nil
}

// Capability returns the plugin itself narrowed to Capability.
func (p *Plugin) Capability() any { return Capability(p) }

// Destroy drops every listener and handler.
func (p *Plugin) Destroy() {
	p.mu.Lock()
	p.byMode = make(map[string][]*modeHandler)
	p.always = nil
	p.claims = make(map[string]cursorClaim)
	p.mu.Unlock()

	p.modeChanges.Clear()
	p.cursorChanges.Clear()
	p.handlerChanges.Clear()
}

// Diagnostics reports the active mode and handler counts.
func (p *Plugin) Diagnostics() []plugin.Diagnostic {
	p.mu.Lock()
	handlers := len(p.always)
	for _, hs := range p.byMode {
		handlers += len(hs)
	}
	modes := len(p.modes)
	p.mu.Unlock()

	st := p.State()
	status := "ok"
	if st.Paused {
		status = "paused"
	}
	return []plugin.Diagnostic{
		{ID: "mode", Status: status, Detail: st.ActiveMode},
		{ID: "handlers", Status: "ok", Detail: fmt.Sprintf("%d handlers, %d modes", handlers, modes)},
	}
}

// RegisterMode adds or replaces a mode.
func (p *Plugin) RegisterMode(mode InteractionMode) error {
	if mode.ID == "" {
		return fmt.Errorf("interaction: mode id is required")
	}
	switch mode.Scope {
	case "":
		mode.Scope = ScopeGlobal
	case ScopeGlobal, ScopePage:
	default:
		return fmt.Errorf("interaction: mode %s has invalid scope %q", mode.ID, mode.Scope)
	}

	p.mu.Lock()
	old, existed := p.modes[mode.ID]
	p.registerModeLocked(mode)
	p.mu.Unlock()

	if p.ActiveMode() != mode.ID {
		return nil
	}
	if existed && old != mode {
		p.logger.Debug("interaction mode redefined", "mode", mode.ID)
		p.modeChanges.Emit(ModeChange{Mode: mode.ID, Previous: mode.ID})
	}
	p.refreshCursor()
	return nil
}

func (p *Plugin) registerModeLocked(mode InteractionMode) {
	if _, ok := p.modes[mode.ID]; !ok {
		p.modeOrder = append(p.modeOrder, mode.ID)
	}
	p.modes[mode.ID] = mode
}

// Modes returns registered modes in registration order.
func (p *Plugin) Modes() []InteractionMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]InteractionMode, 0, len(p.modeOrder))
	for _, id := range p.modeOrder {
		out = append(out, p.modes[id])
	}
	return out
}

// Activate switches to modeID. Activating the active mode is a no-op.
func (p *Plugin) Activate(modeID string) error {
	p.mu.Lock()
	_, ok := p.modes[modeID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMode, modeID)
	}

	if p.State().ActiveMode == modeID {
		return nil
	}

	p.Dispatch(ActionActivateMode, modeID)
	p.refreshCursor()
	return nil
}

// ActivateDefaultMode switches back to the default mode.
func (p *Plugin) ActivateDefaultMode() {
	if err := p.Activate(p.DefaultMode()); err != nil {
		p.logger.Warn("interaction: default mode missing", "err", err)
	}
}

// Finish ends the current interaction and returns to the default mode.
func (p *Plugin) Finish() { p.ActivateDefaultMode() }

// SetDefaultMode changes the mode ActivateDefaultMode returns to.
func (p *Plugin) SetDefaultMode(modeID string) error {
	p.mu.Lock()
	_, ok := p.modes[modeID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMode, modeID)
	}
	p.Dispatch(ActionSetDefaultMode, modeID)
	return nil
}

// DefaultMode returns the default mode id.
func (p *Plugin) DefaultMode() string { return p.State().DefaultMode }

// ActiveMode returns the active mode id.
func (p *Plugin) ActiveMode() string { return p.State().ActiveMode }

// ActiveInteractionMode returns the active mode's definition.
func (p *Plugin) ActiveInteractionMode() (InteractionMode, bool) {
	id := p.ActiveMode()
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.modes[id]
	return m, ok
}

// ActiveModeIsExclusive reports whether the active mode claims sole pointer
// ownership within its scope.
func (p *Plugin) ActiveModeIsExclusive() bool {
	m, ok := p.ActiveInteractionMode()
	return ok && m.Exclusive
}

// SetCursor claims the cursor for token. The highest priority claim wins;
// among equal priorities the most recent claim wins.
func (p *Plugin) SetCursor(token, cursor string, priority int) {
	p.mu.Lock()
	p.seq++
	p.claims[token] = cursorClaim{cursor: cursor, priority: priority, seq: p.seq}
	p.mu.Unlock()
	p.refreshCursor()
}

// RemoveCursor drops token's claim.
func (p *Plugin) RemoveCursor(token string) {
	p.mu.Lock()
	_, ok := p.claims[token]
	delete(p.claims, token)
	p.mu.Unlock()
	if ok {
		p.refreshCursor()
	}
}

// CurrentCursor returns the cursor currently shown.
func (p *Plugin) CurrentCursor() string { return p.State().Cursor }

func (p *Plugin) resolveCursor() string {
	active := p.ActiveMode()

	p.mu.Lock()
	defer p.mu.Unlock()

	var best *cursorClaim
	for _, c := range p.claims {
		c := c
		if best == nil || c.priority > best.priority ||
			(c.priority == best.priority && c.seq > best.seq) {
			best = &c
		}
	}
	if best != nil {
		return best.cursor
	}
	if m, ok := p.modes[active]; ok && m.Cursor != "" {
		return m.Cursor
	}
	return DefaultCursor
}

func (p *Plugin) refreshCursor() {
	next := p.resolveCursor()
	if next == p.State().Cursor {
		return
	}
	p.Dispatch(ActionSetCursor, next)
	p.cursorChanges.Emit(next)
}

// RegisterHandlers registers handlers active only while reg.ModeID is active.
func (p *Plugin) RegisterHandlers(reg HandlerRegistration) event.Unsubscribe {
	var pageIndex *int
	if reg.PageIndex != nil {
		v := *reg.PageIndex
		pageIndex = &v
	}

	p.mu.Lock()
	p.seq++
	h := &modeHandler{id: p.seq, handlers: reg.Handlers, pageIndex: pageIndex}
	p.byMode[reg.ModeID] = append(p.byMode[reg.ModeID], h)
	p.mu.Unlock()

	scope := GlobalScope()
	if pageIndex != nil {
		scope = PageScope(*pageIndex)
	}
	p.handlerChanges.Emit(HandlerChange{ModeID: reg.ModeID, Scope: scope, Registered: true})

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			list := p.byMode[reg.ModeID]
			for i, cand := range list {
				if cand.id == h.id {
					p.byMode[reg.ModeID] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(p.byMode[reg.ModeID]) == 0 {
				delete(p.byMode, reg.ModeID)
			}
			p.mu.Unlock()
			p.handlerChanges.Emit(HandlerChange{ModeID: reg.ModeID, Scope: scope})
		})
	}
}

// RegisterAlways registers handlers that run in every mode, subject to
// exclusive modes.
func (p *Plugin) RegisterAlways(reg AlwaysRegistration) event.Unsubscribe {
	if reg.Scope.Kind == "" {
		reg.Scope.Kind = ScopeGlobal
	}

	p.mu.Lock()
	p.seq++
	h := &alwaysHandler{id: p.seq, scope: reg.Scope, handlers: reg.Handlers}
	p.always = append(p.always, h)
	p.mu.Unlock()

	p.handlerChanges.Emit(HandlerChange{Scope: reg.Scope, Registered: true})

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			for i, cand := range p.always {
				if cand.id == h.id {
					p.always = append(p.always[:i:i], p.always[i+1:]...)
					break
				}
			}
			p.mu.Unlock()
			p.handlerChanges.Emit(HandlerChange{Scope: reg.Scope})
		})
	}
}

// HandlersFor returns the handlers an event at pageIndex is routed to, in
// registration order. An exclusive active mode suppresses always-active
// handlers inside its scope.
func (p *Plugin) HandlersFor(pageIndex int) []PointerEventHandlers {
	active := p.ActiveMode()

	p.mu.Lock()
	defer p.mu.Unlock()

	mode, hasMode := p.modes[active]
	onPage := pageIndex >= 0
	suppressAlways := hasMode && mode.Exclusive &&
		(mode.Scope == ScopeGlobal || (mode.Scope == ScopePage && onPage))

	type ordered struct {
		id uint64
		h  PointerEventHandlers
	}
	var picked []ordered

	if !suppressAlways {
		for _, a := range p.always {
			switch a.scope.Kind {
			case ScopeGlobal:
				picked = append(picked, ordered{a.id, a.handlers})
			case ScopePage:
				if onPage && a.scope.PageIndex == pageIndex {
					picked = append(picked, ordered{a.id, a.handlers})
				}
			}
		}
	}

	if hasMode && (mode.Scope == ScopeGlobal || onPage) {
		for _, m := range p.byMode[active] {
			if m.pageIndex == nil || (onPage && *m.pageIndex == pageIndex) {
				picked = append(picked, ordered{m.id, m.handlers})
			}
		}
	}

	sort.SliceStable(picked, func(i, j int) bool { return picked[i].id < picked[j].id })
	out := make([]PointerEventHandlers, len(picked))
	for i, o := range picked {
		out[i] = o.h
	}
	return out
}

// DispatchPointer routes ev and returns how many handlers ran. Nothing runs
// while paused. A panicking handler does not stop the others.
func (p *Plugin) DispatchPointer(ev PointerEvent) int {
	if p.IsPaused() {
		return 0
	}
	ran := 0
	for _, h := range p.HandlersFor(ev.PageIndex) {
		cb := h.callback(ev.Type)
		if cb == nil {
			continue
		}
		if p.invoke(cb, ev) {
			ran++
		}
	}
	return ran
}

func (p *Plugin) invoke(cb func(PointerEvent), ev PointerEvent) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("interaction: pointer handler panicked", "event", ev.Type, "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	cb(ev)
	return true
}

// Pause stops pointer routing.
func (p *Plugin) Pause() { p.Dispatch(ActionPause, nil) }

// Resume restarts pointer routing.
func (p *Plugin) Resume() { p.Dispatch(ActionResume, nil) }

// IsPaused reports whether routing is paused.
func (p *Plugin) IsPaused() bool { return p.State().Paused }

// OnModeChange is notified after every mode switch and when the active mode
// is redefined.
func (p *Plugin) OnModeChange(fn func(ModeChange)) event.Unsubscribe {
	return p.modeChanges.On(fn)
}

// OnCursorChange is notified when the resolved cursor changes.
func (p *Plugin) OnCursorChange(fn func(string)) event.Unsubscribe {
	return p.cursorChanges.On(fn)
}

// OnHandlerChange is notified when handlers are registered or removed.
func (p *Plugin) OnHandlerChange(fn func(HandlerChange)) event.Unsubscribe {
	return p.handlerChanges.On(fn)
}

// Package is the interaction manager's plugin package.
var Package = plugin.Package[*Plugin, Config, State]{
	Manifest: plugin.Manifest{
		ID:      pluginID,
		Name:    pluginName,
		Version: "1.0.0",
		Description: "Routes pointer input through named **interaction modes**.\n\n" +
			"- Modes are `global` or `page` scoped and may be *exclusive*.\n" +
			"- Cursor claims are resolved by priority.",
		Provides: []string{"interaction"},
	},
	Create: func(_ *plugin.Registry, _ engine.Engine, cfg Config) *Plugin {
		return New(cfg)
	},
	Reducer:      Reduce,
	InitialState: InitialState(),
}
