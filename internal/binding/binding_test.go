package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/folio/internal/engine"
	"github.com/marcus/folio/internal/event"
	"github.com/marcus/folio/internal/plugin"
	"github.com/marcus/folio/internal/plugins/interaction"
)

// countingManager wraps the real interaction manager and counts the
// subscriptions and registrations bindings make against it.
type countingManager struct {
	*interaction.Plugin

	stateSubs   int
	stateActive int
	modeSubs    int
	modeActive  int
	modeScoped  []interaction.HandlerRegistration
	always      []interaction.AlwaysRegistration
	regsActive  int
	cursorCalls int
}

func (c *countingManager) Capability() any { return interaction.Capability(c) }

func (c *countingManager) OnStateChange(fn func(interaction.State)) event.Unsubscribe {
	c.stateSubs++
	c.stateActive++
	return c.track(c.Plugin.OnStateChange(fn), &c.stateActive)
}

func (c *countingManager) OnModeChange(fn func(interaction.ModeChange)) event.Unsubscribe {
	c.modeSubs++
	c.modeActive++
	return c.track(c.Plugin.OnModeChange(fn), &c.modeActive)
}

func (c *countingManager) RegisterHandlers(reg interaction.HandlerRegistration) event.Unsubscribe {
	c.modeScoped = append(c.modeScoped, reg)
	c.regsActive++
	return c.track(c.Plugin.RegisterHandlers(reg), &c.regsActive)
}

func (c *countingManager) RegisterAlways(reg interaction.AlwaysRegistration) event.Unsubscribe {
	c.always = append(c.always, reg)
	c.regsActive++
	return c.track(c.Plugin.RegisterAlways(reg), &c.regsActive)
}

func (c *countingManager) SetCursor(token, cursor string, priority int) {
	c.cursorCalls++
	c.Plugin.SetCursor(token, cursor, priority)
}

func (c *countingManager) track(unsub event.Unsubscribe, active *int) event.Unsubscribe {
	done := false
	return func() {
		if done {
			return
		}
		done = true
		*active--
		unsub()
	}
}

var countingPackage = plugin.Package[*countingManager, interaction.Config, interaction.State]{
	Manifest: interaction.Package.Manifest,
	Create: func(_ *plugin.Registry, _ engine.Engine, cfg interaction.Config) *countingManager {
		return &countingManager{Plugin: interaction.New(cfg)}
	},
	Reducer:      interaction.Reduce,
	InitialState: interaction.InitialState(),
}

var testModes = interaction.Config{Modes: []interaction.InteractionMode{
	{ID: "highlight", Scope: interaction.ScopePage, Exclusive: true, Cursor: "text"},
	{ID: "pan", Scope: interaction.ScopeGlobal, Exclusive: true},
}}

func registerManager(t *testing.T, reg *plugin.Registry) *countingManager {
	t.Helper()
	require.NoError(t, plugin.Register(reg, countingPackage, testModes))
	require.NoError(t, reg.Initialize())
	m, ok := plugin.PluginOf[*countingManager](reg, interaction.PluginID).Get()
	require.True(t, ok)
	return m
}

func intPtr(v int) *int { return &v }

func TestLateRegistrationSubscribesOnce(t *testing.T) {
	reg := plugin.NewRegistry(plugin.Options{})
	scope := NewScope(reg)
	defer scope.Close()

	im := UseInteractionManager(scope)
	assert.False(t, im.Provides().IsPresent())
	assert.Equal(t, interaction.InitialState(), im.State())

	// Re-rendering while absent acquires nothing.
	scope.Render()
	scope.Render()

	m := registerManager(t, reg)
	assert.True(t, im.Provides().IsPresent())
	assert.Equal(t, 1, m.stateSubs)

	scope.Render()
	scope.Render()
	assert.Equal(t, 1, m.stateSubs, "re-render must not resubscribe")
	assert.Equal(t, 1, m.stateActive)

	require.NoError(t, m.Activate("highlight"))
	assert.Equal(t, "highlight", im.State().ActiveMode)
	assert.Equal(t, "text", im.State().Cursor)

	scope.Close()
	assert.Equal(t, 0, m.stateActive)
	assert.Equal(t, interaction.InitialState(), im.State())

	// Closed scopes ignore later transitions.
	m.Finish()
	assert.Equal(t, 1, m.stateSubs)
}

func TestBindingSeedsFromCurrentState(t *testing.T) {
	reg := plugin.NewRegistry(plugin.Options{})
	m := registerManager(t, reg)
	require.NoError(t, m.Activate("pan"))

	scope := NewScope(reg)
	defer scope.Close()
	im := UseInteractionManager(scope)
	assert.Equal(t, "pan", im.State().ActiveMode)
}

func TestTeardownReleasesOnReferenceChange(t *testing.T) {
	reg := plugin.NewRegistry(plugin.Options{})
	scope := NewScope(reg)
	defer scope.Close()

	im := UseInteractionManager(scope)
	exclusive := UseIsPageExclusive(scope)
	m := registerManager(t, reg)
	require.NoError(t, m.Activate("highlight"))
	require.True(t, exclusive.Value())

	reg.Destroy()
	assert.False(t, im.Provides().IsPresent())
	assert.Equal(t, 0, m.stateActive)
	assert.Equal(t, 0, m.modeActive)
	assert.False(t, exclusive.Value())
	assert.Equal(t, interaction.InitialState(), im.State())
}

func TestUsePointerHandlersSelectsPath(t *testing.T) {
	tests := []struct {
		name       string
		opts       PointerHandlersOptions
		wantMode   int
		wantAlways int
		wantScope  interaction.Scope
	}{
		{"mode scoped", PointerHandlersOptions{ModeID: "highlight"}, 1, 0, interaction.Scope{}},
		{"mode scoped on page", PointerHandlersOptions{ModeID: "highlight", PageIndex: intPtr(2)}, 1, 0, interaction.Scope{}},
		{"always global", PointerHandlersOptions{}, 0, 1, interaction.GlobalScope()},
		{"always page", PointerHandlersOptions{PageIndex: intPtr(3)}, 0, 1, interaction.PageScope(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := plugin.NewRegistry(plugin.Options{})
			m := registerManager(t, reg)
			scope := NewScope(reg)

			ph := UsePointerHandlers(scope, tt.opts, interaction.PointerEventHandlers{
				OnClick: func(interaction.PointerEvent) {},
			})
			assert.True(t, ph.Registered())
			require.Len(t, m.modeScoped, tt.wantMode)
			require.Len(t, m.always, tt.wantAlways)

			if tt.wantMode == 1 {
				assert.Equal(t, "highlight", m.modeScoped[0].ModeID)
				if tt.opts.PageIndex != nil {
					require.NotNil(t, m.modeScoped[0].PageIndex)
					assert.Equal(t, *tt.opts.PageIndex, *m.modeScoped[0].PageIndex)
				} else {
					assert.Nil(t, m.modeScoped[0].PageIndex)
				}
			}
			if tt.wantAlways == 1 {
				assert.Equal(t, tt.wantScope, m.always[0].Scope)
			}

			scope.Render()
			assert.Equal(t, tt.wantMode+tt.wantAlways, len(m.modeScoped)+len(m.always))

			scope.Close()
			assert.Equal(t, 0, m.regsActive)
			assert.False(t, ph.Registered())
		})
	}
}

func TestPointerHandlersRouteEvents(t *testing.T) {
	reg := plugin.NewRegistry(plugin.Options{})
	scope := NewScope(reg)
	defer scope.Close()

	var got []string
	UsePointerHandlers(scope, PointerHandlersOptions{ModeID: "highlight", PageIndex: intPtr(0)},
		interaction.PointerEventHandlers{OnPointerDown: func(interaction.PointerEvent) { got = append(got, "highlight") }})
	UsePointerHandlers(scope, PointerHandlersOptions{},
		interaction.PointerEventHandlers{OnPointerDown: func(interaction.PointerEvent) { got = append(got, "always") }})

	m := registerManager(t, reg)
	m.DispatchPointer(interaction.PointerEvent{Type: interaction.PointerDown, PageIndex: 0})
	require.NoError(t, m.Activate("highlight"))
	m.DispatchPointer(interaction.PointerEvent{Type: interaction.PointerDown, PageIndex: 0})

	assert.Equal(t, []string{"always", "highlight"}, got)
}

func TestUseIsPageExclusive(t *testing.T) {
	reg := plugin.NewRegistry(plugin.Options{})
	require.NoError(t, plugin.Register(reg, countingPackage, interaction.Config{
		DefaultMode: "highlight",
		Modes:       testModes.Modes,
	}))

	scope := NewScope(reg)
	defer scope.Close()
	exclusive := UseIsPageExclusive(scope)
	assert.False(t, exclusive.Value(), "false while no capability")

	// The default mode is already exclusive and page scoped when the
	// capability appears; no mode change follows.
	require.NoError(t, reg.Initialize())
	m, ok := plugin.PluginOf[*countingManager](reg, interaction.PluginID).Get()
	require.True(t, ok)
	assert.True(t, exclusive.Value())
	assert.Equal(t, 1, m.modeSubs)

	require.NoError(t, m.Activate("pan"))
	assert.False(t, exclusive.Value(), "global exclusive is not page exclusive")

	require.NoError(t, m.Activate(interaction.DefaultModeID))
	assert.False(t, exclusive.Value())

	require.NoError(t, m.Activate("highlight"))
	assert.True(t, exclusive.Value())
}

func TestIsPageExclusiveFollowsRedefinition(t *testing.T) {
	reg := plugin.NewRegistry(plugin.Options{})
	m := registerManager(t, reg)
	scope := NewScope(reg)
	defer scope.Close()
	exclusive := UseIsPageExclusive(scope)

	require.NoError(t, m.Activate("highlight"))
	require.True(t, exclusive.Value())

	require.NoError(t, m.RegisterMode(interaction.InteractionMode{ID: "highlight", Scope: interaction.ScopePage}))
	assert.False(t, exclusive.Value(), "non-exclusive redefinition")

	require.NoError(t, m.RegisterMode(interaction.InteractionMode{ID: "highlight", Scope: interaction.ScopePage, Exclusive: true}))
	assert.True(t, exclusive.Value())
}

func TestUseCursorNoopWhenAbsent(t *testing.T) {
	reg := plugin.NewRegistry(plugin.Options{})
	scope := NewScope(reg)
	defer scope.Close()

	cursor := UseCursor(scope)
	assert.NotPanics(t, func() {
		cursor.SetCursor("hover", "pointer", 1)
		cursor.RemoveCursor("hover")
	})

	m := registerManager(t, reg)
	cursor.SetCursor("hover", "pointer", 1)
	assert.Equal(t, 1, m.cursorCalls)
	assert.Equal(t, "pointer", m.CurrentCursor())
	cursor.RemoveCursor("hover")
	assert.Equal(t, interaction.DefaultCursor, m.CurrentCursor())
}

func TestUseCapabilityLoading(t *testing.T) {
	reg := plugin.NewRegistry(plugin.Options{})
	scope := NewScope(reg)
	defer scope.Close()

	capability := UseCapability[interaction.Capability](scope, interaction.PluginID)
	instance := UsePlugin[*countingManager](scope, interaction.PluginID)
	wrongType := UseCapability[StateSource[int]](scope, interaction.PluginID)

	assert.False(t, capability.IsLoading())
	assert.Equal(t, plugin.StatusUnregistered, capability.Status())

	require.NoError(t, plugin.Register(reg, countingPackage, testModes))
	assert.True(t, capability.IsLoading())
	assert.False(t, capability.Ready())

	require.NoError(t, reg.Initialize())
	assert.True(t, capability.Ready())
	assert.False(t, capability.IsLoading())
	assert.True(t, instance.Ready())
	assert.False(t, wrongType.Ready())
}

func TestUseState(t *testing.T) {
	reg := plugin.NewRegistry(plugin.Options{})
	scope := NewScope(reg)
	defer scope.Close()

	redraws := 0
	scope.OnInvalidate(func() { redraws++ })

	st := UseState(scope, interaction.PluginID, interaction.InitialState())
	assert.False(t, st.Provides().IsPresent())

	m := registerManager(t, reg)
	assert.True(t, st.Provides().IsPresent())
	assert.Equal(t, 1, m.stateSubs)

	require.NoError(t, m.Activate("pan"))
	assert.Equal(t, "pan", st.Get().ActiveMode)
	assert.Positive(t, redraws)
}

func TestEffect(t *testing.T) {
	var e Effect
	acquired, released := 0, 0
	acquire := func() func() {
		acquired++
		return func() { released++ }
	}

	a, b := new(int), new(int)
	e.Run(a, acquire)
	e.Run(a, acquire)
	assert.Equal(t, 1, acquired)

	e.Run(b, acquire)
	assert.Equal(t, 2, acquired)
	assert.Equal(t, 1, released)

	e.Release()
	e.Release()
	assert.Equal(t, 2, released)

	// Nil cleanups and non-comparable keys are tolerated.
	e.Run([]int{1}, func() func() { return nil })
	e.Run([]int{1}, acquire)
	assert.Equal(t, 3, acquired)
	e.Release()
	assert.Equal(t, 3, released)
}
