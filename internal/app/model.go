package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/folio/internal/binding"
	"github.com/marcus/folio/internal/engine"
	"github.com/marcus/folio/internal/plugin"
	"github.com/marcus/folio/internal/plugins/export"
	"github.com/marcus/folio/internal/ui"
)

// Options configures the root model.
type Options struct {
	Registry *plugin.Registry
	Engine   engine.Engine
	// Register re-adds plugin packages after a plugin restart.
	Register func(*plugin.Registry) error
	Logger   *slog.Logger
}

// screen holds values pointer handlers read after the model is copied.
type screen struct {
	width, height int
	pages         int
}

func (s *screen) maxScroll() int {
	return newLayout(s.width, s.height, s.pages, 0).maxScroll()
}

// Model is the root Bubble Tea model for folio.
type Model struct {
	registry *plugin.Registry
	eng      engine.Engine
	register func(*plugin.Registry) error
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	// Bindings
	scope       *binding.Scope
	pages       *binding.Scope
	im          *binding.InteractionManager
	cursor      *binding.Cursor
	exclusive   *binding.IsPageExclusive
	exporter    *binding.Lookup[export.Capability]
	exportState *binding.State[export.State]

	canvas  *canvas
	pointer *pointerTracker
	screen  *screen
	events  <-chan engine.Event

	keys     keyMap
	help     help.Model
	truncate *ui.TruncateCache
	docName  string

	// UI state
	showHelp      bool
	showInspector bool
	showPlugins   bool
	showErrors    bool

	// Status/toast messages
	statusMsg     string
	statusExpiry  time.Time
	statusIsError bool

	lastError      error
	ready          bool
	now            func() time.Time
	writeClipboard func(string) error
}

// New creates the root model and binds it to the registry's plugins.
func New(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		registry: opts.Registry,
		eng:      opts.Engine,
		register: opts.Register,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		canvas:   newCanvas(),
		pointer:  newPointerTracker(),
		screen:   &screen{},
		keys:     defaultKeyMap(),
		help:     help.New(),
		truncate: ui.NewTruncateCache(512),
		now:      time.Now,

		writeClipboard: clipboard.WriteAll,
	}

	m.scope = binding.NewScope(opts.Registry)
	m.im = binding.UseInteractionManager(m.scope)
	m.cursor = binding.UseCursor(m.scope)
	m.exclusive = binding.UseIsPageExclusive(m.scope)
	m.exporter = binding.UseCapability[export.Capability](m.scope, export.PluginID)
	m.exportState = binding.UseState(m.scope, export.PluginID, export.InitialState())
	binding.UsePointerHandlers(m.scope, binding.PointerHandlersOptions{},
		m.canvas.hoverHandlers(m.cursor, m.screen.maxScroll))
	binding.UsePointerHandlers(m.scope, binding.PointerHandlersOptions{ModeID: panMode},
		m.canvas.panHandlers(m.cursor, m.screen.maxScroll))

	if opts.Engine != nil {
		if doc, ok := opts.Engine.Document(); ok {
			m.docName = doc.Name
			m.screen.pages = doc.PageCount
		}
	}
	m.rebuildPageHandlers()
	return m
}

// rebuildPageHandlers registers highlight handlers for every page.
func (m *Model) rebuildPageHandlers() {
	if m.pages != nil {
		m.pages.Close()
	}
	m.pages = binding.NewScope(m.registry)
	for i := 0; i < m.screen.pages; i++ {
		page := i
		binding.UsePointerHandlers(m.pages,
			binding.PointerHandlersOptions{ModeID: highlightMode, PageIndex: &page},
			m.canvas.pageHandlers(page))
	}
}

// Init initializes the model and returns initial commands.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd()}
	if m.eng != nil {
		if _, ok := m.eng.Document(); ok {
			cmds = append(cmds, startWatch(m.ctx, m.eng))
		}
	}
	return tea.Batch(cmds...)
}

// Close releases every binding and stops background work.
func (m Model) Close() {
	m.cancel()
	if m.pages != nil {
		m.pages.Close()
	}
	m.scope.Close()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.screen.width, m.screen.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.truncate.Clear()
		m.ready = true
		return m, nil

	case TickMsg:
		m.ClearToast()
		return m, tickCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil

	case watchStartedMsg:
		m.events = msg.events
		return m, waitForEvent(m.events)

	case DocumentEventMsg:
		m.handleDocumentEvent(msg.Event)
		return m, waitForEvent(m.events)

	case ExportDoneMsg:
		if msg.Err != nil {
			m.showError("export failed", msg.Err)
			return m, nil
		}
		m.ShowToast("Exported "+msg.Record.Path, 4*time.Second)
		return m, nil

	case ErrorMsg:
		m.showError("error", msg.Err)
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showErrors {
		return m.updateErrorModal(msg)
	}
	if m.showHelp || m.showInspector || m.showPlugins {
		if msg.String() == "esc" || key.Matches(msg, m.keys.Help, m.keys.Inspector, m.keys.Plugins) {
			m.showHelp, m.showInspector, m.showPlugins = false, false, false
			return m, nil
		}
		if key.Matches(msg, m.keys.Quit) {
			return m.quit()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Inspector):
		m.showInspector = true
	case key.Matches(msg, m.keys.Plugins):
		m.showPlugins = true
	case key.Matches(msg, m.keys.Errors):
		if m.lastError == nil {
			m.ShowToast("No errors", 2*time.Second)
			return m, nil
		}
		m.showErrors = true
	case key.Matches(msg, m.keys.Highlight):
		m.toggleMode(highlightMode)
	case key.Matches(msg, m.keys.Pan):
		m.toggleMode(panMode)
	case key.Matches(msg, m.keys.Finish):
		if c, ok := m.im.Provides().Get(); ok {
			c.Finish()
		}
	case key.Matches(msg, m.keys.Pause):
		if c, ok := m.im.Provides().Get(); ok {
			if c.IsPaused() {
				c.Resume()
			} else {
				c.Pause()
			}
		}
	case key.Matches(msg, m.keys.ScrollUp):
		m.scrollBy(-1)
	case key.Matches(msg, m.keys.ScrollDn):
		m.scrollBy(1)
	case key.Matches(msg, m.keys.Export):
		c, ok := m.exporter.Provides().Get()
		if !ok {
			m.ShowToast("Export plugin unavailable", 3*time.Second)
			return m, nil
		}
		m.ShowToast("Exporting…", 2*time.Second)
		return m, downloadCmd(m.ctx, c)
	case key.Matches(msg, m.keys.Reload):
		m.restartPlugins()
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	return m, tea.Quit
}

// toggleMode activates modeID, or returns to the default mode when it is
// already active.
func (m *Model) toggleMode(modeID string) {
	c, ok := m.im.Provides().Get()
	if !ok {
		m.ShowToast("Interaction manager unavailable", 3*time.Second)
		return
	}
	if c.ActiveMode() == modeID {
		c.Finish()
		return
	}
	if err := c.Activate(modeID); err != nil {
		m.showError("mode", err)
	}
}

func (m *Model) scrollBy(delta int) {
	l := m.layout()
	m.canvas.setScroll(clamp(l.scroll+delta, 0, l.maxScroll()))
}

func (m *Model) layout() layout {
	return newLayout(m.screen.width, m.screen.height, m.screen.pages, m.canvas.snapshot().scroll)
}

// restartPlugins tears every plugin down and registers them again. Bindings
// follow the registry and resubscribe to the new instances.
func (m *Model) restartPlugins() {
	if m.register == nil {
		m.ShowToast("Plugin restart not supported", 3*time.Second)
		return
	}
	m.registry.Destroy()
	if err := m.register(m.registry); err != nil {
		m.showError("restart", err)
		return
	}
	if err := m.registry.Initialize(); err != nil {
		m.showError("restart", err)
		return
	}
	m.ShowToast(fmt.Sprintf("Restarted %d plugins", len(m.registry.Plugins())), 3*time.Second)
}

func (m *Model) handleDocumentEvent(ev engine.Event) {
	switch ev.Type {
	case engine.EventReloaded:
		if ev.Document == nil {
			return
		}
		m.docName = ev.Document.Name
		if ev.Document.PageCount != m.screen.pages {
			m.screen.pages = ev.Document.PageCount
			m.rebuildPageHandlers()
			m.scrollBy(0)
		}
		m.ShowToast("Reloaded "+ev.Document.Name, 2*time.Second)
	case engine.EventRemoved:
		err := ev.Err
		if err == nil {
			err = errors.New("document removed")
		}
		m.showError("watch", err)
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	c, ok := m.im.Provides().Get()
	if !ok {
		return
	}
	l := m.layout()
	for _, ev := range m.pointer.translate(msg, l, m.now()) {
		m.canvas.noteEvent(string(ev.Type), msg.Y)
		c.DispatchPointer(ev)
	}
}

// ShowToast displays a temporary status message.
func (m *Model) ShowToast(msg string, duration time.Duration) {
	m.statusMsg = msg
	m.statusExpiry = m.now().Add(duration)
	m.statusIsError = false
}

// ClearToast clears any expired toast message.
func (m *Model) ClearToast() {
	if m.statusMsg != "" && m.now().After(m.statusExpiry) {
		m.statusMsg = ""
		m.statusIsError = false
	}
}

func (m *Model) showError(what string, err error) {
	m.lastError = err
	m.logger.Error("folio: "+what, "err", err)
	m.ShowToast(fmt.Sprintf("%s: %v", what, err), 5*time.Second)
	m.statusIsError = true
}
