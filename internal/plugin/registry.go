package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/marcus/folio/internal/engine"
	"github.com/marcus/folio/internal/event"
)

// Registry errors.
var (
	ErrDuplicatePlugin   = errors.New("plugin: already registered")
	ErrMissingDependency = errors.New("plugin: required dependency unavailable")
	ErrCyclicDependency  = errors.New("plugin: cyclic dependency")
	ErrConstruction      = errors.New("plugin: construction failed")
)

// Status is the lifecycle state of a registered plugin.
type Status int

const (
	StatusUnregistered Status = iota
	StatusRegistered
	StatusInitializing
	StatusReady
	StatusFailed
	StatusDestroyed
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusRegistered:
		return "registered"
	case StatusInitializing:
		return "initializing"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	case StatusDestroyed:
		return "destroyed"
	default:
		return "unregistered"
	}
}

type registration struct {
	manifest Manifest
	build    func(r *Registry) Plugin
	status   Status
	instance Plugin
	err      error
}

// Registry maps plugin ids to live instances.
type Registry struct {
	mu     sync.RWMutex
	regs   map[string]*registration
	order  []string // registration order
	inited []string // initialization order

	engine    engine.Engine
	logger    *slog.Logger
	configDir string
	dataDir   string

	ready   *event.Emitter[string]
	changed *event.Emitter[string]
}

// Options configures a Registry.
type Options struct {
	Engine    engine.Engine
	Logger    *slog.Logger
	ConfigDir string
	DataDir   string
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		regs:      make(map[string]*registration),
		engine:    opts.Engine,
		logger:    logger,
		configDir: opts.ConfigDir,
		dataDir:   opts.DataDir,
		ready:     event.NewEmitter[string](event.WithName("registry.ready"), event.WithLogger(logger)),
		changed:   event.NewEmitter[string](event.WithName("registry.changed"), event.WithLogger(logger)),
	}
}

// Engine returns the engine handed to plugins.
func (r *Registry) Engine() engine.Engine { return r.engine }

// Logger returns the registry logger.
func (r *Registry) Logger() *slog.Logger { return r.logger }

func (r *Registry) add(reg *registration) error {
	r.mu.Lock()
	if existing, ok := r.regs[reg.manifest.ID]; ok && existing.status != StatusDestroyed {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, reg.manifest.ID)
	}
	reg.status = StatusRegistered
	if _, ok := r.regs[reg.manifest.ID]; !ok {
		r.order = append(r.order, reg.manifest.ID)
	}
	r.regs[reg.manifest.ID] = reg
	r.mu.Unlock()

	r.changed.Emit(reg.manifest.ID)
	return nil
}

// Get returns the ready instance for id. It never blocks and is absent for
// unknown, pending, failed and destroyed plugins.
func (r *Registry) Get(id string) Optional[Plugin] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regs[id]
	if !ok || reg.status != StatusReady || reg.instance == nil {
		return None[Plugin]()
	}
	return Some(reg.instance)
}

// Capability returns the capability of a ready plugin as an untyped value.
func (r *Registry) Capability(id string) (any, bool) {
	p, ok := r.Get(id).Get()
	if !ok {
		return nil, false
	}
	c := p.Capability()
	return c, c != nil
}

// CapabilityOf returns the typed capability of plugin id, absent when the
// plugin is not ready or provides a different type.
func CapabilityOf[T any](r *Registry, id string) Optional[T] {
	c, ok := r.Capability(id)
	if !ok {
		return None[T]()
	}
	typed, ok := c.(T)
	if !ok {
		return None[T]()
	}
	return Some(typed)
}

// PluginOf returns the typed instance of plugin id.
func PluginOf[T any](r *Registry, id string) Optional[T] {
	p, ok := r.Get(id).Get()
	if !ok {
		return None[T]()
	}
	typed, ok := p.(T)
	if !ok {
		return None[T]()
	}
	return Some(typed)
}

// Status returns the lifecycle status of id.
func (r *Registry) Status(id string) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.regs[id]; ok {
		return reg.status
	}
	return StatusUnregistered
}

// Err returns the failure recorded for id, if any.
func (r *Registry) Err(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.regs[id]; ok {
		return reg.err
	}
	return nil
}

// Manifest returns the manifest registered under id.
func (r *Registry) Manifest(id string) (Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regs[id]
	if !ok {
		return Manifest{}, false
	}
	return reg.manifest, true
}

// IDs returns registered plugin ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Plugins returns ready instances in initialization order.
func (r *Registry) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(r.inited))
	for _, id := range r.inited {
		if reg := r.regs[id]; reg != nil && reg.status == StatusReady {
			out = append(out, reg.instance)
		}
	}
	return out
}

// OnPluginReady is notified with the id of each plugin that becomes ready.
func (r *Registry) OnPluginReady(fn func(id string)) event.Unsubscribe {
	return r.ready.On(fn)
}

// OnChange is notified with the id of any plugin whose status changed.
func (r *Registry) OnChange(fn func(id string)) event.Unsubscribe {
	return r.changed.On(fn)
}

// Initialize creates and initializes every registered plugin that is not
// yet ready, in dependency order. A failing plugin is marked failed along
// with the plugins that require it; the rest still start. The returned
// error joins all failures and is informational.
func (r *Registry) Initialize() error {
	r.mu.Lock()
	order, failures := r.resolveLocked()
	for id, err := range failures {
		r.failLocked(id, err)
	}
	r.mu.Unlock()

	var errs []error
	for id := range failures {
		r.changed.Emit(id)
		errs = append(errs, r.Err(id))
	}

	for _, id := range order {
		if err := r.initOne(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) initOne(id string) error {
	r.mu.Lock()
	reg := r.regs[id]
	if reg == nil || reg.status != StatusRegistered {
		r.mu.Unlock()
		return nil
	}
	for _, dep := range reg.manifest.Requires {
		if d := r.regs[dep]; d == nil || d.status != StatusReady {
			err := fmt.Errorf("%w: %s requires %s", ErrMissingDependency, id, dep)
			r.failLocked(id, err)
			r.mu.Unlock()
			r.changed.Emit(id)
			return err
		}
	}
	reg.status = StatusInitializing
	r.mu.Unlock()
	r.changed.Emit(id)

	instance, err := r.construct(reg)

	r.mu.Lock()
	if err != nil {
		r.failLocked(id, err)
		r.mu.Unlock()
		r.changed.Emit(id)
		return err
	}
	reg.instance = instance
	reg.status = StatusReady
	reg.err = nil
	r.inited = append(r.inited, id)
	r.mu.Unlock()

	r.logger.Debug("plugin ready", "plugin", id)
	r.ready.Emit(id)
	r.changed.Emit(id)
	return nil
}

// construct builds and initializes one plugin, converting panics into
// construction errors so host startup continues.
func (r *Registry) construct(reg *registration) (p Plugin, err error) {
	id := reg.manifest.ID
	defer func() {
		if rec := recover(); rec != nil {
			p = nil
			err = fmt.Errorf("%w: %s: %v", ErrConstruction, id, rec)
		}
	}()

	p = reg.build(r)
	if p == nil {
		return nil, fmt.Errorf("%w: %s: constructor returned nil", ErrConstruction, id)
	}
	pctx := &Context{
		Registry:  r,
		Engine:    r.engine,
		ConfigDir: r.configDir,
		DataDir:   r.dataDir,
		Logger:    r.logger.With("plugin", id),
	}
	if err := p.Init(pctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConstruction, id, err)
	}
	return p, nil
}

// failLocked marks id failed. Must be called with r.mu held.
func (r *Registry) failLocked(id string, err error) {
	reg := r.regs[id]
	if reg == nil {
		return
	}
	reg.status = StatusFailed
	reg.err = err
	reg.instance = nil
	r.logger.Error("plugin failed", "plugin", id, "err", err)
}

// resolveLocked orders pending plugins so dependencies come first. Plugins
// with missing requirements or in a cycle are returned as failures.
func (r *Registry) resolveLocked() ([]string, map[string]error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	failures := make(map[string]error)
	var order []string

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		switch state[id] {
		case done:
			return failures[id]
		case visiting:
			return fmt.Errorf("%w: %v", ErrCyclicDependency, append(path, id))
		}
		state[id] = visiting

		reg := r.regs[id]
		deps := append([]string{}, reg.manifest.Requires...)
		for _, opt := range reg.manifest.Optional {
			if _, ok := r.regs[opt]; ok {
				deps = append(deps, opt)
			}
		}

		var failed error
		for _, dep := range deps {
			d, ok := r.regs[dep]
			required := contains(reg.manifest.Requires, dep)
			if !ok {
				if required {
					failed = fmt.Errorf("%w: %s requires %s", ErrMissingDependency, id, dep)
				}
				continue
			}
			if d.status == StatusReady {
				continue
			}
			if d.status == StatusFailed || d.status == StatusDestroyed {
				if required {
					failed = fmt.Errorf("%w: %s requires %s (%s)", ErrMissingDependency, id, dep, d.status)
				}
				continue
			}
			if err := visit(dep, append(path, id)); err != nil && required && failed == nil {
				failed = err
			}
		}

		state[id] = done
		if failed != nil {
			failures[id] = failed
			return failed
		}
		order = append(order, id)
		return nil
	}

	for _, id := range r.order {
		if r.regs[id].status == StatusRegistered && state[id] == unvisited {
			_ = visit(id, nil)
		}
	}
	return order, failures
}

// Destroy tears plugins down in reverse initialization order. Afterwards
// Get returns absent for every id and every id may be registered again,
// including plugins that failed or never initialized.
func (r *Registry) Destroy() {
	r.mu.Lock()
	inited := make(map[string]bool, len(r.inited))
	var ids []string
	var instances []Plugin
	for i := len(r.inited) - 1; i >= 0; i-- {
		id := r.inited[i]
		inited[id] = true
		ids = append(ids, id)
		reg := r.regs[id]
		if reg.instance != nil {
			instances = append(instances, reg.instance)
		}
	}
	// Registered, initializing and failed plugins never reached inited but
	// must still free their id for a later Register.
	for _, id := range r.order {
		reg := r.regs[id]
		if inited[id] || reg.status == StatusDestroyed {
			continue
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		reg := r.regs[id]
		reg.instance = nil
		reg.status = StatusDestroyed
	}
	r.inited = nil
	r.mu.Unlock()

	for _, p := range instances {
		r.destroyOne(p)
	}
	for _, id := range ids {
		r.changed.Emit(id)
	}
}

func (r *Registry) destroyOne(p Plugin) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("plugin destroy panicked", "plugin", p.ID(), "panic", fmt.Sprint(rec))
		}
	}()
	p.Destroy()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
