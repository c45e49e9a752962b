// Package export saves copies of the open document and keeps a per-document
// export history.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"

	"github.com/marcus/folio/internal/engine"
	"github.com/marcus/folio/internal/event"
	"github.com/marcus/folio/internal/plugin"
)

const (
	pluginID   = "export"
	pluginName = "Export"
)

// PluginID is the registry id of the export plugin.
const PluginID = pluginID

// DefaultFileName is used when Config.DefaultFileName is empty.
const DefaultFileName = "{name}-copy.pdf"

// Config configures the export plugin.
type Config struct {
	OutputDir           string
	DefaultFileName     string
	CopyPathToClipboard bool
	// HistoryPath overrides <DataDir>/exports.db.
	HistoryPath string
}

// RequestKind identifies an export request.
type RequestKind string

const (
	RequestDownload   RequestKind = "download"
	RequestSaveAsCopy RequestKind = "saveAsCopy"
)

// Request is delivered to OnRequest listeners after a request completes.
type Request struct {
	Kind   RequestKind
	Record Record // zero for saveAsCopy
}

// Capability is the consumer-facing surface of the export plugin.
type Capability interface {
	SaveAsCopy(ctx context.Context) ([]byte, error)
	Download(ctx context.Context) (Record, error)
	History(limit int) ([]Record, error)
	State() State
	OnStateChange(fn func(State)) event.Unsubscribe
	OnRequest(fn func(Request)) event.Unsubscribe
}

// Plugin implements Capability.
type Plugin struct {
	plugin.Base[State]

	cfg    Config
	engine engine.Engine
	logger *slog.Logger

	mu      sync.Mutex
	history *History

	requests *event.Emitter[Request]

	// writeClipboard is swapped in tests.
	writeClipboard func(string) error
	now            func() time.Time
}

var _ Capability = (*Plugin)(nil)

// New creates an export plugin bound to eng.
func New(eng engine.Engine, cfg Config) *Plugin {
	if cfg.DefaultFileName == "" {
		cfg.DefaultFileName = DefaultFileName
	}
	return &Plugin{
		cfg:            cfg,
		engine:         eng,
		logger:         slog.Default(),
		requests:       event.NewEmitter[Request](event.WithName(pluginID + ".request")),
		writeClipboard: clipboard.WriteAll,
		now:            time.Now,
	}
}

// ID returns the plugin identifier.
func (p *Plugin) ID() string { return pluginID }

// Init opens the export history. A history that cannot be opened is
// reported through State.Error and exports continue without it.
func (p *Plugin) Init(ctx *plugin.Context) error {
	if ctx.Logger != nil {
		p.logger = ctx.Logger
	}
	if p.engine == nil {
		p.engine = ctx.Engine
	}
	if p.cfg.OutputDir == "" {
		if wd, err := os.Getwd(); err == nil {
			p.cfg.OutputDir = wd
		}
	}

	path := p.cfg.HistoryPath
	if path == "" && ctx.DataDir != "" {
		path = filepath.Join(ctx.DataDir, HistoryFile)
	}
	if path == "" {
		return nil
	}

	h, err := OpenHistory(path)
	if err != nil {
		p.logger.Warn("export history unavailable", "path", path, "err", err)
		p.Dispatch(ActionHistoryFailed, err.Error())
		return nil
	}
	p.mu.Lock()
	p.history = h
	p.mu.Unlock()

	if n, err := h.Count(); err == nil {
		p.Dispatch(ActionSeed, n)
	}
	return nil
}

// Capability returns the plugin narrowed to Capability.
func (p *Plugin) Capability() any { return Capability(p) }

// Destroy closes the history database.
func (p *Plugin) Destroy() {
	p.mu.Lock()
	h := p.history
	p.history = nil
	p.mu.Unlock()
	if h != nil {
		if err := h.Close(); err != nil {
			p.logger.Warn("export history close", "err", err)
		}
	}
	p.requests.Clear()
}

// Diagnostics reports history availability and the last export failure.
func (p *Plugin) Diagnostics() []plugin.Diagnostic {
	st := p.State()
	history := plugin.Diagnostic{ID: "history", Status: "ok", Detail: fmt.Sprintf("%d exports", st.Exports)}
	if st.HistoryError != "" {
		history.Status, history.Detail = "error", st.HistoryError
	}
	last := plugin.Diagnostic{ID: "export", Status: "ok", Detail: st.LastPath}
	if st.Error != "" {
		last.Status, last.Detail = "error", st.Error
	}
	return []plugin.Diagnostic{history, last}
}

// SaveAsCopy returns the current document's bytes.
func (p *Plugin) SaveAsCopy(ctx context.Context) ([]byte, error) {
	if p.engine == nil {
		return nil, engine.ErrNoDocument
	}
	data, err := p.engine.SaveAsCopy(ctx)
	if err != nil {
		return nil, err
	}
	p.requests.Emit(Request{Kind: RequestSaveAsCopy})
	return data, nil
}

// Download writes a copy of the current document into the output directory
// and records it.
func (p *Plugin) Download(ctx context.Context) (Record, error) {
	if p.engine == nil {
		return Record{}, engine.ErrNoDocument
	}
	doc, ok := p.engine.Document()
	if !ok {
		return Record{}, engine.ErrNoDocument
	}
	data, err := p.engine.SaveAsCopy(ctx)
	if err != nil {
		return Record{}, p.fail(err)
	}

	if err := os.MkdirAll(p.cfg.OutputDir, 0755); err != nil {
		return Record{}, p.fail(fmt.Errorf("export: output dir: %w", err))
	}
	f, path, err := createUnique(filepath.Join(p.cfg.OutputDir, FileName(p.cfg.DefaultFileName, doc)))
	if err != nil {
		return Record{}, p.fail(fmt.Errorf("export: create %s: %w", path, err))
	}
	_, werr := f.Write(data)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(path)
		return Record{}, p.fail(fmt.Errorf("export: write %s: %w", path, werr))
	}

	rec := Record{
		ID:           uuid.NewString(),
		DocumentID:   doc.ID,
		DocumentName: doc.Name,
		Path:         path,
		Size:         int64(len(data)),
		CreatedAt:    p.now(),
	}

	p.mu.Lock()
	h := p.history
	p.mu.Unlock()
	if h != nil {
		if err := h.Add(rec); err != nil {
			p.logger.Warn("export history write failed", "err", err)
		}
	}

	if p.cfg.CopyPathToClipboard {
		if err := p.writeClipboard(path); err != nil {
			p.logger.Debug("clipboard unavailable", "err", err)
		}
	}

	p.logger.Info("document exported", "path", path, "bytes", rec.Size)
	p.Dispatch(ActionExported, path)
	p.requests.Emit(Request{Kind: RequestDownload, Record: rec})
	return rec, nil
}

func (p *Plugin) fail(err error) error {
	p.Dispatch(ActionFailed, err.Error())
	return err
}

// History returns the newest export records. It is empty when the history
// store is unavailable.
func (p *Plugin) History(limit int) ([]Record, error) {
	p.mu.Lock()
	h := p.history
	p.mu.Unlock()
	if h == nil {
		return nil, nil
	}
	return h.List(limit)
}

// OnRequest is notified after each completed export request.
func (p *Plugin) OnRequest(fn func(Request)) event.Unsubscribe {
	return p.requests.On(fn)
}

// FileName expands the {name} and {id} placeholders in pattern.
func FileName(pattern string, doc *engine.Document) string {
	name := strings.TrimSuffix(doc.Name, filepath.Ext(doc.Name))
	id := doc.ID
	if len(id) > 8 {
		id = id[:8]
	}
	out := strings.NewReplacer("{name}", name, "{id}", id).Replace(pattern)
	return filepath.Base(out)
}

// createUnique creates path exclusively, appending -1, -2, ... before the
// extension while the name is taken. Any error other than an existing file
// is returned with the candidate that caused it.
func createUnique(path string) (*os.File, string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	cand := path
	for i := 1; ; i++ {
		f, err := os.OpenFile(cand, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, cand, nil
		}
		if !os.IsExist(err) {
			return nil, cand, err
		}
		cand = base + "-" + strconv.Itoa(i) + ext
	}
}

// Package is the export plugin's plugin package.
var Package = plugin.Package[*Plugin, Config, State]{
	Manifest: plugin.Manifest{
		ID:          pluginID,
		Name:        pluginName,
		Version:     "1.0.0",
		Description: "Saves a copy of the open document.\n\nExports are recorded per document in `exports.db`.",
		Provides:    []string{"export"},
	},
	Create: func(_ *plugin.Registry, eng engine.Engine, cfg Config) *Plugin {
		return New(eng, cfg)
	},
	Reducer:      Reduce,
	InitialState: InitialState(),
}
