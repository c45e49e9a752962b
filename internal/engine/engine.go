// Package engine is the document runtime handed to every plugin at creation.
// It loads documents as opaque bytes; it does not parse or render them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ErrNoDocument is returned when an operation needs an open document.
var ErrNoDocument = errors.New("engine: no document open")

// Engine is the runtime contract plugins depend on.
type Engine interface {
	// Open loads the document at path and makes it current.
	Open(ctx context.Context, path string) (*Document, error)
	// Document returns the current document, if any.
	Document() (*Document, bool)
	// SaveAsCopy returns a byte-for-byte copy of the current document.
	SaveAsCopy(ctx context.Context) ([]byte, error)
	// Watch emits an event whenever the current document changes on disk.
	Watch(ctx context.Context) (<-chan Event, error)
	Close() error
}

// Document describes an opened document.
type Document struct {
	ID        string // xxhash of the content
	Path      string
	Name      string
	Size      int64
	PageCount int
	ModTime   time.Time
}

// EventType identifies a document change.
type EventType string

const (
	EventReloaded EventType = "reloaded"
	EventRemoved  EventType = "removed"
)

// Event is emitted by Watch.
type Event struct {
	Type     EventType
	Document *Document
	Err      error
}

// pageMarker matches page objects but not the /Pages tree node.
var pageMarker = regexp.MustCompile(`/Type\s*/Page[^s]`)

// FileEngine serves documents straight from the filesystem.
type FileEngine struct {
	mu      sync.RWMutex
	doc     *Document
	data    []byte
	closers []func()
}

// NewFileEngine creates an engine with no document open.
func NewFileEngine() *FileEngine {
	return &FileEngine{}
}

// Open reads path into memory and makes it the current document.
func (e *FileEngine) Open(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	doc, data, err := load(abs)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.doc = doc
	e.data = data
	e.mu.Unlock()
	return doc, nil
}

func load(path string) (*Document, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: read %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: stat %s: %w", path, err)
	}

	pages := len(pageMarker.FindAllIndex(data, -1))
	if pages == 0 && len(data) > 0 {
		pages = 1
	}

	return &Document{
		ID:        strconv.FormatUint(xxhash.Sum64(data), 16),
		Path:      path,
		Name:      filepath.Base(path),
		Size:      info.Size(),
		PageCount: pages,
		ModTime:   info.ModTime(),
	}, data, nil
}

// Document returns the current document.
func (e *FileEngine) Document() (*Document, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.doc, e.doc != nil
}

// SaveAsCopy returns a copy of the current document's bytes.
func (e *FileEngine) SaveAsCopy(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.doc == nil {
		return nil, ErrNoDocument
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

// Watch starts watching the current document. The channel closes when ctx
// is cancelled or the engine is closed.
func (e *FileEngine) Watch(ctx context.Context) (<-chan Event, error) {
	doc, ok := e.Document()
	if !ok {
		return nil, ErrNoDocument
	}

	ctx, cancel := context.WithCancel(ctx)
	raw, err := newWatcher(ctx, doc.Path)
	if err != nil {
		cancel()
		return nil, err
	}

	e.mu.Lock()
	e.closers = append(e.closers, cancel)
	e.mu.Unlock()

	out := make(chan Event, 8)
	go func() {
		defer close(out)
		for typ := range raw {
			evt := Event{Type: typ}
			if typ == EventReloaded {
				d, data, err := load(doc.Path)
				if err != nil {
					evt.Err = err
				} else {
					e.mu.Lock()
					e.doc = d
					e.data = data
					e.mu.Unlock()
					evt.Document = d
				}
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close stops all watchers.
func (e *FileEngine) Close() error {
	e.mu.Lock()
	closers := e.closers
	e.closers = nil
	e.mu.Unlock()

	for _, c := range closers {
		c()
	}
	return nil
}
