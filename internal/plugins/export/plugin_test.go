package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/folio/internal/engine"
	"github.com/marcus/folio/internal/plugin"
	"github.com/marcus/folio/internal/store"
)

type fakeEngine struct {
	doc  *engine.Document
	data []byte
	err  error
}

func (f *fakeEngine) Open(context.Context, string) (*engine.Document, error) { return f.doc, nil }

func (f *fakeEngine) Document() (*engine.Document, bool) { return f.doc, f.doc != nil }

func (f *fakeEngine) SaveAsCopy(context.Context) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.doc == nil {
		return nil, engine.ErrNoDocument
	}
	return append([]byte(nil), f.data...), nil
}

func (f *fakeEngine) Watch(context.Context) (<-chan engine.Event, error) { return nil, nil }

func (f *fakeEngine) Close() error { return nil }

func sampleEngine() *fakeEngine {
	return &fakeEngine{
		doc:  &engine.Document{ID: "0123456789abcdef", Name: "report.pdf", Size: 9},
		data: []byte("%PDF-1.7\n"),
	}
}

func newTestPlugin(t *testing.T, eng engine.Engine, cfg Config, dataDir string) *Plugin {
	t.Helper()
	p := New(eng, cfg)
	p.BindStore(store.New(InitialState(), Reduce))
	p.writeClipboard = func(string) error { return nil }
	require.NoError(t, p.Init(&plugin.Context{DataDir: dataDir}))
	t.Cleanup(p.Destroy)
	return p
}

func TestFileName(t *testing.T) {
	doc := &engine.Document{ID: "0123456789abcdef", Name: "report.final.pdf"}
	tests := []struct {
		pattern string
		want    string
	}{
		{DefaultFileName, "report.final-copy.pdf"},
		{"{id}.pdf", "01234567.pdf"},
		{"{name}-{id}.pdf", "report.final-01234567.pdf"},
		{"../../{name}.pdf", "report.final.pdf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileName(tt.pattern, doc), tt.pattern)
	}
}

func TestDownloadWritesAndRecords(t *testing.T) {
	out := t.TempDir()
	data := t.TempDir()
	eng := sampleEngine()

	var copied string
	p := newTestPlugin(t, eng, Config{OutputDir: out, CopyPathToClipboard: true}, data)
	p.writeClipboard = func(s string) error { copied = s; return nil }

	var requests []Request
	p.OnRequest(func(r Request) { requests = append(requests, r) })

	rec, err := p.Download(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "report-copy.pdf"), rec.Path)
	assert.Equal(t, rec.Path, copied)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, int64(9), rec.Size)

	written, err := os.ReadFile(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, eng.data, written)

	rec2, err := p.Download(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "report-copy-1.pdf"), rec2.Path)

	st := p.State()
	assert.Equal(t, 2, st.Exports)
	assert.Equal(t, rec2.Path, st.LastPath)
	assert.Empty(t, st.Error)

	require.Len(t, requests, 2)
	assert.Equal(t, RequestDownload, requests[0].Kind)
	assert.Equal(t, rec.ID, requests[0].Record.ID)

	hist, err := p.History(10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	ids := []string{hist[0].ID, hist[1].ID}
	assert.ElementsMatch(t, []string{rec.ID, rec2.ID}, ids)
}

func TestHistoryNewestFirstAndSeeded(t *testing.T) {
	out := t.TempDir()
	data := t.TempDir()
	eng := sampleEngine()

	p := New(eng, Config{OutputDir: out})
	p.BindStore(store.New(InitialState(), Reduce))
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	p.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }
	require.NoError(t, p.Init(&plugin.Context{DataDir: data}))

	first, err := p.Download(context.Background())
	require.NoError(t, err)
	second, err := p.Download(context.Background())
	require.NoError(t, err)

	hist, err := p.History(1)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, second.ID, hist[0].ID)
	assert.True(t, hist[0].CreatedAt.Equal(second.CreatedAt))
	p.Destroy()

	// A new instance over the same data dir starts from the stored count.
	again := newTestPlugin(t, eng, Config{OutputDir: out}, data)
	assert.Equal(t, 2, again.State().Exports)
	all, err := again.History(0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[1].ID)
}

func TestDownloadWithoutDocument(t *testing.T) {
	p := newTestPlugin(t, &fakeEngine{}, Config{OutputDir: t.TempDir()}, "")
	_, err := p.Download(context.Background())
	assert.ErrorIs(t, err, engine.ErrNoDocument)

	_, err = p.SaveAsCopy(context.Background())
	assert.ErrorIs(t, err, engine.ErrNoDocument)
}

func TestDownloadEngineFailure(t *testing.T) {
	eng := sampleEngine()
	eng.err = errors.New("disk gone")
	p := newTestPlugin(t, eng, Config{OutputDir: t.TempDir()}, "")

	_, err := p.Download(context.Background())
	require.Error(t, err)
	assert.Equal(t, "disk gone", p.State().Error)
	assert.Equal(t, 0, p.State().Exports)
}

func TestHistoryUnavailable(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the data directory should be.
	blocker := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	out := t.TempDir()
	p := newTestPlugin(t, sampleEngine(), Config{OutputDir: out}, filepath.Join(blocker, "doc"))
	assert.NotEmpty(t, p.State().HistoryError)
	assert.Empty(t, p.State().Error)

	rec, err := p.Download(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, rec.Path)

	hist, err := p.History(10)
	require.NoError(t, err)
	assert.Empty(t, hist)

	diags := p.Diagnostics()
	require.Len(t, diags, 2)
	assert.Equal(t, "error", diags[0].Status)
	assert.Equal(t, "ok", diags[1].Status)
}

func TestSuccessfulExportClearsError(t *testing.T) {
	eng := sampleEngine()
	eng.err = errors.New("transient")
	p := newTestPlugin(t, eng, Config{OutputDir: t.TempDir()}, t.TempDir())

	_, err := p.Download(context.Background())
	require.Error(t, err)
	assert.Equal(t, "transient", p.State().Error)

	eng.err = nil
	_, err = p.Download(context.Background())
	require.NoError(t, err)

	st := p.State()
	assert.Equal(t, 1, st.Exports)
	assert.Empty(t, st.Error)
	assert.Empty(t, st.HistoryError)
	for _, d := range p.Diagnostics() {
		assert.Equal(t, "ok", d.Status, d.ID)
	}
}

func TestDownloadNameTooLong(t *testing.T) {
	eng := sampleEngine()
	// A legal 255-byte name that the "-copy" suffix pushes over the limit.
	eng.doc.Name = strings.Repeat("x", 251) + ".pdf"
	p := newTestPlugin(t, eng, Config{OutputDir: t.TempDir()}, "")

	done := make(chan error, 1)
	go func() {
		_, err := p.Download(context.Background())
		done <- err
	}()
	select {
	case err := <-done:
		require.Error(t, err)
		assert.NotEmpty(t, p.State().Error)
		assert.Equal(t, 0, p.State().Exports)
	case <-time.After(5 * time.Second):
		t.Fatal("Download did not return")
	}
}

func TestDownloadConcurrentNamesDistinct(t *testing.T) {
	out := t.TempDir()
	p := newTestPlugin(t, sampleEngine(), Config{OutputDir: out}, t.TempDir())

	const n = 8
	paths := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := p.Download(context.Background())
			assert.NoError(t, err)
			paths <- rec.Path
		}()
	}
	wg.Wait()
	close(paths)

	seen := make(map[string]bool)
	for path := range paths {
		assert.False(t, seen[path], "duplicate path %s", path)
		seen[path] = true
	}
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, n)
	assert.Equal(t, n, p.State().Exports)
}

func TestSaveAsCopy(t *testing.T) {
	eng := sampleEngine()
	p := newTestPlugin(t, eng, Config{OutputDir: t.TempDir()}, "")

	var kinds []RequestKind
	p.OnRequest(func(r Request) { kinds = append(kinds, r.Kind) })

	data, err := p.SaveAsCopy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, eng.data, data)
	assert.Equal(t, []RequestKind{RequestSaveAsCopy}, kinds)
}

func TestPackageThroughRegistry(t *testing.T) {
	reg := plugin.NewRegistry(plugin.Options{Engine: sampleEngine(), DataDir: t.TempDir()})
	require.NoError(t, plugin.Register(reg, Package, Config{OutputDir: t.TempDir()}))
	require.NoError(t, reg.Initialize())
	defer reg.Destroy()

	capability, ok := plugin.CapabilityOf[Capability](reg, PluginID).Get()
	require.True(t, ok)
	rec, err := capability.Download(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, capability.State().Exports)
	assert.FileExists(t, rec.Path)
}
