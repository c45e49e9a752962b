package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marcus/folio/internal/app"
	"github.com/marcus/folio/internal/config"
	"github.com/marcus/folio/internal/docdir"
	"github.com/marcus/folio/internal/engine"
	"github.com/marcus/folio/internal/event"
	"github.com/marcus/folio/internal/plugin"
	"github.com/marcus/folio/internal/plugins/export"
	"github.com/marcus/folio/internal/plugins/interaction"
)

const twoPages = `%PDF-1.7
1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj
2 0 obj << /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 >> endobj
3 0 obj << /Type /Page /Parent 2 0 R >> endobj
4 0 obj << /Type /Page /Parent 2 0 R >> endobj
%%EOF
`

// isolate points the config directory at a temp dir and returns a PDF
// inside another one.
func isolate(t *testing.T) (configHome, pdf string) {
	t.Helper()
	configHome = t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("HOME", t.TempDir())
	pdf = filepath.Join(t.TempDir(), "report.pdf")
	if err := os.WriteFile(pdf, []byte(twoPages), 0644); err != nil {
		t.Fatal(err)
	}
	return configHome, pdf
}

func TestOptionsLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("logLevel: warn\nexport:\n  outputDir: /from/file\n"), 0644); err != nil {
		t.Fatal(err)
	}

	opts := &options{configPath: path, logLevel: "debug", outputDir: "/from/flag", noMouse: true}
	cfg, err := opts.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Export.OutputDir != "/from/flag" {
		t.Errorf("OutputDir = %q, want /from/flag", cfg.Export.OutputDir)
	}
	if cfg.Mouse {
		t.Error("Mouse should be disabled by --no-mouse")
	}
}

func TestOptionsLoadRejectsBadLevel(t *testing.T) {
	opts := &options{configPath: filepath.Join(t.TempDir(), "missing.yaml"), logLevel: "loud"}
	if _, err := opts.load(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestRegisterPlugins(t *testing.T) {
	tests := []struct {
		name   string
		export bool
		want   []string
	}{
		{"with export", true, []string{interaction.PluginID, export.PluginID}},
		{"interaction only", false, []string{interaction.PluginID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Plugins.Export = tt.export
			reg := plugin.NewRegistry(plugin.Options{DataDir: t.TempDir()})
			if err := registerPlugins(cfg)(reg); err != nil {
				t.Fatalf("register: %v", err)
			}
			got := reg.IDs()
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("IDs = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrintStatus(t *testing.T) {
	cfg := config.Default()
	cfg.Plugins.Export = false
	reg := plugin.NewRegistry(plugin.Options{})
	if err := registerPlugins(cfg)(reg); err != nil {
		t.Fatal(err)
	}
	if err := reg.Initialize(); err != nil {
		t.Fatal(err)
	}
	defer reg.Destroy()

	var buf bytes.Buffer
	if err := printStatus(&buf, reg); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "PLUGIN") || !strings.Contains(out, interaction.PluginID) {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "ready") {
		t.Errorf("expected ready status:\n%s", out)
	}
}

func TestOpenRoutesDefaultLoggerToFile(t *testing.T) {
	_, pdf := isolate(t)
	dir := t.TempDir()
	logPath := filepath.Join(dir, "folio.log")
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("logFile: "+logPath+"\nplugins:\n  export: false\n"), 0644); err != nil {
		t.Fatal(err)
	}
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	s, err := (&options{configPath: cfgPath}).open(context.Background(), pdf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	em := event.NewEmitter[int](event.WithName("test.faults"))
	em.On(func(int) { panic("listener fault") })
	em.Emit(1)

	s.Close()
	if slog.Default() != prev {
		t.Error("Close should restore the previous default logger")
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "listener fault") {
		t.Errorf("listener panic not in log file:\n%s", data)
	}
}

func TestCloseModelsReleasesFinalBindings(t *testing.T) {
	_, pdf := isolate(t)
	eng := engine.NewFileEngine()
	if _, err := eng.Open(context.Background(), pdf); err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	cfg := config.Default()
	cfg.Plugins.Export = false
	reg := plugin.NewRegistry(plugin.Options{Engine: eng})
	if err := registerPlugins(cfg)(reg); err != nil {
		t.Fatal(err)
	}
	if err := reg.Initialize(); err != nil {
		t.Fatal(err)
	}
	defer reg.Destroy()
	im, ok := plugin.PluginOf[*interaction.Plugin](reg, interaction.PluginID).Get()
	if !ok {
		t.Fatal("interaction manager not ready")
	}

	initial := app.New(app.Options{Registry: reg, Engine: eng})
	// Bubbletea hands back the model produced by the last Update.
	final, _ := initial.Update(app.DocumentEventMsg{Event: engine.Event{
		Type:     engine.EventReloaded,
		Document: &engine.Document{Name: "report.pdf", PageCount: 3},
	}})
	if err := im.Activate("highlight"); err != nil {
		t.Fatal(err)
	}
	if got := len(im.HandlersFor(2)); got != 1 {
		t.Fatalf("handlers on new page = %d, want 1", got)
	}

	closeModels(initial, final)
	if got := len(im.HandlersFor(2)); got != 0 {
		t.Errorf("handlers after close = %d, want 0", got)
	}
}

func TestPrintHistoryCreatesNothing(t *testing.T) {
	configHome, pdf := isolate(t)
	doc := &engine.Document{Path: pdf, ID: "0123456789abcdef", Name: "report.pdf"}

	var buf bytes.Buffer
	if err := printHistory(&buf, doc, 0); err != nil {
		t.Fatalf("printHistory: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "no exports" {
		t.Errorf("output = %q", buf.String())
	}
	if _, err := os.Stat(filepath.Join(configHome, "folio")); !os.IsNotExist(err) {
		t.Errorf("config dir was created (err = %v)", err)
	}

	// A data dir without a history database stays without one.
	dir, err := docdir.Resolve(doc.Path, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	if err := printHistory(&buf, doc, 0); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "no exports" {
		t.Errorf("output = %q", buf.String())
	}
	if _, err := os.Stat(filepath.Join(dir, export.HistoryFile)); !os.IsNotExist(err) {
		t.Errorf("history database was created (err = %v)", err)
	}
}

func TestPrintHistoryListsExports(t *testing.T) {
	_, pdf := isolate(t)
	doc := &engine.Document{Path: pdf, ID: "0123456789abcdef", Name: "report.pdf"}
	dir, err := docdir.Resolve(doc.Path, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	h, err := export.OpenHistory(filepath.Join(dir, export.HistoryFile))
	if err != nil {
		t.Fatal(err)
	}
	rec := export.Record{ID: "r1", DocumentID: doc.ID, DocumentName: doc.Name, Path: "/out/report-copy.pdf", Size: 9, CreatedAt: time.Now()}
	if err := h.Add(rec); err != nil {
		t.Fatal(err)
	}
	h.Close()

	var buf bytes.Buffer
	if err := printHistory(&buf, doc, 0); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "/out/report-copy.pdf") {
		t.Errorf("output missing export:\n%s", buf.String())
	}
}
