package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marcus/folio/internal/app"
	"github.com/marcus/folio/internal/config"
	"github.com/marcus/folio/internal/docdir"
	"github.com/marcus/folio/internal/engine"
	"github.com/marcus/folio/internal/plugin"
	"github.com/marcus/folio/internal/plugins/export"
	"github.com/marcus/folio/internal/plugins/interaction"
)

const logFileName = "folio.log"

type options struct {
	configPath string
	logLevel   string
	logFile    string
	outputDir  string
	noMouse    bool
	headless   bool
}

// load reads the config and applies flag overrides.
func (o *options) load() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFile != "" {
		cfg.LogFile = o.logFile
	}
	if o.outputDir != "" {
		cfg.Export.OutputDir = o.outputDir
	}
	if o.noMouse {
		cfg.Mouse = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger opens the log file. The viewer owns the terminal, so logs never
// go to stderr while it runs; open installs the logger as the slog default.
func newLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	path := cfg.LogFile
	if path == "" {
		path = filepath.Join(config.Dir(), logFileName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})), f, nil
}

// registerPlugins returns the function that adds folio's plugin packages to
// a registry. It runs at startup and again on every plugin restart.
func registerPlugins(cfg *config.Config) func(*plugin.Registry) error {
	return func(reg *plugin.Registry) error {
		if err := plugin.Register(reg, interaction.Package, cfg.InteractionPluginConfig()); err != nil {
			return err
		}
		if !cfg.Plugins.Export {
			return nil
		}
		return plugin.Register(reg, export.Package, export.Config{
			OutputDir:           cfg.Export.OutputDir,
			DefaultFileName:     cfg.Export.FileName,
			CopyPathToClipboard: cfg.Export.CopyPathToClipboard,
		})
	}
}

// session is an open document with its initialized registry.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	eng      *engine.FileEngine
	registry *plugin.Registry
	register func(*plugin.Registry) error
	closers  []io.Closer

	prevLogger *slog.Logger // slog default replaced by open
}

func (o *options) open(ctx context.Context, docPath string) (*session, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	logger, logCloser, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}, prevLogger: slog.Default()}
	slog.SetDefault(logger)

	s.eng = engine.NewFileEngine()
	doc, err := s.eng.Open(ctx, docPath)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, s.eng)

	dataDir, err := docdir.Resolve(doc.Path, doc.ID)
	if err != nil {
		logger.Warn("folio: data dir unavailable", "err", err)
	}

	s.registry = plugin.NewRegistry(plugin.Options{
		Engine:    s.eng,
		Logger:    logger,
		ConfigDir: config.Dir(),
		DataDir:   dataDir,
	})
	s.register = registerPlugins(cfg)
	if err := s.register(s.registry); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.registry.Initialize(); err != nil {
		logger.Warn("folio: some plugins failed", "err", err)
	}
	logger.Info("folio: opened", "doc", doc.Path, "pages", doc.PageCount, "plugins", len(s.registry.Plugins()))
	return s, nil
}

// Close destroys the registry, restores the previous slog default and closes
// the engine and log file.
func (s *session) Close() {
	if s.registry != nil {
		s.registry.Destroy()
	}
	if s.prevLogger != nil {
		slog.SetDefault(s.prevLogger)
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i].Close()
	}
}

func (o *options) runView(cmd *cobra.Command, docPath string) error {
	s, err := o.open(cmd.Context(), docPath)
	if err != nil {
		return err
	}
	defer s.Close()

	if o.headless || !term.IsTerminal(int(os.Stdout.Fd())) {
		return printStatus(cmd.OutOrStdout(), s.registry)
	}

	model := app.New(app.Options{
		Registry: s.registry,
		Engine:   s.eng,
		Register: s.register,
		Logger:   s.logger,
	})
	progOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if s.cfg.Mouse {
		progOpts = append(progOpts, tea.WithMouseCellMotion())
	}
	final, err := tea.NewProgram(model, progOpts...).Run()
	closeModels(model, final)
	if err != nil {
		return fmt.Errorf("run viewer: %w", err)
	}
	return nil
}

// closeModels closes the model bubbletea returned along with the one it was
// started with. Update works on copies, so bindings created while running
// are only reachable from the final model.
func closeModels(initial app.Model, final tea.Model) {
	if m, ok := final.(app.Model); ok {
		m.Close()
	}
	initial.Close()
}

// printStatus writes one row per registered plugin.
func printStatus(w io.Writer, reg *plugin.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLUGIN\tVERSION\tSTATUS\tERROR")
	for _, id := range reg.IDs() {
		man, _ := reg.Manifest(id)
		errText := ""
		if err := reg.Err(id); err != nil {
			errText = err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, man.Version, reg.Status(id), errText)
	}
	return tw.Flush()
}
