package plugin

import (
	"log/slog"

	"github.com/marcus/folio/internal/engine"
)

// Context provides shared resources to plugins during initialization.
type Context struct {
	Registry  *Registry
	Engine    engine.Engine
	ConfigDir string
	DataDir   string // Per-document directory, empty when no document is open
	Logger    *slog.Logger
}
