// Package config loads folio's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marcus/folio/internal/plugins/interaction"
)

const (
	appDir   = "folio"
	fileName = "config.yaml"
)

// ErrInvalidConfig is returned when a loaded config fails validation.
var ErrInvalidConfig = errors.New("config: invalid")

// Config is the on-disk configuration.
type Config struct {
	LogLevel string `yaml:"logLevel"`
	LogFile  string `yaml:"logFile"`
	Mouse    bool   `yaml:"mouse"`

	Interaction InteractionConfig `yaml:"interaction"`
	Export      ExportConfig      `yaml:"export"`
	Plugins     PluginsConfig     `yaml:"plugins"`
}

// InteractionConfig configures the interaction manager.
type InteractionConfig struct {
	DefaultMode string                        `yaml:"defaultMode"`
	Modes       []interaction.InteractionMode `yaml:"modes"`
}

// ExportConfig configures the export plugin.
type ExportConfig struct {
	OutputDir           string `yaml:"outputDir"`
	FileName            string `yaml:"fileName"`
	CopyPathToClipboard bool   `yaml:"copyPathToClipboard"`
}

// PluginsConfig toggles optional plugins.
type PluginsConfig struct {
	Export bool `yaml:"export"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Mouse:    true,
		Interaction: InteractionConfig{
			DefaultMode: interaction.DefaultModeID,
			Modes: []interaction.InteractionMode{
				{ID: "highlight", Scope: interaction.ScopePage, Exclusive: true, Cursor: "text"},
				{ID: "pan", Scope: interaction.ScopeGlobal, Exclusive: true, Cursor: "grab"},
			},
		},
		Export: ExportConfig{
			FileName: "{name}-copy.pdf",
		},
		Plugins: PluginsConfig{Export: true},
	}
}

// Dir returns folio's config directory, ~/.config/folio on Linux.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appDir)
}

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(Dir(), fileName)
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks log level and interaction modes.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	seen := map[string]bool{interaction.DefaultModeID: true}
	for _, m := range c.Interaction.Modes {
		if m.ID == "" {
			return fmt.Errorf("%w: interaction mode without id", ErrInvalidConfig)
		}
		if seen[m.ID] {
			return fmt.Errorf("%w: duplicate interaction mode %q", ErrInvalidConfig, m.ID)
		}
		seen[m.ID] = true
		switch m.Scope {
		case "", interaction.ScopeGlobal, interaction.ScopePage:
		default:
			return fmt.Errorf("%w: mode %q has scope %q (want global or page)", ErrInvalidConfig, m.ID, m.Scope)
		}
	}
	if d := c.Interaction.DefaultMode; d != "" && !seen[d] {
		return fmt.Errorf("%w: default mode %q is not defined", ErrInvalidConfig, d)
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, s)
}

// InteractionPluginConfig converts to the interaction plugin's config.
func (c *Config) InteractionPluginConfig() interaction.Config {
	return interaction.Config{
		DefaultMode: c.Interaction.DefaultMode,
		Modes:       append([]interaction.InteractionMode(nil), c.Interaction.Modes...),
	}
}
