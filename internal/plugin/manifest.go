package plugin

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidManifest is returned when a manifest fails validation.
var ErrInvalidManifest = errors.New("plugin: invalid manifest")

// idPattern allows lowercase ids with dashes, e.g. "interaction-manager".
var idPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// Manifest identifies a plugin type to the registry.
type Manifest struct {
	ID          string
	Name        string
	Version     string
	Description string // Markdown, shown in the plugin info view

	Provides []string // Capability names this plugin exposes
	Requires []string // Plugin ids that must be ready first
	Optional []string // Plugin ids initialized first when present
}

// Validate checks the manifest's identity fields.
func (m Manifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidManifest)
	}
	if !idPattern.MatchString(m.ID) {
		return fmt.Errorf("%w: id %q must be lowercase alphanumeric with dashes", ErrInvalidManifest, m.ID)
	}
	for _, dep := range m.Requires {
		if dep == m.ID {
			return fmt.Errorf("%w: %s requires itself", ErrInvalidManifest, m.ID)
		}
	}
	return nil
}

// DisplayName returns Name, falling back to ID.
func (m Manifest) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}
