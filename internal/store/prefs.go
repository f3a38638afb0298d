package store

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"cortex-annotate/internal/style"
)

// PrefsFile is the per-user preferences file name inside the save directory.
const PrefsFile = ".annot-prefs.yaml"

// Preferences are the user's persisted display settings: per-annotation
// style overrides (the empty name is the foreground annotation) and the
// preferred display size in pixels.
type Preferences struct {
	Style     map[string]style.Override `yaml:"style"`
	ImageSize int                       `yaml:"imagesize"`
}

func DefaultPreferences() *Preferences {
	return &Preferences{Style: map[string]style.Override{}, ImageSize: 256}
}

// LoadPreferences reads preferences from the save directory, returning
// defaults when no file exists. Invalid style overrides are an error.
func (s *Store) LoadPreferences() (*Preferences, error) {
	path := filepath.Join(s.Root, PrefsFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultPreferences(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	p := DefaultPreferences()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("store: parsing %s: %w", path, err)
	}
	if p.Style == nil {
		p.Style = map[string]style.Override{}
	}
	for name, ov := range p.Style {
		if err := style.Validate(ov); err != nil {
			return nil, fmt.Errorf("store: %s: style %q: %w", path, name, err)
		}
	}
	if p.ImageSize < 1 {
		p.ImageSize = 256
	}
	return p, nil
}

// SavePreferences writes preferences to the save directory.
func (s *Store) SavePreferences(p *Preferences) error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	path := filepath.Join(s.Root, PrefsFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}
