// Package config loads the codesize configuration: defaults, then the YAML
// config file, then CODESIZE_* environment variables. Command-line flags
// are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/codesize/internal/constants"
)

// Loader reads and writes the config file.
type Loader struct {
	dir string
}

// NewLoader creates a loader. The config directory is, in order:
// $CODESIZE_CONFIG, ~/.codesize, or a fallback under /tmp when there is no
// home directory.
func NewLoader() *Loader {
	if dir := os.Getenv("CODESIZE_CONFIG"); dir != "" {
		return &Loader{dir: dir}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return &Loader{dir: filepath.Join(home, constants.DefaultDir)}
	}
	return &Loader{dir: constants.FallbackDir}
}

// NewLoaderAt creates a loader rooted at dir.
func NewLoaderAt(dir string) *Loader {
	return &Loader{dir: dir}
}

// Dir returns the config directory.
func (l *Loader) Dir() string {
	return l.dir
}

// ConfigPath returns the path to the config file.
func (l *Loader) ConfigPath() string {
	return filepath.Join(l.dir, constants.ConfigFile)
}

// Load reads the config file at the default path.
func (l *Loader) Load() (*Config, error) {
	return l.LoadFile(l.ConfigPath())
}

// LoadFile reads the config at path, merges environment overrides, fills
// in the store path and validates the result. A missing file yields the
// defaults.
func (l *Loader) LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	//nolint:gosec // G304: path is the user's config file.
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(l.dir, constants.DefaultStoreFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to the default path.
func (l *Loader) Save(cfg *Config) error {
	return l.SaveFile(l.ConfigPath(), cfg)
}

// SaveFile writes cfg to path, creating its directory.
func (l *Loader) SaveFile(path string, cfg *Config) error {
	//nolint:gosec // G301: directory needs standard permissions for traversal
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	//nolint:gosec // G306: config file is not sensitive
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
