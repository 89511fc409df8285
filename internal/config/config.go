// Package config loads downstream CLI configuration from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
)

// maxConfigSize caps config input to keep a hostile file from exhausting
// memory.
const maxConfigSize = 1 << 20

// Render modes accepted by the CLI.
const (
	ModeTerm    = "term"
	ModeHTML    = "html"
	ModeBrowser = "browser"
)

// Config holds all configuration for the downstream CLI.
type Config struct {
	Render   RenderConfig   `yaml:"render"`
	Stream   StreamConfig   `yaml:"stream"`
	Simulate SimulateConfig `yaml:"simulate"`
	Output   OutputConfig   `yaml:"output"`
	Workers  int            `yaml:"workers"` // parallel documents in batch mode (0 = auto)
}

// RenderConfig selects the render adapter and its presentation options.
type RenderConfig struct {
	Mode  string `yaml:"mode"`  // "term", "html", "browser" (default: "term")
	Style string `yaml:"style"` // chroma style for terminal highlighting
	Width int    `yaml:"width"` // terminal wrap width (0 = detect)
}

// StreamConfig tunes orchestrator behavior.
type StreamConfig struct {
	MountEmptyBlocks bool `yaml:"mountEmptyBlocks"`
	BufferWhenPaused bool `yaml:"bufferWhenPaused"`
}

// SimulateConfig paces input replay to mimic a live generation source.
type SimulateConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ChunkSize int    `yaml:"chunkSize"` // bytes per write (default: 16)
	Delay     string `yaml:"delay"`     // pause between chunks, e.g. "25ms"
}

// DelayDuration parses the configured inter-chunk delay. An empty value
// means no delay.
func (c *SimulateConfig) DelayDuration() (time.Duration, error) {
	if c.Delay == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Delay)
	if err != nil {
		return 0, fmt.Errorf("simulate.delay: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("simulate.delay: must be >= 0, got %s", d)
	}
	return d, nil
}

// OutputConfig defines where assembled documents go in html mode.
type OutputConfig struct {
	Dir   string `yaml:"dir"`   // output directory (empty = alongside source)
	Title string `yaml:"title"` // HTML document title
}

// Validate checks that configured values are usable.
func (c *Config) Validate() error {
	switch c.Render.Mode {
	case "", ModeTerm, ModeHTML, ModeBrowser:
	default:
		return fmt.Errorf("render.mode: invalid value %q (must be %s, %s, or %s)",
			c.Render.Mode, ModeTerm, ModeHTML, ModeBrowser)
	}
	if c.Render.Width < 0 {
		return fmt.Errorf("render.width: must be >= 0, got %d", c.Render.Width)
	}
	if c.Simulate.ChunkSize < 0 {
		return fmt.Errorf("simulate.chunkSize: must be >= 0, got %d", c.Simulate.ChunkSize)
	}
	if _, err := c.Simulate.DelayDuration(); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers: must be >= 0, got %d", c.Workers)
	}
	return nil
}

// DefaultConfig returns a neutral configuration. The render mode is left
// empty so flag and environment merging can tell "unset" from an explicit
// choice; empty resolves to ModeTerm at use.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard
// locations. Returns an error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !isFilePath(nameOrPath) {
		resolved, err := resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
		configPath = resolved
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if len(data) > maxConfigSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrConfigParse, len(data), maxConfigSize)
	}

	cfg := DefaultConfig()
	// Strict mode rejects unknown fields, so typos fail loudly.
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// isFilePath returns true if the string looks like a file path.
func isFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// resolveConfigPath searches for a config file by name in standard
// locations. Tries extensions .yaml then .yml, in the current directory
// first and then the user config directory.
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	tried := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		localPath := name + ext
		if fileExists(localPath) {
			return localPath, nil
		}
		tried = append(tried, localPath)
	}

	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, "downstream", name+ext)
			if fileExists(userPath) {
				return userPath, nil
			}
			tried = append(tried, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(tried, ", "))
}

// fileExists returns true if the path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
