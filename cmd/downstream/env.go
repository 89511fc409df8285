package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chuanqisun/downstream/internal/config"
)

// envConfig holds configuration from environment variables. Provides
// CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath string // DOWNSTREAM_CONFIG: config file path
	Mode       string // DOWNSTREAM_MODE: term, html, browser
	Style      string // DOWNSTREAM_STYLE: chroma style name
	Title      string // DOWNSTREAM_TITLE: html document title
	OutputDir  string // DOWNSTREAM_OUTPUT_DIR: default output directory
	Width      int    // DOWNSTREAM_WIDTH: terminal wrap width
	Workers    int    // DOWNSTREAM_WORKERS: parallel documents
}

// knownEnvVars lists valid DOWNSTREAM_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"DOWNSTREAM_CONFIG":     true,
	"DOWNSTREAM_MODE":       true,
	"DOWNSTREAM_STYLE":      true,
	"DOWNSTREAM_TITLE":      true,
	"DOWNSTREAM_OUTPUT_DIR": true,
	"DOWNSTREAM_WIDTH":      true,
	"DOWNSTREAM_WORKERS":    true,
}

// loadEnvConfig reads configuration from environment variables.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath: os.Getenv("DOWNSTREAM_CONFIG"),
		Mode:       os.Getenv("DOWNSTREAM_MODE"),
		Style:      os.Getenv("DOWNSTREAM_STYLE"),
		Title:      os.Getenv("DOWNSTREAM_TITLE"),
		OutputDir:  os.Getenv("DOWNSTREAM_OUTPUT_DIR"),
	}

	if width := os.Getenv("DOWNSTREAM_WIDTH"); width != "" {
		if w, err := strconv.Atoi(width); err == nil && w > 0 {
			cfg.Width = w
		}
	}
	if workers := os.Getenv("DOWNSTREAM_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			cfg.Workers = w
		}
	}

	return cfg
}

// warnUnknownEnvVars logs warnings for unrecognized DOWNSTREAM_* variables.
// Helps catch typos like DOWNSTREAM_STYL instead of DOWNSTREAM_STYLE.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "DOWNSTREAM_") {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig applies environment variable values to config. Only sets
// values the config file left empty, so precedence stays:
// CLI flags > env vars > config file > defaults.
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Mode != "" && cfg.Render.Mode == "" {
		cfg.Render.Mode = env.Mode
	}
	if env.Style != "" && cfg.Render.Style == "" {
		cfg.Render.Style = env.Style
	}
	if env.Title != "" && cfg.Output.Title == "" {
		cfg.Output.Title = env.Title
	}
	if env.OutputDir != "" && cfg.Output.Dir == "" {
		cfg.Output.Dir = env.OutputDir
	}
	if env.Width > 0 && cfg.Render.Width == 0 {
		cfg.Render.Width = env.Width
	}
	if env.Workers > 0 && cfg.Workers == 0 {
		cfg.Workers = env.Workers
	}
}
