package main

import (
	"strings"
	"testing"

	"github.com/chuanqisun/downstream/internal/config"
)

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("DOWNSTREAM_MODE", "html")
	t.Setenv("DOWNSTREAM_STYLE", "dracula")
	t.Setenv("DOWNSTREAM_WIDTH", "120")
	t.Setenv("DOWNSTREAM_WORKERS", "4")

	env := loadEnvConfig()
	if env.Mode != "html" || env.Style != "dracula" {
		t.Errorf("env = %+v", env)
	}
	if env.Width != 120 || env.Workers != 4 {
		t.Errorf("Width = %d, Workers = %d", env.Width, env.Workers)
	}
}

func TestLoadEnvConfig_IgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("DOWNSTREAM_WIDTH", "wide")
	t.Setenv("DOWNSTREAM_WORKERS", "-3")

	env := loadEnvConfig()
	if env.Width != 0 || env.Workers != 0 {
		t.Errorf("invalid numbers should be ignored: %+v", env)
	}
}

func TestApplyEnvConfig_ConfigFileWins(t *testing.T) {
	env := &envConfig{Mode: "browser", Style: "dracula", Width: 120}
	cfg := config.DefaultConfig()
	cfg.Render.Mode = config.ModeHTML
	cfg.Render.Style = "monokai"

	applyEnvConfig(env, cfg)

	if cfg.Render.Mode != config.ModeHTML {
		t.Errorf("Mode = %q, config value should win", cfg.Render.Mode)
	}
	if cfg.Render.Style != "monokai" {
		t.Errorf("Style = %q, config value should win", cfg.Render.Style)
	}
	if cfg.Render.Width != 120 {
		t.Errorf("Width = %d, env should fill empty value", cfg.Render.Width)
	}
}

func TestWarnUnknownEnvVars(t *testing.T) {
	t.Setenv("DOWNSTREAM_STYL", "typo")
	t.Setenv("DOWNSTREAM_STYLE", "valid")

	var sb strings.Builder
	warnUnknownEnvVars(&sb)

	out := sb.String()
	if !strings.Contains(out, "DOWNSTREAM_STYL") {
		t.Errorf("expected warning for typo, got %q", out)
	}
	if strings.Contains(out, "DOWNSTREAM_STYLE ") {
		t.Errorf("valid variable should not warn: %q", out)
	}
}
