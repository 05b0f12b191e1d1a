package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonesrussell/viewtrace/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault_PassesValidation(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	if cfg.Service.Port != 8127 {
		t.Fatalf("unexpected default port: %d", cfg.Service.Port)
	}
	if cfg.Heatmap.DecayFactor != 0.95 {
		t.Fatalf("unexpected default decay factor: %v", cfg.Heatmap.DecayFactor)
	}
	if cfg.Persistence.WriteDebounce != 300*time.Millisecond {
		t.Fatalf("unexpected default write debounce: %v", cfg.Persistence.WriteDebounce)
	}
}

func TestLoad_MergesFileWithDefaults(t *testing.T) {
	path := writeConfig(t, `
service:
  port: 9000
heatmap:
  cell_size: 40
conditioner:
  sample_rate: 0.5
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Service.Port != 9000 {
		t.Fatalf("file value not applied: port=%d", cfg.Service.Port)
	}
	if cfg.Heatmap.CellSize != 40 {
		t.Fatalf("file value not applied: cell_size=%v", cfg.Heatmap.CellSize)
	}
	if cfg.Conditioner.SampleRate != 0.5 {
		t.Fatalf("file value not applied: sample_rate=%v", cfg.Conditioner.SampleRate)
	}

	// Unspecified sections fall back to defaults.
	if cfg.EventLog.Capacity != 10000 {
		t.Fatalf("default not applied: capacity=%d", cfg.EventLog.Capacity)
	}
	if cfg.Retention.MaxSessions != 100 {
		t.Fatalf("default not applied: max_sessions=%d", cfg.Retention.MaxSessions)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
service:
  port: 9000
`)
	t.Setenv("VIEWTRACE_PORT", "9100")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Service.Port != 9100 {
		t.Fatalf("env override not applied: port=%d", cfg.Service.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("env override not applied: level=%s", cfg.Logging.Level)
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad port", func(c *config.Config) { c.Service.Port = -1 }},
		{"zero cell size", func(c *config.Config) { c.Heatmap.CellSize = -5 }},
		{"decay factor one", func(c *config.Config) { c.Heatmap.DecayFactor = 1 }},
		{"sample rate above one", func(c *config.Config) { c.Conditioner.SampleRate = 1.5 }},
		{"floor above rate", func(c *config.Config) {
			c.Conditioner.SampleRate = 0.1
			c.Conditioner.SampleFloor = 0.2
		}},
		{"negative log capacity", func(c *config.Config) { c.EventLog.Capacity = -1 }},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "loud" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
