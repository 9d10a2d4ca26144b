package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
concurrency: 10
timeout: 30s
output_dir: output/
pass_threshold: 0.75
log_level: debug
log_format: json
structured:
  ignore_order: false
  truncate: 120
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Concurrency != 10 {
		t.Errorf("Concurrency = %d, want 10", cfg.Concurrency)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", cfg.Timeout)
	}
	if cfg.OutputDir != "output/" {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, "output/")
	}
	if cfg.PassThreshold != 0.75 {
		t.Errorf("PassThreshold = %v, want 0.75", cfg.PassThreshold)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, "json")
	}
	if cfg.Structured.IgnoreOrder {
		t.Error("Structured.IgnoreOrder = true, want false")
	}
	if cfg.Structured.Truncate != 120 {
		t.Errorf("Structured.Truncate = %d, want 120", cfg.Structured.Truncate)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoadOrDefault_FileExists(t *testing.T) {
	yaml := `
concurrency: 20
timeout: 45s
`
	path := writeTemp(t, yaml)
	cfg, err := LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.Concurrency != 20 {
		t.Errorf("Concurrency = %d, want 20", cfg.Concurrency)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %s, want 45s", cfg.Timeout)
	}
	// Defaults should still be populated for unset fields.
	if cfg.OutputDir != "results/" {
		t.Errorf("OutputDir = %q, want default %q", cfg.OutputDir, "results/")
	}
	if !cfg.Structured.IgnoreOrder {
		t.Error("Structured.IgnoreOrder = false, want default true")
	}
}

func TestLoadOrDefault_FileMissing(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}

	def := Default()
	if cfg.Concurrency != def.Concurrency {
		t.Errorf("Concurrency = %d, want default %d", cfg.Concurrency, def.Concurrency)
	}
	if cfg.Timeout != def.Timeout {
		t.Errorf("Timeout = %s, want default %s", cfg.Timeout, def.Timeout)
	}
	if cfg.OutputDir != def.OutputDir {
		t.Errorf("OutputDir = %q, want default %q", cfg.OutputDir, def.OutputDir)
	}
	if cfg.Structured != def.Structured {
		t.Errorf("Structured = %+v, want default %+v", cfg.Structured, def.Structured)
	}
}

func TestLoadOrDefault_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{bad yaml")
	_, err := LoadOrDefault(path)
	if err == nil {
		t.Fatal("LoadOrDefault() expected error for invalid YAML, got nil")
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
		{"timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"output dir", func(c *Config) { c.OutputDir = "" }, "output_dir"},
		{"threshold high", func(c *Config) { c.PassThreshold = 1.5 }, "pass_threshold"},
		{"threshold negative", func(c *Config) { c.PassThreshold = -0.1 }, "pass_threshold"},
		{"log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"truncate", func(c *Config) { c.Structured.Truncate = -1 }, "structured.truncate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() expected error mentioning %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected multiple errors")
	}
	msg := err.Error()
	for _, want := range []string{"concurrency", "timeout", "output_dir", "log_level", "log_format"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing mention of %q: %s", want, msg)
		}
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Concurrency != 5 {
		t.Errorf("Default Concurrency = %d, want 5", cfg.Concurrency)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("Default Timeout = %s, want 60s", cfg.Timeout)
	}
	if cfg.OutputDir != "results/" {
		t.Errorf("Default OutputDir = %q, want %q", cfg.OutputDir, "results/")
	}
	if cfg.PassThreshold != 0.5 {
		t.Errorf("Default PassThreshold = %v, want 0.5", cfg.PassThreshold)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("Default logging = %q/%q, want info/text", cfg.LogLevel, cfg.LogFormat)
	}
	if !cfg.Structured.IgnoreOrder || cfg.Structured.Truncate != 500 {
		t.Errorf("Default Structured = %+v, want ignore_order and truncate 500", cfg.Structured)
	}
}

// writeTemp writes content to a temp YAML file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}
