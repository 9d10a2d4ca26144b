package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the top-level eval configuration.
type Config struct {
	Concurrency   int              `yaml:"concurrency"`
	Timeout       time.Duration    `yaml:"timeout"`
	OutputDir     string           `yaml:"output_dir"`
	PassThreshold float64          `yaml:"pass_threshold"`
	LogLevel      string           `yaml:"log_level"`
	LogFormat     string           `yaml:"log_format"`
	Structured    StructuredConfig `yaml:"structured"`
}

// StructuredConfig tunes the structured output judge.
type StructuredConfig struct {
	// IgnoreOrder compares sequences as multisets in the whole-tree diff.
	IgnoreOrder bool `yaml:"ignore_order"`
	// Truncate limits how many characters of an unparseable ground truth
	// are echoed in the observation.
	Truncate int `yaml:"truncate"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Concurrency:   5,
		Timeout:       60 * time.Second,
		OutputDir:     "results/",
		PassThreshold: 0.5,
		LogLevel:      "info",
		LogFormat:     "text",
		Structured: StructuredConfig{
			IgnoreOrder: true,
			Truncate:    500,
		},
	}
}

// Load reads and parses a YAML config file at the given path.
// It returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault loads config from the given path. If the file does not exist,
// it returns the default configuration. Other errors (e.g. parse failures)
// are still returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config for required fields and returns a descriptive
// error if any are missing or invalid.
func (c *Config) Validate() error {
	var errs []error

	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be > 0, got %s", c.Timeout))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}
	if c.PassThreshold < 0 || c.PassThreshold > 1 {
		errs = append(errs, fmt.Errorf("pass_threshold must be within [0, 1], got %v", c.PassThreshold))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if c.Structured.Truncate < 0 {
		errs = append(errs, fmt.Errorf("structured.truncate must be >= 0, got %d", c.Structured.Truncate))
	}

	return errors.Join(errs...)
}
