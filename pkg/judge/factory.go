package judge

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Config describes a judge as it appears in a suite file. Value carries the
// type-specific argument: the pattern for regex and the schema for schema
// and structured judges.
type Config struct {
	Type      string  `json:"type" yaml:"type"`
	Value     string  `json:"value,omitempty" yaml:"value,omitempty"`
	Weight    float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	Comment   string  `json:"comment,omitempty" yaml:"comment,omitempty"`
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Field     string  `json:"field,omitempty" yaml:"field,omitempty"`

	NormalizeWhitespace bool `json:"normalize_whitespace,omitempty" yaml:"normalize_whitespace,omitempty"`
	JSON                bool `json:"json,omitempty" yaml:"json,omitempty"`
	Ordered             bool `json:"ordered,omitempty" yaml:"ordered,omitempty"`
	Truncate            int  `json:"truncate,omitempty" yaml:"truncate,omitempty"`
}

// Factory builds a judge from its configuration.
type Factory func(cfg Config) (Judge, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"exact":      newExact,
		"regex":      newRegex,
		"schema":     newSchema,
		"structured": newStructured,
	}
)

// Register makes a judge type available to New. Registering a type twice
// replaces the earlier factory.
func Register(typ string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typ] = f
}

// Types returns the registered judge types in sorted order.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// New builds the judge named by cfg.Type.
func New(cfg Config) (Judge, error) {
	registryMu.RLock()
	f, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown judge type %q", cfg.Type)
	}
	return f(cfg)
}

// Build turns judge configs into weighted judges for a CompositeScorer.
// A config that cannot be built becomes a judge that always errors, so the
// problem is reported against the case instead of aborting the run.
func Build(cfgs []Config) []JudgeConfig {
	out := make([]JudgeConfig, 0, len(cfgs))
	for _, c := range cfgs {
		j, err := New(c)
		if err != nil {
			j = &brokenJudge{typ: c.Type, err: err}
		}
		out = append(out, JudgeConfig{Judge: j, Weight: c.Weight})
	}
	return out
}

// brokenJudge stands in for a judge whose configuration was rejected.
type brokenJudge struct {
	typ string
	err error
}

func (b *brokenJudge) Name() string {
	if b.typ == "" {
		return "unknown"
	}
	return b.typ
}

func (b *brokenJudge) Evaluate(Input) (Result, error) { return Result{}, b.err }

func newExact(cfg Config) (Judge, error) {
	return &ExactJudge{NormalizeWhitespace: cfg.NormalizeWhitespace, JSON: cfg.JSON}, nil
}

func newRegex(cfg Config) (Judge, error) {
	if _, err := regexp.Compile(cfg.Value); err != nil {
		return nil, fmt.Errorf("invalid regex pattern %q: %w", cfg.Value, err)
	}
	return &RegexJudge{Pattern: cfg.Value, Field: cfg.Field}, nil
}

func newSchema(cfg Config) (Judge, error) {
	if cfg.Value == "" {
		return nil, fmt.Errorf("schema judge requires a schema value")
	}
	if _, err := compileSchema(cfg.Value); err != nil {
		return nil, err
	}
	return &SchemaJudge{Schema: cfg.Value}, nil
}

func newStructured(cfg Config) (Judge, error) {
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("structured judge threshold %v is outside [0, 1]", cfg.Threshold)
	}
	if cfg.Value != "" {
		if _, err := compileSchema(cfg.Value); err != nil {
			return nil, err
		}
	}
	return &StructuredJudge{
		Threshold: cfg.Threshold,
		Ordered:   cfg.Ordered,
		Schema:    cfg.Value,
		Truncate:  cfg.Truncate,
	}, nil
}
