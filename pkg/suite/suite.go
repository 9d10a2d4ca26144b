package suite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jdgilhuly/go_struct_eval/pkg/jsontree"
	"github.com/jdgilhuly/go_struct_eval/pkg/judge"
)

// DefaultJudge is applied to cases when neither the case nor the suite
// names any judges.
var DefaultJudge = judge.Config{Type: "structured"}

// EvalSuite is a collection of recorded model outputs paired with their
// ground-truth references.
type EvalSuite struct {
	Name          string         `yaml:"name"`
	Description   string         `yaml:"description"`
	DefaultJudges []judge.Config `yaml:"default_judges"`
	Cases         []EvalCase     `yaml:"cases"`
}

// EvalCase is a single scored pair within a suite. Output and OutputTrue
// are either text (possibly wrapping JSON) or an inline YAML structure.
type EvalCase struct {
	ID         string         `yaml:"id"`
	Name       string         `yaml:"name"`
	Query      string         `yaml:"query"`
	Output     any            `yaml:"output"`
	OutputTrue any            `yaml:"output_true"`
	Judges     []judge.Config `yaml:"judges"`
	Tags       []string       `yaml:"tags"`
}

// Input renders the case as judge input. Structured values are rendered as
// indented JSON.
func (c EvalCase) Input() (judge.Input, error) {
	out, err := Text(c.Output)
	if err != nil {
		return judge.Input{}, fmt.Errorf("case %q output: %w", c.Name, err)
	}
	want, err := Text(c.OutputTrue)
	if err != nil {
		return judge.Input{}, fmt.Errorf("case %q output_true: %w", c.Name, err)
	}
	return judge.Input{Query: c.Query, Output: out, ExpectedOutput: want}, nil
}

// Text returns v unchanged when it is a string and as JSON otherwise.
func Text(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	}
	tree, err := jsontree.FromAny(v)
	if err != nil {
		return "", err
	}
	data, err := jsontree.MarshalIndent(tree)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Load reads a single EvalSuite from a YAML file. Suite-level default judges
// are merged into cases that don't specify their own.
func Load(path string) (*EvalSuite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite file %s: %w", path, err)
	}

	var s EvalSuite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing suite file %s: %w", path, err)
	}

	s.applyDefaults()
	return &s, nil
}

// LoadDir loads all .yaml and .yml files from dir as EvalSuites.
func LoadDir(dir string) ([]*EvalSuite, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading suite directory %s: %w", dir, err)
	}

	var suites []*EvalSuite
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		s, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}

	return suites, nil
}

// Validate checks that the EvalSuite has the minimum required fields and
// that every judge can be built. All problems are reported together.
func (s *EvalSuite) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("suite name is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("suite %q must have at least one case", s.Name)
	}

	var errs []error
	seen := make(map[string]int, len(s.Cases))
	for i, c := range s.Cases {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("suite %q: case %d has no name", s.Name, i))
			continue
		}
		if prev, ok := seen[c.Name]; ok {
			errs = append(errs, fmt.Errorf("suite %q: case %d duplicates the name %q of case %d", s.Name, i, c.Name, prev))
		}
		seen[c.Name] = i
		if c.Output == nil {
			errs = append(errs, fmt.Errorf("suite %q: case %q has no output", s.Name, c.Name))
		}
		if c.OutputTrue == nil {
			errs = append(errs, fmt.Errorf("suite %q: case %q has no output_true", s.Name, c.Name))
		}
		for _, jc := range c.Judges {
			if _, err := judge.New(jc); err != nil {
				errs = append(errs, fmt.Errorf("suite %q: case %q: %w", s.Name, c.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// FilterByTag returns a new suite containing only cases that have at least one
// of the specified tags. An empty tag list returns all cases.
func (s *EvalSuite) FilterByTag(tags []string) *EvalSuite {
	if len(tags) == 0 {
		return s
	}

	tagSet := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagSet[t] = true
	}

	filtered := &EvalSuite{
		Name:          s.Name,
		Description:   s.Description,
		DefaultJudges: s.DefaultJudges,
	}

	for _, c := range s.Cases {
		for _, t := range c.Tags {
			if tagSet[t] {
				filtered.Cases = append(filtered.Cases, c)
				break
			}
		}
	}

	return filtered
}

// applyDefaults merges suite-level default judges into cases that don't
// specify their own, falling back to DefaultJudge.
func (s *EvalSuite) applyDefaults() {
	defaults := s.DefaultJudges
	if len(defaults) == 0 {
		defaults = []judge.Config{DefaultJudge}
	}
	for i := range s.Cases {
		if len(s.Cases[i].Judges) == 0 {
			s.Cases[i].Judges = defaults
		}
	}
}
