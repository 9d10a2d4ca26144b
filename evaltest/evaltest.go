package evaltest

import (
	"encoding/json"
	"os"
	"sync"
	"testing"

	"github.com/jdgilhuly/go_struct_eval/pkg/structured"
	"github.com/jdgilhuly/go_struct_eval/pkg/suite"
)

// Option configures a Harness.
type Option func(*Harness)

// WithOrdered compares sequences positionally in the whole-tree diff.
func WithOrdered() Option {
	return func(h *Harness) {
		h.opts.OrderedTree = true
	}
}

// WithTruncate limits how much of an unparseable ground truth is echoed in
// the observation.
func WithTruncate(n int) Option {
	return func(h *Harness) {
		h.opts.Truncate = n
	}
}

// WithResultFile configures the harness to write case results to a JSON file
// when the test completes.
func WithResultFile(path string) Option {
	return func(h *Harness) {
		h.resultFile = path
	}
}

// CaseResult captures the outcome of a single eval test case.
type CaseResult struct {
	Name        string             `json:"name"`
	Output      string             `json:"output"`
	Expected    string             `json:"expected"`
	Score       float64            `json:"score"`
	FieldScores map[string]float64 `json:"field_scores,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Harness provides the scaffolding for running eval cases as standard Go
// tests.
type Harness struct {
	t          *testing.T
	opts       structured.Options
	resultFile string

	mu      sync.Mutex
	results []CaseResult
}

// New creates a Harness bound to the given *testing.T.
func New(t *testing.T, opts ...Option) *Harness {
	t.Helper()
	h := &Harness{t: t}
	for _, opt := range opts {
		opt(h)
	}
	if h.resultFile != "" {
		t.Cleanup(func() {
			h.writeResults()
		})
	}
	return h
}

// Run executes a named eval case as a subtest.
func (h *Harness) Run(name string, fn func(tc *TestCase)) {
	h.t.Helper()
	h.t.Run(name, func(t *testing.T) {
		t.Helper()
		fn(&TestCase{t: t, harness: h, name: name})
	})
}

// Results returns a copy of the results recorded so far.
func (h *Harness) Results() []CaseResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]CaseResult(nil), h.results...)
}

func (h *Harness) record(cr CaseResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, cr)
}

// writeResults saves all recorded results to the configured JSON file.
func (h *Harness) writeResults() {
	data, err := json.MarshalIndent(h.Results(), "", "  ")
	if err != nil {
		h.t.Errorf("evaltest: failed to marshal results: %v", err)
		return
	}
	if err := os.WriteFile(h.resultFile, data, 0o644); err != nil {
		h.t.Errorf("evaltest: failed to write results to %s: %v", h.resultFile, err)
	}
}

// TestCase holds one recorded output and its ground truth.
type TestCase struct {
	t        testing.TB
	harness  *Harness
	name     string
	output   any
	expected any
	hasOut   bool
	hasWant  bool
	obs      *structured.Observation
}

// Output sets the recorded model output: text, or an already decoded
// structure.
func (tc *TestCase) Output(v any) {
	tc.output, tc.hasOut = v, true
	tc.obs = nil
}

// Expect sets the ground truth: JSON text or a structure.
func (tc *TestCase) Expect(v any) {
	tc.expected, tc.hasWant = v, true
	tc.obs = nil
}

// Observation compares the output with the ground truth. The comparison is
// computed once per output and ground truth pair and recorded on the
// harness. It returns nil if either side is missing.
func (tc *TestCase) Observation() *structured.Observation {
	tc.t.Helper()
	if !tc.hasOut || !tc.hasWant {
		tc.t.Error("Observation needs both Output() and Expect()")
		return nil
	}
	if tc.obs != nil {
		return tc.obs
	}
	tc.obs = structured.Compare(tc.output, tc.expected, tc.harness.opts)

	cr := CaseResult{
		Name:        tc.name,
		Score:       tc.obs.Score,
		FieldScores: tc.obs.FieldScores,
	}
	cr.Output, _ = suite.Text(tc.output)
	cr.Expected, _ = suite.Text(tc.expected)
	if tc.obs.Err != nil {
		cr.Error = tc.obs.Err.Error()
	}
	tc.harness.record(cr)
	return tc.obs
}
