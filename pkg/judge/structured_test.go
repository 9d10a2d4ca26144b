package judge

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jdgilhuly/go_struct_eval/pkg/structured"
)

func TestStructuredJudge_Identical(t *testing.T) {
	j := &StructuredJudge{}
	r, err := j.Evaluate(Input{
		Output:         `{"name": "Alice", "tags": ["x", "y"]}`,
		ExpectedOutput: `{"name": "Alice", "tags": ["y", "x"]}`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Pass || r.Score != 1.0 {
		t.Errorf("expected pass with score 1.0, got pass=%v score=%v (%s)", r.Pass, r.Score, r.Reason)
	}
	want := map[string]float64{"name": 1.0, "tags": 1.0}
	if diff := cmp.Diff(want, r.FieldScores); diff != "" {
		t.Errorf("FieldScores mismatch (-want +got):\n%s", diff)
	}
}

func TestStructuredJudge_PartialMatch(t *testing.T) {
	j := &StructuredJudge{Threshold: 0.8}
	r, err := j.Evaluate(Input{
		Output:         `{"a": 1, "b": 3}`,
		ExpectedOutput: `{"a": 1, "b": 2}`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(r.Score-0.5) > 1e-9 {
		t.Errorf("score = %v, want 0.5", r.Score)
	}
	if r.Pass {
		t.Error("expected fail below threshold 0.8")
	}
	if !strings.Contains(r.Reason, "2 fields") {
		t.Errorf("reason = %q, want it to mention field count", r.Reason)
	}
}

func TestStructuredJudge_DefaultThreshold(t *testing.T) {
	j := &StructuredJudge{}
	r, err := j.Evaluate(Input{Output: `{"a": 1, "b": 3}`, ExpectedOutput: `{"a": 1, "b": 2}`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Pass {
		t.Errorf("expected pass at default threshold %v with score %v", DefaultStructuredThreshold, r.Score)
	}
}

func TestStructuredJudge_Details(t *testing.T) {
	j := &StructuredJudge{}
	r, err := j.Evaluate(Input{Output: `{"a": 1}`, ExpectedOutput: `{"a": 1}`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var obs map[string]any
	if err := json.Unmarshal([]byte(r.Details), &obs); err != nil {
		t.Fatalf("details is not JSON: %v\n%s", err, r.Details)
	}
	for _, key := range []string{"score", "extracted_data", "expected_data", "field_scores"} {
		if _, ok := obs[key]; !ok {
			t.Errorf("details missing %q: %s", key, r.Details)
		}
	}
}

func TestStructuredJudge_ExtractionFailure(t *testing.T) {
	j := &StructuredJudge{}
	r, err := j.Evaluate(Input{Output: "I cannot answer that.", ExpectedOutput: `{"a": 1}`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Pass || r.Score != 0.0 {
		t.Errorf("expected fail with score 0, got pass=%v score=%v", r.Pass, r.Score)
	}
	if r.Reason != structured.ErrExtraction.Error() {
		t.Errorf("reason = %q, want %q", r.Reason, structured.ErrExtraction.Error())
	}
}

func TestStructuredJudge_BadExpected(t *testing.T) {
	j := &StructuredJudge{}
	_, err := j.Evaluate(Input{Output: `{"a": 1}`, ExpectedOutput: "not json"})
	if !errors.Is(err, structured.ErrGroundTruth) {
		t.Errorf("error = %v, want ErrGroundTruth", err)
	}
}

func TestStructuredJudge_Fallback(t *testing.T) {
	j := &StructuredJudge{}
	r, err := j.Evaluate(Input{Output: `[1, 2, 3]`, ExpectedOutput: `[1, 2, 3]`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Score != 1.0 {
		t.Errorf("score = %v, want 1.0", r.Score)
	}
	if !strings.Contains(r.Reason, "whole-document") {
		t.Errorf("reason = %q, want whole-document fallback", r.Reason)
	}
}

func TestStructuredJudge_SchemaGate(t *testing.T) {
	j := &StructuredJudge{Schema: `{"type": "object", "required": ["id"]}`}

	r, err := j.Evaluate(Input{Output: `{"name": "x"}`, ExpectedOutput: `{"name": "x"}`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Pass || r.Score != 0.0 {
		t.Errorf("expected schema violation to score 0, got pass=%v score=%v", r.Pass, r.Score)
	}

	r, err = j.Evaluate(Input{Output: `{"id": 1}`, ExpectedOutput: `{"id": 1}`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Pass {
		t.Errorf("expected pass when schema holds, got: %s", r.Reason)
	}
}

func TestStructuredJudge_Name(t *testing.T) {
	j := &StructuredJudge{}
	if j.Name() != "structured" {
		t.Errorf("name = %q, want %q", j.Name(), "structured")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  bool
	}{
		{"exact", Config{Type: "exact"}, "exact", false},
		{"regex", Config{Type: "regex", Value: `\d+`}, "regex", false},
		{"regex invalid", Config{Type: "regex", Value: `[bad`}, "", true},
		{"schema", Config{Type: "schema", Value: `{"type": "object"}`}, "schema", false},
		{"schema missing", Config{Type: "schema"}, "", true},
		{"schema invalid", Config{Type: "schema", Value: "nope"}, "", true},
		{"structured", Config{Type: "structured", Threshold: 0.9}, "structured", false},
		{"structured bad threshold", Config{Type: "structured", Threshold: 1.5}, "", true},
		{"unknown", Config{Type: "llm"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && j.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", j.Name(), tt.wantName)
			}
		})
	}
}

func TestNew_StructuredOptions(t *testing.T) {
	j, err := New(Config{Type: "structured", Threshold: 0.7, Ordered: true, Truncate: 10})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	sj, ok := j.(*StructuredJudge)
	if !ok {
		t.Fatalf("New() returned %T, want *StructuredJudge", j)
	}
	want := &StructuredJudge{Threshold: 0.7, Ordered: true, Truncate: 10}
	if diff := cmp.Diff(want, sj); diff != "" {
		t.Errorf("judge mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisterAndTypes(t *testing.T) {
	Register("always", func(Config) (Judge, error) {
		return &stubJudge{name: "always", result: Result{Pass: true, Score: 1.0}}, nil
	})
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, "always")
		registryMu.Unlock()
	})

	j, err := New(Config{Type: "always"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if j.Name() != "always" {
		t.Errorf("Name() = %q, want %q", j.Name(), "always")
	}

	want := []string{"always", "exact", "regex", "schema", "structured"}
	if diff := cmp.Diff(want, Types()); diff != "" {
		t.Errorf("Types() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_BrokenJudgeErrors(t *testing.T) {
	configs := Build([]Config{
		{Type: "exact", Weight: 2},
		{Type: "bogus"},
	})
	if len(configs) != 2 {
		t.Fatalf("len = %d, want 2", len(configs))
	}
	if configs[0].Weight != 2 {
		t.Errorf("weight = %v, want 2", configs[0].Weight)
	}

	cs := NewCompositeScorer(0.5)
	result := cs.Score(Input{Output: "x", ExpectedOutput: "x"}, configs)
	if result.Status != StatusError {
		t.Errorf("status = %q, want %q", result.Status, StatusError)
	}
	if result.Scores[1].JudgeName != "bogus" {
		t.Errorf("judge name = %q, want %q", result.Scores[1].JudgeName, "bogus")
	}
	if !strings.Contains(result.Scores[1].Reason, "unknown judge type") {
		t.Errorf("reason = %q", result.Scores[1].Reason)
	}
}
