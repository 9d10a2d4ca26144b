package judge

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// --- Exact Judge ---

func TestExactJudge_Pass(t *testing.T) {
	j := &ExactJudge{}
	r, err := j.Evaluate(Input{Output: "hello world", ExpectedOutput: "hello world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Pass || r.Score != 1.0 {
		t.Errorf("expected pass with score 1.0, got pass=%v score=%v", r.Pass, r.Score)
	}
}

func TestExactJudge_Fail(t *testing.T) {
	j := &ExactJudge{}
	r, err := j.Evaluate(Input{Output: "hello", ExpectedOutput: "world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Pass || r.Score != 0.0 {
		t.Errorf("expected fail with score 0.0, got pass=%v score=%v", r.Pass, r.Score)
	}
}

func TestExactJudge_WhitespaceNormalization(t *testing.T) {
	j := &ExactJudge{NormalizeWhitespace: true}
	r, err := j.Evaluate(Input{
		Output:         "  hello   world  \n",
		ExpectedOutput: "hello world",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Pass {
		t.Errorf("expected pass with whitespace normalization, got fail: %s", r.Reason)
	}
}

func TestExactJudge_WhitespaceMatters(t *testing.T) {
	j := &ExactJudge{NormalizeWhitespace: false}
	r, err := j.Evaluate(Input{
		Output:         "hello  world",
		ExpectedOutput: "hello world",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Pass {
		t.Error("expected fail without whitespace normalization")
	}
}

func TestExactJudge_Name(t *testing.T) {
	j := &ExactJudge{}
	if j.Name() != "exact" {
		t.Errorf("name = %q, want %q", j.Name(), "exact")
	}
}

// --- Regex Judge ---

func TestRegexJudge_Pass(t *testing.T) {
	j := &RegexJudge{Pattern: `\d{3}-\d{4}`}
	r, err := j.Evaluate(Input{Output: "Call 555-1234 for info"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Pass {
		t.Errorf("expected pass, got fail: %s", r.Reason)
	}
}

func TestRegexJudge_Fail(t *testing.T) {
	j := &RegexJudge{Pattern: `\d{3}-\d{4}`}
	r, err := j.Evaluate(Input{Output: "no phone number here"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Pass {
		t.Error("expected fail for non-matching output")
	}
}

func TestRegexJudge_InvalidPattern(t *testing.T) {
	j := &RegexJudge{Pattern: `[invalid`}
	_, err := j.Evaluate(Input{Output: "anything"})
	if err == nil {
		t.Error("expected error for invalid regex pattern")
	}
}

func TestRegexJudge_Name(t *testing.T) {
	j := &RegexJudge{}
	if j.Name() != "regex" {
		t.Errorf("name = %q, want %q", j.Name(), "regex")
	}
}

// --- Schema Judge ---

func TestSchemaJudge_Pass(t *testing.T) {
	schema := `{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"age": {"type": "integer"}
		},
		"required": ["name", "age"]
	}`

	j := &SchemaJudge{Schema: schema}
	r, err := j.Evaluate(Input{Output: `{"name": "Alice", "age": 30}`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Pass {
		t.Errorf("expected pass, got fail: %s", r.Reason)
	}
}

func TestSchemaJudge_Fail_MissingField(t *testing.T) {
	schema := `{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"age": {"type": "integer"}
		},
		"required": ["name", "age"]
	}`

	j := &SchemaJudge{Schema: schema}
	r, err := j.Evaluate(Input{Output: `{"name": "Alice"}`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Pass {
		t.Error("expected fail for missing required field")
	}
}

func TestSchemaJudge_Fail_WrongType(t *testing.T) {
	schema := `{
		"type": "object",
		"properties": {
			"age": {"type": "integer"}
		},
		"required": ["age"]
	}`

	j := &SchemaJudge{Schema: schema}
	r, err := j.Evaluate(Input{Output: `{"age": "not a number"}`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Pass {
		t.Error("expected fail for wrong type")
	}
}

func TestSchemaJudge_Fail_InvalidJSON(t *testing.T) {
	schema := `{"type": "object"}`
	j := &SchemaJudge{Schema: schema}
	r, err := j.Evaluate(Input{Output: "not json at all"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Pass {
		t.Error("expected fail for non-JSON output")
	}
}

func TestSchemaJudge_InvalidSchema(t *testing.T) {
	j := &SchemaJudge{Schema: "not valid json"}
	_, err := j.Evaluate(Input{Output: "{}"})
	if err == nil {
		t.Error("expected error for invalid schema")
	}
}

func TestSchemaJudge_Name(t *testing.T) {
	j := &SchemaJudge{}
	if j.Name() != "schema" {
		t.Errorf("name = %q, want %q", j.Name(), "schema")
	}
}

func TestExactJudge_JSON(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected string
		wantPass bool
	}{
		{"key order ignored", `{"b": 2, "a": 1}`, `{"a":1,"b":2}`, true},
		{"fenced output", "```json\n{\"a\": 1}\n```", `{"a": 1}`, true},
		{"different value", `{"a": 2}`, `{"a": 1}`, false},
		{"not json", "no json here", `{"a": 1}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &ExactJudge{JSON: true}
			r, err := j.Evaluate(Input{Output: tt.output, ExpectedOutput: tt.expected})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Pass != tt.wantPass {
				t.Errorf("pass = %v, want %v (%s)", r.Pass, tt.wantPass, r.Reason)
			}
		})
	}
}

func TestExactJudge_JSONBadExpected(t *testing.T) {
	j := &ExactJudge{JSON: true}
	if _, err := j.Evaluate(Input{Output: `{}`, ExpectedOutput: "plain"}); err == nil {
		t.Error("expected error for non-JSON expected output")
	}
}

func TestRegexJudge_Field(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		wantPass bool
	}{
		{"match", `{"email": "bob@example.com"}`, true},
		{"no match", `{"email": "bob"}`, false},
		{"missing field", `{"name": "bob"}`, false},
		{"not a string", `{"email": 42}`, false},
		{"array output", `[1, 2]`, false},
		{"not json", "bob@example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &RegexJudge{Pattern: `^[^@]+@[^@]+$`, Field: "email"}
			r, err := j.Evaluate(Input{Output: tt.output})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Pass != tt.wantPass {
				t.Errorf("pass = %v, want %v (%s)", r.Pass, tt.wantPass, r.Reason)
			}
		})
	}
}

func TestSchemaJudge_EmbeddedJSON(t *testing.T) {
	j := &SchemaJudge{Schema: `{"type": "object", "required": ["id"]}`}
	r, err := j.Evaluate(Input{Output: "Here you go: {\"id\": 7} hope that helps"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Pass {
		t.Errorf("expected pass for embedded JSON, got fail: %s", r.Reason)
	}
}

func TestExactJudge_ReasonTruncatesOnRunes(t *testing.T) {
	got := strings.Repeat("é", 150)
	j := &ExactJudge{}
	r, err := j.Evaluate(Input{Output: got, ExpectedOutput: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !utf8.ValidString(r.Reason) {
		t.Errorf("reason is not valid UTF-8: %q", r.Reason)
	}
	if !strings.Contains(r.Reason, strings.Repeat("é", 100)+"...") {
		t.Errorf("reason should keep 100 runes of output: %q", r.Reason)
	}
}
