package judge

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jdgilhuly/go_struct_eval/pkg/extract"
	"github.com/jdgilhuly/go_struct_eval/pkg/jsontree"
)

// ExactJudge compares the output against the expected output.
type ExactJudge struct {
	NormalizeWhitespace bool `json:"normalize_whitespace" yaml:"normalize_whitespace"`
	// JSON compares the extracted JSON trees instead of the raw text, so
	// formatting and key order do not matter.
	JSON bool `json:"json" yaml:"json"`
}

// Name returns the judge type identifier.
func (j *ExactJudge) Name() string { return "exact" }

// Evaluate checks if the output matches the expected output exactly.
// When NormalizeWhitespace is true, leading/trailing whitespace is trimmed
// and runs of internal whitespace are collapsed to single spaces.
func (j *ExactJudge) Evaluate(input Input) (Result, error) {
	if j.JSON {
		return j.evaluateJSON(input)
	}

	got := input.Output
	want := input.ExpectedOutput

	if j.NormalizeWhitespace {
		got = normalizeWhitespace(got)
		want = normalizeWhitespace(want)
	}

	if got == want {
		return Result{
			Pass:   true,
			Score:  1.0,
			Reason: "output matches expected",
		}, nil
	}

	return Result{
		Pass:   false,
		Score:  0.0,
		Reason: fmt.Sprintf("output does not match expected: got %q, want %q", truncate(got, 100), truncate(want, 100)),
	}, nil
}

func (j *ExactJudge) evaluateJSON(input Input) (Result, error) {
	want, err := extract.Text(input.ExpectedOutput)
	if err != nil {
		return Result{}, fmt.Errorf("expected output: %w", err)
	}
	got, err := extract.Text(input.Output)
	if err != nil {
		return Result{
			Pass:   false,
			Score:  0.0,
			Reason: fmt.Sprintf("output: %v", err),
		}, nil
	}

	if jsontree.Equal(want.Value, got.Value) {
		return Result{
			Pass:   true,
			Score:  1.0,
			Reason: "output JSON matches expected",
		}, nil
	}

	return Result{
		Pass:   false,
		Score:  0.0,
		Reason: fmt.Sprintf("output JSON does not match expected: got %s, want %s",
			truncate(jsontree.Fingerprint(got.Value, false), 100),
			truncate(jsontree.Fingerprint(want.Value, false), 100)),
	}, nil
}

func normalizeWhitespace(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// truncate keeps at most maxLen runes of s.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
