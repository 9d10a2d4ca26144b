package judge

import (
	"fmt"
	"regexp"

	"github.com/jdgilhuly/go_struct_eval/pkg/extract"
	"github.com/jdgilhuly/go_struct_eval/pkg/jsontree"
)

// RegexJudge matches the output against a regular expression pattern.
type RegexJudge struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	// Field, when set, applies the pattern to the string value of that
	// top-level field of the extracted JSON object instead of the raw output.
	Field string `json:"field,omitempty" yaml:"field,omitempty"`
}

// Name returns the judge type identifier.
func (j *RegexJudge) Name() string { return "regex" }

// Evaluate checks if the output (or the configured field) matches the pattern.
func (j *RegexJudge) Evaluate(input Input) (Result, error) {
	re, err := regexp.Compile(j.Pattern)
	if err != nil {
		return Result{}, fmt.Errorf("invalid regex pattern %q: %w", j.Pattern, err)
	}

	subject := input.Output
	if j.Field != "" {
		s, reason := fieldString(input.Output, j.Field)
		if reason != "" {
			return Result{Pass: false, Score: 0.0, Reason: reason}, nil
		}
		subject = s
	}

	if re.MatchString(subject) {
		return Result{
			Pass:   true,
			Score:  1.0,
			Reason: fmt.Sprintf("output matches pattern %q", j.Pattern),
		}, nil
	}

	return Result{
		Pass:   false,
		Score:  0.0,
		Reason: fmt.Sprintf("output does not match pattern %q", j.Pattern),
	}, nil
}

// fieldString returns the string value of a top-level field, or a failure
// reason when the output has no such string field.
func fieldString(output, field string) (string, string) {
	res, err := extract.Text(output)
	if err != nil {
		return "", fmt.Sprintf("output: %v", err)
	}
	obj, ok := res.Value.(jsontree.Object)
	if !ok {
		return "", fmt.Sprintf("output JSON is a %s, not an object", res.Value.Kind())
	}
	v, ok := obj[field]
	if !ok {
		return "", fmt.Sprintf("field %q not found in output", field)
	}
	s, ok := v.(jsontree.String)
	if !ok {
		return "", fmt.Sprintf("field %q is a %s, not a string", field, v.Kind())
	}
	return string(s), ""
}
