// Package extract pulls a JSON document out of a model response. Responses
// often wrap the JSON in prose or markdown fences, so several strategies are
// tried in turn before giving up.
package extract

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/jdgilhuly/go_struct_eval/pkg/jsontree"
)

// ErrNoJSON is returned when no strategy finds a parseable JSON document.
var ErrNoJSON = errors.New("no valid JSON found in response")

// Strategy identifies how a value was obtained.
type Strategy string

const (
	// StrategyStructured means the input was already a structured value.
	StrategyStructured Strategy = "structured"
	// StrategyWhole means the full text parsed as JSON.
	StrategyWhole Strategy = "whole"
	// StrategyBraces means the outermost {...} span parsed as JSON.
	StrategyBraces Strategy = "braces"
	// StrategyFenced means a ``` or ```json code block parsed as JSON.
	StrategyFenced Strategy = "fenced"
)

var (
	bracesPattern = regexp.MustCompile(`(?s)\{.*\}`)
	fencedPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
)

// Result is a successful extraction. Value may be jsontree.Null when the
// response was the literal null; failure is always reported through the
// error, never through the value.
type Result struct {
	Value    jsontree.Value
	Strategy Strategy
}

// Extract returns the JSON tree carried by raw. Strings and byte slices are
// searched as text; any other non-nil value is treated as an already decoded
// structure and converted as is.
func Extract(raw any) (Result, error) {
	switch t := raw.(type) {
	case nil:
		return Result{}, fmt.Errorf("%w: response is nil", ErrNoJSON)
	case string:
		return Text(t)
	case []byte:
		return Text(string(t))
	}

	v, err := jsontree.FromAny(raw)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	return Result{Value: v, Strategy: StrategyStructured}, nil
}

// Text runs the text strategies against s in order: the whole string, the
// greedy outermost brace span, then a fenced code block. The returned error
// wraps ErrNoJSON and carries the whole-string parse error.
func Text(s string) (Result, error) {
	v, wholeErr := jsontree.Parse([]byte(s))
	if wholeErr == nil {
		return Result{Value: v, Strategy: StrategyWhole}, nil
	}

	if m := bracesPattern.FindString(s); m != "" {
		if v, err := jsontree.Parse([]byte(m)); err == nil {
			return Result{Value: v, Strategy: StrategyBraces}, nil
		}
	}

	if m := fencedPattern.FindStringSubmatch(s); len(m) > 1 {
		if v, err := jsontree.Parse([]byte(m[1])); err == nil {
			return Result{Value: v, Strategy: StrategyFenced}, nil
		}
	}

	return Result{}, fmt.Errorf("%w: %v", ErrNoJSON, wholeErr)
}
