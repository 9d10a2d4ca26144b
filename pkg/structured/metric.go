// Package structured scores a structured (JSON) model output against a
// ground-truth JSON reference.
//
// The overall score is the mean of per-field scores over the top-level keys
// of the two objects. Each field score is one minus the diff penalty between
// the two field values divided by the number of value units in the expected
// value, floored at zero.
package structured

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jdgilhuly/go_struct_eval/pkg/extract"
	"github.com/jdgilhuly/go_struct_eval/pkg/jsontree"
	"github.com/jdgilhuly/go_struct_eval/pkg/treediff"
)

var (
	// ErrGroundTruth is reported when the reference cannot be parsed as JSON.
	ErrGroundTruth = errors.New("failed to parse ground truth JSON")
	// ErrExtraction is reported when no JSON can be extracted from the output.
	ErrExtraction = errors.New("failed to extract valid JSON from LLM response")
)

// DefaultTruncate is how many characters of an unparseable ground truth are
// echoed back in the observation.
const DefaultTruncate = 500

// MetricInfo describes the metric to a host registry.
type MetricInfo struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Type        string   `json:"type" yaml:"type"`
	Require     []string `json:"require" yaml:"require"`
}

// Metadata is the registration record for this metric. The type tag groups
// it with model-backed metrics in the host harness; scoring itself never
// calls a model.
var Metadata = MetricInfo{
	Name:        "llm_structured_output",
	Description: "Compare json_schema LLM output with provided ground truth JSON (output_true) and compute an overall score and key level accuracy scores",
	Type:        "llm",
	Require:     []string{"output", "output_true", "query"},
}

// Inputs carries one metric invocation. Query is part of the registration
// contract and is not used for scoring.
type Inputs struct {
	Output     any    `json:"output"`
	OutputTrue any    `json:"output_true"`
	Query      string `json:"query,omitempty"`
}

// Options tunes Compare.
type Options struct {
	// OrderedTree compares sequences positionally in the whole-tree diff.
	// Field scores always compare sequences without regard to order.
	OrderedTree bool
	// Truncate limits the ground truth echoed on a parse failure. Zero means
	// DefaultTruncate.
	Truncate int
}

// Observation is the diagnostic record of one comparison. It is built once
// and not modified afterwards.
type Observation struct {
	Score         float64
	Err           error
	OutputTrue    string
	ExtractedData jsontree.Value
	ExpectedData  jsontree.Value
	FieldScores   FieldScores

	// Strategy is how the output JSON was extracted.
	Strategy extract.Strategy
	// Diff is the whole-tree diff between expected and extracted data.
	Diff *treediff.Result
	// Fallback is set when there were no top-level fields to average and
	// the score came from the whole-tree diff.
	Fallback bool
}

type observationJSON struct {
	Score         float64 `json:"score"`
	Error         string  `json:"error,omitempty"`
	OutputTrue    *string `json:"output_true,omitempty"`
	ExtractedData *any    `json:"extracted_data,omitempty"`
	ExpectedData  *any    `json:"expected_data,omitempty"`
	FieldScores   any     `json:"field_scores,omitempty"`
}

// MarshalJSON emits score, error, output_true, extracted_data,
// expected_data and field_scores, omitting the members that do not apply.
// A JSON null in the data is kept as null.
func (o *Observation) MarshalJSON() ([]byte, error) {
	out := observationJSON{Score: o.Score}
	if o.Err != nil {
		out.Error = o.Err.Error()
		if errors.Is(o.Err, ErrGroundTruth) {
			s := o.OutputTrue
			out.OutputTrue = &s
		}
	}
	if o.ExtractedData != nil {
		v := jsontree.ToAny(o.ExtractedData)
		out.ExtractedData = &v
	}
	if o.ExpectedData != nil {
		v := jsontree.ToAny(o.ExpectedData)
		out.ExpectedData = &v
	}
	if o.FieldScores != nil {
		out.FieldScores = map[string]float64(o.FieldScores)
	}
	return json.Marshal(out)
}

// String renders the observation as indented JSON.
func (o *Observation) String() string {
	raw, err := o.MarshalJSON()
	if err != nil {
		return fmt.Sprintf(`{"score": %v, "error": %q}`, o.Score, err.Error())
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Compare extracts JSON from output and outputTrue and scores them. It never
// fails: parse problems are recorded in the observation with a score of 0.
func Compare(output, outputTrue any, opts Options) *Observation {
	expected, err := extract.Extract(outputTrue)
	if err != nil {
		return &Observation{
			Score:      0.0,
			Err:        fmt.Errorf("%w: %v", ErrGroundTruth, err),
			OutputTrue: truncate(outputTrue, opts.truncate()),
		}
	}

	extracted, err := extract.Extract(output)
	if err != nil {
		return &Observation{
			Score:        0.0,
			Err:          ErrExtraction,
			ExpectedData: expected.Value,
		}
	}

	var diffOpts []treediff.Option
	if !opts.OrderedTree {
		diffOpts = append(diffOpts, treediff.IgnoreOrder())
	}
	diff := treediff.Diff(expected.Value, extracted.Value, diffOpts...)
	fields := FieldLevelScores(expected.Value, extracted.Value)

	obs := &Observation{
		ExtractedData: extracted.Value,
		ExpectedData:  expected.Value,
		FieldScores:   fields,
		Strategy:      extracted.Strategy,
		Diff:          diff,
	}
	if mean, ok := fields.Mean(); ok {
		obs.Score = mean
	} else {
		obs.Score = Similarity(expected.Value, extracted.Value, diff)
		obs.Fallback = true
	}
	return obs
}

// Metric scores output against outputTrue and returns the score, the
// rendered observation, and output unchanged.
func Metric(output, outputTrue any) (float64, string, any) {
	obs := Compare(output, outputTrue, Options{})
	return obs.Score, obs.String(), output
}

// Evaluate is Metric over an Inputs record.
func Evaluate(in Inputs) (float64, string, any) {
	return Metric(in.Output, in.OutputTrue)
}

func (o Options) truncate() int {
	if o.Truncate <= 0 {
		return DefaultTruncate
	}
	return o.Truncate
}

// truncate renders raw as text and keeps at most n characters.
func truncate(raw any, n int) string {
	var s string
	switch t := raw.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	case nil:
		return ""
	default:
		s = fmt.Sprint(t)
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
