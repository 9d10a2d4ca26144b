package judge

import (
	"fmt"

	"github.com/jdgilhuly/go_struct_eval/pkg/extract"
	"github.com/jdgilhuly/go_struct_eval/pkg/jsontree"
	"github.com/jdgilhuly/go_struct_eval/pkg/structured"
)

// DefaultStructuredThreshold is the score a structured comparison needs to
// pass when no threshold is configured.
const DefaultStructuredThreshold = 0.5

// StructuredJudge scores the JSON carried by the output against the expected
// JSON field by field. The score is the structured output similarity; the
// rendered observation is returned in Result.Details.
type StructuredJudge struct {
	// Threshold is the minimum score to pass. Zero means
	// DefaultStructuredThreshold.
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	// Ordered compares sequences positionally in the whole-tree diff.
	Ordered bool `json:"ordered,omitempty" yaml:"ordered,omitempty"`
	// Schema, when set, must validate the extracted output before it is
	// scored; a violation scores 0.
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
	// Truncate limits how much unparseable ground truth is echoed back.
	Truncate int `json:"truncate,omitempty" yaml:"truncate,omitempty"`
}

// Name returns "structured".
func (j *StructuredJudge) Name() string { return "structured" }

// Evaluate compares input.Output against input.ExpectedOutput. An expected
// output that is not JSON is a judge error; an output that is not JSON
// scores 0.
func (j *StructuredJudge) Evaluate(input Input) (Result, error) {
	obs := structured.Compare(input.Output, input.ExpectedOutput, structured.Options{
		OrderedTree: j.Ordered,
		Truncate:    j.Truncate,
	})
	if obs.Err != nil && obs.ExpectedData == nil {
		return Result{}, obs.Err
	}

	if j.Schema != "" && obs.Err == nil {
		if reason, err := j.checkSchema(obs.ExtractedData); err != nil {
			return Result{}, err
		} else if reason != "" {
			return Result{
				Pass:    false,
				Score:   0.0,
				Reason:  reason,
				Details: obs.String(),
			}, nil
		}
	}

	threshold := j.Threshold
	if threshold == 0 {
		threshold = DefaultStructuredThreshold
	}

	result := Result{
		Pass:        obs.Score >= threshold,
		Score:       obs.Score,
		Details:     obs.String(),
		FieldScores: obs.FieldScores,
	}
	switch {
	case obs.Err != nil:
		result.Reason = obs.Err.Error()
	case obs.Fallback:
		result.Reason = fmt.Sprintf("no top-level fields; whole-document similarity %.2f", obs.Score)
	default:
		result.Reason = fmt.Sprintf("%d fields, mean similarity %.2f (output via %s)",
			len(obs.FieldScores), obs.Score, describeStrategy(obs.Strategy))
	}
	return result, nil
}

func (j *StructuredJudge) checkSchema(v jsontree.Value) (string, error) {
	sch, err := compileSchema(j.Schema)
	if err != nil {
		return "", err
	}
	if err := sch.Validate(jsontree.ToAny(v)); err != nil {
		return fmt.Sprintf("output does not match schema: %v", err), nil
	}
	return "", nil
}

func describeStrategy(s extract.Strategy) string {
	switch s {
	case extract.StrategyWhole:
		return "full text"
	case extract.StrategyBraces:
		return "embedded object"
	case extract.StrategyFenced:
		return "code fence"
	default:
		return string(s)
	}
}
