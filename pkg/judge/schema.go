package judge

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/jdgilhuly/go_struct_eval/pkg/extract"
	"github.com/jdgilhuly/go_struct_eval/pkg/jsontree"
)

// SchemaJudge validates that the output carries JSON conforming to a JSON
// Schema. The JSON may be embedded in prose or a code fence.
type SchemaJudge struct {
	Schema string `json:"schema" yaml:"schema"`
}

// Name returns the judge type identifier.
func (j *SchemaJudge) Name() string { return "schema" }

// Evaluate extracts JSON from the output and validates it against the
// configured schema.
func (j *SchemaJudge) Evaluate(input Input) (Result, error) {
	sch, err := compileSchema(j.Schema)
	if err != nil {
		return Result{}, err
	}

	res, err := extract.Text(input.Output)
	if err != nil {
		return Result{
			Pass:   false,
			Score:  0.0,
			Reason: fmt.Sprintf("output is not valid JSON: %v", err),
		}, nil
	}

	if err := sch.Validate(jsontree.ToAny(res.Value)); err != nil {
		return Result{
			Pass:   false,
			Score:  0.0,
			Reason: fmt.Sprintf("output does not match schema: %v", err),
		}, nil
	}

	return Result{
		Pass:   true,
		Score:  1.0,
		Reason: "output matches JSON schema",
	}, nil
}

func compileSchema(schema string) (*jsonschema.Schema, error) {
	var schemaDoc interface{}
	if err := json.Unmarshal([]byte(schema), &schemaDoc); err != nil {
		return nil, fmt.Errorf("invalid JSON schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("invalid JSON schema: %w", err)
	}
	sch, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling JSON schema: %w", err)
	}
	return sch, nil
}
