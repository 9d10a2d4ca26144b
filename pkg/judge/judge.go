package judge

// Result captures the outcome of a judge evaluation.
type Result struct {
	Pass   bool    `json:"pass"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`

	// Details is an optional judge-specific diagnostic payload, such as the
	// rendered observation of the structured judge.
	Details string `json:"details,omitempty"`
	// FieldScores holds per-field scores for judges that compare JSON objects.
	FieldScores map[string]float64 `json:"field_scores,omitempty"`
}

// Input provides all the data a judge needs to evaluate a recorded output.
type Input struct {
	Query          string `json:"query,omitempty"`
	Output         string `json:"output"`
	ExpectedOutput string `json:"expected_output,omitempty"`
}

// Judge defines the interface for evaluating model outputs.
type Judge interface {
	// Evaluate scores the output and returns a result.
	Evaluate(input Input) (Result, error)

	// Name returns the judge type identifier.
	Name() string
}
