package evaltest

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jdgilhuly/go_struct_eval/pkg/extract"
	"github.com/jdgilhuly/go_struct_eval/pkg/judge"
	"github.com/jdgilhuly/go_struct_eval/pkg/suite"
)

// AssertScore asserts that the overall similarity satisfies m.
func (tc *TestCase) AssertScore(m ScoreMatcher) {
	tc.t.Helper()
	obs := tc.Observation()
	if obs == nil {
		return
	}
	if !m.Match(obs.Score) {
		tc.t.Errorf("score %.2f does not satisfy %s\n%s", obs.Score, m, obs)
	}
}

// AssertField asserts that the score of a top-level field satisfies m.
func (tc *TestCase) AssertField(key string, m ScoreMatcher) {
	tc.t.Helper()
	obs := tc.Observation()
	if obs == nil {
		return
	}
	score, ok := obs.FieldScores[key]
	if !ok {
		tc.t.Errorf("field %q was not scored (fields: %v)", key, obs.FieldScores.Keys())
		return
	}
	if !m.Match(score) {
		tc.t.Errorf("field %q score %.2f does not satisfy %s", key, score, m)
	}
}

// AssertAllFields asserts that every field score satisfies m.
func (tc *TestCase) AssertAllFields(m ScoreMatcher) {
	tc.t.Helper()
	obs := tc.Observation()
	if obs == nil {
		return
	}
	for _, key := range obs.FieldScores.Keys() {
		if score := obs.FieldScores[key]; !m.Match(score) {
			tc.t.Errorf("field %q score %.2f does not satisfy %s", key, score, m)
		}
	}
}

// AssertExtracted asserts that JSON was found in the output, optionally by
// one of the given strategies.
func (tc *TestCase) AssertExtracted(strategies ...extract.Strategy) {
	tc.t.Helper()
	obs := tc.Observation()
	if obs == nil {
		return
	}
	if obs.Err != nil {
		tc.t.Errorf("no JSON compared: %v", obs.Err)
		return
	}
	if len(strategies) == 0 {
		return
	}
	for _, s := range strategies {
		if obs.Strategy == s {
			return
		}
	}
	tc.t.Errorf("output extracted via %s, want one of %v", obs.Strategy, strategies)
}

// AssertOutputContains asserts that the output text contains substr.
func (tc *TestCase) AssertOutputContains(substr string) {
	tc.t.Helper()
	out, ok := tc.outputText()
	if !ok {
		return
	}
	if !strings.Contains(out, substr) {
		tc.t.Errorf("output does not contain %q\n  output: %s", substr, truncate(out, 200))
	}
}

// AssertOutputMatches asserts that the output text matches the pattern.
func (tc *TestCase) AssertOutputMatches(pattern string) {
	tc.t.Helper()
	out, ok := tc.outputText()
	if !ok {
		return
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		tc.t.Errorf("invalid regex pattern %q: %v", pattern, err)
		return
	}
	if !re.MatchString(out) {
		tc.t.Errorf("output does not match pattern %q\n  output: %s", pattern, truncate(out, 200))
	}
}

// AssertJudge builds the configured judge, runs it on the case and checks
// its score against m.
func (tc *TestCase) AssertJudge(cfg judge.Config, m ScoreMatcher) {
	tc.t.Helper()
	j, err := judge.New(cfg)
	if err != nil {
		tc.t.Errorf("building %s judge: %v", cfg.Type, err)
		return
	}
	out, ok := tc.outputText()
	if !ok {
		return
	}
	want, err := suite.Text(tc.expected)
	if err != nil {
		tc.t.Errorf("rendering expected: %v", err)
		return
	}

	res, err := j.Evaluate(judge.Input{Output: out, ExpectedOutput: want})
	if err != nil {
		tc.t.Errorf("%s judge evaluation failed: %v", j.Name(), err)
		return
	}
	if !m.Match(res.Score) {
		tc.t.Errorf("%s judge score %.2f does not satisfy %s (reason: %s)", j.Name(), res.Score, m, res.Reason)
	}
}

// AssertSchema asserts that the JSON in the output validates against schema.
func (tc *TestCase) AssertSchema(schema string) {
	tc.t.Helper()
	tc.AssertJudge(judge.Config{Type: "schema", Value: schema}, ScoreExact(1))
}

func (tc *TestCase) outputText() (string, bool) {
	tc.t.Helper()
	if !tc.hasOut {
		tc.t.Error("assertion called before Output()")
		return "", false
	}
	out, err := suite.Text(tc.output)
	if err != nil {
		tc.t.Errorf("rendering output: %v", err)
		return "", false
	}
	return out, true
}

// truncate keeps at most maxLen runes of s.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
