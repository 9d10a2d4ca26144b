package evaltest

import "fmt"

// ScoreMatcher defines an interface for matching scores.
type ScoreMatcher interface {
	Match(score float64) bool
	String() string
}

type scoreMatcher struct {
	desc  string
	match func(float64) bool
}

func (m scoreMatcher) Match(score float64) bool { return m.match(score) }
func (m scoreMatcher) String() string           { return m.desc }

// ScoreAbove returns a matcher that passes when the score is strictly greater
// than the given threshold.
func ScoreAbove(threshold float64) ScoreMatcher {
	return scoreMatcher{
		desc:  fmt.Sprintf("score > %.2f", threshold),
		match: func(s float64) bool { return s > threshold },
	}
}

// ScoreBelow returns a matcher that passes when the score is strictly less
// than the given threshold.
func ScoreBelow(threshold float64) ScoreMatcher {
	return scoreMatcher{
		desc:  fmt.Sprintf("score < %.2f", threshold),
		match: func(s float64) bool { return s < threshold },
	}
}

// ScoreExact returns a matcher that passes when the score equals the expected
// value within a tolerance of 0.001.
func ScoreExact(expected float64) ScoreMatcher {
	return scoreMatcher{
		desc: fmt.Sprintf("score == %.2f", expected),
		match: func(s float64) bool {
			d := s - expected
			return d > -0.001 && d < 0.001
		},
	}
}

// ScoreAtLeast returns a matcher that passes when the score is greater than
// or equal to the given minimum.
func ScoreAtLeast(min float64) ScoreMatcher {
	return scoreMatcher{
		desc:  fmt.Sprintf("score >= %.2f", min),
		match: func(s float64) bool { return s >= min },
	}
}
