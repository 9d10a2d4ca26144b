package result

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jdgilhuly/go_struct_eval/pkg/judge"
	"github.com/jdgilhuly/go_struct_eval/pkg/runner"
)

// RunSummary is the top-level structure persisted to JSON for each eval run.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	SuiteName string        `json:"suite_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Stats     Stats         `json:"stats"`
	Results   []CaseResult  `json:"results"`
}

// Stats holds aggregate statistics for the run.
type Stats struct {
	TotalCases   int           `json:"total_cases"`
	PassedCases  int           `json:"passed_cases"`
	FailedCases  int           `json:"failed_cases"`
	ErroredCases int           `json:"errored_cases"`
	PassRate     float64       `json:"pass_rate"`
	AvgScore     float64       `json:"avg_score"`
	LatencyP50   time.Duration `json:"latency_p50"`
	LatencyP95   time.Duration `json:"latency_p95"`

	// FieldAverages is the mean score of each top-level field over the
	// non-errored cases that reported it.
	FieldAverages map[string]float64 `json:"field_averages,omitempty"`
}

// CaseResult is the per-case result stored in the JSON output.
type CaseResult struct {
	CaseID      string             `json:"case_id"`
	CaseName    string             `json:"case_name"`
	Query       string             `json:"query,omitempty"`
	Output      string             `json:"output"`
	OutputTrue  string             `json:"output_true"`
	Score       float64            `json:"score"`
	Pass        bool               `json:"pass"`
	Status      judge.Status       `json:"status"`
	Error       string             `json:"error,omitempty"`
	Duration    time.Duration      `json:"duration"`
	FieldScores map[string]float64 `json:"field_scores,omitempty"`
	Scores      []judge.JudgeScore `json:"scores,omitempty"`

	// Reviewed is set once a human has graded the case.
	Reviewed bool `json:"reviewed,omitempty"`
}

// NewRunID returns a run identifier made of the start time, the suite name
// and a random suffix, so runs started in the same second stay distinct.
func NewRunID(suiteName string, start time.Time) string {
	return fmt.Sprintf("%s-%s-%s", start.Format("20060102-150405"), suiteName, uuid.NewString()[:8])
}

// FromRunResult converts a runner.RunResult into a RunSummary, generating
// a run ID and computing summary statistics.
func FromRunResult(rr *runner.RunResult) *RunSummary {
	summary := &RunSummary{
		RunID:     NewRunID(rr.SuiteName, rr.StartTime),
		SuiteName: rr.SuiteName,
		StartTime: rr.StartTime,
		EndTime:   rr.EndTime,
		Duration:  rr.Duration,
	}

	for _, cr := range rr.Cases {
		caseResult := CaseResult{
			CaseID:      cr.CaseID,
			CaseName:    cr.CaseName,
			Query:       cr.Query,
			Output:      cr.Output,
			OutputTrue:  cr.OutputTrue,
			Score:       cr.Composite.CompositeScore,
			Pass:        cr.Composite.Pass,
			Status:      cr.Composite.Status,
			Error:       cr.Error,
			Duration:    cr.Duration,
			FieldScores: cr.Composite.FieldScores(),
			Scores:      cr.Composite.Scores,
		}
		if caseResult.Error != "" {
			caseResult.Status = judge.StatusError
			caseResult.Pass = false
		}
		summary.Results = append(summary.Results, caseResult)
	}

	summary.Stats = ComputeStats(summary.Results)
	return summary
}

// ComputeStats calculates aggregate statistics from a slice of CaseResults.
func ComputeStats(results []CaseResult) Stats {
	s := Stats{TotalCases: len(results)}
	if len(results) == 0 {
		return s
	}

	var totalScore float64
	var durations []time.Duration
	fieldSums := make(map[string]float64)
	fieldCounts := make(map[string]int)

	for _, r := range results {
		if r.Error != "" {
			s.ErroredCases++
		} else if r.Pass {
			s.PassedCases++
		} else {
			s.FailedCases++
		}
		totalScore += r.Score
		durations = append(durations, r.Duration)

		if r.Error != "" {
			continue
		}
		for k, v := range r.FieldScores {
			fieldSums[k] += v
			fieldCounts[k]++
		}
	}

	nonErrored := s.TotalCases - s.ErroredCases
	if nonErrored > 0 {
		s.PassRate = float64(s.PassedCases) / float64(nonErrored)
	}
	s.AvgScore = totalScore / float64(s.TotalCases)

	if len(fieldSums) > 0 {
		s.FieldAverages = make(map[string]float64, len(fieldSums))
		for k, sum := range fieldSums {
			s.FieldAverages[k] = sum / float64(fieldCounts[k])
		}
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	s.LatencyP50 = percentile(durations, 0.5)
	s.LatencyP95 = percentile(durations, 0.95)

	return s
}

// percentile returns the value at the given percentile (0.0-1.0) from a
// sorted slice of durations.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return time.Duration(float64(sorted[lower])*(1-frac) + float64(sorted[upper])*frac)
}

// DefaultPath returns the default output file path for a run result.
func DefaultPath(outputDir, suiteName string, startTime time.Time) string {
	filename := fmt.Sprintf("%s-%s.json", startTime.Format("20060102-150405"), suiteName)
	return filepath.Join(outputDir, filename)
}

// Save writes the RunSummary as pretty-printed JSON to the given path.
// Parent directories are created automatically.
func (s *RunSummary) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating result directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing result to %s: %w", path, err)
	}

	return nil
}

// LoadSummary reads a RunSummary from a JSON file.
func LoadSummary(path string) (*RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result file %s: %w", path, err)
	}

	var s RunSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing result file %s: %w", path, err)
	}

	return &s, nil
}
