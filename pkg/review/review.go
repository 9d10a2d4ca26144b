package review

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jdgilhuly/go_struct_eval/pkg/judge"
	"github.com/jdgilhuly/go_struct_eval/pkg/report"
	"github.com/jdgilhuly/go_struct_eval/pkg/result"
)

// Filter determines which cases are shown for review.
type Filter string

const (
	// FilterPartial selects scored cases with at least one field below a
	// perfect match that no one has reviewed yet.
	FilterPartial Filter = "partial"
	FilterFail    Filter = "fail"
	FilterAll     Filter = "all"
)

// ParseFilter converts a string to a Filter, defaulting to FilterPartial.
func ParseFilter(s string) Filter {
	switch strings.ToLower(s) {
	case "fail", "failed":
		return FilterFail
	case "all":
		return FilterAll
	default:
		return FilterPartial
	}
}

// Reviewer handles interactive review of eval results.
type Reviewer struct {
	In  io.Reader
	Out io.Writer
}

// Review presents filtered cases for human grading and applies the grades
// to summary. Returns the number of cases graded.
func (r *Reviewer) Review(summary *result.RunSummary, filter Filter) (int, error) {
	indices := filterCases(summary.Results, filter)
	if len(indices) == 0 {
		fmt.Fprintf(r.Out, "No cases match filter %q.\n", string(filter))
		return 0, nil
	}

	scanner := bufio.NewScanner(r.In)
	reviewed := 0

	for i, idx := range indices {
		cr := &summary.Results[idx]
		fmt.Fprintf(r.Out, "\n--- Case %d of %d ---\n", i+1, len(indices))
		printCase(r.Out, cr)

		fmt.Fprintf(r.Out, "\nGrade [pass/fail/1-5/skip]: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(strings.ToLower(scanner.Text()))
		if input == "" || input == "skip" || input == "s" {
			fmt.Fprintf(r.Out, "  Skipped.\n")
			continue
		}

		if !applyGrade(cr, input) {
			fmt.Fprintf(r.Out, "  Unrecognized grade %q, skipped.\n", input)
			continue
		}
		reviewed++
		fmt.Fprintf(r.Out, "  Graded: status=%s score=%.1f\n", cr.Status, cr.Score)
	}

	// Recompute stats after grading.
	summary.Stats = result.ComputeStats(summary.Results)

	return reviewed, scanner.Err()
}

func filterCases(results []result.CaseResult, filter Filter) []int {
	var indices []int
	for i, cr := range results {
		switch filter {
		case FilterPartial:
			if !cr.Reviewed && cr.Error == "" && hasPartialField(cr.FieldScores) {
				indices = append(indices, i)
			}
		case FilterFail:
			if cr.Status == judge.StatusFail || cr.Status == judge.StatusError {
				indices = append(indices, i)
			}
		case FilterAll:
			indices = append(indices, i)
		}
	}
	return indices
}

func hasPartialField(fields map[string]float64) bool {
	for _, v := range fields {
		if v < 1 {
			return true
		}
	}
	return false
}

func printCase(w io.Writer, cr *result.CaseResult) {
	fmt.Fprintf(w, "Name:     %s\n", cr.CaseName)
	fmt.Fprintf(w, "Status:   %s (score %.2f)\n", cr.Status, cr.Score)
	if cr.Query != "" {
		fmt.Fprintf(w, "Query:    %s\n", truncateStr(cr.Query, 200))
	}
	fmt.Fprintf(w, "Output:   %s\n", truncateStr(cr.Output, 500))
	fmt.Fprintf(w, "Expected: %s\n", truncateStr(cr.OutputTrue, 500))
	if len(cr.FieldScores) > 0 {
		fmt.Fprintf(w, "Fields:\n")
		report.PrintFieldScores(w, cr.FieldScores, "  ", false)
	}
	if cr.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", cr.Error)
	}
}

// applyGrade records a human grade and reports whether input was one.
func applyGrade(cr *result.CaseResult, input string) bool {
	switch input {
	case "pass", "p":
		cr.Pass = true
		cr.Score = 1.0
	case "fail", "f":
		cr.Pass = false
		cr.Score = 0.0
	default:
		score, err := strconv.Atoi(input)
		if err != nil || score < 1 || score > 5 {
			return false
		}
		cr.Score = float64(score) / 5.0
		cr.Pass = score >= 4
	}

	if cr.Pass {
		cr.Status = judge.StatusPass
	} else {
		cr.Status = judge.StatusFail
	}
	cr.Error = ""
	cr.Reviewed = true
	return true
}

// truncateStr keeps at most maxLen runes of s.
func truncateStr(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
