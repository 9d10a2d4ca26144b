package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jdgilhuly/go_struct_eval/pkg/result"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

// StatusLabel returns a colored status string for terminal display.
func StatusLabel(cr result.CaseResult) string {
	if cr.Error != "" {
		return colorRed + "ERROR" + colorReset
	}
	if cr.Pass {
		return colorGreen + "PASS" + colorReset
	}
	return colorRed + "FAIL" + colorReset
}

// StatusLabelPlain returns an uncolored status string.
func StatusLabelPlain(cr result.CaseResult) string {
	if cr.Error != "" {
		return "ERROR"
	}
	if cr.Pass {
		return "PASS"
	}
	return "FAIL"
}

// FormatDuration formats a duration for table display.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// PrintSummaryTable writes a formatted summary table of run results.
func PrintSummaryTable(w io.Writer, summary *result.RunSummary, color bool) {
	// Header.
	sep := strings.Repeat("-", 78)
	fmt.Fprintf(w, "%s\n", sep)
	fmt.Fprintf(w, "  %-30s  %-7s  %8s  %8s\n", "CASE", "STATUS", "SCORE", "LATENCY")
	fmt.Fprintf(w, "%s\n", sep)

	// Case rows.
	for _, cr := range summary.Results {
		name := truncate(cr.CaseName, 30)
		var status string
		if color {
			status = StatusLabel(cr)
		} else {
			status = StatusLabelPlain(cr)
		}
		fmt.Fprintf(w, "  %-30s  %-7s  %8.2f  %8s\n",
			name, status, cr.Score, FormatDuration(cr.Duration))
	}

	// Footer.
	fmt.Fprintf(w, "%s\n", sep)
	s := summary.Stats
	if color {
		fmt.Fprintf(w, "  %s%d passed%s  %s%d failed%s  %s%d errored%s  | avg %.2f | %s total\n",
			colorGreen, s.PassedCases, colorReset,
			colorRed, s.FailedCases, colorReset,
			colorYellow, s.ErroredCases, colorReset,
			s.AvgScore, FormatDuration(summary.Duration))
	} else {
		fmt.Fprintf(w, "  %d passed  %d failed  %d errored  | avg %.2f | %s total\n",
			s.PassedCases, s.FailedCases, s.ErroredCases,
			s.AvgScore, FormatDuration(summary.Duration))
	}
	fmt.Fprintf(w, "  p50 %s | p95 %s\n",
		FormatDuration(s.LatencyP50), FormatDuration(s.LatencyP95))
	if len(s.FieldAverages) > 0 {
		fmt.Fprintf(w, "  field averages:\n")
		PrintFieldScores(w, s.FieldAverages, "    ", color)
	}
	fmt.Fprintf(w, "%s\n", sep)
}

// PrintFieldScores writes one line per field in key order. Fields scoring
// below 1 are highlighted when color is set.
func PrintFieldScores(w io.Writer, fields map[string]float64, indent string, color bool) {
	keys := make([]string, 0, len(fields))
	width := 0
	for k := range fields {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := fields[k]
		switch {
		case !color:
			fmt.Fprintf(w, "%s%-*s  %.2f\n", indent, width, k, v)
		case v >= 1:
			fmt.Fprintf(w, "%s%-*s  %s%.2f%s\n", indent, width, k, colorGreen, v, colorReset)
		case v > 0:
			fmt.Fprintf(w, "%s%-*s  %s%.2f%s\n", indent, width, k, colorYellow, v, colorReset)
		default:
			fmt.Fprintf(w, "%s%-*s  %s%.2f%s\n", indent, width, k, colorRed, v, colorReset)
		}
	}
}

// PrintVerbose writes detailed per-case output including full responses.
func PrintVerbose(w io.Writer, summary *result.RunSummary, color bool) {
	PrintSummaryTable(w, summary, color)

	fmt.Fprintf(w, "\n--- Detailed Results ---\n\n")

	for _, cr := range summary.Results {
		var status string
		if color {
			status = StatusLabel(cr)
		} else {
			status = StatusLabelPlain(cr)
		}

		fmt.Fprintf(w, "Case: %s [%s]\n", cr.CaseName, status)
		fmt.Fprintf(w, "  ID:       %s\n", cr.CaseID)
		if cr.Query != "" {
			fmt.Fprintf(w, "  Query:    %s\n", cr.Query)
		}
		fmt.Fprintf(w, "  Score:    %.2f\n", cr.Score)
		fmt.Fprintf(w, "  Latency:  %s\n", FormatDuration(cr.Duration))

		if cr.Error != "" {
			fmt.Fprintf(w, "  Error:    %s\n", cr.Error)
		}

		if len(cr.Scores) > 0 {
			fmt.Fprintf(w, "  Judges:\n")
			for _, js := range cr.Scores {
				fmt.Fprintf(w, "    %-12s %-5s %.2f  %s\n", js.JudgeName, js.Status, js.Score, js.Reason)
			}
		}

		if len(cr.FieldScores) > 0 {
			fmt.Fprintf(w, "  Fields:\n")
			PrintFieldScores(w, cr.FieldScores, "    ", color)
		}

		if cr.Output != "" {
			fmt.Fprintf(w, "  Output:\n")
			for _, line := range strings.Split(cr.Output, "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
		fmt.Fprintln(w)
	}
}

// truncate shortens s to at most max runes, ellipsis included.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
