package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jdgilhuly/go_struct_eval/pkg/judge"
	"github.com/jdgilhuly/go_struct_eval/pkg/logging"
	"github.com/jdgilhuly/go_struct_eval/pkg/suite"
)

// CaseResult holds the outcome of scoring a single eval case.
type CaseResult struct {
	CaseName   string                `json:"case_name"`
	CaseID     string                `json:"case_id"`
	Query      string                `json:"query,omitempty"`
	Output     string                `json:"output"`
	OutputTrue string                `json:"output_true"`
	Composite  judge.CompositeResult `json:"composite"`
	Error      string                `json:"error,omitempty"`
	Duration   time.Duration         `json:"duration"`
}

// RunResult holds the output from an entire suite run.
type RunResult struct {
	SuiteName string        `json:"suite_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Cases     []CaseResult  `json:"cases"`
}

// Config controls runner behavior.
type Config struct {
	Concurrency int
	// Timeout bounds the whole run. Cases not started when it expires are
	// recorded as errors.
	Timeout time.Duration
	// PassThreshold is the composite score a case needs to pass.
	PassThreshold float64
	// Ordered makes structured judges compare sequences positionally in the
	// whole-tree diff unless the judge already sets it.
	Ordered bool
	// Truncate is applied to structured judges that do not set their own.
	Truncate int
	Logger   *slog.Logger
}

// Runner scores suite cases with bounded concurrency.
type Runner struct {
	cfg    Config
	scorer *judge.CompositeScorer
	log    *slog.Logger
}

// New creates a Runner with the given configuration.
func New(cfg Config) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		cfg:    cfg,
		scorer: judge.NewCompositeScorer(cfg.PassThreshold),
		log:    logger,
	}
}

// ProgressFunc is called after each case completes. Index is 0-based,
// total is the number of cases.
type ProgressFunc func(index, total int, caseName string, elapsed time.Duration, err error)

// Run scores every case in the suite. Each case writes only its own slot in
// the result. If ctx is canceled or the run times out, the remaining cases
// are marked with the context error and that error is returned alongside
// the partial result. The optional progress callback is invoked after each
// case completes.
func (r *Runner) Run(ctx context.Context, s *suite.EvalSuite, progress ProgressFunc) (*RunResult, error) {
	result := &RunResult{
		SuiteName: s.Name,
		StartTime: time.Now(),
		Cases:     make([]CaseResult, len(s.Cases)),
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	r.log.Info("run started", "suite", s.Name, "cases", len(s.Cases), "concurrency", r.cfg.Concurrency)

	var mu sync.Mutex
	var completed int

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(r.cfg.Concurrency)
	for i, c := range s.Cases {
		i, c := i, c
		g.Go(func() error {
			var cr CaseResult
			if err := gctx.Err(); err != nil {
				cr = CaseResult{CaseName: c.Name, CaseID: c.ID, Error: err.Error()}
			} else {
				cr = r.runCase(c)
			}
			result.Cases[i] = cr

			mu.Lock()
			completed++
			current := completed
			mu.Unlock()

			if progress != nil {
				var caseErr error
				if cr.Error != "" {
					caseErr = fmt.Errorf("%s", cr.Error)
				}
				progress(current-1, len(s.Cases), c.Name, time.Since(result.StartTime), caseErr)
			}
			return nil
		})
	}

	// Cases never fail the group; errors are recorded per case.
	_ = g.Wait()
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	if err := runCtx.Err(); err != nil {
		r.log.Warn("run interrupted", "suite", s.Name, "error", err)
		return result, fmt.Errorf("running suite %s: %w", s.Name, err)
	}
	r.log.Info("run finished", "suite", s.Name, "duration", result.Duration)
	return result, nil
}

// runCase renders the case and scores it against its judges.
func (r *Runner) runCase(c suite.EvalCase) CaseResult {
	start := time.Now()
	cr := CaseResult{
		CaseName: c.Name,
		CaseID:   c.ID,
		Query:    c.Query,
	}
	r.log.Debug("case started", "case", c.Name, "judges", len(c.Judges))

	input, err := c.Input()
	if err != nil {
		cr.Error = err.Error()
		cr.Duration = time.Since(start)
		r.log.Warn("case input invalid", "case", c.Name, "error", err)
		return cr
	}
	cr.Output = input.Output
	cr.OutputTrue = input.ExpectedOutput

	cr.Composite = r.scorer.Score(input, judge.Build(r.judgeConfigs(c.Judges)))
	if cr.Composite.Status == judge.StatusError {
		cr.Error = cr.Composite.Reason
		r.log.Warn("case judge error", "case", c.Name, "reason", cr.Composite.Reason)
	}

	cr.Duration = time.Since(start)
	r.log.Debug("case finished", "case", c.Name,
		"status", cr.Composite.Status, "score", cr.Composite.CompositeScore, "duration", cr.Duration)
	return cr
}

// judgeConfigs applies runner-wide structured defaults to the case judges.
func (r *Runner) judgeConfigs(cfgs []judge.Config) []judge.Config {
	out := make([]judge.Config, len(cfgs))
	for i, c := range cfgs {
		if c.Type == "structured" {
			if r.cfg.Ordered {
				c.Ordered = true
			}
			if c.Truncate == 0 {
				c.Truncate = r.cfg.Truncate
			}
		}
		out[i] = c
	}
	return out
}

// JSON serializes the RunResult to indented JSON bytes.
func (r *RunResult) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
