package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jdgilhuly/go_struct_eval/pkg/judge"
	"github.com/jdgilhuly/go_struct_eval/pkg/logging"
	"github.com/jdgilhuly/go_struct_eval/pkg/suite"
)

func simpleSuite() *suite.EvalSuite {
	return &suite.EvalSuite{
		Name: "test-suite",
		Cases: []suite.EvalCase{
			{
				ID:         "c1",
				Name:       "simple-case",
				Query:      "Extract the person",
				Output:     `Sure: {"name": "Alice", "age": 30}`,
				OutputTrue: map[string]any{"name": "Alice", "age": 30},
				Judges:     []judge.Config{{Type: "structured"}},
			},
		},
	}
}

func TestRun_SimpleCase(t *testing.T) {
	r := New(Config{Concurrency: 1, Timeout: 5 * time.Second})
	result, err := r.Run(context.Background(), simpleSuite(), nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if result.SuiteName != "test-suite" {
		t.Errorf("SuiteName = %q, want %q", result.SuiteName, "test-suite")
	}
	if len(result.Cases) != 1 {
		t.Fatalf("len(Cases) = %d, want 1", len(result.Cases))
	}

	cr := result.Cases[0]
	if cr.Error != "" {
		t.Fatalf("unexpected case error: %s", cr.Error)
	}
	if cr.CaseID != "c1" || cr.Query != "Extract the person" {
		t.Errorf("case identity = %q/%q", cr.CaseID, cr.Query)
	}
	if cr.Composite.Status != judge.StatusPass || cr.Composite.CompositeScore != 1.0 {
		t.Errorf("composite = %s %.2f, want pass 1.00 (%s)", cr.Composite.Status, cr.Composite.CompositeScore, cr.Composite.Reason)
	}
	fields := cr.Composite.FieldScores()
	if fields["name"] != 1.0 || fields["age"] != 1.0 {
		t.Errorf("field scores = %v", fields)
	}
	if !strings.Contains(cr.OutputTrue, `"name": "Alice"`) {
		t.Errorf("OutputTrue = %q, want rendered JSON", cr.OutputTrue)
	}
	if result.EndTime.Before(result.StartTime) {
		t.Error("EndTime before StartTime")
	}
}

func TestRun_PartialScore(t *testing.T) {
	s := &suite.EvalSuite{
		Name: "partial",
		Cases: []suite.EvalCase{{
			Name:       "half",
			Output:     `{"a": 1, "b": 3}`,
			OutputTrue: `{"a": 1, "b": 2}`,
			Judges:     []judge.Config{{Type: "structured"}},
		}},
	}
	r := New(Config{Concurrency: 1, PassThreshold: 0.9})
	result, err := r.Run(context.Background(), s, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	cr := result.Cases[0]
	if cr.Composite.CompositeScore != 0.5 {
		t.Errorf("score = %v, want 0.5", cr.Composite.CompositeScore)
	}
	if cr.Composite.Pass {
		t.Error("expected fail below pass threshold 0.9")
	}
}

func TestRun_JudgeError(t *testing.T) {
	s := &suite.EvalSuite{
		Name: "errors",
		Cases: []suite.EvalCase{{
			Name:       "bad-truth",
			Output:     `{"a": 1}`,
			OutputTrue: "not json at all",
			Judges:     []judge.Config{{Type: "structured"}},
		}},
	}
	r := New(Config{Concurrency: 1})
	result, err := r.Run(context.Background(), s, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	cr := result.Cases[0]
	if cr.Composite.Status != judge.StatusError {
		t.Errorf("status = %q, want %q", cr.Composite.Status, judge.StatusError)
	}
	if !strings.Contains(cr.Error, "ground truth") {
		t.Errorf("Error = %q, want ground truth failure", cr.Error)
	}
}

func TestRun_InputError(t *testing.T) {
	s := &suite.EvalSuite{
		Name: "input",
		Cases: []suite.EvalCase{{
			Name:       "unrenderable",
			Output:     make(chan int),
			OutputTrue: "{}",
			Judges:     []judge.Config{{Type: "structured"}},
		}},
	}
	r := New(Config{Concurrency: 1})
	result, err := r.Run(context.Background(), s, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !strings.Contains(result.Cases[0].Error, "output") {
		t.Errorf("Error = %q, want output render failure", result.Cases[0].Error)
	}
}

func TestRun_StructuredDefaults(t *testing.T) {
	r := New(Config{Ordered: true, Truncate: 20})
	got := r.judgeConfigs([]judge.Config{
		{Type: "structured"},
		{Type: "structured", Truncate: 5},
		{Type: "exact"},
	})
	if !got[0].Ordered || got[0].Truncate != 20 {
		t.Errorf("got[0] = %+v, want ordered with truncate 20", got[0])
	}
	if got[1].Truncate != 5 {
		t.Errorf("got[1].Truncate = %d, want 5 (judge setting kept)", got[1].Truncate)
	}
	if got[2].Ordered || got[2].Truncate != 0 {
		t.Errorf("got[2] = %+v, want exact judge untouched", got[2])
	}
}

// countingJudge tracks how many evaluations run at once.
type countingJudge struct {
	delay         time.Duration
	maxConcurrent *atomic.Int32
	current       *atomic.Int32
}

func (c *countingJudge) Name() string { return "counting" }

func (c *countingJudge) Evaluate(judge.Input) (judge.Result, error) {
	n := c.current.Add(1)
	for {
		old := c.maxConcurrent.Load()
		if n <= old || c.maxConcurrent.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(c.delay)
	c.current.Add(-1)
	return judge.Result{Pass: true, Score: 1.0, Reason: "ok"}, nil
}

func TestRun_BoundedConcurrency(t *testing.T) {
	var maxConcurrent, current atomic.Int32
	judge.Register("counting", func(judge.Config) (judge.Judge, error) {
		return &countingJudge{delay: 20 * time.Millisecond, maxConcurrent: &maxConcurrent, current: &current}, nil
	})

	s := &suite.EvalSuite{Name: "concurrency-suite"}
	for _, name := range []string{"c1", "c2", "c3", "c4", "c5", "c6"} {
		s.Cases = append(s.Cases, suite.EvalCase{
			Name: name, Output: "{}", OutputTrue: "{}",
			Judges: []judge.Config{{Type: "counting"}},
		})
	}

	r := New(Config{Concurrency: 2, Timeout: 5 * time.Second})
	result, err := r.Run(context.Background(), s, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(result.Cases) != 6 {
		t.Fatalf("len(Cases) = %d, want 6", len(result.Cases))
	}
	for i, cr := range result.Cases {
		if cr.CaseName != s.Cases[i].Name {
			t.Errorf("Cases[%d].CaseName = %q, want %q (order preserved)", i, cr.CaseName, s.Cases[i].Name)
		}
	}
	if maxConcurrent.Load() > 2 {
		t.Errorf("maxConcurrent = %d, want <= 2", maxConcurrent.Load())
	}
}

func TestRun_ProgressCallback(t *testing.T) {
	s := &suite.EvalSuite{
		Name: "progress-suite",
		Cases: []suite.EvalCase{
			{Name: "p1", Output: `{"a": 1}`, OutputTrue: `{"a": 1}`, Judges: []judge.Config{{Type: "structured"}}},
			{Name: "p2", Output: `{"a": 1}`, OutputTrue: "oops", Judges: []judge.Config{{Type: "structured"}}},
		},
	}

	var callCount, errCount atomic.Int32
	r := New(Config{Concurrency: 1, Timeout: 5 * time.Second})
	_, err := r.Run(context.Background(), s, func(index, total int, name string, elapsed time.Duration, err error) {
		callCount.Add(1)
		if err != nil {
			errCount.Add(1)
		}
		if total != 2 {
			t.Errorf("progress total = %d, want 2", total)
		}
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if callCount.Load() != 2 {
		t.Errorf("progress called %d times, want 2", callCount.Load())
	}
	if errCount.Load() != 1 {
		t.Errorf("progress saw %d errors, want 1", errCount.Load())
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately.

	r := New(Config{Concurrency: 1, Timeout: 5 * time.Second})
	result, err := r.Run(ctx, simpleSuite(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	cr := result.Cases[0]
	if cr.Error == "" {
		t.Fatal("expected error from cancelled context")
	}
	if cr.CaseName != "simple-case" {
		t.Errorf("CaseName = %q, want %q", cr.CaseName, "simple-case")
	}
}

func TestRun_Logging(t *testing.T) {
	var buf bytes.Buffer
	r := New(Config{Concurrency: 1, Logger: logging.New("debug", "text", &buf)})
	if _, err := r.Run(context.Background(), simpleSuite(), nil); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"run started", "case started", "case finished", "run finished"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestRunResult_JSON(t *testing.T) {
	result := &RunResult{
		SuiteName: "json-test",
		StartTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 1, 1, 0, 0, 1, 0, time.UTC),
		Duration:  time.Second,
		Cases: []CaseResult{
			{CaseName: "c1", Output: `{"a": 1}`},
		},
	}

	data, err := result.JSON()
	if err != nil {
		t.Fatalf("JSON() error: %v", err)
	}
	if !strings.Contains(string(data), `"case_name": "c1"`) {
		t.Errorf("JSON() = %s", data)
	}
}
