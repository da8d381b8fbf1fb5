package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fenceql/fenceql/internal/engine"
	"github.com/fenceql/fenceql/internal/grammar"
)

// defaultWorkers bounds concurrent case execution. Cases are independent
// and I/O-bound; ordering is not meaningful, only the aggregated report.
const defaultWorkers = 4

// Runner executes suites against one engine instance.
type Runner struct {
	engine  *engine.Engine
	grammar *grammar.Grammar
	workers int
	logger  *slog.Logger
}

// NewRunner builds a runner. workers <= 0 selects the default pool size.
func NewRunner(eng *engine.Engine, g *grammar.Grammar, workers int, logger *slog.Logger) *Runner {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{engine: eng, grammar: g, workers: workers, logger: logger}
}

// Report aggregates a full harness run.
type Report struct {
	Timestamp string     `json:"timestamp"`
	Suites    []*Summary `json:"suites"`
	Overall   Totals     `json:"overall"`
}

// Totals is the cross-suite aggregate.
type Totals struct {
	Total    int     `json:"total_cases"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	PassRate float64 `json:"pass_rate"`
}

// AllPassed reports whether every case in every suite passed.
func (r *Report) AllPassed() bool {
	return r.Overall.Failed == 0 && r.Overall.Total > 0
}

// RunSuite executes one suite over a bounded worker pool and aggregates
// its results in corpus order.
func (r *Runner) RunSuite(ctx context.Context, suite Suite) (*Summary, error) {
	cases, err := suite.Cases()
	if err != nil {
		return nil, fmt.Errorf("suite %s: %w", suite.Name(), err)
	}

	r.logger.Info("running suite", "suite", suite.Name(), "cases", len(cases))

	results := make([]CaseResult, len(cases))
	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup

	for i, c := range cases {
		wg.Add(1)
		go func(i int, c Case) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = suite.Evaluate(c, r.observe(ctx, c))
		}(i, c)
	}
	wg.Wait()

	summary := &Summary{
		Suite:       suite.Name(),
		Description: suite.Description(),
		Total:       len(results),
		Results:     results,
	}
	for _, res := range results {
		if res.Passed {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	if summary.Total > 0 {
		summary.PassRate = float64(summary.Passed) / float64(summary.Total)
	}

	r.logger.Info("suite finished",
		"suite", suite.Name(),
		"passed", summary.Passed,
		"failed", summary.Failed)
	return summary, nil
}

// RunAll executes the given suites sequentially (cases within each suite
// run concurrently) and aggregates the report.
func (r *Runner) RunAll(ctx context.Context, suites ...Suite) (*Report, error) {
	report := &Report{Timestamp: time.Now().UTC().Format(time.RFC3339)}
	for _, suite := range suites {
		summary, err := r.RunSuite(ctx, suite)
		if err != nil {
			return nil, err
		}
		report.Suites = append(report.Suites, summary)
		report.Overall.Total += summary.Total
		report.Overall.Passed += summary.Passed
		report.Overall.Failed += summary.Failed
	}
	if report.Overall.Total > 0 {
		report.Overall.PassRate = float64(report.Overall.Passed) / float64(report.Overall.Total)
	}
	return report, nil
}

// observe runs one case through the compiler and independently re-validates
// whatever candidate came back. A panic escaping the compiler is captured
// as an outcome, not propagated - the harness measures faults, it does not
// share them.
func (r *Runner) observe(ctx context.Context, c Case) *Outcome {
	out := &Outcome{}

	func() {
		defer func() {
			if p := recover(); p != nil {
				out.Panic = fmt.Sprint(p)
			}
		}()
		out.Response = r.engine.Ask(ctx, c.Question)
	}()

	if out.Produced() {
		out.Tree, out.Reject = r.grammar.Validate(out.Response.SQL)
	}
	return out
}
