package harness

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/fenceql/fenceql/internal/gateway"
)

// defaultTolerance is the relative epsilon for floating-point result
// comparison when a case does not declare its own.
const defaultTolerance = 1e-9

// SemanticSuite checks that candidates capture what was asked.
//
// Intent cases verify required elements (aggregate, columns, filters,
// grouping) over the candidate's parse tree. Execution cases run both a
// golden query and the candidate against the fixed dataset snapshot and
// compare results: exact for counts, within epsilon for floats, row count
// for grouped shapes.
type SemanticSuite struct {
	executor gateway.Executor
}

// NewSemanticSuite builds the suite around the snapshot gateway.
func NewSemanticSuite(executor gateway.Executor) *SemanticSuite {
	return &SemanticSuite{executor: executor}
}

func (s *SemanticSuite) Name() string { return "semantic_correctness" }

func (s *SemanticSuite) Description() string {
	return "candidates capture intent and return correct data"
}

func (s *SemanticSuite) Cases() ([]Case, error) {
	return loadCorpus("semantic_correctness.yaml")
}

func (s *SemanticSuite) Evaluate(c Case, out *Outcome) CaseResult {
	if out.Panic != "" {
		return fail(c, out, fmt.Sprintf("unhandled fault: %s", out.Panic))
	}
	if !out.Produced() {
		return fail(c, out, "no candidate produced")
	}
	if out.Tree == nil {
		return fail(c, out, "candidate does not parse")
	}

	switch c.Oracle {
	case "intent":
		return s.evaluateIntent(c, out)
	case "execution":
		return s.evaluateExecution(c, out)
	default:
		return fail(c, out, fmt.Sprintf("case declares unknown oracle %q", c.Oracle))
	}
}

// evaluateIntent checks required semantic elements over the parse tree.
func (s *SemanticSuite) evaluateIntent(c Case, out *Outcome) CaseResult {
	if c.Expect == nil {
		return fail(c, out, "intent case without expected elements")
	}
	var checks []string
	ok := true

	record := func(name string, found bool) {
		checks = append(checks, fmt.Sprintf("%s=%v", name, found))
		ok = ok && found
	}

	if c.Expect.Aggregate != "" {
		record("aggregate:"+c.Expect.Aggregate, hasAggregate(out, c.Expect.Aggregate))
	}
	for _, col := range c.Expect.Columns {
		record("column:"+col, hasTerminal(out, col))
	}
	for _, f := range c.Expect.Filters {
		record("filter:"+f.Column, hasFilter(out, f))
	}
	for _, col := range c.Expect.GroupBy {
		record("group_by:"+col, hasGroupBy(out, col))
	}

	detail := strings.Join(checks, ", ")
	if !ok {
		return fail(c, out, detail)
	}
	return pass(c, out, detail)
}

// evaluateExecution runs golden and candidate queries and compares.
func (s *SemanticSuite) evaluateExecution(c Case, out *Outcome) CaseResult {
	ctx := context.Background()

	golden, err := s.executor.Execute(ctx, c.GoldenSQL)
	if err != nil {
		return fail(c, out, fmt.Sprintf("golden query failed: %v", err))
	}
	got, err := s.executor.Execute(ctx, out.Response.SQL)
	if err != nil {
		return fail(c, out, fmt.Sprintf("candidate failed to execute: %v", err))
	}

	switch c.Comparison {
	case "row_count":
		if got.RowCount != c.ExpectedRows {
			return fail(c, out, fmt.Sprintf("row count %d, want %d", got.RowCount, c.ExpectedRows))
		}
		return pass(c, out, fmt.Sprintf("row count %d", got.RowCount))
	case "exact", "tolerance", "":
		tol := 0.0
		if c.Comparison == "tolerance" {
			tol = c.Tolerance
			if tol == 0 {
				tol = defaultTolerance
			}
		}
		if diag, equal := compareResults(golden, got, tol); !equal {
			return fail(c, out, diag)
		}
		return pass(c, out, "results match golden query")
	default:
		return fail(c, out, fmt.Sprintf("case declares unknown comparison %q", c.Comparison))
	}
}

// compareResults checks result sets cell by cell. Numeric cells compare
// within the relative tolerance; everything else compares exactly.
func compareResults(want, got *gateway.Result, tolerance float64) (string, bool) {
	if got.RowCount != want.RowCount {
		return fmt.Sprintf("row count %d, want %d", got.RowCount, want.RowCount), false
	}
	for i := range want.Rows {
		if len(got.Rows[i]) != len(want.Rows[i]) {
			return fmt.Sprintf("row %d: column count %d, want %d", i, len(got.Rows[i]), len(want.Rows[i])), false
		}
		for j := range want.Rows[i] {
			if !cellsEqual(want.Rows[i][j], got.Rows[i][j], tolerance) {
				return fmt.Sprintf("row %d col %d: %v, want %v", i, j, got.Rows[i][j], want.Rows[i][j]), false
			}
		}
	}
	return "", true
}

func cellsEqual(want, got any, tolerance float64) bool {
	wf, wok := asFloat(want)
	gf, gok := asFloat(got)
	if wok && gok {
		if wf == gf {
			return true
		}
		if tolerance == 0 {
			return false
		}
		scale := math.Max(math.Abs(wf), math.Abs(gf))
		return math.Abs(wf-gf) <= tolerance*math.Max(scale, 1)
	}
	return fmt.Sprint(want) == fmt.Sprint(got)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// --- parse tree element checks ---

func hasAggregate(out *Outcome, name string) bool {
	for _, call := range out.Tree.FindAll("agg_call") {
		toks := call.Terminals()
		if len(toks) > 0 && toks[0].Text == name {
			return true
		}
	}
	return false
}

func hasTerminal(out *Outcome, text string) bool {
	for _, tok := range out.Tree.Terminals() {
		if tok.Text == text {
			return true
		}
	}
	return false
}

// hasFilter checks that the WHERE subtree contains the column and, when
// declared, the expected value(s). Categorical values match with or
// without their quotes.
func hasFilter(out *Outcome, f Filter) bool {
	where := out.Tree.Find("where_opt")
	if where == nil {
		return false
	}
	toks := where.Terminals()

	contains := func(text string) bool {
		for _, tok := range toks {
			if tok.Text == text || strings.Trim(tok.Text, "'") == text {
				return true
			}
		}
		return false
	}

	if !contains(f.Column) {
		return false
	}
	if f.Value != "" && !contains(f.Value) {
		return false
	}
	for _, v := range f.Values {
		if !contains(v) {
			return false
		}
	}
	return true
}

func hasGroupBy(out *Outcome, col string) bool {
	group := out.Tree.Find("group_opt")
	if group == nil {
		return false
	}
	for _, tok := range group.Terminals() {
		if tok.Text == col {
			return true
		}
	}
	return false
}
