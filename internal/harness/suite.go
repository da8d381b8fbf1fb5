package harness

import (
	"github.com/fenceql/fenceql/internal/engine"
	"github.com/fenceql/fenceql/internal/grammar"
)

// Outcome is everything a suite may inspect about one compiler run: the
// black-box response plus the harness's own independent validation of the
// final candidate.
type Outcome struct {
	Response *engine.Response

	// Tree and Reject come from re-validating Response.SQL with the same
	// grammar the compiler used. Tree is nil when no candidate was
	// produced or the candidate does not parse.
	Tree   *grammar.Node
	Reject *grammar.RejectError

	// Panic is set when the compiler let an unhandled fault escape.
	Panic string
}

// Produced reports whether the compiler emitted a final candidate.
func (o *Outcome) Produced() bool {
	return o.Response != nil && o.Response.SQL != ""
}

// Suite is one independently runnable evaluation.
type Suite interface {
	Name() string
	Description() string
	Cases() ([]Case, error)
	Evaluate(c Case, out *Outcome) CaseResult
}

// CaseResult scores one case.
type CaseResult struct {
	CaseID     string `json:"case_id"`
	Question   string `json:"question"`
	Passed     bool   `json:"passed"`
	SQL        string `json:"generated_sql,omitempty"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Summary aggregates one suite run.
type Summary struct {
	Suite       string       `json:"suite"`
	Description string       `json:"description"`
	Total       int          `json:"total_cases"`
	Passed      int          `json:"passed"`
	Failed      int          `json:"failed"`
	PassRate    float64      `json:"pass_rate"`
	Results     []CaseResult `json:"results"`
}

// Failures returns the failing case results.
func (s *Summary) Failures() []CaseResult {
	var out []CaseResult
	for _, r := range s.Results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func pass(c Case, out *Outcome, diagnostic string) CaseResult {
	return CaseResult{CaseID: c.ID, Question: c.Question, Passed: true, SQL: candidateSQL(out), Diagnostic: diagnostic}
}

func fail(c Case, out *Outcome, diagnostic string) CaseResult {
	return CaseResult{CaseID: c.ID, Question: c.Question, Passed: false, SQL: candidateSQL(out), Diagnostic: diagnostic}
}

func candidateSQL(out *Outcome) string {
	if out == nil || out.Response == nil {
		return ""
	}
	return out.Response.SQL
}
