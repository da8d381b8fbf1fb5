package harness

import "fmt"

// GrammarValiditySuite asserts that every candidate the compiler finally
// produces is accepted by the validator. A clean failure (no candidate) is
// acceptable; a candidate that escaped the compiler's own validation is a
// hard failure - it means the retry loop leaked an invalid query.
type GrammarValiditySuite struct{}

// NewGrammarValiditySuite builds the suite.
func NewGrammarValiditySuite() *GrammarValiditySuite { return &GrammarValiditySuite{} }

func (s *GrammarValiditySuite) Name() string { return "grammar_validity" }

func (s *GrammarValiditySuite) Description() string {
	return "every produced candidate conforms to the query grammar"
}

func (s *GrammarValiditySuite) Cases() ([]Case, error) {
	return loadCorpus("grammar_validity.yaml")
}

func (s *GrammarValiditySuite) Evaluate(c Case, out *Outcome) CaseResult {
	if out.Panic != "" {
		return fail(c, out, fmt.Sprintf("unhandled fault: %s", out.Panic))
	}
	if !out.Produced() {
		detail := "clean failure (no candidate produced)"
		if out.Response != nil && out.Response.Err != nil {
			detail = fmt.Sprintf("clean failure: %s", out.Response.Err.Code)
		}
		return pass(c, out, detail)
	}
	if out.Reject != nil {
		return fail(c, out, fmt.Sprintf("candidate escaped validation: %s", out.Reject.Error()))
	}
	return pass(c, out, "candidate accepted by validator")
}
