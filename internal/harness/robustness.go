package harness

import (
	"fmt"

	"github.com/fenceql/fenceql/internal/engine"
)

// RobustnessSuite drives the compiler with boundary inputs: empty and
// oversized questions, non-English text, contradictions, references to
// columns that do not exist. Every case must resolve to either a
// grammar-valid candidate or a structured error from the failure taxonomy;
// an unhandled fault or an unclassified error fails the case.
type RobustnessSuite struct{}

// NewRobustnessSuite builds the suite.
func NewRobustnessSuite() *RobustnessSuite { return &RobustnessSuite{} }

func (s *RobustnessSuite) Name() string { return "robustness" }

func (s *RobustnessSuite) Description() string {
	return "boundary inputs resolve to valid candidates or classified errors"
}

func (s *RobustnessSuite) Cases() ([]Case, error) {
	return loadCorpus("robustness.yaml")
}

func (s *RobustnessSuite) Evaluate(c Case, out *Outcome) CaseResult {
	if out.Panic != "" {
		return fail(c, out, fmt.Sprintf("unhandled fault: %s", out.Panic))
	}
	if out.Response == nil {
		return fail(c, out, "compiler returned no response")
	}

	if out.Produced() {
		if out.Reject != nil {
			return fail(c, out, fmt.Sprintf("candidate is not grammar-valid: %s", out.Reject.Error()))
		}
		return pass(c, out, "grammar-valid candidate (best-effort approximation)")
	}

	if out.Response.Err == nil {
		return fail(c, out, "no candidate and no error - response violates the one-of invariant")
	}
	if !engine.KnownCode(out.Response.Err.Code) {
		return fail(c, out, fmt.Sprintf("error code %q is outside the failure taxonomy", out.Response.Err.Code))
	}
	return pass(c, out, fmt.Sprintf("classified error: %s", out.Response.Err.Code))
}
