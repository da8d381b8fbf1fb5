package engine

import (
	"errors"
	"fmt"
)

// Code classifies a request failure. Every failure surfaced to a caller
// carries exactly one of these stable codes plus human-readable detail;
// raw internal faults are never passed through verbatim.
type Code string

const (
	// CodeDecoderTimeout: the generation service did not answer within the
	// request budget. Surfaced, not retried - the caller may resubmit.
	CodeDecoderTimeout Code = "DECODER_TIMEOUT"

	// CodeGrammarRejected: a candidate failed local validation. Recoverable
	// up to the retry bound; never the final classification of a request.
	CodeGrammarRejected Code = "GRAMMAR_REJECTED"

	// CodeInvariantViolation: the grammar-constrained service kept emitting
	// text the local validator rejects, past the retry bound. Always
	// surfaced; logged as a drift signal between decoder and validator.
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"

	// CodeExecutionError: the engine rejected a grammar-valid query.
	// Surfaced, not retried - re-running the same wrong query cannot help.
	CodeExecutionError Code = "EXECUTION_ERROR"

	// CodeUnsupportedQuestion: the input was empty, out of bounds, or
	// declined before or by generation.
	CodeUnsupportedQuestion Code = "UNSUPPORTED_QUESTION"
)

// QueryError is the uniform caller-facing failure shape.
type QueryError struct {
	Code    Code
	Message string
	Detail  string
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// KnownCode reports whether c is part of the failure taxonomy. The
// robustness suite uses this to detect unclassified faults.
func KnownCode(c Code) bool {
	switch c {
	case CodeDecoderTimeout, CodeGrammarRejected, CodeInvariantViolation,
		CodeExecutionError, CodeUnsupportedQuestion:
		return true
	}
	return false
}

// IsDecoderTimeout reports whether err is a DECODER_TIMEOUT failure.
func IsDecoderTimeout(err error) bool { return hasCode(err, CodeDecoderTimeout) }

// IsInvariantViolation reports whether err is an INVARIANT_VIOLATION failure.
func IsInvariantViolation(err error) bool { return hasCode(err, CodeInvariantViolation) }

// IsExecutionError reports whether err is an EXECUTION_ERROR failure.
func IsExecutionError(err error) bool { return hasCode(err, CodeExecutionError) }

// IsUnsupportedQuestion reports whether err is an UNSUPPORTED_QUESTION failure.
func IsUnsupportedQuestion(err error) bool { return hasCode(err, CodeUnsupportedQuestion) }

func hasCode(err error, code Code) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == code
	}
	return false
}

func newError(code Code, message, detail string) *QueryError {
	return &QueryError{Code: code, Message: message, Detail: detail}
}
