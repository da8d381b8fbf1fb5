// Package engine is the query compiler: it turns a natural-language
// question into a validated, executed query, or into a classified failure.
//
// Each request walks a small state machine: generate a candidate under the
// grammar constraint, re-validate it locally (the service's own enforcement
// is never trusted), and only then execute. Rejected candidates are retried
// up to a bound with the rejection diagnostic as feedback; exhausting the
// bound is reported as decoder/validator drift, never looped forever.
//
// All request state is local to the Ask call. The grammar, schema, and
// exported artifact are built once and shared read-only.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/fenceql/fenceql/internal/gateway"
	"github.com/fenceql/fenceql/internal/generate"
	"github.com/fenceql/fenceql/internal/grammar"
	"github.com/fenceql/fenceql/internal/schema"
)

// Question bounds, applied after NFC normalization.
const (
	minQuestionRunes = 3
	maxQuestionRunes = 500
)

// Options configures per-request behavior.
type Options struct {
	// MaxRetries bounds how many times a rejected candidate is regenerated
	// before the request fails as an invariant violation.
	MaxRetries int

	// GenerateTimeout bounds each generation service call.
	GenerateTimeout time.Duration

	// ExecuteTimeout bounds the database call.
	ExecuteTimeout time.Duration

	// FeedbackOnReject includes the rejection diagnostic in the next
	// generation attempt. Retry feedback is policy, not hard-wired.
	FeedbackOnReject bool
}

// DefaultOptions returns the standard request budgets.
func DefaultOptions() Options {
	return Options{
		MaxRetries:       3,
		GenerateTimeout:  120 * time.Second,
		ExecuteTimeout:   30 * time.Second,
		FeedbackOnReject: true,
	}
}

// Response is the uniform result shape. Exactly one of Result and Err is
// non-nil; SQL is set whenever a validated candidate exists, including on
// execution failures.
type Response struct {
	Success  bool            `json:"success"`
	Question string          `json:"question"`
	SQL      string          `json:"generated_sql,omitempty"`
	Result   *gateway.Result `json:"result,omitempty"`
	Err      *QueryError     `json:"-"`
}

// Engine compiles questions into executed queries.
type Engine struct {
	grammar   *grammar.Grammar
	table     *schema.Table
	generator generate.Generator
	executor  gateway.Executor
	opts      Options
	logger    *slog.Logger

	// Derived once at construction from the same grammar the validator
	// uses, so the decoder constraint and the local check cannot diverge.
	artifact      string
	schemaContext string
}

// New assembles an engine. The grammar and table must be the process-wide
// immutable instances; the engine itself is safe for concurrent use.
func New(g *grammar.Grammar, gen generate.Generator, exec gateway.Executor, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		grammar:       g,
		table:         g.Table(),
		generator:     gen,
		executor:      exec,
		opts:          opts,
		logger:        logger,
		artifact:      g.ExportLark(),
		schemaContext: generate.SchemaContext(g.Table()),
	}
}

// Artifact returns the serialized grammar handed to the generation service.
func (e *Engine) Artifact() string { return e.artifact }

// request states.
type state int

const (
	stateStart state = iota
	stateAwaitGeneration
	stateValidating
	stateExecuting
	stateDone
)

// request holds the per-call mutable state. Nothing here outlives Ask.
type request struct {
	id        string
	question  string
	retries   int
	feedback  string
	candidate string
	response  *Response
}

// Ask runs one question through generate-validate-execute and always
// returns a Response satisfying the one-of(Result, Err) invariant.
// Cancellation of ctx is honored at every state.
func (e *Engine) Ask(ctx context.Context, question string) *Response {
	req := &request{
		id:       uuid.NewString(),
		question: question,
		response: &Response{Question: question},
	}
	log := e.logger.With("request_id", req.id)

	st := stateStart
	for st != stateDone {
		switch st {
		case stateStart:
			st = e.preflight(req, log)
		case stateAwaitGeneration:
			st = e.awaitGeneration(ctx, req, log)
		case stateValidating:
			st = e.validate(req, log)
		case stateExecuting:
			st = e.execute(ctx, req, log)
		}
	}
	return req.response
}

// preflight normalizes and bounds the question. Failures here never
// contact the generation service.
func (e *Engine) preflight(req *request, log *slog.Logger) state {
	normalized := norm.NFC.String(strings.TrimSpace(req.question))
	runes := utf8.RuneCountInString(normalized)

	switch {
	case runes == 0:
		return e.fail(req, log, CodeUnsupportedQuestion, "question is empty", "")
	case runes < minQuestionRunes:
		return e.fail(req, log, CodeUnsupportedQuestion,
			fmt.Sprintf("question is too short (minimum %d characters)", minQuestionRunes), "")
	case runes > maxQuestionRunes:
		return e.fail(req, log, CodeUnsupportedQuestion,
			fmt.Sprintf("question is too long (maximum %d characters)", maxQuestionRunes), "")
	}

	req.question = normalized
	req.response.Question = normalized
	return stateAwaitGeneration
}

// awaitGeneration calls the generation service under its own deadline.
func (e *Engine) awaitGeneration(ctx context.Context, req *request, log *slog.Logger) state {
	gctx, cancel := context.WithTimeout(ctx, e.opts.GenerateTimeout)
	defer cancel()

	cand, err := e.generator.Generate(gctx, &generate.Request{
		Question:      req.question,
		Artifact:      e.artifact,
		SchemaContext: e.schemaContext,
		Feedback:      req.feedback,
	})
	if err != nil {
		if isTimeout(err) {
			return e.fail(req, log, CodeDecoderTimeout,
				"generation service did not answer in time; please resubmit", err.Error())
		}
		// An unreachable or broken service is indistinguishable from an
		// unresponsive one from the caller's point of view.
		return e.fail(req, log, CodeDecoderTimeout,
			"generation service is unavailable; please resubmit", err.Error())
	}
	if cand.Refused {
		return e.fail(req, log, CodeUnsupportedQuestion,
			"the question cannot be answered within the supported query surface", cand.Reason)
	}

	req.candidate = cand.Text
	return stateValidating
}

// validate re-checks the candidate locally regardless of the service's own
// constraint enforcement.
func (e *Engine) validate(req *request, log *slog.Logger) state {
	_, rej := e.grammar.Validate(req.candidate)
	if rej == nil {
		req.response.SQL = req.candidate
		return stateExecuting
	}
	return e.handleReject(req, log, rej)
}

func (e *Engine) handleReject(req *request, log *slog.Logger, rej *grammar.RejectError) state {
	rejected := newError(CodeGrammarRejected, "candidate failed grammar validation", rej.Error())
	log.Warn("candidate rejected by local validation",
		"attempt", req.retries+1,
		"reject", rej.Error())

	req.retries++
	if req.retries > e.opts.MaxRetries {
		// The decoder and the validator disagree persistently. That should
		// be near-impossible for a constrained service and is the detector
		// for drift between the exported artifact and the local grammar.
		log.Error("retry bound exhausted; decoder/validator drift suspected",
			"retries", e.opts.MaxRetries,
			"last_reject", rej.Error())
		return e.fail(req, log, CodeInvariantViolation,
			"generated queries repeatedly failed validation", rejected.Error())
	}

	if e.opts.FeedbackOnReject {
		req.feedback = fmt.Sprintf("previous attempt was rejected: %s", rej.Error())
	}
	req.candidate = ""
	return stateAwaitGeneration
}

// execute hands the accepted text to the gateway under its own deadline.
func (e *Engine) execute(ctx context.Context, req *request, log *slog.Logger) state {
	xctx, cancel := context.WithTimeout(ctx, e.opts.ExecuteTimeout)
	defer cancel()

	result, err := e.executor.Execute(xctx, req.response.SQL)
	if err != nil {
		return e.fail(req, log, CodeExecutionError,
			"the database engine rejected the query", err.Error())
	}

	req.response.Success = true
	req.response.Result = result
	log.Info("query executed",
		"rows", result.RowCount,
		"elapsed", result.Elapsed)
	return stateDone
}

// fail finalizes the response with a classified error.
func (e *Engine) fail(req *request, log *slog.Logger, code Code, message, detail string) state {
	req.response.Success = false
	req.response.Result = nil
	req.response.Err = newError(code, message, detail)
	log.Info("request failed", "code", string(code), "message", message)
	return stateDone
}

// isTimeout reports whether a generator error is a deadline expiry rather
// than some other transport fault.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
