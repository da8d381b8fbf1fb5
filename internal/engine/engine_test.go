package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenceql/fenceql/internal/gateway"
	"github.com/fenceql/fenceql/internal/generate"
	"github.com/fenceql/fenceql/internal/grammar"
	"github.com/fenceql/fenceql/internal/schema"
)

const validSQL = "SELECT count(*) FROM Transactions;"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGrammar(t *testing.T) *grammar.Grammar {
	t.Helper()
	g, err := grammar.Build(schema.Transactions())
	require.NoError(t, err)
	return g
}

// fakeExecutor is an in-memory gateway for engine tests.
type fakeExecutor struct {
	mu     sync.Mutex
	result *gateway.Result
	err    error
	gotSQL []string
}

func (f *fakeExecutor) Execute(_ context.Context, query string) (*gateway.Result, error) {
	f.mu.Lock()
	f.gotSQL = append(f.gotSQL, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func okExecutor() *fakeExecutor {
	return &fakeExecutor{result: &gateway.Result{
		Columns:  []string{"count(*)"},
		Rows:     [][]any{{int64(60)}},
		RowCount: 1,
	}}
}

// slowGenerator blocks until its context expires.
type slowGenerator struct{}

func (slowGenerator) Generate(ctx context.Context, _ *generate.Request) (*generate.Candidate, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// brokenGenerator fails with a non-timeout transport error.
type brokenGenerator struct{}

func (brokenGenerator) Generate(context.Context, *generate.Request) (*generate.Candidate, error) {
	return nil, errors.New("connection refused")
}

func newEngine(t *testing.T, gen generate.Generator, exec gateway.Executor, opts Options) *Engine {
	t.Helper()
	return New(testGrammar(t), gen, exec, opts, testLogger())
}

// checkOneOf asserts the response invariant: exactly one of Result and Err.
func checkOneOf(t *testing.T, resp *Response) {
	t.Helper()
	if resp.Success {
		require.NotNil(t, resp.Result)
		require.Nil(t, resp.Err)
	} else {
		require.Nil(t, resp.Result)
		require.NotNil(t, resp.Err)
	}
}

func TestAskSuccess(t *testing.T) {
	gen := generate.NewScripted(map[string]*generate.Candidate{
		"How many transactions are there?": generate.SQL(validSQL),
	})
	exec := okExecutor()
	eng := newEngine(t, gen, exec, DefaultOptions())

	resp := eng.Ask(context.Background(), "How many transactions are there?")
	checkOneOf(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, validSQL, resp.SQL)
	assert.Equal(t, 1, resp.Result.RowCount)
	assert.Equal(t, []string{validSQL}, exec.gotSQL)
	assert.Equal(t, 1, gen.Calls())
}

func TestAskBoundsNeverContactGenerator(t *testing.T) {
	tests := []struct {
		name     string
		question string
	}{
		{"empty", ""},
		{"whitespace only", "   \t  "},
		{"too short", "hi"},
		{"too long", strings.Repeat("why ", 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := generate.NewScriptedQueue()
			eng := newEngine(t, gen, okExecutor(), DefaultOptions())

			resp := eng.Ask(context.Background(), tt.question)
			checkOneOf(t, resp)
			assert.False(t, resp.Success)
			assert.Equal(t, CodeUnsupportedQuestion, resp.Err.Code)
			assert.Equal(t, 0, gen.Calls(), "bounds failures must not reach the service")
		})
	}
}

func TestAskNormalizesQuestion(t *testing.T) {
	gen := generate.NewScripted(map[string]*generate.Candidate{
		"count transfers": generate.SQL(validSQL),
	})
	eng := newEngine(t, gen, okExecutor(), DefaultOptions())

	resp := eng.Ask(context.Background(), "  count transfers  ")
	assert.True(t, resp.Success)
	assert.Equal(t, "count transfers", resp.Question)
}

func TestAskRefusal(t *testing.T) {
	gen := generate.NewScriptedQueue(generate.Refusal("requires a join"))
	eng := newEngine(t, gen, okExecutor(), DefaultOptions())

	resp := eng.Ask(context.Background(), "join with the users table")
	checkOneOf(t, resp)
	assert.Equal(t, CodeUnsupportedQuestion, resp.Err.Code)
	assert.Contains(t, resp.Err.Detail, "requires a join")
	assert.True(t, IsUnsupportedQuestion(resp.Err))
}

func TestAskRetriesThenSucceeds(t *testing.T) {
	gen := generate.NewScriptedQueue(
		generate.SQL("DROP TABLE Transactions;"),
		generate.SQL(validSQL),
	)
	eng := newEngine(t, gen, okExecutor(), DefaultOptions())

	resp := eng.Ask(context.Background(), "how many transactions?")
	checkOneOf(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, gen.Calls())

	reqs := gen.Requests()
	assert.Empty(t, reqs[0].Feedback)
	assert.Contains(t, reqs[1].Feedback, "rejected")
	assert.Contains(t, reqs[1].Feedback, "unexpected DROP")
}

func TestAskRetryBoundExhaustion(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxRetries = 2

	gen := generate.NewScriptedQueue(
		generate.SQL("not sql at all"),
		generate.SQL("still not sql"),
		generate.SQL("SELECT * FROM Transactions;"),
	)
	eng := newEngine(t, gen, okExecutor(), opts)

	resp := eng.Ask(context.Background(), "how many transactions?")
	checkOneOf(t, resp)
	assert.Equal(t, CodeInvariantViolation, resp.Err.Code)
	assert.True(t, IsInvariantViolation(resp.Err))
	assert.Equal(t, opts.MaxRetries+1, gen.Calls())
	assert.Empty(t, resp.SQL, "no validated candidate exists")
}

func TestAskFeedbackDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.FeedbackOnReject = false

	gen := generate.NewScriptedQueue(
		generate.SQL("garbage"),
		generate.SQL(validSQL),
	)
	eng := newEngine(t, gen, okExecutor(), opts)

	resp := eng.Ask(context.Background(), "how many transactions?")
	assert.True(t, resp.Success)
	reqs := gen.Requests()
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[1].Feedback)
}

func TestAskGenerationTimeout(t *testing.T) {
	opts := DefaultOptions()
	opts.GenerateTimeout = 20 * time.Millisecond

	eng := newEngine(t, slowGenerator{}, okExecutor(), opts)
	resp := eng.Ask(context.Background(), "how many transactions?")
	checkOneOf(t, resp)
	assert.Equal(t, CodeDecoderTimeout, resp.Err.Code)
	assert.True(t, IsDecoderTimeout(resp.Err))
}

func TestAskGenerationTransportError(t *testing.T) {
	eng := newEngine(t, brokenGenerator{}, okExecutor(), DefaultOptions())

	resp := eng.Ask(context.Background(), "how many transactions?")
	checkOneOf(t, resp)
	assert.Equal(t, CodeDecoderTimeout, resp.Err.Code)
	assert.Contains(t, resp.Err.Detail, "connection refused")
}

func TestAskExecutionError(t *testing.T) {
	gen := generate.NewScriptedQueue(generate.SQL(validSQL))
	exec := &fakeExecutor{err: errors.New("disk I/O error")}
	eng := newEngine(t, gen, exec, DefaultOptions())

	resp := eng.Ask(context.Background(), "how many transactions?")
	checkOneOf(t, resp)
	assert.Equal(t, CodeExecutionError, resp.Err.Code)
	assert.True(t, IsExecutionError(resp.Err))
	assert.Equal(t, validSQL, resp.SQL, "the validated SQL is reported even when execution fails")
}

func TestAskConcurrent(t *testing.T) {
	gen := generate.NewScripted(map[string]*generate.Candidate{
		"how many transactions?": generate.SQL(validSQL),
	})
	eng := newEngine(t, gen, okExecutor(), DefaultOptions())

	const workers = 8
	done := make(chan *Response, workers)
	for i := 0; i < workers; i++ {
		go func() {
			done <- eng.Ask(context.Background(), "how many transactions?")
		}()
	}
	for i := 0; i < workers; i++ {
		resp := <-done
		checkOneOf(t, resp)
		assert.True(t, resp.Success)
	}
}

func TestArtifactStable(t *testing.T) {
	eng := newEngine(t, generate.NewScriptedQueue(), okExecutor(), DefaultOptions())
	first := eng.Artifact()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, eng.Artifact())
	assert.Contains(t, first, "start: query")
}

func TestQueryErrorHelpers(t *testing.T) {
	err := newError(CodeDecoderTimeout, "msg", "detail")
	assert.True(t, IsDecoderTimeout(err))
	assert.False(t, IsExecutionError(err))
	assert.Equal(t, "DECODER_TIMEOUT: msg: detail", err.Error())

	assert.True(t, KnownCode(CodeGrammarRejected))
	assert.False(t, KnownCode(Code("SOMETHING_ELSE")))

	assert.False(t, IsDecoderTimeout(errors.New("plain")))
}
