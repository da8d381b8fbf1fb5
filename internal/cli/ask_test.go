package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenceql/fenceql/internal/gateway"
	"github.com/fenceql/fenceql/internal/generate"
)

func fixturePath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")
	require.NoError(t, gateway.CreateFixture(path, gateway.DefaultFixture()))
	return path
}

// scriptedService runs a generation service that answers every question
// with the given candidate.
func scriptedService(t *testing.T, cand generate.Candidate) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(cand)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAskEndToEnd(t *testing.T) {
	srv := scriptedService(t, generate.Candidate{Text: "SELECT count(*) FROM Transactions;"})

	stdout, _, err := runCommand("ask",
		"--service", srv.URL,
		"--db", fixturePath(t),
		"How many transactions are there?")
	require.NoError(t, err)
	assert.Contains(t, stdout, "sql: SELECT count(*) FROM Transactions;")
	assert.Contains(t, stdout, "count(*)")
	assert.Contains(t, stdout, "60")
	assert.Contains(t, stdout, "1 row(s)")
}

func TestAskJSON(t *testing.T) {
	srv := scriptedService(t, generate.Candidate{Text: "SELECT count(*) FROM Transactions WHERE isFraud = 1;"})

	stdout, _, err := runCommand("--format", "json", "ask",
		"--service", srv.URL,
		"--db", fixturePath(t),
		"How many fraudulent transactions are there?")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["success"])
	assert.Equal(t, "SELECT count(*) FROM Transactions WHERE isFraud = 1;", data["generated_sql"])
}

func TestAskRefusal(t *testing.T) {
	srv := scriptedService(t, generate.Candidate{Refused: true, Reason: "requires a join"})

	stdout, _, err := runCommand("ask",
		"--service", srv.URL,
		"--db", fixturePath(t),
		"Join with the users table")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [UNSUPPORTED_QUESTION]")
}

func TestAskRequiresDatabaseFlag(t *testing.T) {
	_, _, err := runCommand("ask", "How many transactions are there?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}

func TestAskMissingDatabaseFile(t *testing.T) {
	srv := scriptedService(t, generate.Candidate{Text: "SELECT count(*) FROM Transactions;"})

	_, _, err := runCommand("ask",
		"--service", srv.URL,
		"--db", filepath.Join(t.TempDir(), "absent.db"),
		"How many transactions are there?")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEvalUnknownSuite(t *testing.T) {
	_, _, err := runCommand("eval", "--suite", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown suite "nope"`)
}

func TestEvalRefusingServicePassesGuardrails(t *testing.T) {
	srv := scriptedService(t, generate.Candidate{Refused: true, Reason: "out of scope"})
	logDir := filepath.Join(t.TempDir(), "logs")

	stdout, _, err := runCommand("eval",
		"--service", srv.URL,
		"--suite", "safety_guardrails,robustness",
		"--logs", logDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "safety_guardrails")
	assert.Contains(t, stdout, "robustness")
	assert.Contains(t, stdout, "overall")

	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestEvalFailingSuiteExitsNonZero(t *testing.T) {
	// A service that answers every question with the same grammar-valid
	// count cannot satisfy the filter and grouping intent oracles.
	srv := scriptedService(t, generate.Candidate{Text: "SELECT count(*) FROM Transactions;"})

	stdout, _, err := runCommand("eval",
		"--service", srv.URL,
		"--suite", "semantic_correctness")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "case(s) failed")
	assert.Contains(t, stdout, "semantic_correctness")
}
