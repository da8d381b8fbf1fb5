package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenceql/fenceql/internal/generate"
)

// refuseAll answers every question with a refusal.
type refuseAll struct{}

func (refuseAll) Generate(_ context.Context, _ *generate.Request) (*generate.Candidate, error) {
	return generate.Refusal("out of scope"), nil
}

// panicGenerator simulates an unhandled fault inside the compiler path.
type panicGenerator struct{}

func (panicGenerator) Generate(_ context.Context, _ *generate.Request) (*generate.Candidate, error) {
	panic("generator blew up")
}

// semanticAnswers maps every semantic corpus question to a correct query.
func semanticAnswers() map[string]*generate.Candidate {
	m := map[string]string{
		"How many transactions are there?":                            "SELECT count(*) FROM Transactions;",
		"What is the total amount of all transactions?":               "SELECT sum(amount) FROM Transactions;",
		"What's the average transaction amount?":                      "SELECT avg(amount) FROM Transactions;",
		"Show me fraudulent transactions":                             "SELECT count(*) FROM Transactions WHERE isFraud = 1;",
		"Count all TRANSFER type transactions":                        "SELECT count(*) FROM Transactions WHERE type = 'TRANSFER';",
		"How many transactions are above 100000?":                     "SELECT count(*) FROM Transactions WHERE amount > 100000;",
		"Show transactions between step 100 and 200":                  "SELECT count(*) FROM Transactions WHERE step BETWEEN 100 AND 200;",
		"Show transaction counts for each type":                       "SELECT type, count(*) FROM Transactions GROUP BY type;",
		"Compare fraudulent vs non-fraudulent transaction counts":     "SELECT isFraud, count(*) FROM Transactions GROUP BY isFraud;",
		"What's the average amount of fraudulent TRANSFER transactions?": "SELECT avg(amount) FROM Transactions WHERE isFraud = 1 AND type = 'TRANSFER';",
		"Count CASH-OUT transactions over 50000 grouped by fraud status": "SELECT isFraud, count(*) FROM Transactions WHERE type = 'CASH-OUT' AND amount > 50000 GROUP BY isFraud;",
		"How many transactions are there in total?":                   "SELECT count(*) FROM Transactions;",
		"How many fraudulent transactions are there?":                 "SELECT count(*) FROM Transactions WHERE isFraud = 1;",
		"How many transfer transactions are there?":                   "SELECT count(*) FROM Transactions WHERE type = 'TRANSFER';",
		"How many cash-out transactions are there?":                   "SELECT count(*) FROM Transactions WHERE type = 'CASH-OUT';",
		"What is the total sum of all transaction amounts?":           "SELECT sum(amount) FROM Transactions;",
		"What is the average transaction amount?":                     "SELECT avg(amount) FROM Transactions;",
		"What is the total amount of fraudulent transactions?":        "SELECT sum(amount) FROM Transactions WHERE isFraud = 1;",
		"Show me the count of transactions for each type":             "SELECT type, count(*) FROM Transactions GROUP BY type;",
		"Show me transaction counts grouped by fraud status":          "SELECT isFraud, count(*) FROM Transactions GROUP BY isFraud;",
		"How many fraudulent transfer transactions are there?":        "SELECT count(*) FROM Transactions WHERE isFraud = 1 AND type = 'TRANSFER';",
		"How many transactions between step 100 and 200?":             "SELECT count(*) FROM Transactions WHERE step BETWEEN 100 AND 200;",
		"How many transactions are above 1000000?":                    "SELECT count(*) FROM Transactions WHERE amount > 1000000;",
	}
	out := make(map[string]*generate.Candidate, len(m))
	for q, sql := range m {
		out[q] = generate.SQL(sql)
	}
	return out
}

func TestRunSuiteSemanticAllPass(t *testing.T) {
	runner, _, db := testRunner(t, generate.NewScripted(semanticAnswers()))

	summary, err := runner.RunSuite(context.Background(), NewSemanticSuite(db))
	require.NoError(t, err)
	for _, res := range summary.Results {
		assert.True(t, res.Passed, "%s: %s", res.CaseID, res.Diagnostic)
	}
	assert.Equal(t, summary.Total, summary.Passed)
	assert.Equal(t, 1.0, summary.PassRate)
}

func TestRunSuiteRefusalsPassSafetyAndRobustness(t *testing.T) {
	runner, g, _ := testRunner(t, refuseAll{})

	for _, suite := range []Suite{NewSafetySuite(g), NewRobustnessSuite(), NewGrammarValiditySuite()} {
		summary, err := runner.RunSuite(context.Background(), suite)
		require.NoError(t, err, suite.Name())
		assert.Equal(t, summary.Total, summary.Passed, "%s: %+v", suite.Name(), summary.Failures())
	}
}

func TestRunSuiteCapturesPanics(t *testing.T) {
	runner, _, _ := testRunner(t, panicGenerator{})

	summary, err := runner.RunSuite(context.Background(), NewGrammarValiditySuite())
	require.NoError(t, err)
	assert.Equal(t, summary.Total, summary.Failed)
	for _, res := range summary.Results {
		assert.Contains(t, res.Diagnostic, "unhandled fault")
	}
}

func TestRunAllAggregates(t *testing.T) {
	runner, g, _ := testRunner(t, refuseAll{})

	report, err := runner.RunAll(context.Background(),
		NewGrammarValiditySuite(), NewSafetySuite(g), NewRobustnessSuite())
	require.NoError(t, err)
	require.Len(t, report.Suites, 3)
	assert.NotEmpty(t, report.Timestamp)

	var total int
	for _, s := range report.Suites {
		total += s.Total
	}
	assert.Equal(t, total, report.Overall.Total)
	assert.True(t, report.AllPassed())
}

func TestResultsKeepCorpusOrder(t *testing.T) {
	runner, _, _ := testRunner(t, refuseAll{})
	suite := NewGrammarValiditySuite()

	cases, err := suite.Cases()
	require.NoError(t, err)
	summary, err := runner.RunSuite(context.Background(), suite)
	require.NoError(t, err)

	require.Len(t, summary.Results, len(cases))
	for i, c := range cases {
		assert.Equal(t, c.ID, summary.Results[i].CaseID)
	}
}

func TestPrintReport(t *testing.T) {
	report := &Report{
		Timestamp: "2026-01-02T03:04:05Z",
		Suites: []*Summary{{
			Suite: "grammar_validity", Description: "d",
			Total: 2, Passed: 1, Failed: 1, PassRate: 0.5,
			Results: []CaseResult{
				{CaseID: "ok", Question: "q1", Passed: true},
				{CaseID: "bad", Question: "q2", Passed: false, Diagnostic: "went sideways"},
			},
		}},
		Overall: Totals{Total: 2, Passed: 1, Failed: 1, PassRate: 0.5},
	}

	var buf bytes.Buffer
	PrintReport(&buf, report)
	out := buf.String()
	assert.Contains(t, out, "grammar_validity")
	assert.Contains(t, out, "overall")
	assert.Contains(t, out, "bad")
	assert.Contains(t, out, "went sideways")
	assert.NotContains(t, out, "\"ok\"")
}

func TestWriteLogs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	report := &Report{
		Timestamp: "2026-01-02T03:04:05Z",
		Suites: []*Summary{
			{Suite: "safety_guardrails", Total: 1, Passed: 1, PassRate: 1},
		},
		Overall: Totals{Total: 1, Passed: 1, PassRate: 1},
	}

	require.NoError(t, WriteLogs(dir, report))

	raw, err := os.ReadFile(filepath.Join(dir, "report_2026-01-02T03-04-05Z.json"))
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, report.Timestamp, decoded.Timestamp)

	_, err = os.Stat(filepath.Join(dir, "safety_guardrails_2026-01-02T03-04-05Z.json"))
	assert.NoError(t, err)
}
