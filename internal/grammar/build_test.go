package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenceql/fenceql/internal/schema"
)

func testGrammar(t *testing.T) *Grammar {
	t.Helper()
	g, err := Build(schema.Transactions())
	require.NoError(t, err)
	return g
}

func TestBuildDeclaresSchemaTerminals(t *testing.T) {
	g := testGrammar(t)

	tbl, ok := g.Terminal("TBL_TRANSACTIONS")
	require.True(t, ok)
	assert.Equal(t, "Transactions", tbl.Literal)

	col, ok := g.Terminal("COL_ISFRAUD")
	require.True(t, ok)
	assert.Equal(t, "isFraud", col.Literal)

	// Enum terminals carry the quotes of the SQL literal.
	lit, ok := g.Terminal("LIT_CASH_OUT")
	require.True(t, ok)
	assert.Equal(t, "'CASH-OUT'", lit.Literal)

	// Pattern terminals are anchored.
	step, ok := g.Terminal("VAL_STEP")
	require.True(t, ok)
	assert.True(t, step.Matches("744"))
	assert.False(t, step.Matches("1000"))
	assert.False(t, step.Matches("0"))
	assert.False(t, step.Matches("12x"))

	limit, ok := g.Terminal("VAL_LIMIT")
	require.True(t, ok)
	assert.True(t, limit.Matches("9999"))
	assert.False(t, limit.Matches("0"))
	assert.False(t, limit.Matches("10000"))
}

func TestBuildForbiddenVerbsUnreachable(t *testing.T) {
	g := testGrammar(t)

	literals := g.ReachableLiterals()
	for _, verb := range []string{"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE", "ATTACH"} {
		assert.False(t, literals[verb], "verb %s must not be derivable", verb)
	}
}

func TestBuildRejectsForbiddenTableName(t *testing.T) {
	table, err := schema.NewTable("DROP", []schema.Column{
		{Name: "step", Kind: schema.KindNumeric, Aggregatable: true, Groupable: true,
			Filterable: true, ValuePattern: `[0-9]+`},
	})
	require.NoError(t, err)

	_, err = Build(table)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden verb")
}

func TestBuildRejectsCommentOpenerInEnum(t *testing.T) {
	table, err := schema.NewTable("T", []schema.Column{
		{Name: "step", Kind: schema.KindNumeric, Aggregatable: true, Groupable: true,
			Filterable: true, ValuePattern: `[0-9]+`},
		{Name: "kind", Kind: schema.KindCategorical, Groupable: true, Filterable: true,
			Enum: []string{"a--b"}},
	})
	require.NoError(t, err)

	_, err = Build(table)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "comment opener")
}

func TestUnreferencedColumnsAreUnreachable(t *testing.T) {
	g := testGrammar(t)

	// Identifier columns are registered but no production references them.
	assert.False(t, g.MatchesReachable("nameOrig"))
	assert.False(t, g.MatchesReachable("nameDest"))

	// Flagged columns are.
	assert.True(t, g.MatchesReachable("amount"))
	assert.True(t, g.MatchesReachable("Transactions"))
	assert.True(t, g.MatchesReachable("'TRANSFER'"))
	assert.True(t, g.MatchesReachable("42"))
}

func TestBuildStartSymbol(t *testing.T) {
	g := testGrammar(t)
	assert.Equal(t, "query", g.Start())
	assert.Equal(t, "Transactions", g.Table().Name())
}
