package gateway

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFixture(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")
	require.NoError(t, CreateFixture(path, DefaultFixture()))

	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestExecuteCount(t *testing.T) {
	db := openFixture(t)

	res, err := db.Execute(context.Background(), "SELECT count(*) FROM Transactions;")
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
	assert.Equal(t, int64(FixtureRowCount), res.Rows[0][0])
	assert.Positive(t, res.Elapsed)
}

func TestExecuteFixtureOracles(t *testing.T) {
	db := openFixture(t)
	ctx := context.Background()

	count := func(query string) int64 {
		t.Helper()
		res, err := db.Execute(ctx, query)
		require.NoError(t, err)
		require.Equal(t, 1, res.RowCount)
		return res.Rows[0][0].(int64)
	}

	assert.Equal(t, int64(FixtureFraudCount), count("SELECT count(*) FROM Transactions WHERE isFraud = 1;"))
	assert.Equal(t, int64(FixtureTransferCount), count("SELECT count(*) FROM Transactions WHERE type = 'TRANSFER';"))
	assert.Equal(t, int64(FixtureCashOutCount), count("SELECT count(*) FROM Transactions WHERE type = 'CASH-OUT';"))
	assert.Equal(t, int64(3), count("SELECT count(*) FROM Transactions WHERE isFraud = 1 AND type = 'TRANSFER';"))
}

func TestExecuteGrouped(t *testing.T) {
	db := openFixture(t)

	res, err := db.Execute(context.Background(), "SELECT type, count(*) FROM Transactions GROUP BY type;")
	require.NoError(t, err)
	assert.Equal(t, 5, res.RowCount)
	assert.Equal(t, []string{"type", "count(*)"}, res.Columns)

	// Text columns come back as strings, not raw bytes.
	for _, row := range res.Rows {
		_, ok := row[0].(string)
		assert.True(t, ok)
	}
}

func TestExecuteRejectsWrites(t *testing.T) {
	db := openFixture(t)
	ctx := context.Background()

	for _, stmt := range []string{
		"DELETE FROM Transactions;",
		"INSERT INTO Transactions VALUES (1,'PAYMENT',1.0,'C','1',1,'M',1,1,0);",
		"UPDATE Transactions SET isFraud = 0;",
		"DROP TABLE Transactions;",
	} {
		_, err := db.Execute(ctx, stmt)
		assert.Error(t, err, stmt)
	}

	// The dataset is untouched afterwards.
	res, err := db.Execute(ctx, "SELECT count(*) FROM Transactions;")
	require.NoError(t, err)
	assert.Equal(t, int64(FixtureRowCount), res.Rows[0][0])
}

func TestExecuteQueryError(t *testing.T) {
	db := openFixture(t)

	_, err := db.Execute(context.Background(), "SELECT nosuch FROM Transactions;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute query")
}

func TestExecuteCancelledContext(t *testing.T) {
	db := openFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := db.Execute(ctx, "SELECT count(*) FROM Transactions;")
	assert.Error(t, err)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.db"))
	assert.Error(t, err)
}

func TestDefaultFixtureDeterministic(t *testing.T) {
	a := DefaultFixture()
	b := DefaultFixture()
	require.Equal(t, a, b)
	assert.Len(t, a, FixtureRowCount)

	fraud := 0
	for _, txn := range a {
		if txn.IsFraud == 1 {
			fraud++
		}
	}
	assert.Equal(t, FixtureFraudCount, fraud)
}
