package gateway

import (
	"database/sql"
	"fmt"

	"github.com/fenceql/fenceql/internal/schema"
)

// Transaction is one row of the dataset snapshot.
type Transaction struct {
	Step           int
	Type           string
	Amount         float64
	NameOrig       string
	OldBalanceOrg  float64
	NewBalanceOrig float64
	NameDest       string
	OldBalanceDest float64
	NewBalanceDest float64
	IsFraud        int
}

// Known totals of the default fixture, used as oracles by tests and the
// semantic suite.
const (
	FixtureRowCount      = 60
	FixtureFraudCount    = 7
	FixtureTransferCount = 12
	FixtureCashOutCount  = 14
	FixturePaymentCount  = 16
	FixtureCashInCount   = 10
	FixtureDebitCount    = 8
)

// DefaultFixture returns a deterministic synthetic transaction set:
// 60 rows across all five types, 7 of them flagged as fraud (3 TRANSFER,
// 4 CASH-OUT), with steps spread over the simulation window.
func DefaultFixture() []Transaction {
	plan := []struct {
		typ   string
		count int
		fraud int
	}{
		{schema.TypeTransfer, FixtureTransferCount, 3},
		{schema.TypeCashOut, FixtureCashOutCount, 4},
		{schema.TypePayment, FixturePaymentCount, 0},
		{schema.TypeCashIn, FixtureCashInCount, 0},
		{schema.TypeDebit, FixtureDebitCount, 0},
	}

	var txns []Transaction
	seq := 0
	for _, p := range plan {
		for i := 0; i < p.count; i++ {
			seq++
			isFraud := 0
			if i < p.fraud {
				isFraud = 1
			}
			amount := float64(1000*seq) + 0.5
			oldOrg := amount * 2
			txns = append(txns, Transaction{
				Step:           (seq * 12) % 744,
				Type:           p.typ,
				Amount:         amount,
				NameOrig:       fmt.Sprintf("C%07d", seq),
				OldBalanceOrg:  oldOrg,
				NewBalanceOrig: oldOrg - amount,
				NameDest:       fmt.Sprintf("M%07d", seq),
				OldBalanceDest: amount,
				NewBalanceDest: amount * 2,
				IsFraud:        isFraud,
			})
		}
	}
	return txns
}

// CreateFixture writes a dataset snapshot to path. It opens the file
// read-write, loads the rows, and closes; callers then Open the snapshot
// read-only for querying.
func CreateFixture(path string, txns []Transaction) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("create fixture: %w", err)
	}
	defer db.Close()

	const ddl = `CREATE TABLE IF NOT EXISTS Transactions (
		step INTEGER NOT NULL,
		type TEXT NOT NULL,
		amount REAL NOT NULL,
		nameOrig TEXT NOT NULL,
		oldbalanceOrg REAL NOT NULL,
		newbalanceOrig REAL NOT NULL,
		nameDest TEXT NOT NULL,
		oldbalanceDest REAL NOT NULL,
		newbalanceDest REAL NOT NULL,
		isFraud INTEGER NOT NULL
	)`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create fixture table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin fixture load: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO Transactions VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare fixture insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txns {
		if _, err := stmt.Exec(
			t.Step, t.Type, t.Amount, t.NameOrig,
			t.OldBalanceOrg, t.NewBalanceOrig, t.NameDest,
			t.OldBalanceDest, t.NewBalanceDest, t.IsFraud,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert fixture row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fixture load: %w", err)
	}
	return nil
}
