package schema

// Transaction type values permitted by the registry.
const (
	TypeCashIn   = "CASH-IN"
	TypeCashOut  = "CASH-OUT"
	TypeDebit    = "DEBIT"
	TypePayment  = "PAYMENT"
	TypeTransfer = "TRANSFER"
)

// Value patterns for filterable columns. Anchoring is applied by the
// grammar when the patterns are compiled into terminals.
const (
	// stepPattern covers 1-999 (744 simulation hours plus headroom).
	stepPattern = `[1-9][0-9]{0,2}`
	// amountPattern allows up to 12 integer digits and two decimals.
	amountPattern = `[0-9]{1,12}(\.[0-9]{1,2})?`
	// flagPattern is the 0/1 boolean flag.
	flagPattern = `[01]`
)

// Transactions returns the default registry: the synthetic payments table
// the analytics surface is scoped to. One hour per step over a 30-day
// simulation; isFraud marks flagged anomalies.
//
// Balance columns are aggregatable only; agent identifiers are registered
// but not reachable from any grammar production. Both are high-cardinality
// and the narrow query surface has no use for them beyond numeric summaries.
func Transactions() *Table {
	table, err := NewTable("Transactions", []Column{
		{Name: "step", Kind: KindNumeric, Aggregatable: true, Groupable: true, Filterable: true, ValuePattern: stepPattern},
		{Name: "type", Kind: KindCategorical, Groupable: true, Filterable: true,
			Enum: []string{TypeCashIn, TypeCashOut, TypeDebit, TypePayment, TypeTransfer}},
		{Name: "amount", Kind: KindNumeric, Aggregatable: true, Filterable: true, ValuePattern: amountPattern},
		{Name: "nameOrig", Kind: KindCategorical},
		{Name: "oldbalanceOrg", Kind: KindNumeric, Aggregatable: true},
		{Name: "newbalanceOrig", Kind: KindNumeric, Aggregatable: true},
		{Name: "nameDest", Kind: KindCategorical},
		{Name: "oldbalanceDest", Kind: KindNumeric, Aggregatable: true},
		{Name: "newbalanceDest", Kind: KindNumeric, Aggregatable: true},
		{Name: "isFraud", Kind: KindBoolean, Aggregatable: true, Groupable: true, Filterable: true, ValuePattern: flagPattern},
	})
	if err != nil {
		// The default registry is compiled in; a construction failure is a
		// programming error, not a runtime condition.
		panic(err)
	}
	return table
}
