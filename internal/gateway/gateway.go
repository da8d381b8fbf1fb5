// Package gateway is the execution side of the pipeline: it runs a
// validated query read-only and returns typed rows.
//
// The compiler only ever hands over text the validator accepted; the
// gateway adds its own fence anyway by opening the database read-only, so
// even a validator defect cannot mutate data.
package gateway

import (
	"context"
	"time"
)

// Result holds the outcome of one executed query.
type Result struct {
	Columns  []string        `json:"columns"`
	Rows     [][]any         `json:"rows"`
	RowCount int             `json:"row_count"`
	Elapsed  time.Duration   `json:"execution_time"`
}

// Executor runs one validated read-only query. Implementations must honor
// context cancellation and must not retain the SQL text after returning.
type Executor interface {
	Execute(ctx context.Context, sql string) (*Result, error)
}
