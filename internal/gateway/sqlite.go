package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite executes queries against a local SQLite snapshot of the dataset.
//
// The connection is opened read-only (both at the VFS level via mode=ro and
// at the session level via PRAGMA query_only), so no statement that reaches
// this gateway can write, whatever its text says. Connections are pooled by
// database/sql and shared across concurrent requests.
type SQLite struct {
	db *sql.DB
}

// Open opens the dataset snapshot at path read-only.
func Open(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?%s", path, url.Values{
		"mode":          {"ro"},
		"_busy_timeout": {"5000"},
		"_query_only":   {"1"},
	}.Encode())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to dataset: %w", err)
	}

	// Readers don't contend in rollback-journal mode; a small pool covers
	// concurrent requests.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	return &SQLite{db: db}, nil
}

// Close releases the connection pool.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Execute runs one query and materializes its rows. The acquire-execute-
// release cycle is wholly inside this call: cancellation via ctx returns
// the pooled connection before Execute returns.
func (s *SQLite) Execute(ctx context.Context, query string) (*Result, error) {
	start := time.Now()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &Result{
		Columns:  columns,
		Rows:     out,
		RowCount: len(out),
		Elapsed:  time.Since(start),
	}, nil
}
