package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError reports a problem in a CUE table definition with enough
// position context to point the author at the offending field.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads a CUE file and compiles the `table` definition inside it
// into a Table. The expected shape:
//
//	table: {
//		name: "Transactions"
//		columns: [
//			{name: "step", kind: "numeric", aggregatable: true, groupable: true,
//			 filterable: true, value_pattern: "[1-9][0-9]{0,2}"},
//			{name: "type", kind: "categorical", groupable: true, filterable: true,
//			 values: ["CASH-IN", "CASH-OUT"]},
//		]
//	}
func LoadFile(path string) (*Table, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table definition: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tableVal := v.LookupPath(cue.ParsePath("table"))
	if !tableVal.Exists() {
		return nil, &CompileError{Field: "table", Message: "table definition is required", Pos: v.Pos()}
	}
	return Compile(tableVal)
}

// Compile parses a CUE value into a Table. The value should be the table
// struct itself (see LoadFile for the expected shape).
func Compile(v cue.Value) (*Table, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{Field: "name", Message: "table name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, &CompileError{Field: "columns", Message: "at least one column is required", Pos: v.Pos()}
	}
	iter, err := colsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var columns []Column
	for iter.Next() {
		col, err := compileColumn(iter.Value())
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}

	return NewTable(name, columns)
}

func compileColumn(v cue.Value) (Column, error) {
	var col Column

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return col, &CompileError{Field: "columns.name", Message: "column name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return col, formatCUEError(err)
	}
	col.Name = name

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return col, &CompileError{Field: "columns." + name + ".kind", Message: "column kind is required", Pos: v.Pos()}
	}
	kindStr, err := kindVal.String()
	if err != nil {
		return col, formatCUEError(err)
	}
	kind, err := ParseKind(kindStr)
	if err != nil {
		return col, &CompileError{Field: "columns." + name + ".kind", Message: err.Error(), Pos: kindVal.Pos()}
	}
	col.Kind = kind

	col.Nullable = boolField(v, "nullable")
	col.Aggregatable = boolField(v, "aggregatable")
	col.Groupable = boolField(v, "groupable")
	col.Filterable = boolField(v, "filterable")

	if pv := v.LookupPath(cue.ParsePath("value_pattern")); pv.Exists() {
		pattern, err := pv.String()
		if err != nil {
			return col, formatCUEError(err)
		}
		col.ValuePattern = pattern
	}

	if ev := v.LookupPath(cue.ParsePath("values")); ev.Exists() {
		valIter, err := ev.List()
		if err != nil {
			return col, formatCUEError(err)
		}
		for valIter.Next() {
			s, err := valIter.Value().String()
			if err != nil {
				return col, formatCUEError(err)
			}
			col.Enum = append(col.Enum, s)
		}
	}

	return col, nil
}

// boolField reads an optional boolean field, defaulting to false on
// absence or type mismatch. Mismatches are caught later by NewTable
// validation where they matter.
func boolField(v cue.Value, field string) bool {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false
	}
	b, err := fv.Bool()
	if err != nil {
		return false
	}
	return b
}

// formatCUEError converts CUE SDK errors into readable messages with
// positions attached.
func formatCUEError(err error) error {
	return fmt.Errorf("invalid table definition: %s", cueerrors.Details(err, nil))
}
