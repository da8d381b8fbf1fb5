// Package schema holds the registry of the single queryable table.
//
// The registry is constructed once at process start and is immutable for the
// process lifetime. Every downstream component (grammar construction, prompt
// building, harness oracles) reads from the same Table value, so there is a
// single authority for which columns exist and how they may be used.
package schema

import (
	"fmt"
	"sort"
)

// Kind classifies a column's value domain.
type Kind int

const (
	// KindNumeric columns hold numbers and may appear in aggregations
	// and range conditions.
	KindNumeric Kind = iota + 1
	// KindBoolean columns hold a 0/1 flag.
	KindBoolean
	// KindCategorical columns hold one of a closed set of string values.
	KindCategorical
)

// String returns the lowercase name used in CUE definitions and diagnostics.
func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindBoolean:
		return "boolean"
	case KindCategorical:
		return "categorical"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind converts a kind name back to its Kind value.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "numeric":
		return KindNumeric, nil
	case "boolean":
		return KindBoolean, nil
	case "categorical":
		return KindCategorical, nil
	default:
		return 0, fmt.Errorf("unknown column kind %q", s)
	}
}

// Column describes one typed column of the registered table.
//
// The usage flags control which grammar productions reference the column:
// Aggregatable columns appear inside aggregate calls, Groupable columns in
// the select list and GROUP BY, Filterable columns in WHERE conditions.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool

	// Enum lists the permitted literal values for filterable categorical
	// columns. Empty for other kinds.
	Enum []string

	Aggregatable bool
	Groupable    bool
	Filterable   bool

	// ValuePattern is an anchored regular expression describing the literal
	// values a filter condition may compare this column against. Required
	// for filterable numeric and boolean columns; unused otherwise.
	ValuePattern string
}

// Table is the immutable description of the single queryable table.
// Construct via NewTable; the zero value is not usable.
type Table struct {
	name    string
	columns []Column
	byName  map[string]int
}

// NewTable validates the column set and builds an immutable Table.
//
// Validation rules:
//   - table and column names must be non-empty
//   - column names must be unique within the table
//   - categorical columns must declare at least one enum value
//   - filterable numeric/boolean columns must declare a value pattern
func NewTable(name string, columns []Column) (*Table, error) {
	if name == "" {
		return nil, fmt.Errorf("table name must not be empty")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s: at least one column is required", name)
	}

	byName := make(map[string]int, len(columns))
	for i, col := range columns {
		if col.Name == "" {
			return nil, fmt.Errorf("table %s: column %d has empty name", name, i)
		}
		if _, dup := byName[col.Name]; dup {
			return nil, fmt.Errorf("table %s: duplicate column %q", name, col.Name)
		}
		if col.Kind == KindCategorical && col.Filterable && len(col.Enum) == 0 {
			return nil, fmt.Errorf("table %s: filterable categorical column %q declares no values", name, col.Name)
		}
		if col.Filterable && col.Kind != KindCategorical && col.ValuePattern == "" {
			return nil, fmt.Errorf("table %s: filterable column %q declares no value pattern", name, col.Name)
		}
		byName[col.Name] = i
	}

	// Defensive copy so callers cannot mutate the registry afterwards.
	cols := make([]Column, len(columns))
	copy(cols, columns)
	for i := range cols {
		cols[i].Enum = append([]string(nil), cols[i].Enum...)
	}

	return &Table{name: name, columns: cols, byName: byName}, nil
}

// Name returns the registered table name.
func (t *Table) Name() string { return t.name }

// Columns returns a copy of the column list in declaration order.
func (t *Table) Columns() []Column {
	cols := make([]Column, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// Aggregatable returns the columns usable inside aggregate calls,
// in declaration order.
func (t *Table) Aggregatable() []Column { return t.filter(func(c Column) bool { return c.Aggregatable }) }

// Groupable returns the columns usable in the select list and GROUP BY,
// in declaration order.
func (t *Table) Groupable() []Column { return t.filter(func(c Column) bool { return c.Groupable }) }

// Filterable returns the columns usable in WHERE conditions,
// in declaration order.
func (t *Table) Filterable() []Column { return t.filter(func(c Column) bool { return c.Filterable }) }

func (t *Table) filter(keep func(Column) bool) []Column {
	var out []Column
	for _, c := range t.columns {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// ColumnNames returns all column names sorted lexically.
// Used for deterministic diagnostics.
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}
