package generate

import (
	"fmt"
	"strings"

	"github.com/fenceql/fenceql/internal/schema"
)

// SchemaContext renders the prose description of the table and the
// permitted operations that accompanies every generation request.
//
// The text is derived from the live registry, so a schema change cannot
// leave the service reasoning about stale columns. Rendering is
// deterministic for a given table.
func SchemaContext(table *schema.Table) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The data is a single table named %s.\n\nCOLUMNS:\n", table.Name())
	for _, col := range table.Columns() {
		fmt.Fprintf(&b, "- %s (%s)", col.Name, col.Kind)
		if len(col.Enum) > 0 {
			quoted := make([]string, 0, len(col.Enum))
			for _, v := range col.Enum {
				quoted = append(quoted, "'"+v+"'")
			}
			fmt.Fprintf(&b, ": one of %s", strings.Join(quoted, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nALLOWED OPERATIONS:\n")
	b.WriteString("- SELECT with aggregations: count(*), count(col), sum(col), avg(col), min(col), max(col)\n")

	if groupable := table.Groupable(); len(groupable) > 0 {
		names := columnNames(groupable)
		fmt.Fprintf(&b, "- SELECT and GROUP BY on: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "- FROM %s (the only table)\n", table.Name())
	if filterable := table.Filterable(); len(filterable) > 0 {
		names := columnNames(filterable)
		fmt.Fprintf(&b, "- WHERE with AND-joined conditions on: %s (=, !=, <, <=, >, >=, BETWEEN, IN for categorical)\n", strings.Join(names, ", "))
	}
	b.WriteString("- ORDER BY columns or aggregations, ASC or DESC\n")
	b.WriteString("- LIMIT 1-9999\n")
	b.WriteString("- Every query ends with a single semicolon\n")

	return b.String()
}

func columnNames(cols []schema.Column) []string {
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name)
	}
	return names
}
