package sqlgen

import (
	"fmt"

	"github.com/leapstack-labs/anyset/pkg/core"
	"github.com/leapstack-labs/anyset/pkg/dialect"
)

// DistinctValues selects the non-null distinct values of a column, sorted.
func DistinctValues(d *dialect.Dialect, col core.ColumnRef) Query {
	c := d.QuoteIdentifier(col.Column)
	return Query{SQL: fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s",
		c, d.QuoteQualified(col.Table), c, c)}
}

// MinMax selects the smallest and largest value of a column.
func MinMax(d *dialect.Dialect, col core.ColumnRef) Query {
	c := d.QuoteIdentifier(col.Column)
	return Query{SQL: fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s", c, c, d.QuoteQualified(col.Table))}
}

// EdgePairs selects the distinct (parent, child) value pairs of a hierarchy
// edge from the table that holds both levels.
func EdgePairs(d *dialect.Dialect, edge core.HierarchyEdge) Query {
	p := d.QuoteIdentifier(edge.Parent.Column)
	c := d.QuoteIdentifier(edge.Child.Column)
	return Query{SQL: fmt.Sprintf("SELECT DISTINCT %s, %s FROM %s WHERE %s IS NOT NULL AND %s IS NOT NULL ORDER BY %s, %s",
		p, c, d.QuoteQualified(edge.Via), p, c, p, c)}
}
