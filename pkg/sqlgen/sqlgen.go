// Package sqlgen renders a core.Plan as parameterized SQL for a dialect.
//
// Every value from a request travels as a bind parameter; identifiers come
// from the registry and are always quoted. Custom aggregation expressions
// are the only raw SQL and are taken from the plan's catalog, never from the
// request.
package sqlgen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/anyset/pkg/core"
	"github.com/leapstack-labs/anyset/pkg/dialect"
)

// Query is one SQL statement with its arguments.
type Query struct {
	SQL  string
	Args []any
}

// Statement is the SQL for a plan: the page query and the query that
// counts every row the plan matches, ignoring pagination.
type Statement struct {
	Select Query

	// Count is empty when SingleRow is set.
	Count Query

	// SingleRow is true for aggregations without grouping keys, which
	// always produce exactly one row.
	SingleRow bool
}

// ErrNoCatalog is returned when a plan with custom aggregations carries no
// catalog to resolve them.
var ErrNoCatalog = errors.New("plan has custom aggregations but no catalog")

// Build renders plan for d.
func Build(plan *core.Plan, d *dialect.Dialect) (*Statement, error) {
	if d == nil {
		return nil, dialect.ErrDialectRequired
	}

	stmt := &Statement{SingleRow: plan.Aggregated() && len(plan.GroupBy) == 0}

	sel, err := buildSelect(plan, d)
	if err != nil {
		return nil, err
	}
	stmt.Select = sel

	if !stmt.SingleRow {
		stmt.Count = buildCount(plan, d)
	}
	return stmt, nil
}

// writer accumulates SQL text and bind arguments.
type writer struct {
	d    *dialect.Dialect
	sb   strings.Builder
	args []any
}

func (w *writer) bind(v any) string {
	w.args = append(w.args, v)
	return w.d.FormatPlaceholder(len(w.args))
}

func (w *writer) ident(name string) string {
	return w.d.QuoteIdentifier(name)
}

func (w *writer) query() Query {
	return Query{SQL: w.sb.String(), Args: w.args}
}

func buildSelect(plan *core.Plan, d *dialect.Dialect) (Query, error) {
	w := &writer{d: d}

	cols := make([]string, len(plan.Outputs))
	for i, out := range plan.Outputs {
		expr, err := outputExpr(w, plan, out)
		if err != nil {
			return Query{}, err
		}
		cols[i] = expr + " AS " + w.ident(out.Alias)
	}

	w.sb.WriteString("SELECT ")
	w.sb.WriteString(strings.Join(cols, ", "))
	w.sb.WriteString(" FROM ")
	w.sb.WriteString(d.QuoteQualified(plan.Table))
	writeWhere(w, plan)
	writeGroupBy(w, plan)

	if len(plan.OrderBy) > 0 {
		keys := make([]string, len(plan.OrderBy))
		for i, k := range plan.OrderBy {
			keys[i] = orderExpr(w, plan, k) + " " + string(k.Direction)
		}
		w.sb.WriteString(" ORDER BY ")
		w.sb.WriteString(strings.Join(keys, ", "))
	}

	w.sb.WriteString(" LIMIT ")
	w.sb.WriteString(strconv.Itoa(plan.Limit))
	w.sb.WriteString(" OFFSET ")
	w.sb.WriteString(strconv.Itoa(plan.Offset))
	return w.query(), nil
}

// orderExpr names an order key. A bare column name could resolve to an
// output alias of a different column, so column keys use the alias of the
// output selecting them, or the table-qualified column when none does.
func orderExpr(w *writer, plan *core.Plan, k core.OrderKey) string {
	if k.Column == nil {
		return w.ident(k.Alias)
	}
	for _, out := range plan.Outputs {
		if out.Column != nil && out.Aggregation == "" && out.Custom == "" && *out.Column == *k.Column {
			return w.ident(out.Alias)
		}
	}
	return w.d.QuoteQualified(plan.Table) + "." + w.ident(k.Column.Column)
}

func buildCount(plan *core.Plan, d *dialect.Dialect) Query {
	w := &writer{d: d}
	if len(plan.GroupBy) == 0 {
		w.sb.WriteString("SELECT COUNT(*) FROM ")
		w.sb.WriteString(d.QuoteQualified(plan.Table))
		writeWhere(w, plan)
		return w.query()
	}
	w.sb.WriteString("SELECT COUNT(*) FROM (SELECT 1 AS ")
	w.sb.WriteString(w.ident("one"))
	w.sb.WriteString(" FROM ")
	w.sb.WriteString(d.QuoteQualified(plan.Table))
	writeWhere(w, plan)
	writeGroupBy(w, plan)
	w.sb.WriteString(") AS ")
	w.sb.WriteString(w.ident("grouped"))
	return w.query()
}

func outputExpr(w *writer, plan *core.Plan, out core.Output) (string, error) {
	switch {
	case out.Custom != "":
		if plan.Catalog == nil {
			return "", ErrNoCatalog
		}
		expr, ok := plan.Catalog.CustomAggregation(out.Custom)
		if !ok {
			return "", fmt.Errorf("custom aggregation %q is not defined", out.Custom)
		}
		return "(" + expr + ")", nil
	case out.Aggregation != "":
		return w.d.Aggregate(out.Aggregation, w.ident(out.Column.Column))
	default:
		return w.ident(out.Column.Column), nil
	}
}

func writeWhere(w *writer, plan *core.Plan) {
	var conds []string
	for _, p := range plan.Predicates {
		conds = append(conds, predicate(w, p)...)
	}
	for _, e := range plan.Expansions {
		conds = append(conds, expansion(w, e))
	}
	if len(conds) == 0 {
		return
	}
	w.sb.WriteString(" WHERE ")
	w.sb.WriteString(strings.Join(conds, " AND "))
}

func writeGroupBy(w *writer, plan *core.Plan) {
	if len(plan.GroupBy) == 0 {
		return
	}
	keys := make([]string, len(plan.GroupBy))
	for i, g := range plan.GroupBy {
		keys[i] = w.ident(g.Column)
	}
	w.sb.WriteString(" GROUP BY ")
	w.sb.WriteString(strings.Join(keys, ", "))
}

func predicate(w *writer, p core.Predicate) []string {
	col := w.ident(p.Column.Column)
	if p.Op == core.OpIn {
		return []string{col + " IN (" + w.list(p.Values) + ")"}
	}
	var conds []string
	if p.Min != nil {
		conds = append(conds, col+" >= "+w.bind(p.Min))
	}
	if p.Max != nil {
		conds = append(conds, col+" <= "+w.bind(p.Max))
	}
	return conds
}

func (w *writer) list(values []string) string {
	ph := make([]string, len(values))
	for i, v := range values {
		ph[i] = w.bind(v)
	}
	return strings.Join(ph, ", ")
}

// expansion walks the edge path from the filtered level down to the target
// level, each step selecting the child values of the previous step's
// values from the table that holds both levels.
func expansion(w *writer, e core.HierarchyExpansion) string {
	inner := w.list(e.Values)
	for _, edge := range e.Path {
		inner = fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IN (%s)",
			w.ident(edge.Child.Column), w.d.QuoteQualified(edge.Via), w.ident(edge.Parent.Column), inner)
	}
	return w.ident(e.Target.Column) + " IN (" + inner + ")"
}
