package memory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/leapstack-labs/anyset/pkg/core"
)

// resultRow is one output row plus the source row ordering reads
// non-output columns from. For groups the source is the first member.
type resultRow struct {
	values []any
	source Row
}

// Execute filters, groups, orders and paginates the plan's table.
func (a *Adapter) Execute(ctx context.Context, plan *core.Plan) (*core.ColumnarResult, error) {
	for _, out := range plan.Outputs {
		if out.Custom != "" {
			return nil, a.fail("execute", fmt.Errorf("%w: %s", ErrCustomAggregation, out.Custom))
		}
	}

	rows, err := a.rows(plan.Table)
	if err != nil {
		return nil, a.fail("execute", err)
	}

	matched, err := a.filter(plan, rows)
	if err != nil {
		return nil, a.fail("execute", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, a.fail("execute", err)
	}

	var result []resultRow
	if plan.Aggregated() {
		result = aggregate(plan, matched)
	} else {
		result = make([]resultRow, len(matched))
		for i, r := range matched {
			result[i] = resultRow{values: project(plan, r), source: r}
		}
	}

	sortRows(plan, result)

	total := len(result)
	lo := min(plan.Offset, total)
	hi := min(lo+plan.Limit, total)
	page := result[lo:hi]

	a.logger.Debug("executed plan",
		slog.String("plan_id", plan.ID),
		slog.Int("matched", len(matched)),
		slog.Int("total", total),
		slog.Int("page", len(page)))

	res := &core.ColumnarResult{
		Columns:             make([]core.ColumnData, len(plan.Outputs)),
		RowCountCurrentPage: len(page),
		RowCountTotal:       total,
	}
	for i, out := range plan.Outputs {
		data := make([]any, len(page))
		for j, r := range page {
			data[j] = r.values[i]
		}
		res.Columns[i] = core.ColumnData{Alias: out.Alias, Data: data}
	}
	return res, nil
}

func (a *Adapter) filter(plan *core.Plan, rows []Row) ([]Row, error) {
	allowed := make([]map[string]bool, len(plan.Expansions))
	for i, e := range plan.Expansions {
		set, err := a.expand(e)
		if err != nil {
			return nil, err
		}
		allowed[i] = set
	}

	var out []Row
	for _, r := range rows {
		if !matchesPredicates(plan.Predicates, r) {
			continue
		}
		ok := true
		for i, e := range plan.Expansions {
			v := r[e.Target.Column]
			if v == nil || !allowed[i][key(v)] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// expand walks the expansion path one edge at a time, collecting the child
// values whose parent is in the current set.
func (a *Adapter) expand(e core.HierarchyExpansion) (map[string]bool, error) {
	set := make(map[string]bool, len(e.Values))
	for _, v := range e.Values {
		set[v] = true
	}
	for _, edge := range e.Path {
		rows, err := a.rows(edge.Via)
		if err != nil {
			return nil, fmt.Errorf("hierarchy %s: %w", e.Hierarchy, err)
		}
		next := make(map[string]bool)
		for _, r := range rows {
			p, c := r[edge.Parent.Column], r[edge.Child.Column]
			if p != nil && c != nil && set[key(p)] {
				next[key(c)] = true
			}
		}
		set = next
	}
	return set, nil
}

func matchesPredicates(preds []core.Predicate, r Row) bool {
	for _, p := range preds {
		v := r[p.Column.Column]
		if v == nil {
			return false
		}
		switch p.Op {
		case core.OpIn:
			if !slices.Contains(p.Values, key(v)) {
				return false
			}
		case core.OpRange:
			if p.Min != nil && compareBound(v, p.Min) < 0 {
				return false
			}
			if p.Max != nil && compareBound(v, p.Max) > 0 {
				return false
			}
		}
	}
	return true
}

// compareBound compares a row value with a range bound. Dates stored as
// text are parsed before comparing with a time bound.
func compareBound(v, bound any) int {
	if t, ok := bound.(time.Time); ok {
		if s, ok := v.(string); ok {
			for _, layout := range dateLayouts {
				if parsed, err := time.Parse(layout, s); err == nil {
					return parsed.Compare(t)
				}
			}
		}
	}
	return compare(v, bound)
}

func project(plan *core.Plan, r Row) []any {
	values := make([]any, len(plan.Outputs))
	for i, out := range plan.Outputs {
		values[i] = r[out.Column.Column]
	}
	return values
}

func aggregate(plan *core.Plan, rows []Row) []resultRow {
	type group struct {
		members []Row
	}
	var order []string
	groups := make(map[string]*group)
	for _, r := range rows {
		parts := make([]string, len(plan.GroupBy))
		for i, g := range plan.GroupBy {
			v := r[g.Column]
			if v == nil {
				parts[i] = "\x01null"
			} else {
				parts[i] = key(v)
			}
		}
		k := strings.Join(parts, "\x00")
		grp, ok := groups[k]
		if !ok {
			grp = &group{}
			groups[k] = grp
			order = append(order, k)
		}
		grp.members = append(grp.members, r)
	}

	// Aggregating without grouping keys always yields one row.
	if len(plan.GroupBy) == 0 && len(order) == 0 {
		groups[""] = &group{}
		order = append(order, "")
	}

	out := make([]resultRow, 0, len(order))
	for _, k := range order {
		members := groups[k].members
		var source Row
		if len(members) > 0 {
			source = members[0]
		}
		values := make([]any, len(plan.Outputs))
		for i, o := range plan.Outputs {
			if o.IsAggregate() {
				values[i] = aggregateColumn(o.Aggregation, o.Column.Column, members)
			} else {
				values[i] = source[o.Column.Column]
			}
		}
		out = append(out, resultRow{values: values, source: source})
	}
	return out
}

// aggregateColumn computes fn over the non-null values of column. Like SQL,
// SUM, AVG, MEDIAN, MIN and MAX of no values are nil and counts are zero.
func aggregateColumn(fn core.AggregationFunction, column string, rows []Row) any {
	var values []any
	for _, r := range rows {
		if v := r[column]; v != nil {
			values = append(values, v)
		}
	}

	switch fn {
	case core.AggCount:
		return int64(len(values))
	case core.AggCountDistinct:
		seen := make(map[string]bool)
		for _, v := range values {
			seen[key(v)] = true
		}
		return int64(len(seen))
	case core.AggMin, core.AggMax:
		if len(values) == 0 {
			return nil
		}
		best := values[0]
		for _, v := range values[1:] {
			c := compare(v, best)
			if (fn == core.AggMin && c < 0) || (fn == core.AggMax && c > 0) {
				best = v
			}
		}
		return best
	}

	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := toFloat(v); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		return nil
	}
	var sum float64
	for _, f := range nums {
		sum += f
	}
	switch fn {
	case core.AggSum:
		return sum
	case core.AggAvg:
		return sum / float64(len(nums))
	case core.AggMedian:
		slices.Sort(nums)
		mid := len(nums) / 2
		if len(nums)%2 == 1 {
			return nums[mid]
		}
		return (nums[mid-1] + nums[mid]) / 2
	}
	return nil
}

func sortRows(plan *core.Plan, rows []resultRow) {
	aliasIndex := make(map[string]int, len(plan.Outputs))
	for i, o := range plan.Outputs {
		aliasIndex[o.Alias] = i
	}

	slices.SortStableFunc(rows, func(x, y resultRow) int {
		for _, k := range plan.OrderBy {
			var vx, vy any
			if k.Column != nil {
				vx, vy = x.source[k.Column.Column], y.source[k.Column.Column]
			} else {
				i := aliasIndex[k.Alias]
				vx, vy = x.values[i], y.values[i]
			}
			c := compare(vx, vy)
			if k.Direction == core.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}
