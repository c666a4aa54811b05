// Package planner lowers a query request into a normalized,
// backend-agnostic core.Plan.
//
// Planning resolves every column reference against the registry, infers
// grouping keys from selected columns, rewrites category filters on
// hierarchy levels into expansion instructions, synthesizes a deterministic
// ordering when none is given and normalizes pagination. The result carries
// no SQL text; adapters translate it.
//
// Plan validates the request first and returns the validator's errors when
// it is not valid, so callers may skip the separate validation step. Any
// further failure is a *core.PlanningConflictError and no partial plan is
// returned.
package planner

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/leapstack-labs/anyset/pkg/core"
	"github.com/leapstack-labs/anyset/pkg/query"
	"github.com/leapstack-labs/anyset/pkg/schema"
	"github.com/leapstack-labs/anyset/pkg/validator"
)

// DefaultLimit is the page size used when a request has no pagination.
const DefaultLimit = query.DefaultLimit

type options struct {
	defaultLimit int
	maxLimit     int
	newID        func() string
}

// Option configures planning.
type Option func(*options)

// WithDefaultLimit sets the page size used when a request has no pagination.
func WithDefaultLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.defaultLimit = n
		}
	}
}

// WithMaxLimit sets the pagination ceiling enforced during validation.
func WithMaxLimit(n int) Option {
	return func(o *options) { o.maxLimit = n }
}

// WithIDGenerator replaces the plan ID source.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// Plan builds an execution plan for req.
func Plan(req *query.Request, reg *schema.Registry, opts ...Option) (*core.Plan, error) {
	o := options{defaultLimit: DefaultLimit, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}

	var vopts []validator.Option
	if o.maxLimit > 0 {
		vopts = append(vopts, validator.WithMaxLimit(o.maxLimit))
	}
	if err := validator.Validate(req, reg, vopts...).Err(); err != nil {
		return nil, err
	}

	table, err := reg.LookupTable(req.TableName)
	if err != nil {
		panic(fmt.Sprintf("planner: validated table %q does not resolve: %v", req.TableName, err))
	}

	b := &builder{
		req:   req,
		reg:   reg,
		table: table,
		plan: &core.Plan{
			ID:      o.newID(),
			Table:   table.Name,
			Catalog: reg,
		},
	}

	b.outputs()
	if err := b.grouping(); err != nil {
		return nil, err
	}
	b.filters()
	if err := b.ordering(); err != nil {
		return nil, err
	}

	b.plan.Offset, b.plan.Limit = 0, o.defaultLimit
	if p := req.Pagination; p != nil {
		b.plan.Offset, b.plan.Limit = p.Offset, p.Limit
	}
	return b.plan, nil
}

type builder struct {
	req   *query.Request
	reg   *schema.Registry
	table *schema.Table
	plan  *core.Plan
}

// ref resolves a column on the request table. The request has been
// validated, so a miss means the registry is corrupt.
func (b *builder) ref(name string) core.ColumnRef {
	col, ok := b.table.Column(name)
	if !ok {
		panic(fmt.Sprintf("planner: validated column %s.%s does not resolve", b.table.Name, name))
	}
	return col.Ref()
}

// outputs lists selects, then the breakdown, then aggregations.
func (b *builder) outputs() {
	for _, s := range b.req.Select {
		ref := b.ref(s.ColumnName)
		b.plan.Outputs = append(b.plan.Outputs, core.Output{Alias: s.OutputAlias(), Column: &ref})
	}
	if b.req.Breakdown != "" {
		ref := b.ref(b.req.Breakdown)
		b.plan.Outputs = append(b.plan.Outputs, core.Output{Alias: b.req.Breakdown, Column: &ref, Breakdown: true})
	}
	for _, a := range b.req.Aggregations {
		if a.IsCustom() {
			b.plan.Outputs = append(b.plan.Outputs, core.Output{Alias: a.Alias, Custom: a.Function})
			continue
		}
		ref := b.ref(a.ColumnName)
		fn, _ := core.ParseAggregationFunction(a.Function)
		b.plan.Outputs = append(b.plan.Outputs, core.Output{Alias: a.Alias, Column: &ref, Aggregation: fn})
	}
}

// grouping makes every plain output a grouping key when the plan
// aggregates. A fact column cannot be a grouping key.
func (b *builder) grouping() error {
	if !b.plan.Aggregated() {
		return nil
	}
	for i, out := range b.plan.Outputs {
		if out.IsAggregate() {
			continue
		}
		if out.Column.Kind == core.KindFact {
			return core.ErrPlanningConflict(fmt.Sprintf("select[%d]", i),
				"fact column %q cannot be selected alongside aggregations; aggregate it instead", out.Column.Column)
		}
		if !slices.Contains(b.plan.GroupBy, *out.Column) {
			b.plan.GroupBy = append(b.plan.GroupBy, *out.Column)
		}
	}
	return nil
}

func (b *builder) filters() {
	for _, f := range b.req.Filters {
		ref := b.ref(f.ColumnName)
		kind, _ := query.ParseFilterKind(string(f.Kind))
		switch kind {
		case core.FilterCategory:
			values := dedupe(f.Values)
			if exp, ok := b.expansion(ref, values); ok {
				b.plan.Expansions = append(b.plan.Expansions, exp)
				continue
			}
			b.plan.Predicates = append(b.plan.Predicates, core.Predicate{Column: ref, Op: core.OpIn, Values: values})
		case core.FilterFact:
			b.plan.Predicates = append(b.plan.Predicates, core.Predicate{
				Column: ref, Op: core.OpRange, Min: floatBound(f.Min), Max: floatBound(f.Max),
			})
		case core.FilterDate:
			b.plan.Predicates = append(b.plan.Predicates, core.Predicate{
				Column: ref, Op: core.OpRange, Min: timeBound(f.Min), Max: timeBound(f.Max),
			})
		}
	}
}

// expansion rewrites a filter on a hierarchy root or interior level into a
// restriction on the deepest descendant level held by the request table.
// When several hierarchies contain the level, the first by name whose leaf
// lives on the request table wins, else the first by name.
func (b *builder) expansion(node core.ColumnRef, values []string) (core.HierarchyExpansion, bool) {
	hs := b.reg.HierarchiesFor(node.Table, node.Column)
	if len(hs) == 0 {
		return core.HierarchyExpansion{}, false
	}
	h := hs[0]
	for _, cand := range hs {
		if cand.Leaf().Table == b.table.Name {
			h = cand
			break
		}
	}

	pos := h.Position(node.Table, node.Column)
	target := -1
	for i := len(h.Levels) - 1; i > pos; i-- {
		if h.Levels[i].Table == b.table.Name {
			target = i
			break
		}
	}
	if target < 0 || target > len(h.Edges) {
		return core.HierarchyExpansion{}, false
	}

	return core.HierarchyExpansion{
		Hierarchy: h.Name,
		Node:      node,
		Target:    h.Levels[target],
		Path:      slices.Clone(h.Edges[pos:target]),
		Values:    values,
	}, true
}

func (b *builder) ordering() error {
	if len(b.req.OrderBy) == 0 {
		b.defaultOrdering()
		return nil
	}

	aliases := make(map[string]core.Output, len(b.plan.Outputs))
	for _, out := range b.plan.Outputs {
		aliases[out.Alias] = out
	}

	for i, o := range b.req.OrderBy {
		dir, _ := core.ParseDirection(o.Direction)
		if _, ok := aliases[o.ColumnName]; ok {
			b.plan.OrderBy = append(b.plan.OrderBy, core.OrderKey{Alias: o.ColumnName, Direction: dir})
			continue
		}
		ref := b.ref(o.ColumnName)
		if b.plan.Aggregated() && !slices.Contains(b.plan.GroupBy, ref) {
			return core.ErrPlanningConflict(fmt.Sprintf("order_by[%d].column_name", i),
				"cannot order by %q: it is neither a grouping column nor an aggregation alias", o.ColumnName)
		}
		b.plan.OrderBy = append(b.plan.OrderBy, core.OrderKey{Column: &ref, Direction: dir})
	}
	return nil
}

// defaultOrdering sorts by plain outputs in request order, ascending, so
// pages are reproducible. Aggregation-only plans sort by their aliases.
func (b *builder) defaultOrdering() {
	b.plan.OrderSynthesized = true
	var seen []core.ColumnRef
	for _, out := range b.plan.Outputs {
		if out.IsAggregate() || slices.Contains(seen, *out.Column) {
			continue
		}
		seen = append(seen, *out.Column)
		ref := *out.Column
		b.plan.OrderBy = append(b.plan.OrderBy, core.OrderKey{Column: &ref, Direction: core.Asc})
	}
	if len(b.plan.OrderBy) > 0 {
		return
	}
	for _, out := range b.plan.Outputs {
		b.plan.OrderBy = append(b.plan.OrderBy, core.OrderKey{Alias: out.Alias, Direction: core.Asc})
	}
}

func dedupe(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}

func floatBound(b *query.Bound) any {
	if b == nil {
		return nil
	}
	f, _ := b.Float()
	return f
}

func timeBound(b *query.Bound) any {
	if b == nil {
		return nil
	}
	t, _ := b.Time()
	return t
}
