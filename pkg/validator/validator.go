// Package validator checks a query request against a schema registry.
//
// Validation never stops at the first problem: every check runs and every
// violation is reported as a core.FieldError addressed by its request path.
// Validate is pure and idempotent; it performs no I/O and does not modify
// the request.
package validator

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/anyset/pkg/core"
	"github.com/leapstack-labs/anyset/pkg/query"
	"github.com/leapstack-labs/anyset/pkg/schema"
)

// Error codes reported in core.FieldError.Code.
const (
	CodeTableNotFound          = "table_not_found"
	CodeColumnNotFound         = "column_not_found"
	CodeUnknownAggregation     = "unknown_aggregation"
	CodeAggregationNotAllowed  = "aggregation_not_allowed"
	CodeFilterKindMismatch     = "filter_kind_mismatch"
	CodeUnknownFilterKind      = "unknown_filter_kind"
	CodeRangeUnbounded         = "range_unbounded"
	CodeRangeOrder             = "range_order"
	CodeInvalidRangeBound      = "invalid_range_bound"
	CodeEmptyFilterValues      = "empty_filter_values"
	CodeDuplicateAlias         = "duplicate_alias"
	CodeAliasRequired          = "alias_required"
	CodePaginationOffset       = "pagination_offset"
	CodePaginationLimit        = "pagination_limit"
	CodePaginationLimitCeiling = "pagination_limit_ceiling"
	CodeEmptyProjection        = "empty_projection"
	CodeInvalidDirection       = "invalid_direction"
	CodeBreakdownKind          = "breakdown_kind"
)

// DefaultMaxLimit is the largest page size accepted unless overridden.
const DefaultMaxLimit = 10000

type options struct {
	maxLimit int
}

// Option configures validation.
type Option func(*options)

// WithMaxLimit sets the pagination ceiling. Values below one are ignored.
func WithMaxLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLimit = n
		}
	}
}

// Result holds every violation found.
type Result struct {
	Errors []core.FieldError `json:"errors"`
}

// OK reports whether the request is valid.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Err returns the violations as *core.ValidationErrors, or nil.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &core.ValidationErrors{Errors: r.Errors}
}

// Codes returns the error codes in report order.
func (r Result) Codes() []string {
	codes := make([]string, len(r.Errors))
	for i, fe := range r.Errors {
		codes[i] = fe.Code
	}
	return codes
}

// check is one independent pass over the request.
type check func(v *validation)

// checks run in report order.
var checks = []check{
	checkTable,
	checkSelect,
	checkAggregations,
	checkFilters,
	checkOrderBy,
	checkBreakdown,
	checkAliases,
	checkPagination,
	checkProjection,
}

type validation struct {
	req   *query.Request
	reg   *schema.Registry
	table *schema.Table
	opts  options
	errs  []core.FieldError
}

// Validate checks req against reg and reports every violation.
func Validate(req *query.Request, reg *schema.Registry, opts ...Option) Result {
	v := &validation{req: req, reg: reg, opts: options{maxLimit: DefaultMaxLimit}}
	for _, opt := range opts {
		opt(&v.opts)
	}
	for _, c := range checks {
		c(v)
	}
	return Result{Errors: v.errs}
}

func (v *validation) addf(path, code, format string, args ...any) {
	v.errs = append(v.errs, core.FieldError{Path: path, Code: code, Message: fmt.Sprintf(format, args...)})
}

// column resolves a reference on the request table, reporting exactly one
// column_not_found when it does not exist. References are not resolved when
// the table itself is unknown.
func (v *validation) column(path, name string) (schema.Column, bool) {
	if v.table == nil {
		return schema.Column{}, false
	}
	col, ok := v.table.Column(name)
	if !ok {
		if name == "" {
			v.addf(path, CodeColumnNotFound, "column_name is required")
		} else {
			v.addf(path, CodeColumnNotFound, "column %q not found on table %q", name, v.table.Name)
		}
		return schema.Column{}, false
	}
	return col, true
}

func checkTable(v *validation) {
	if v.req.TableName == "" {
		v.addf("table_name", CodeTableNotFound, "table_name is required")
		return
	}
	tbl, err := v.reg.LookupTable(v.req.TableName)
	if err != nil {
		v.addf("table_name", CodeTableNotFound, "table %q not found in dataset %q", v.req.TableName, v.reg.Name)
		return
	}
	v.table = tbl
}

func checkSelect(v *validation) {
	for i, s := range v.req.Select {
		v.column(fmt.Sprintf("select[%d].column_name", i), s.ColumnName)
	}
}

func checkAggregations(v *validation) {
	for i, agg := range v.req.Aggregations {
		base := fmt.Sprintf("aggregations[%d]", i)

		if agg.Alias == "" {
			v.addf(base+".alias", CodeAliasRequired, "aggregation alias is required")
		}

		if !agg.KnownKind() {
			v.addf(base+".kind", CodeUnknownAggregation, "unknown aggregation kind %q", agg.Kind)
			continue
		}

		if agg.IsCustom() {
			if _, ok := v.reg.CustomAggregation(agg.Function); !ok {
				v.addf(base+".aggregation_function", CodeUnknownAggregation,
					"custom aggregation %q is not defined for dataset %q", agg.Function, v.reg.Name)
			}
			continue
		}

		col, colOK := v.column(base+".column_name", agg.ColumnName)
		fn, fnOK := core.ParseAggregationFunction(agg.Function)
		if !fnOK {
			v.addf(base+".aggregation_function", CodeUnknownAggregation,
				"unknown aggregation function %q", agg.Function)
			continue
		}
		if colOK && !core.IsLegalAggregation(fn, col.Kind) {
			v.addf(base+".aggregation_function", CodeAggregationNotAllowed,
				"%s is not allowed on %s column %q; allowed: %s",
				fn, col.Kind, col.Name, joinFuncs(schema.LegalAggregations(col.Kind)))
		}
	}
}

func checkFilters(v *validation) {
	for i, f := range v.req.Filters {
		base := fmt.Sprintf("filters[%d]", i)

		col, colOK := v.column(base+".column_name", f.ColumnName)

		kind, known := query.ParseFilterKind(string(f.Kind))
		if !known {
			v.addf(base+".kind", CodeUnknownFilterKind,
				"unknown filter kind %q; expected category, fact or date", f.Kind)
			continue
		}

		if colOK {
			want, filterable := core.FilterKindFor(col.Kind)
			switch {
			case !filterable:
				v.addf(base+".kind", CodeFilterKindMismatch, "column %q of kind %s cannot be filtered", col.Name, col.Kind)
			case want != kind:
				v.addf(base+".kind", CodeFilterKindMismatch,
					"%s filter cannot be applied to %s column %q; use a %s filter", kind, col.Kind, col.Name, want)
			}
		}

		if kind == core.FilterCategory {
			if len(f.Values) == 0 {
				v.addf(base+".values", CodeEmptyFilterValues, "category filter needs at least one value")
			}
			continue
		}
		v.checkRange(base, kind, f)
	}
}

func (v *validation) checkRange(base string, kind core.FilterKind, f query.Filter) {
	if f.Min == nil && f.Max == nil {
		v.addf(base+".range", CodeRangeUnbounded, "range needs at least one bound")
		return
	}

	loOK := v.checkBound(base, 0, kind, f.Min)
	hiOK := v.checkBound(base, 1, kind, f.Max)
	if !loOK || !hiOK || f.Min == nil || f.Max == nil {
		return
	}

	var inverted bool
	if kind == core.FilterDate {
		lo, _ := f.Min.Time()
		hi, _ := f.Max.Time()
		inverted = lo.After(hi)
	} else {
		lo, _ := f.Min.Float()
		hi, _ := f.Max.Float()
		inverted = lo > hi
	}
	if inverted {
		v.addf(base+".range", CodeRangeOrder, "range minimum %s is greater than maximum %s", f.Min, f.Max)
	}
}

// checkBound reports a bound that does not parse for the filter kind. A nil
// bound is valid.
func (v *validation) checkBound(base string, idx int, kind core.FilterKind, b *query.Bound) bool {
	if b == nil {
		return true
	}
	path := fmt.Sprintf("%s.range[%d]", base, idx)
	if kind == core.FilterDate {
		if _, ok := b.Time(); !ok {
			v.addf(path, CodeInvalidRangeBound, "%s is not a date; use RFC 3339 or YYYY-MM-DD", b)
			return false
		}
		return true
	}
	if _, ok := b.Float(); !ok {
		v.addf(path, CodeInvalidRangeBound, "%s is not a finite number", b)
		return false
	}
	return true
}

func checkOrderBy(v *validation) {
	aliases := v.req.OutputAliases()
	for i, o := range v.req.OrderBy {
		base := fmt.Sprintf("order_by[%d]", i)
		if _, ok := core.ParseDirection(o.Direction); !ok {
			v.addf(base+".direction", CodeInvalidDirection, "direction %q must be ASC or DESC", o.Direction)
		}
		if _, ok := aliases[o.ColumnName]; ok {
			continue
		}
		v.column(base+".column_name", o.ColumnName)
	}
}

func checkBreakdown(v *validation) {
	if v.req.Breakdown == "" {
		return
	}
	col, ok := v.column("breakdown", v.req.Breakdown)
	if ok && col.Kind != core.KindCategory {
		v.addf("breakdown", CodeBreakdownKind, "breakdown column %q must be category, not %s", col.Name, col.Kind)
	}
}

func checkAliases(v *validation) {
	seen := make(map[string]string)
	claim := func(alias, path string) {
		if alias == "" {
			return
		}
		if first, dup := seen[alias]; dup {
			v.addf(path, CodeDuplicateAlias, "alias %q is already used by %s", alias, first)
			return
		}
		seen[alias] = path
	}
	for i, s := range v.req.Select {
		claim(s.OutputAlias(), fmt.Sprintf("select[%d]", i))
	}
	claim(v.req.Breakdown, "breakdown")
	for i, a := range v.req.Aggregations {
		claim(a.Alias, fmt.Sprintf("aggregations[%d].alias", i))
	}
}

func checkPagination(v *validation) {
	p := v.req.Pagination
	if p == nil {
		return
	}
	if p.Offset < 0 {
		v.addf("pagination.offset", CodePaginationOffset, "offset must be zero or greater, got %d", p.Offset)
	}
	switch {
	case p.Limit <= 0:
		v.addf("pagination.limit", CodePaginationLimit, "limit must be greater than zero, got %d", p.Limit)
	case p.Limit > v.opts.maxLimit:
		v.addf("pagination.limit", CodePaginationLimitCeiling, "limit %d exceeds the maximum of %d", p.Limit, v.opts.maxLimit)
	}
}

func checkProjection(v *validation) {
	if len(v.req.Select) == 0 && len(v.req.Aggregations) == 0 && v.req.Breakdown == "" {
		v.addf("select", CodeEmptyProjection, "request selects nothing; add a select, aggregation or breakdown")
	}
}

func joinFuncs(fns []core.AggregationFunction) string {
	names := make([]string, len(fns))
	for i, fn := range fns {
		names[i] = string(fn)
	}
	return strings.Join(names, ", ")
}
