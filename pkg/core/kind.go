package core

import (
	"slices"
	"strings"
)

// ColumnKind is the semantic type of a dataset column. It decides which
// filters, aggregations and hierarchy links a column may take part in.
type ColumnKind string

// Column kinds.
const (
	KindCategory ColumnKind = "category"
	KindFact     ColumnKind = "fact"
	KindDate     ColumnKind = "date"
	KindOther    ColumnKind = "other"
)

// Valid reports whether k is one of the known kinds.
func (k ColumnKind) Valid() bool {
	switch k {
	case KindCategory, KindFact, KindDate, KindOther:
		return true
	}
	return false
}

// String returns the kind name.
func (k ColumnKind) String() string {
	return string(k)
}

// DataType is the storage type of a column value, used to coerce filter
// bounds and filter-option values.
type DataType string

// Data types.
const (
	TypeString   DataType = "string"
	TypeNumber   DataType = "number"
	TypeBoolean  DataType = "boolean"
	TypeDateTime DataType = "datetime"
)

// Valid reports whether t is one of the known data types.
func (t DataType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeDateTime:
		return true
	}
	return false
}

// DefaultDataType returns the data type assumed for a kind when the
// definition does not name one.
func DefaultDataType(k ColumnKind) DataType {
	switch k {
	case KindFact:
		return TypeNumber
	case KindDate:
		return TypeDateTime
	default:
		return TypeString
	}
}

// AggregationFunction names a built-in aggregation.
type AggregationFunction string

// Built-in aggregation functions.
const (
	AggCount         AggregationFunction = "COUNT"
	AggCountDistinct AggregationFunction = "COUNT_DISTINCT"
	AggSum           AggregationFunction = "SUM"
	AggAvg           AggregationFunction = "AVG"
	AggMedian        AggregationFunction = "MEDIAN"
	AggMin           AggregationFunction = "MIN"
	AggMax           AggregationFunction = "MAX"
)

// anyColumnAggregations apply to every column kind.
var anyColumnAggregations = []AggregationFunction{AggCount, AggCountDistinct}

// factAggregations apply to fact columns only.
var factAggregations = []AggregationFunction{AggSum, AggAvg, AggMedian, AggMin, AggMax}

// BuiltinAggregations returns every built-in function in canonical order.
func BuiltinAggregations() []AggregationFunction {
	return slices.Concat(anyColumnAggregations, factAggregations)
}

// ParseAggregationFunction resolves a built-in function name case-insensitively.
// "COUNT DISTINCT" and "COUNTDISTINCT" are accepted as spellings of COUNT_DISTINCT.
func ParseAggregationFunction(name string) (AggregationFunction, bool) {
	n := strings.ToUpper(strings.TrimSpace(name))
	switch n {
	case "COUNT DISTINCT", "COUNTDISTINCT":
		n = string(AggCountDistinct)
	}
	fn := AggregationFunction(n)
	if slices.Contains(BuiltinAggregations(), fn) {
		return fn, true
	}
	return "", false
}

// IsBuiltinAggregation reports whether name collides with a built-in function.
func IsBuiltinAggregation(name string) bool {
	_, ok := ParseAggregationFunction(name)
	return ok
}

// LegalAggregations returns the built-in functions allowed on a column kind.
// Date columns aggregate like other columns.
func LegalAggregations(k ColumnKind) []AggregationFunction {
	if k == KindFact {
		return BuiltinAggregations()
	}
	return slices.Clone(anyColumnAggregations)
}

// IsLegalAggregation reports whether fn may be applied to a column of kind k.
func IsLegalAggregation(fn AggregationFunction, k ColumnKind) bool {
	return slices.Contains(LegalAggregations(k), fn)
}

// FilterKind tags the variant of a filter.
type FilterKind string

// Filter kinds.
const (
	FilterCategory FilterKind = "category"
	FilterFact     FilterKind = "fact"
	FilterDate     FilterKind = "date"
)

// FilterKindFor returns the only filter kind a column of kind k accepts.
// Columns of kind other are not filterable.
func FilterKindFor(k ColumnKind) (FilterKind, bool) {
	switch k {
	case KindCategory:
		return FilterCategory, true
	case KindFact:
		return FilterFact, true
	case KindDate:
		return FilterDate, true
	}
	return "", false
}

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection resolves a direction case-insensitively. Empty means ASC.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ASC", "ASCENDING":
		return Asc, true
	case "DESC", "DESCENDING":
		return Desc, true
	}
	return "", false
}
