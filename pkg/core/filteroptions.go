package core

import (
	"fmt"
	"sort"
)

// FilterOptionKind tags a filter option group.
type FilterOptionKind string

// Filter option kinds.
const (
	OptionCategory  FilterOptionKind = "category"
	OptionMinMax    FilterOptionKind = "min_max"
	OptionHierarchy FilterOptionKind = "hierarchy"
)

// OptionValue is a selectable value. Children is set for hierarchy nodes.
type OptionValue struct {
	Label    string        `json:"label"`
	Value    any           `json:"value"`
	Children []OptionValue `json:"children,omitempty"`
}

// FilterOption lists the values a UI can offer for one column or hierarchy.
// Min/max groups hold exactly two entries labelled "min" and "max".
type FilterOption struct {
	Kind   FilterOptionKind `json:"kind"`
	Name   string           `json:"name"`
	Table  string           `json:"table,omitempty"`
	Column string           `json:"column,omitempty"`
	Values []OptionValue    `json:"values"`
}

// OptionColumn is a column filter options are computed for.
type OptionColumn struct {
	Ref      ColumnRef
	DataType DataType
}

// OptionTree is a hierarchy filter options are computed for.
type OptionTree struct {
	Name  string
	Edges []HierarchyEdge
}

// FilterOptionsRequest names everything an adapter should compute options
// for. It is derived from a schema registry.
type FilterOptionsRequest struct {
	Columns     []OptionColumn
	Hierarchies []OptionTree
}

// ValuePair is one distinct (parent, child) value combination of an edge.
type ValuePair struct {
	Parent any
	Child  any
}

// CategoryOptions converts distinct values to sorted label/value entries.
// Nil values are dropped.
func CategoryOptions(values []any) []OptionValue {
	out := make([]OptionValue, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		out = append(out, OptionValue{Label: label(v), Value: v})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// MinMaxOptions returns the two-entry min/max option list.
func MinMaxOptions(lo, hi any) []OptionValue {
	return []OptionValue{
		{Label: "min", Value: lo},
		{Label: "max", Value: hi},
	}
}

// BuildHierarchyOptions assembles the nested option tree of a hierarchy.
// edges[i] holds the distinct value pairs of the i-th edge, root first.
// Roots are the distinct parents of the first edge.
func BuildHierarchyOptions(edges [][]ValuePair) []OptionValue {
	if len(edges) == 0 {
		return []OptionValue{}
	}
	var roots []any
	seen := make(map[string]bool)
	for _, p := range edges[0] {
		if p.Parent == nil {
			continue
		}
		key := label(p.Parent)
		if !seen[key] {
			seen[key] = true
			roots = append(roots, p.Parent)
		}
	}
	return buildLevel(roots, edges)
}

func buildLevel(values []any, edges [][]ValuePair) []OptionValue {
	out := CategoryOptions(values)
	if len(edges) == 0 {
		return out
	}
	children := make(map[string][]any)
	seen := make(map[string]bool)
	for _, p := range edges[0] {
		if p.Parent == nil || p.Child == nil {
			continue
		}
		pk, ck := label(p.Parent), label(p.Child)
		if seen[pk+"\x00"+ck] {
			continue
		}
		seen[pk+"\x00"+ck] = true
		children[pk] = append(children[pk], p.Child)
	}
	for i := range out {
		kids := buildLevel(children[out[i].Label], edges[1:])
		if len(kids) > 0 {
			out[i].Children = kids
		}
	}
	return out
}

func label(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
