// Package schema holds typed dataset schemas: tables, typed columns,
// category hierarchies and custom aggregation functions.
//
// A Registry is immutable once built by Load and safe for concurrent
// readers. Reloading swaps a whole Registry through a Holder.
package schema

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/anyset/pkg/core"
)

// Column is a typed column of a dataset table.
type Column struct {
	Table       string
	Name        string
	Kind        core.ColumnKind
	DataType    core.DataType
	Description string

	// Parent is the parent level of a category column, if any.
	Parent *core.ColumnRef
}

// Ref returns the resolved reference to the column.
func (c Column) Ref() core.ColumnRef {
	return core.ColumnRef{Table: c.Table, Column: c.Name, Kind: c.Kind}
}

// Table is a dataset table with its columns in declaration order.
type Table struct {
	Name        string
	Description string

	columns []Column
	index   map[string]int
}

// Columns returns the columns in declaration order.
func (t *Table) Columns() []Column {
	return slices.Clone(t.columns)
}

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Hierarchy is an ordered chain of category levels, root first.
type Hierarchy struct {
	Name   string
	Levels []core.ColumnRef
	Edges  []core.HierarchyEdge

	// Implicit is true for hierarchies derived from parent links alone.
	Implicit bool
}

// Leaf returns the deepest level.
func (h *Hierarchy) Leaf() core.ColumnRef {
	return h.Levels[len(h.Levels)-1]
}

// Position returns the index of a level, or -1.
func (h *Hierarchy) Position(table, column string) int {
	for i, l := range h.Levels {
		if l.Table == table && l.Column == column {
			return i
		}
	}
	return -1
}

// Registry is a loaded dataset schema.
type Registry struct {
	Name          string
	Description   string
	PathPrefix    string
	Version       int
	Adapter       string
	AdapterConfig map[string]any

	tables      []*Table
	tableIndex  map[string]*Table
	hierarchies []*Hierarchy
	hierIndex   map[string]*Hierarchy
	custom      map[string]string
	arena       *arena
}

// Key returns the catalogue key "<path_prefix>/v<version>".
func (r *Registry) Key() string {
	return DatasetKey(r.PathPrefix, r.Version)
}

// DatasetKey builds the catalogue key for a path prefix and version.
func DatasetKey(prefix string, version int) string {
	return prefix + "/v" + strconv.Itoa(version)
}

// Meta returns the dataset identity used in responses.
func (r *Registry) Meta() core.DatasetMeta {
	return core.DatasetMeta{Name: r.Name, Version: r.Version}
}

// Tables returns the tables in declaration order.
func (r *Registry) Tables() []*Table {
	return slices.Clone(r.tables)
}

// LookupTable returns a table by name.
func (r *Registry) LookupTable(name string) (*Table, error) {
	t, ok := r.tableIndex[name]
	if !ok {
		return nil, core.ErrNotFound("table %q not found in dataset %s", name, r.Name)
	}
	return t, nil
}

// LookupColumn returns a column by table and name.
func (r *Registry) LookupColumn(table, column string) (Column, error) {
	t, err := r.LookupTable(table)
	if err != nil {
		return Column{}, err
	}
	c, ok := t.Column(column)
	if !ok {
		return Column{}, core.ErrNotFound("column %q not found in table %s", column, table)
	}
	return c, nil
}

// ResolveHierarchy returns the levels of a hierarchy, root first.
func (r *Registry) ResolveHierarchy(name string) ([]core.ColumnRef, error) {
	h, ok := r.hierIndex[name]
	if !ok {
		return nil, core.ErrNotFound("hierarchy %q not found in dataset %s", name, r.Name)
	}
	return slices.Clone(h.Levels), nil
}

// Hierarchy returns a hierarchy by name.
func (r *Registry) Hierarchy(name string) (*Hierarchy, bool) {
	h, ok := r.hierIndex[name]
	return h, ok
}

// Hierarchies returns every hierarchy sorted by name.
func (r *Registry) Hierarchies() []*Hierarchy {
	return slices.Clone(r.hierarchies)
}

// HierarchiesFor returns the hierarchies in which the column is a root or
// interior level, sorted by name. Leaf-only membership is not included.
func (r *Registry) HierarchiesFor(table, column string) []*Hierarchy {
	var out []*Hierarchy
	for _, h := range r.hierarchies {
		if pos := h.Position(table, column); pos >= 0 && pos < len(h.Levels)-1 {
			out = append(out, h)
		}
	}
	return out
}

// Parent returns the parent level of a column from the parent index.
func (r *Registry) Parent(table, column string) (core.ColumnRef, bool) {
	return r.arena.parentOf(refKey(table, column))
}

// LegalAggregations returns the built-in functions allowed on a column kind.
func LegalAggregations(kind core.ColumnKind) []core.AggregationFunction {
	return core.LegalAggregations(kind)
}

// CustomAggregation returns the expression of a dataset-defined aggregation.
func (r *Registry) CustomAggregation(name string) (string, bool) {
	expr, ok := r.custom[name]
	return expr, ok
}

// CustomAggregations returns the custom aggregation names, sorted.
func (r *Registry) CustomAggregations() []string {
	names := make([]string, 0, len(r.custom))
	for name := range r.custom {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FilterOptionsRequest lists the filterable columns (category, fact and
// date) and the hierarchies of the dataset for adapters to compute
// selectable values.
func (r *Registry) FilterOptionsRequest() *core.FilterOptionsRequest {
	req := &core.FilterOptionsRequest{}
	for _, t := range r.tables {
		for _, c := range t.columns {
			if _, ok := core.FilterKindFor(c.Kind); !ok {
				continue
			}
			req.Columns = append(req.Columns, core.OptionColumn{Ref: c.Ref(), DataType: c.DataType})
		}
	}
	for _, h := range r.hierarchies {
		req.Hierarchies = append(req.Hierarchies, core.OptionTree{Name: h.Name, Edges: slices.Clone(h.Edges)})
	}
	return req
}

var _ core.Catalog = (*Registry)(nil)

// refKey is the arena key of a column.
func refKey(table, column string) string {
	return table + "\x00" + column
}

// splitRef splits "table.column" at the last dot. A bare column resolves
// against defaultTable.
func splitRef(s, defaultTable string) (table, column string) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[:i], s[i+1:]
	}
	return defaultTable, s
}

func (r *Registry) String() string {
	return fmt.Sprintf("%s (%s)", r.Name, r.Key())
}
