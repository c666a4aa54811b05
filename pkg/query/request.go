package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultLimit is the page size used when a pagination object omits limit.
const DefaultLimit = 100

// Request is an abstract query against one table of a dataset.
type Request struct {
	TableName    string        `json:"table_name"`
	Select       []SelectItem  `json:"select,omitempty"`
	Aggregations []Aggregation `json:"aggregations,omitempty"`
	Filters      []Filter      `json:"filters,omitempty"`
	OrderBy      []OrderItem   `json:"order_by,omitempty"`
	Pagination   *Pagination   `json:"pagination,omitempty"`

	// Breakdown names a category column that splits every output row.
	Breakdown string `json:"breakdown,omitempty"`
}

// SelectItem projects a column as is.
type SelectItem struct {
	ColumnName string `json:"column_name"`
	Alias      string `json:"alias,omitempty"`
}

// OutputAlias returns the alias, or the column name when none was given.
func (s SelectItem) OutputAlias() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.ColumnName
}

// Aggregation kinds accepted on the wire.
const (
	AggregationKindBuiltin = "aggregation"
	AggregationKindCustom  = "custom"
)

// Aggregation applies a built-in function to a column, or names a
// dataset-defined custom aggregation, which has no column.
type Aggregation struct {
	Kind       string `json:"kind,omitempty"`
	ColumnName string `json:"column_name,omitempty"`
	Function   string `json:"aggregation_function"`
	Alias      string `json:"alias"`
}

// IsCustom reports whether the aggregation names a dataset-defined function.
func (a Aggregation) IsCustom() bool {
	switch a.Kind {
	case AggregationKindCustom, "QueryRequestCustomAggregation":
		return true
	}
	return false
}

// KnownKind reports whether the kind tag is one of the accepted spellings.
func (a Aggregation) KnownKind() bool {
	switch a.Kind {
	case "", AggregationKindBuiltin, "QueryRequestAggregation":
		return true
	}
	return a.IsCustom()
}

// OrderItem sorts by a column or an output alias.
type OrderItem struct {
	ColumnName string `json:"column_name"`
	Direction  string `json:"direction,omitempty"`
}

// Pagination selects a window of the result.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// UnmarshalJSON applies DefaultLimit when limit is absent. An explicit zero
// is kept so validation can reject it.
func (p *Pagination) UnmarshalJSON(data []byte) error {
	type raw Pagination
	r := raw{Limit: DefaultLimit}
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*p = Pagination(r)
	return nil
}

// Parse decodes a JSON request. Unknown fields, including the per-item
// "kind" tags older clients send on selects and order keys, are ignored.
func Parse(data []byte) (*Request, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads one JSON request from r.
func Decode(r io.Reader) (*Request, error) {
	dec := json.NewDecoder(r)
	var req Request
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("malformed request: empty body")
		}
		return nil, fmt.Errorf("malformed request: %w", err)
	}
	if dec.More() {
		return nil, errors.New("malformed request: unexpected data after request object")
	}
	return &req, nil
}

// Columns returns every column name the request references, in request
// order, with duplicates kept. Order keys that match an output alias are
// excluded.
func (r *Request) Columns() []string {
	var cols []string
	for _, s := range r.Select {
		cols = append(cols, s.ColumnName)
	}
	for _, a := range r.Aggregations {
		if !a.IsCustom() {
			cols = append(cols, a.ColumnName)
		}
	}
	for _, f := range r.Filters {
		cols = append(cols, f.ColumnName)
	}
	aliases := r.OutputAliases()
	for _, o := range r.OrderBy {
		if _, ok := aliases[o.ColumnName]; !ok {
			cols = append(cols, o.ColumnName)
		}
	}
	if r.Breakdown != "" {
		cols = append(cols, r.Breakdown)
	}
	return cols
}

// OutputAliases returns the set of aliases the request projects.
func (r *Request) OutputAliases() map[string]struct{} {
	aliases := make(map[string]struct{}, len(r.Select)+len(r.Aggregations)+1)
	for _, s := range r.Select {
		aliases[s.OutputAlias()] = struct{}{}
	}
	if r.Breakdown != "" {
		aliases[r.Breakdown] = struct{}{}
	}
	for _, a := range r.Aggregations {
		if a.Alias != "" {
			aliases[a.Alias] = struct{}{}
		}
	}
	return aliases
}

// String returns a compact one-line description for logs.
func (r *Request) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "table=%s select=%d aggregations=%d filters=%d order_by=%d",
		r.TableName, len(r.Select), len(r.Aggregations), len(r.Filters), len(r.OrderBy))
	if r.Breakdown != "" {
		fmt.Fprintf(&b, " breakdown=%s", r.Breakdown)
	}
	if r.Pagination != nil {
		fmt.Fprintf(&b, " offset=%d limit=%d", r.Pagination.Offset, r.Pagination.Limit)
	}
	return b.String()
}
