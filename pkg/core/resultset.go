package core

import "fmt"

// ColumnData is one column of adapter output.
type ColumnData struct {
	Alias string
	Data  []any
}

// ColumnarResult is what an adapter returns for a plan: columns in plan
// output order, nil for absent values, plus page and total row counts.
type ColumnarResult struct {
	Columns             []ColumnData
	RowCountCurrentPage int
	RowCountTotal       int
}

// ResultColumn is one column of the response.
type ResultColumn struct {
	Alias     string `json:"alias"`
	Breakdown bool   `json:"breakdown,omitempty"`
	Data      []any  `json:"data"`
}

// Resultset is the normalized columnar response returned to callers.
type Resultset struct {
	Dataset                string         `json:"dataset"`
	Version                int            `json:"version"`
	RecordCountCurrentPage int            `json:"record_count_current_page"`
	RecordCountTotal       int            `json:"record_count_total"`
	Columns                []ResultColumn `json:"columns"`
}

// DatasetMeta identifies the dataset a response belongs to.
type DatasetMeta struct {
	Name    string
	Version int
}

// NewResultset checks adapter output against the plan and wraps it into the
// response contract. A mismatch is reported as an AdapterError wrapping
// ErrContractViolation.
func NewResultset(plan *Plan, meta DatasetMeta, adapterName string, res *ColumnarResult) (*Resultset, error) {
	violation := func(format string, args ...any) error {
		return &AdapterError{
			Adapter: adapterName,
			Op:      "execute",
			Err:     fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...)),
		}
	}

	if res == nil {
		return nil, violation("nil result")
	}
	if len(res.Columns) != len(plan.Outputs) {
		return nil, violation("expected %d columns, got %d", len(plan.Outputs), len(res.Columns))
	}
	if res.RowCountCurrentPage < 0 {
		return nil, violation("negative page count %d", res.RowCountCurrentPage)
	}
	if res.RowCountTotal < res.RowCountCurrentPage {
		return nil, violation("total count %d is less than page count %d", res.RowCountTotal, res.RowCountCurrentPage)
	}

	rs := &Resultset{
		Dataset:                meta.Name,
		Version:                meta.Version,
		RecordCountCurrentPage: res.RowCountCurrentPage,
		RecordCountTotal:       res.RowCountTotal,
		Columns:                make([]ResultColumn, len(plan.Outputs)),
	}
	for i, out := range plan.Outputs {
		col := res.Columns[i]
		if col.Alias != out.Alias {
			return nil, violation("column %d: expected alias %q, got %q", i, out.Alias, col.Alias)
		}
		if len(col.Data) != res.RowCountCurrentPage {
			return nil, violation("column %q has %d values, page count is %d", col.Alias, len(col.Data), res.RowCountCurrentPage)
		}
		data := col.Data
		if data == nil {
			data = []any{}
		}
		rs.Columns[i] = ResultColumn{Alias: out.Alias, Breakdown: out.Breakdown, Data: data}
	}
	return rs, nil
}

// Rows returns the data transposed into rows, in column order.
func (r *Resultset) Rows() [][]any {
	rows := make([][]any, r.RecordCountCurrentPage)
	for i := range rows {
		row := make([]any, len(r.Columns))
		for j, col := range r.Columns {
			row[j] = col.Data[i]
		}
		rows[i] = row
	}
	return rows
}

// Aliases returns the column aliases in order.
func (r *Resultset) Aliases() []string {
	aliases := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		aliases[i] = c.Alias
	}
	return aliases
}
