package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlan() *Plan {
	cat := ColumnRef{Table: "cc_transactions", Column: "category", Kind: KindCategory}
	amt := ColumnRef{Table: "cc_transactions", Column: "amt", Kind: KindFact}
	return &Plan{
		Table: "cc_transactions",
		Outputs: []Output{
			{Alias: "category", Column: &cat},
			{Alias: "total", Column: &amt, Aggregation: AggSum},
		},
		GroupBy: []ColumnRef{cat},
		OrderBy: []OrderKey{{Column: &cat, Direction: Asc}},
		Limit:   100,
	}
}

func TestNewResultset(t *testing.T) {
	plan := testPlan()
	meta := DatasetMeta{Name: "cc", Version: 1}

	tests := []struct {
		name    string
		res     *ColumnarResult
		wantErr string
	}{
		{
			name: "valid",
			res: &ColumnarResult{
				Columns: []ColumnData{
					{Alias: "category", Data: []any{"food", nil}},
					{Alias: "total", Data: []any{12.5, 3.0}},
				},
				RowCountCurrentPage: 2,
				RowCountTotal:       7,
			},
		},
		{
			name:    "nil result",
			res:     nil,
			wantErr: "nil result",
		},
		{
			name: "column count mismatch",
			res: &ColumnarResult{
				Columns: []ColumnData{{Alias: "category", Data: []any{}}},
			},
			wantErr: "expected 2 columns, got 1",
		},
		{
			name: "alias order mismatch",
			res: &ColumnarResult{
				Columns: []ColumnData{
					{Alias: "total", Data: []any{}},
					{Alias: "category", Data: []any{}},
				},
			},
			wantErr: `expected alias "category"`,
		},
		{
			name: "ragged column",
			res: &ColumnarResult{
				Columns: []ColumnData{
					{Alias: "category", Data: []any{"food"}},
					{Alias: "total", Data: []any{1.0, 2.0}},
				},
				RowCountCurrentPage: 1,
				RowCountTotal:       1,
			},
			wantErr: `column "total" has 2 values`,
		},
		{
			name: "total below page count",
			res: &ColumnarResult{
				Columns: []ColumnData{
					{Alias: "category", Data: []any{"food"}},
					{Alias: "total", Data: []any{1.0}},
				},
				RowCountCurrentPage: 1,
				RowCountTotal:       0,
			},
			wantErr: "less than page count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := NewResultset(plan, meta, "memory", tt.res)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, errors.Is(err, ErrContractViolation))
				var ae *AdapterError
				require.ErrorAs(t, err, &ae)
				assert.False(t, ae.Retryable(), "contract violations are deterministic")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "cc", rs.Dataset)
			assert.Equal(t, 1, rs.Version)
			assert.Equal(t, 2, rs.RecordCountCurrentPage)
			assert.Equal(t, 7, rs.RecordCountTotal)
			assert.Equal(t, []string{"category", "total"}, rs.Aliases())
			assert.Equal(t, [][]any{{"food", 12.5}, {nil, 3.0}}, rs.Rows())
		})
	}
}

func TestNewResultset_EmptyPage(t *testing.T) {
	plan := testPlan()
	rs, err := NewResultset(plan, DatasetMeta{Name: "cc"}, "memory", &ColumnarResult{
		Columns:       []ColumnData{{Alias: "category"}, {Alias: "total"}},
		RowCountTotal: 40,
	})
	require.NoError(t, err)
	for _, c := range rs.Columns {
		assert.NotNil(t, c.Data, "empty columns serialize as [] not null")
		assert.Empty(t, c.Data)
	}
}

func TestPlan_Aggregated(t *testing.T) {
	plan := testPlan()
	assert.True(t, plan.Aggregated())
	assert.Equal(t, []string{"category", "total"}, plan.Aliases())

	plan.Outputs = plan.Outputs[:1]
	assert.False(t, plan.Aggregated())
}
