package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/anyset/pkg/core"
	"github.com/leapstack-labs/anyset/pkg/schema"
)

func baseDefinition() schema.Definition {
	return schema.Definition{
		Name:       "Sales",
		PathPrefix: "sales",
		Version:    2,
		Adapter:    "memory",
		Tables: schema.TableDefs{
			{
				Name: "orders",
				Columns: schema.ColumnDefs{
					{Name: "region", Type: "category"},
					{Name: "country", Type: "Category", Parent: "region"},
					{Name: "city", Type: "category", Parent: "orders.country"},
					{Name: "revenue", Type: "numeric_fact"},
					{Name: "ordered_at", Type: "DateTime"},
					{Name: "note", Type: "text_other"},
				},
			},
		},
	}
}

func TestLoad_ImplicitHierarchy(t *testing.T) {
	reg, err := schema.Load(baseDefinition())
	require.NoError(t, err)

	hs := reg.Hierarchies()
	require.Len(t, hs, 1)
	h := hs[0]
	assert.Equal(t, "orders.region", h.Name)
	assert.True(t, h.Implicit)
	require.Len(t, h.Levels, 3)
	assert.Equal(t, []string{"region", "country", "city"}, []string{h.Levels[0].Column, h.Levels[1].Column, h.Levels[2].Column})
	require.Len(t, h.Edges, 2)

	assert.Len(t, reg.HierarchiesFor("orders", "country"), 1, "interior level is expandable")
}

func TestLoad_ExplicitHierarchyCoversChain(t *testing.T) {
	def := baseDefinition()
	def.Hierarchies = schema.HierarchyDefs{
		{Name: "geo", Levels: []string{"orders.region", "orders.country", "orders.city"}},
	}
	reg, err := schema.Load(def)
	require.NoError(t, err)

	hs := reg.Hierarchies()
	require.Len(t, hs, 1, "no implicit duplicate of an explicit hierarchy")
	assert.Equal(t, "geo", hs[0].Name)
}

func TestLoad_CrossTableEdge(t *testing.T) {
	def := schema.Definition{
		Name:       "Sales",
		PathPrefix: "sales",
		Tables: schema.TableDefs{
			{Name: "regions", Columns: schema.ColumnDefs{
				{Name: "region", Type: "category"},
				{Name: "country", Type: "category"},
			}},
			{Name: "orders", Columns: schema.ColumnDefs{
				{Name: "country", Type: "category", Parent: "regions.region"},
				{Name: "revenue", Type: "fact"},
			}},
		},
	}
	reg, err := schema.Load(def)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Version, "version defaults to 1")

	hs := reg.Hierarchies()
	require.Len(t, hs, 1)
	require.Len(t, hs[0].Edges, 1)
	assert.Equal(t, "regions", hs[0].Edges[0].Via, "parent table holds both levels")
}

func TestLoad_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *schema.Definition)
		want   []string
	}{
		{
			name:   "missing identity",
			mutate: func(d *schema.Definition) { d.Name = ""; d.PathPrefix = "" },
			want:   []string{"name is required", "path_prefix is required"},
		},
		{
			name:   "bad prefix",
			mutate: func(d *schema.Definition) { d.PathPrefix = "Sales Data" },
			want:   []string{`path_prefix "Sales Data"`},
		},
		{
			name:   "wrong kind",
			mutate: func(d *schema.Definition) { d.Kind = "Model" },
			want:   []string{`kind must be "Dataset"`},
		},
		{
			name: "unknown column type",
			mutate: func(d *schema.Definition) {
				d.Tables[0].Columns = append(d.Tables[0].Columns, schema.ColumnDef{Name: "x", Type: "blob"})
			},
			want: []string{`unknown column_type "blob"`},
		},
		{
			name: "unknown data type",
			mutate: func(d *schema.Definition) {
				d.Tables[0].Columns = append(d.Tables[0].Columns, schema.ColumnDef{Name: "x", Type: "fact", DataType: "decimal128"})
			},
			want: []string{`unknown column_data_type "decimal128"`},
		},
		{
			name: "parent missing",
			mutate: func(d *schema.Definition) {
				d.Tables[0].Columns[0].Parent = "continent"
			},
			want: []string{"column orders.continent not found"},
		},
		{
			name: "parent of non category",
			mutate: func(d *schema.Definition) {
				d.Tables[0].Columns[3].Parent = "region"
			},
			want: []string{"only category columns can have a parent"},
		},
		{
			name: "parent is fact",
			mutate: func(d *schema.Definition) {
				d.Tables[0].Columns[1].Parent = "revenue"
			},
			want: []string{"hierarchy levels must be category"},
		},
		{
			name: "cycle",
			mutate: func(d *schema.Definition) {
				d.Tables[0].Columns[0].Parent = "city"
			},
			want: []string{"hierarchy cycle"},
		},
		{
			name: "conflicting parents",
			mutate: func(d *schema.Definition) {
				d.Hierarchies = schema.HierarchyDefs{{Name: "alt", Levels: []string{"orders.region", "orders.city"}}}
			},
			want: []string{"conflicting parents"},
		},
		{
			name: "hierarchy too short",
			mutate: func(d *schema.Definition) {
				d.Hierarchies = schema.HierarchyDefs{{Name: "solo", Levels: []string{"orders.region"}}}
			},
			want: []string{"needs at least two levels"},
		},
		{
			name: "hierarchy level without table",
			mutate: func(d *schema.Definition) {
				d.Hierarchies = schema.HierarchyDefs{{Name: "geo", Levels: []string{"region", "orders.country"}}}
			},
			want: []string{"must be written as table.column"},
		},
		{
			name: "custom aggregation collides with builtin",
			mutate: func(d *schema.Definition) {
				d.CustomAggregations = map[string]string{"sum": "SUM(revenue)"}
			},
			want: []string{`custom aggregation "sum" collides with a built-in function`},
		},
		{
			name: "custom aggregation case collision",
			mutate: func(d *schema.Definition) {
				d.CustomAggregations = map[string]string{"Margin": "SUM(x)", "margin": "SUM(y)"}
			},
			want: []string{`custom aggregation "margin" collides with "Margin"`},
		},
		{
			name: "custom aggregation empty expression",
			mutate: func(d *schema.Definition) {
				d.CustomAggregations = map[string]string{"margin": " "}
			},
			want: []string{"has no expression"},
		},
		{
			name: "duplicate table",
			mutate: func(d *schema.Definition) {
				d.Tables = append(d.Tables, d.Tables[0])
			},
			want: []string{`table "orders": defined more than once`},
		},
		{
			name: "bad identifier",
			mutate: func(d *schema.Definition) {
				d.Tables[0].Columns[0].Name = "region; DROP TABLE orders"
			},
			want: []string{"name is not a valid identifier"},
		},
		{
			name:   "no tables",
			mutate: func(d *schema.Definition) { d.Tables = nil },
			want:   []string{"at least one table"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := baseDefinition()
			tt.mutate(&def)

			_, err := schema.Load(def)
			require.Error(t, err)

			var se *core.SchemaError
			require.ErrorAs(t, err, &se)
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}

func TestLoad_CollectsAllProblems(t *testing.T) {
	def := baseDefinition()
	def.PathPrefix = ""
	def.Tables[0].Columns = append(def.Tables[0].Columns, schema.ColumnDef{Name: "x", Type: "blob"})
	def.CustomAggregations = map[string]string{"avg": "AVG(revenue)"}

	_, err := schema.Load(def)
	var se *core.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Len(t, se.Problems, 3)
}
