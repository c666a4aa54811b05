package sqlgen_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/anyset/internal/testutil"
	"github.com/leapstack-labs/anyset/pkg/core"
	"github.com/leapstack-labs/anyset/pkg/dialect"
	"github.com/leapstack-labs/anyset/pkg/dialects/databricks"
	"github.com/leapstack-labs/anyset/pkg/dialects/duckdb"
	"github.com/leapstack-labs/anyset/pkg/dialects/postgres"
	"github.com/leapstack-labs/anyset/pkg/dialects/snowflake"
	"github.com/leapstack-labs/anyset/pkg/dialects/sqlite"
	"github.com/leapstack-labs/anyset/pkg/planner"
	"github.com/leapstack-labs/anyset/pkg/query"
	"github.com/leapstack-labs/anyset/pkg/sqlgen"
)

func mustPlan(t *testing.T, req *query.Request) *core.Plan {
	t.Helper()
	plan, err := planner.Plan(req, testutil.CCTransactions(t))
	require.NoError(t, err)
	return plan
}

func TestBuild_GroupedAggregation(t *testing.T) {
	plan := mustPlan(t, &query.Request{
		TableName:    "cc_transactions",
		Select:       []query.SelectItem{{ColumnName: "category"}},
		Aggregations: []query.Aggregation{{ColumnName: "amt", Function: "SUM", Alias: "total"}},
	})

	stmt, err := sqlgen.Build(plan, postgres.Postgres)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "category" AS "category", SUM("amt") AS "total" FROM "cc_transactions" GROUP BY "category" ORDER BY "category" ASC LIMIT 100 OFFSET 0`,
		stmt.Select.SQL)
	assert.Empty(t, stmt.Select.Args)
	assert.False(t, stmt.SingleRow)
	assert.Equal(t,
		`SELECT COUNT(*) FROM (SELECT 1 AS "one" FROM "cc_transactions" GROUP BY "category") AS "grouped"`,
		stmt.Count.SQL)
}

func TestBuild_HierarchyExpansionAndRange(t *testing.T) {
	plan := mustPlan(t, &query.Request{
		TableName: "cc_transactions",
		Select:    []query.SelectItem{{ColumnName: "city"}},
		Filters: []query.Filter{
			query.CategoryFilter("state", "CA"),
			query.RangeFilter(core.FilterFact, "amt", query.Num(10), nil),
		},
		Pagination: &query.Pagination{Offset: 20, Limit: 10},
	})

	stmt, err := sqlgen.Build(plan, postgres.Postgres)
	require.NoError(t, err)

	where := `WHERE "amt" >= $1 AND "city" IN (SELECT DISTINCT "city" FROM "cc_transactions" WHERE "state" IN ($2))`
	assert.Equal(t,
		`SELECT "city" AS "city" FROM "cc_transactions" `+where+` ORDER BY "city" ASC LIMIT 10 OFFSET 20`,
		stmt.Select.SQL)
	assert.Equal(t, []any{10.0, "CA"}, stmt.Select.Args)

	assert.Equal(t, `SELECT COUNT(*) FROM "cc_transactions" `+where, stmt.Count.SQL)
	assert.Equal(t, []any{10.0, "CA"}, stmt.Count.Args)
}

func TestBuild_CustomAggregationIsSingleRow(t *testing.T) {
	plan := mustPlan(t, &query.Request{
		TableName:    "cc_transactions",
		Aggregations: []query.Aggregation{{Kind: query.AggregationKindCustom, Function: "fraud_rate", Alias: "fr"}},
		Filters:      []query.Filter{query.CategoryFilter("gender", "F", "M")},
	})

	stmt, err := sqlgen.Build(plan, duckdb.DuckDB)
	require.NoError(t, err)

	assert.True(t, stmt.SingleRow)
	assert.Empty(t, stmt.Count.SQL)
	assert.Equal(t,
		`SELECT (AVG(CASE WHEN is_fraud THEN 1.0 ELSE 0.0 END)) AS "fr" FROM "cc_transactions" WHERE "gender" IN (?, ?) ORDER BY "fr" ASC LIMIT 100 OFFSET 0`,
		stmt.Select.SQL)
	assert.Equal(t, []any{"F", "M"}, stmt.Select.Args)
}

func TestBuild_DateRangeWithBackticks(t *testing.T) {
	plan := mustPlan(t, &query.Request{
		TableName: "cc_transactions",
		Select:    []query.SelectItem{{ColumnName: "trans_num", Alias: "id"}},
		Filters: []query.Filter{
			query.RangeFilter(core.FilterDate, "trans_date", query.Text("2024-01-01"), query.Text("2024-01-31")),
		},
		OrderBy: []query.OrderItem{{ColumnName: "trans_date", Direction: "DESC"}},
	})

	stmt, err := sqlgen.Build(plan, databricks.Databricks)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT `trans_num` AS `id` FROM `cc_transactions` WHERE `trans_date` >= ? AND `trans_date` <= ? ORDER BY `cc_transactions`.`trans_date` DESC LIMIT 100 OFFSET 0",
		stmt.Select.SQL)
	assert.Equal(t, []any{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}, stmt.Select.Args)
}

func TestBuild_OrderByUsesOutputAlias(t *testing.T) {
	plan := mustPlan(t, &query.Request{
		TableName: "cc_transactions",
		Select: []query.SelectItem{
			{ColumnName: "city", Alias: "state"},
			{ColumnName: "state", Alias: "s"},
		},
	})

	stmt, err := sqlgen.Build(plan, postgres.Postgres)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "city" AS "state", "state" AS "s" FROM "cc_transactions" ORDER BY "state" ASC, "s" ASC LIMIT 100 OFFSET 0`,
		stmt.Select.SQL)
}

func TestBuild_MedianSpellings(t *testing.T) {
	plan := mustPlan(t, &query.Request{
		TableName:    "cc_transactions",
		Aggregations: []query.Aggregation{{ColumnName: "amt", Function: "MEDIAN", Alias: "m"}},
	})

	tests := []struct {
		d    *dialect.Dialect
		want string
	}{
		{postgres.Postgres, `PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY "amt") AS "m"`},
		{duckdb.DuckDB, `MEDIAN("amt") AS "m"`},
		{snowflake.Snowflake, `MEDIAN("amt") AS "m"`},
	}
	for _, tt := range tests {
		t.Run(tt.d.Name, func(t *testing.T) {
			stmt, err := sqlgen.Build(plan, tt.d)
			require.NoError(t, err)
			assert.Contains(t, stmt.Select.SQL, tt.want)
		})
	}

	_, err := sqlgen.Build(plan, sqlite.SQLite)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support MEDIAN")
}

func TestBuild_Errors(t *testing.T) {
	plan := &core.Plan{
		Table:   "cc_transactions",
		Outputs: []core.Output{{Alias: "fr", Custom: "fraud_rate"}},
		Limit:   10,
	}

	_, err := sqlgen.Build(plan, nil)
	require.ErrorIs(t, err, dialect.ErrDialectRequired)

	_, err = sqlgen.Build(plan, postgres.Postgres)
	require.ErrorIs(t, err, sqlgen.ErrNoCatalog)

	plan.Catalog = testutil.CCTransactions(t)
	plan.Outputs[0].Custom = "churn"
	_, err = sqlgen.Build(plan, postgres.Postgres)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"churn" is not defined`)
}

func TestFilterOptionQueries(t *testing.T) {
	state := core.ColumnRef{Table: "public.cc", Column: "state", Kind: core.KindCategory}
	city := core.ColumnRef{Table: "public.cc", Column: "city", Kind: core.KindCategory}

	assert.Equal(t,
		`SELECT DISTINCT "state" FROM "public"."cc" WHERE "state" IS NOT NULL ORDER BY "state"`,
		sqlgen.DistinctValues(postgres.Postgres, state).SQL)
	assert.Equal(t,
		`SELECT MIN("state"), MAX("state") FROM "public"."cc"`,
		sqlgen.MinMax(postgres.Postgres, state).SQL)
	assert.Equal(t,
		`SELECT DISTINCT "state", "city" FROM "public"."cc" WHERE "state" IS NOT NULL AND "city" IS NOT NULL ORDER BY "state", "city"`,
		sqlgen.EdgePairs(postgres.Postgres, core.HierarchyEdge{Parent: state, Child: city, Via: "public.cc"}).SQL)
}

func TestDialectsRegistered(t *testing.T) {
	for _, name := range []string{"postgres", "duckdb", "sqlite", "snowflake", "databricks"} {
		_, ok := dialect.Get(name)
		assert.True(t, ok, name)
	}
}
