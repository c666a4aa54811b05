package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/anyset/pkg/core"
	"github.com/leapstack-labs/anyset/pkg/dialect"
	"github.com/leapstack-labs/anyset/pkg/sqlgen"
)

// ErrNotConnected is returned by operations on an adapter before Connect.
var ErrNotConnected = errors.New("database connection not established")

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Execute and FilterOptions implementations. Plans are rendered with
// pkg/sqlgen for Dialect.
type BaseSQLAdapter struct {
	DB      *sql.DB
	Cfg     Config
	Logger  *slog.Logger
	Dialect *dialect.Dialect

	// Name labels errors and logs, usually the registered adapter name.
	Name string

	// ConvertArg, when set, rewrites bind arguments before they reach the
	// driver, for backends without a native type for some plan values.
	ConvertArg func(any) any
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		b.logger().Debug("closing database connection")
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string, args ...any) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	if _, err := b.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Execute runs the page query of plan and, unless the plan yields a single
// aggregate row, the count query.
func (b *BaseSQLAdapter) Execute(ctx context.Context, plan *core.Plan) (*core.ColumnarResult, error) {
	if b.DB == nil {
		return nil, b.fail("execute", ErrNotConnected)
	}
	stmt, err := sqlgen.Build(plan, b.Dialect)
	if err != nil {
		return nil, b.fail("render", err)
	}
	b.convertArgs(stmt.Select.Args)
	b.convertArgs(stmt.Count.Args)

	log := b.logger().With(slog.String("plan_id", plan.ID))
	log.Debug("executing plan", slog.String("sql", stmt.Select.SQL), slog.Int("args", len(stmt.Select.Args)))

	data, n, err := b.scanColumns(ctx, stmt.Select, len(plan.Outputs))
	if err != nil {
		return nil, b.fail("execute", err)
	}

	res := &core.ColumnarResult{
		Columns:             make([]core.ColumnData, len(plan.Outputs)),
		RowCountCurrentPage: n,
		RowCountTotal:       1,
	}
	for i, out := range plan.Outputs {
		res.Columns[i] = core.ColumnData{Alias: out.Alias, Data: data[i]}
	}

	if !stmt.SingleRow {
		log.Debug("counting plan rows", slog.String("sql", stmt.Count.SQL))
		var total int64
		if err := b.DB.QueryRowContext(ctx, stmt.Count.SQL, stmt.Count.Args...).Scan(&total); err != nil {
			return nil, b.fail("count", err)
		}
		res.RowCountTotal = int(total)
	}
	return res, nil
}

// FilterOptions computes distinct values for category columns, min/max for
// fact and date columns and the nested value tree of every hierarchy.
func (b *BaseSQLAdapter) FilterOptions(ctx context.Context, req *core.FilterOptionsRequest) ([]core.FilterOption, error) {
	if b.DB == nil {
		return nil, b.fail("filter_options", ErrNotConnected)
	}

	opts := make([]core.FilterOption, 0, len(req.Columns)+len(req.Hierarchies))
	for _, col := range req.Columns {
		opt := core.FilterOption{Name: col.Ref.Column, Table: col.Ref.Table, Column: col.Ref.Column}
		if col.Ref.Kind == core.KindCategory {
			values, err := b.distinct(ctx, col.Ref)
			if err != nil {
				return nil, b.fail("filter_options", err)
			}
			opt.Kind, opt.Values = core.OptionCategory, core.CategoryOptions(values)
		} else {
			lo, hi, err := b.minMax(ctx, col.Ref)
			if err != nil {
				return nil, b.fail("filter_options", err)
			}
			opt.Kind, opt.Values = core.OptionMinMax, core.MinMaxOptions(lo, hi)
		}
		opts = append(opts, opt)
	}

	for _, h := range req.Hierarchies {
		edges := make([][]core.ValuePair, len(h.Edges))
		for i, e := range h.Edges {
			pairs, err := b.edgePairs(ctx, e)
			if err != nil {
				return nil, b.fail("filter_options", fmt.Errorf("hierarchy %s: %w", h.Name, err))
			}
			edges[i] = pairs
		}
		opts = append(opts, core.FilterOption{
			Kind:   core.OptionHierarchy,
			Name:   h.Name,
			Values: core.BuildHierarchyOptions(edges),
		})
	}
	return opts, nil
}

// scanColumns runs q and returns its rows transposed into width columns.
func (b *BaseSQLAdapter) scanColumns(ctx context.Context, q sqlgen.Query, width int) ([][]any, int, error) {
	rows, err := b.DB.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, 0, err
	}
	if len(cols) != width {
		return nil, 0, fmt.Errorf("%w: query returned %d columns, plan has %d", core.ErrContractViolation, len(cols), width)
	}

	data := make([][]any, width)
	for i := range data {
		data[i] = []any{}
	}
	values := make([]any, width)
	ptrs := make([]any, width)
	for i := range values {
		ptrs[i] = &values[i]
	}

	n := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, 0, fmt.Errorf("failed to scan row %d: %w", n, err)
		}
		for i, v := range values {
			data[i] = append(data[i], normalizeValue(v))
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating rows: %w", err)
	}
	return data, n, nil
}

func (b *BaseSQLAdapter) distinct(ctx context.Context, col core.ColumnRef) ([]any, error) {
	data, _, err := b.scanColumns(ctx, sqlgen.DistinctValues(b.Dialect, col), 1)
	if err != nil {
		return nil, fmt.Errorf("distinct values of %s: %w", col, err)
	}
	return data[0], nil
}

func (b *BaseSQLAdapter) minMax(ctx context.Context, col core.ColumnRef) (lo, hi any, err error) {
	q := sqlgen.MinMax(b.Dialect, col)
	if err := b.DB.QueryRowContext(ctx, q.SQL, q.Args...).Scan(&lo, &hi); err != nil {
		return nil, nil, fmt.Errorf("range of %s: %w", col, err)
	}
	return normalizeValue(lo), normalizeValue(hi), nil
}

func (b *BaseSQLAdapter) edgePairs(ctx context.Context, e core.HierarchyEdge) ([]core.ValuePair, error) {
	data, n, err := b.scanColumns(ctx, sqlgen.EdgePairs(b.Dialect, e), 2)
	if err != nil {
		return nil, fmt.Errorf("edge %s -> %s: %w", e.Parent, e.Child, err)
	}
	pairs := make([]core.ValuePair, n)
	for i := range pairs {
		pairs[i] = core.ValuePair{Parent: data[0][i], Child: data[1][i]}
	}
	return pairs, nil
}

func (b *BaseSQLAdapter) convertArgs(args []any) {
	if b.ConvertArg == nil {
		return
	}
	for i, a := range args {
		args[i] = b.ConvertArg(a)
	}
}

func (b *BaseSQLAdapter) fail(op string, err error) error {
	return &core.AdapterError{Adapter: b.Name, Op: op, Err: err}
}

func (b *BaseSQLAdapter) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

// normalizeValue converts driver byte slices to strings so results encode
// as JSON text rather than base64.
func normalizeValue(v any) any {
	if bs, ok := v.([]byte); ok {
		return string(bs)
	}
	return v
}
