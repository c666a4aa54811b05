// Package memory provides an adapter that executes plans over rows held in
// process memory. It needs no database and is used for demos and as the
// reference backend in tests.
//
// Custom aggregations are backend SQL expressions and are not supported.
package memory

import (
	"cmp"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/leapstack-labs/anyset/pkg/adapter"
	"github.com/leapstack-labs/anyset/pkg/core"
)

// Row is one record keyed by column name.
type Row map[string]any

// ErrCustomAggregation is returned for plans with custom aggregations.
var ErrCustomAggregation = errors.New("custom aggregations are not supported by the memory adapter")

// Adapter implements adapter.Adapter over in-memory tables.
type Adapter struct {
	logger *slog.Logger

	mu     sync.RWMutex
	tables map[string][]Row
}

// New creates an empty memory adapter.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{logger: logger, tables: make(map[string][]Row)}
}

// DialectName returns "": plans are not rendered as SQL.
func (a *Adapter) DialectName() string {
	return ""
}

// Connect loads every *.csv file under cfg.Path as a table named after the
// file. An empty path starts with no tables.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	if cfg.Path == "" {
		return nil
	}
	files, err := filepath.Glob(filepath.Join(cfg.Path, "*.csv"))
	if err != nil {
		return fmt.Errorf("failed to list CSV files: %w", err)
	}
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		if err := a.LoadCSV(ctx, name, f); err != nil {
			return err
		}
	}
	a.logger.Debug("memory adapter ready", slog.String("path", cfg.Path), slog.Int("tables", len(files)))
	return nil
}

// Close drops all tables.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tables = make(map[string][]Row)
	return nil
}

// Load replaces the rows of a table.
func (a *Adapter) Load(table string, rows []Row) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tables[table] = slices.Clone(rows)
}

// LoadCSV replaces tableName with the records of a CSV file with a header
// row. Field types are inferred: numbers become float64, dates time.Time,
// true/false bool and empty fields nil.
func (a *Adapter) LoadCSV(_ context.Context, tableName string, filePath string) error {
	file, err := os.Open(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	headers, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV line %d: %w", len(rows)+2, err)
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			row[strings.TrimSpace(h)] = inferValue(record[i])
		}
		rows = append(rows, row)
	}

	a.Load(tableName, rows)
	a.logger.Debug("loaded csv", slog.String("table", tableName), slog.Int("rows", len(rows)))
	return nil
}

func (a *Adapter) rows(table string) ([]Row, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rows, ok := a.tables[table]
	if !ok {
		return nil, fmt.Errorf("table %q is not loaded", table)
	}
	return rows, nil
}

func (a *Adapter) fail(op string, err error) error {
	return &core.AdapterError{Adapter: "memory", Op: op, Err: err}
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, time.DateTime, time.DateOnly}

func inferValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return s
}

// key renders a value for set membership and grouping. Category filter
// values are strings, so values compare by their text.
func key(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// compare orders values: nil last, then numbers, times and text.
func compare(x, y any) int {
	switch {
	case x == nil && y == nil:
		return 0
	case x == nil:
		return 1
	case y == nil:
		return -1
	}
	if tx, ok := x.(time.Time); ok {
		if ty, ok := y.(time.Time); ok {
			return tx.Compare(ty)
		}
	}
	if fx, ok := toFloat(x); ok {
		if fy, ok := toFloat(y); ok {
			return cmp.Compare(fx, fy)
		}
	}
	return strings.Compare(key(x), key(y))
}

var (
	_ adapter.Adapter   = (*Adapter)(nil)
	_ adapter.CSVLoader = (*Adapter)(nil)
)
