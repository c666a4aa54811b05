package testutil

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/leapstack-labs/anyset/pkg/schema"
)

// CCTransactionsYAML is the credit card transactions dataset used across
// tests. state and city form the geo hierarchy.
const CCTransactionsYAML = `kind: Dataset
name: Credit Card Transactions
description: Card transactions with merchant and location attributes
path_prefix: cc
version: 1
adapter: memory
dataset_tables:
  cc_transactions:
    columns:
      trans_num:
        column_type: other
      trans_date:
        column_type: date
      state:
        column_type: category
      city:
        column_type: category
      category:
        column_type: category
      merchant:
        column_type: category
      gender:
        column_type: category
      is_fraud:
        column_type: boolean
      amt:
        column_type: fact
      city_pop:
        column_type: fact
        column_data_type: number
category_hierarchies:
  geo:
    - [cc_transactions, state]
    - [cc_transactions, city]
custom_aggregation_functions:
  fraud_rate: "AVG(CASE WHEN is_fraud THEN 1.0 ELSE 0.0 END)"
`

// CCTransactions loads the credit card transactions registry.
func CCTransactions(t testing.TB) *schema.Registry {
	t.Helper()
	def, err := schema.Parse([]byte(CCTransactionsYAML))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	reg, err := schema.Load(def)
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	return reg
}

// CCTransactionRowCount is the number of rows CCTransactionRows returns.
const CCTransactionRowCount = 42

var (
	fixtureCities = []struct{ state, city string }{
		{"CA", "Los Angeles"}, {"CA", "Oakland"}, {"CA", "Fresno"},
		{"NY", "New York"}, {"NY", "Albany"},
		{"TX", "Austin"}, {"TX", "Houston"},
	}
	fixtureCategories = []string{"food", "gas", "travel", "shopping"}
)

// CCTransactionRows returns deterministic rows for cc_transactions keyed by
// column name.
func CCTransactionRows() []map[string]any {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]map[string]any, CCTransactionRowCount)
	for i := range rows {
		loc := fixtureCities[i%len(fixtureCities)]
		gender := "F"
		if i%2 == 1 {
			gender = "M"
		}
		rows[i] = map[string]any{
			"trans_num":  fmt.Sprintf("t%03d", i),
			"trans_date": start.AddDate(0, 0, i),
			"state":      loc.state,
			"city":       loc.city,
			"category":   fixtureCategories[i%len(fixtureCategories)],
			"merchant":   fmt.Sprintf("merchant_%d", i%5),
			"gender":     gender,
			"is_fraud":   i%9 == 0,
			"amt":        float64(10+(i*37)%200) + 0.5,
			"city_pop":   float64(1000 * (1 + i%len(fixtureCities))),
		}
	}
	return rows
}

// CCTransactionColumns is the column order of the CSV fixture.
var CCTransactionColumns = []string{
	"trans_num", "trans_date", "state", "city", "category",
	"merchant", "gender", "is_fraud", "amt", "city_pop",
}

// WriteCCTransactionsCSV writes CCTransactionRows as cc_transactions.csv into
// dir and returns its path. Dates are written as YYYY-MM-DD.
func WriteCCTransactionsCSV(t testing.TB, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "cc_transactions.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture csv: %v", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(CCTransactionColumns); err != nil {
		t.Fatalf("write fixture csv: %v", err)
	}
	for _, row := range CCTransactionRows() {
		record := make([]string, len(CCTransactionColumns))
		for i, col := range CCTransactionColumns {
			switch v := row[col].(type) {
			case time.Time:
				record[i] = v.Format(time.DateOnly)
			case float64:
				record[i] = strconv.FormatFloat(v, 'f', -1, 64)
			default:
				record[i] = fmt.Sprint(v)
			}
		}
		if err := w.Write(record); err != nil {
			t.Fatalf("write fixture csv: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush fixture csv: %v", err)
	}
	return path
}
