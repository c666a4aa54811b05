package duckdb

import (
	"github.com/leapstack-labs/anyset/pkg/dialect"
)

func init() {
	dialect.Register(DuckDB)
}

// DuckDB is the DuckDB dialect.
var DuckDB = dialect.New(Config).Build()
