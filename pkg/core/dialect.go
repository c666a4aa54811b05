package core

// DialectConfig holds the static configuration for a SQL dialect.
// This is pure data; runtime behavior lives in pkg/dialect.Dialect.
type DialectConfig struct {
	// Name is the dialect identifier (e.g., "duckdb", "postgres")
	Name string

	// Identifiers defines quoting and normalization rules
	Identifiers IdentifierConfig

	// DefaultSchema is the default schema name ("main" for DuckDB, "public" for Postgres)
	DefaultSchema string

	// Placeholder defines how query parameters are formatted
	Placeholder PlaceholderStyle

	// Aggregates maps built-in aggregation functions to the dialect's
	// function template. %s is replaced by the quoted column.
	Aggregates map[AggregationFunction]string

	// ReservedWords need quoting when used as identifiers
	ReservedWords []string
}

// NormalizationStrategy defines how unquoted identifiers are normalized.
type NormalizationStrategy int

const (
	// NormLowercase normalizes unquoted identifiers to lowercase (default SQL behavior).
	NormLowercase NormalizationStrategy = iota
	// NormUppercase normalizes unquoted identifiers to uppercase (Snowflake, Oracle).
	NormUppercase
	// NormCaseSensitive preserves identifier case exactly (MySQL, ClickHouse).
	NormCaseSensitive
	// NormCaseInsensitive normalizes to lowercase for comparison (BigQuery, Hive, DuckDB).
	NormCaseInsensitive
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, MySQL, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
)

// IdentifierConfig defines how identifiers are quoted and normalized.
type IdentifierConfig struct {
	Quote         string                // Quote character: ", `, [
	QuoteEnd      string                // End quote character (usually same as Quote, ] for [)
	Escape        string                // Escape sequence: "", ``, ]]
	Normalization NormalizationStrategy // How to normalize unquoted identifiers
}

// StandardAggregates is the ANSI rendering of the built-in aggregations.
// MEDIAN has no ANSI spelling; dialects override it.
var StandardAggregates = map[AggregationFunction]string{
	AggCount:         "COUNT(%s)",
	AggCountDistinct: "COUNT(DISTINCT %s)",
	AggSum:           "SUM(%s)",
	AggAvg:           "AVG(%s)",
	AggMedian:        "PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY %s)",
	AggMin:           "MIN(%s)",
	AggMax:           "MAX(%s)",
}
