// Package snowflake provides the Snowflake SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package snowflake

import "github.com/leapstack-labs/anyset/pkg/core"

// Config is the Snowflake SQL dialect configuration.
var Config = &core.DialectConfig{
	Name:          "snowflake",
	DefaultSchema: "PUBLIC",
	Placeholder:   core.PlaceholderQuestion,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormUppercase, // Snowflake normalizes to uppercase
	},
	Aggregates: map[core.AggregationFunction]string{
		core.AggMedian: "MEDIAN(%s)",
	},
	ReservedWords: snowflakeReservedWords,
}

// snowflakeReservedWords are the ANSI and Snowflake reserved keywords that
// cannot be used as unquoted identifiers.
var snowflakeReservedWords = []string{
	"account", "all", "alter", "and", "any", "as", "between", "by", "case",
	"cast", "check", "column", "connect", "connection", "constraint", "create",
	"cross", "current", "current_date", "current_time", "current_timestamp",
	"current_user", "database", "delete", "distinct", "drop", "else", "exists",
	"false", "following", "for", "from", "full", "grant", "group", "gscluster",
	"having", "ilike", "in", "increment", "inner", "insert", "intersect",
	"into", "is", "issue", "join", "lateral", "left", "like", "localtime",
	"localtimestamp", "minus", "natural", "not", "null", "of", "on", "or",
	"order", "organization", "qualify", "regexp", "revoke", "right", "rlike",
	"row", "rows", "sample", "schema", "select", "set", "some", "start",
	"table", "tablesample", "then", "to", "trigger", "true", "try_cast",
	"union", "unique", "update", "using", "values", "view", "when", "whenever",
	"where", "with",
}
