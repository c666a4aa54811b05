// Package postgres defines the PostgreSQL dialect. It carries no driver;
// pkg/adapters/postgres pairs it with pgx.
package postgres

import "github.com/leapstack-labs/anyset/pkg/core"

// Config is the PostgreSQL dialect configuration.
var Config = &core.DialectConfig{
	Name:          "postgres",
	DefaultSchema: "public",
	Placeholder:   core.PlaceholderDollar,
	Identifiers: core.IdentifierConfig{
		Quote:    `"`,
		QuoteEnd: `"`,
		Escape:   `""`,
		// Unquoted names fold to lower case.
		Normalization: core.NormLowercase,
	},
	Aggregates: map[core.AggregationFunction]string{
		core.AggMedian: "PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY %s)",
	},
	ReservedWords: reserved,
}

// reserved lists the keywords PostgreSQL rejects as bare column or table
// names (pg_get_keywords catcode 'R'), plus the few non-reserved ones that
// show up as dataset column names often enough to trip users.
var reserved = []string{
	"all", "analyse", "analyze", "and", "any", "array", "as", "asc",
	"asymmetric", "both", "case", "cast", "check", "collate", "column",
	"constraint", "create", "current_catalog", "current_date", "current_role",
	"current_time", "current_timestamp", "current_user", "default",
	"deferrable", "desc", "distinct", "do", "else", "end", "except", "false",
	"fetch", "for", "foreign", "from", "grant", "group", "having", "in",
	"initially", "intersect", "into", "lateral", "leading", "limit",
	"localtime", "localtimestamp", "not", "null", "offset", "on", "only", "or",
	"order", "placing", "primary", "references", "returning", "select",
	"session_user", "some", "symmetric", "table", "then", "to", "trailing",
	"true", "union", "unique", "user", "using", "variadic", "when", "where",
	"window", "with",
	// Non-reserved but common in datasets.
	"year", "month", "day", "value", "name", "type", "level",
}
