// Package dialect provides SQL dialect definitions for query generation.
//
// A Dialect knows how a backend quotes and normalizes identifiers, how it
// spells query parameters and how it renders the built-in aggregation
// functions. Concrete dialects are registered from pkg/dialects/*/ packages.
package dialect

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/leapstack-labs/anyset/pkg/core"
)

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name        string
	Identifiers core.IdentifierConfig

	// Database-specific settings
	DefaultSchema string                // Default schema name ("main" for DuckDB, "public" for Postgres)
	Placeholder   core.PlaceholderStyle // How to format query parameters

	aggregates    map[core.AggregationFunction]string
	reservedWords map[string]struct{} // All keywords that need quoting as identifiers
}

// Config returns the pure data configuration for this dialect.
func (d *Dialect) Config() *core.DialectConfig {
	reserved := make([]string, 0, len(d.reservedWords))
	for w := range d.reservedWords {
		reserved = append(reserved, w)
	}
	return &core.DialectConfig{
		Name:          d.Name,
		Identifiers:   d.Identifiers,
		DefaultSchema: d.DefaultSchema,
		Placeholder:   d.Placeholder,
		Aggregates:    maps.Clone(d.aggregates),
		ReservedWords: reserved,
	}
}

// GetName returns the dialect name.
func (d *Dialect) GetName() string {
	return d.Name
}

// NormalizeName normalizes an identifier according to dialect rules.
// Identifiers are first brought to Unicode NFC so visually equal names
// compare equal.
func (d *Dialect) NormalizeName(name string) string {
	name = norm.NFC.String(name)
	switch d.Identifiers.Normalization {
	case core.NormUppercase:
		return strings.ToUpper(name)
	case core.NormLowercase, core.NormCaseInsensitive:
		return strings.ToLower(name)
	default: // NormCaseSensitive
		return name
	}
}

// FormatPlaceholder returns a placeholder for the given parameter index (1-based).
// Returns "?" for PlaceholderQuestion style, "$1", "$2" etc. for PlaceholderDollar style.
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case core.PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	default: // PlaceholderQuestion
		return "?"
	}
}

// IsReservedWord returns true if the word needs quoting when used as an identifier.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reservedWords[strings.ToLower(norm.NFC.String(word))]
	return ok
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
// Schema names are taken from the registry, which only admits plain
// identifiers, so quoting always succeeds.
func (d *Dialect) QuoteIdentifier(name string) string {
	// Escape any existing quote end characters in the name (e.g., ] -> ]])
	escaped := strings.ReplaceAll(norm.NFC.String(name), d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// QuoteIdentifierIfNeeded quotes an identifier only if it's a reserved word.
func (d *Dialect) QuoteIdentifierIfNeeded(name string) string {
	if d.IsReservedWord(name) {
		return d.QuoteIdentifier(name)
	}
	return name
}

// QuoteQualified quotes every part of a dotted name such as schema.table.
func (d *Dialect) QuoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// Aggregate renders a built-in aggregation over expr. It fails when the
// dialect has no spelling for the function.
func (d *Dialect) Aggregate(fn core.AggregationFunction, expr string) (string, error) {
	tmpl, ok := d.aggregates[fn]
	if !ok {
		return "", fmt.Errorf("dialect %s does not support %s", d.Name, fn)
	}
	return fmt.Sprintf(tmpl, expr), nil
}

// SupportsAggregate reports whether the dialect can render fn.
func (d *Dialect) SupportsAggregate(fn core.AggregationFunction) bool {
	_, ok := d.aggregates[fn]
	return ok
}

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// NewDialect creates a new dialect builder with the given name, ANSI
// quoting and the standard aggregate spellings.
func NewDialect(name string) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name: name,
			Identifiers: core.IdentifierConfig{
				Quote:         `"`,
				QuoteEnd:      `"`,
				Escape:        `""`,
				Normalization: core.NormLowercase,
			},
			aggregates:    maps.Clone(core.StandardAggregates),
			reservedWords: make(map[string]struct{}),
		},
	}
}

// New creates a dialect builder from a DialectConfig. Aggregates missing
// from the config fall back to the standard spellings.
func New(cfg *core.DialectConfig) *Builder {
	b := &Builder{
		dialect: &Dialect{
			Name:          cfg.Name,
			Identifiers:   cfg.Identifiers,
			DefaultSchema: cfg.DefaultSchema,
			Placeholder:   cfg.Placeholder,
			aggregates:    maps.Clone(core.StandardAggregates),
			reservedWords: make(map[string]struct{}),
		},
	}
	maps.Copy(b.dialect.aggregates, cfg.Aggregates)
	return b.WithReservedWords(cfg.ReservedWords...)
}

// Identifiers configures identifier quoting and normalization.
func (b *Builder) Identifiers(quote, quoteEnd, escape string, normalization core.NormalizationStrategy) *Builder {
	b.dialect.Identifiers = core.IdentifierConfig{
		Quote:         quote,
		QuoteEnd:      quoteEnd,
		Escape:        escape,
		Normalization: normalization,
	}
	return b
}

// DefaultSchema sets the default schema name.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.dialect.DefaultSchema = schema
	return b
}

// PlaceholderStyle sets how query parameters are formatted.
func (b *Builder) PlaceholderStyle(style core.PlaceholderStyle) *Builder {
	b.dialect.Placeholder = style
	return b
}

// Aggregate overrides the template of a built-in aggregation. %s stands for
// the quoted column.
func (b *Builder) Aggregate(fn core.AggregationFunction, tmpl string) *Builder {
	b.dialect.aggregates[fn] = tmpl
	return b
}

// WithoutAggregate removes a function the backend cannot compute.
func (b *Builder) WithoutAggregate(fn core.AggregationFunction) *Builder {
	delete(b.dialect.aggregates, fn)
	return b
}

// WithReservedWords registers words that need quoting when used as identifiers.
func (b *Builder) WithReservedWords(words ...string) *Builder {
	for _, w := range words {
		b.dialect.reservedWords[strings.ToLower(w)] = struct{}{}
	}
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
