package dialect

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/anyset/pkg/core"
)

func TestNormalizationStrategies(t *testing.T) {
	tests := []struct {
		name  string
		norm  core.NormalizationStrategy
		input string
		want  string
	}{
		{"lowercase", core.NormLowercase, "FooBar", "foobar"},
		{"uppercase", core.NormUppercase, "FooBar", "FOOBAR"},
		{"case sensitive", core.NormCaseSensitive, "FooBar", "FooBar"},
		{"case insensitive", core.NormCaseInsensitive, "FooBar", "foobar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDialect("test").
				Identifiers(`"`, `"`, `""`, tt.norm).
				Build()

			assert.Equal(t, tt.want, d.NormalizeName(tt.input))
		})
	}
}

func TestNormalizeName_NFC(t *testing.T) {
	d := NewDialect("test").Identifiers(`"`, `"`, `""`, core.NormCaseSensitive).Build()

	// "e" followed by a combining acute accent composes to a single rune.
	assert.Equal(t, "caf\u00e9", d.NormalizeName("cafe\u0301"))
	assert.Equal(t, `"caf`+"\u00e9"+`"`, d.QuoteIdentifier("cafe\u0301"))
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		quote    string
		quoteEnd string
		escape   string
		input    string
		want     string
	}{
		{"ansi", `"`, `"`, `""`, "amt", `"amt"`},
		{"ansi escape", `"`, `"`, `""`, `we"ird`, `"we""ird"`},
		{"backtick", "`", "`", "``", "a`b", "`a``b`"},
		{"brackets", "[", "]", "]]", "a]b", "[a]]b]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDialect("test").Identifiers(tt.quote, tt.quoteEnd, tt.escape, core.NormLowercase).Build()
			assert.Equal(t, tt.want, d.QuoteIdentifier(tt.input))
		})
	}

	d := NewDialect("test").WithReservedWords("ORDER", "user").Build()
	assert.Equal(t, `"public"."cc"`, d.QuoteQualified("public.cc"))
	assert.Equal(t, `"order"`, d.QuoteIdentifierIfNeeded("order"))
	assert.Equal(t, `"USER"`, d.QuoteIdentifierIfNeeded("USER"))
	assert.Equal(t, "amt", d.QuoteIdentifierIfNeeded("amt"))
}

func TestFormatPlaceholder(t *testing.T) {
	q := NewDialect("q").Build()
	assert.Equal(t, "?", q.FormatPlaceholder(3))

	dollar := NewDialect("d").PlaceholderStyle(core.PlaceholderDollar).Build()
	assert.Equal(t, "$1", dollar.FormatPlaceholder(1))
	assert.Equal(t, "$12", dollar.FormatPlaceholder(12))
}

func TestAggregate(t *testing.T) {
	d := NewDialect("test").
		Aggregate(core.AggMedian, "MEDIAN(%s)").
		WithoutAggregate(core.AggCountDistinct).
		Build()

	got, err := d.Aggregate(core.AggMedian, `"amt"`)
	require.NoError(t, err)
	assert.Equal(t, `MEDIAN("amt")`, got)

	got, err = d.Aggregate(core.AggSum, `"amt"`)
	require.NoError(t, err)
	assert.Equal(t, `SUM("amt")`, got)

	_, err = d.Aggregate(core.AggCountDistinct, `"amt"`)
	require.Error(t, err)
	assert.False(t, d.SupportsAggregate(core.AggCountDistinct))
}

func TestNew_FromConfig(t *testing.T) {
	cfg := &core.DialectConfig{
		Name:          "cfg",
		DefaultSchema: "main",
		Placeholder:   core.PlaceholderDollar,
		Identifiers:   core.IdentifierConfig{Quote: "`", QuoteEnd: "`", Escape: "``", Normalization: core.NormUppercase},
		Aggregates:    map[core.AggregationFunction]string{core.AggMedian: "APPROX_MEDIAN(%s)"},
		ReservedWords: []string{"select"},
	}
	d := New(cfg).Build()

	assert.Equal(t, "cfg", d.GetName())
	assert.Equal(t, "main", d.DefaultSchema)
	assert.True(t, d.IsReservedWord("SELECT"))
	got, err := d.Aggregate(core.AggMedian, "x")
	require.NoError(t, err)
	assert.Equal(t, "APPROX_MEDIAN(x)", got)
	assert.True(t, d.SupportsAggregate(core.AggCount), "standard spellings fill the gaps")

	round := d.Config()
	assert.Equal(t, cfg.Name, round.Name)
	assert.Equal(t, "APPROX_MEDIAN(%s)", round.Aggregates[core.AggMedian])
}

var seq atomic.Int64

// uniq keeps registrations distinct across -count runs.
func uniq(name string) string {
	return fmt.Sprintf("%s_%d", name, seq.Add(1))
}

func TestRegistry(t *testing.T) {
	name, alias := uniq("Registry_Test"), uniq("reg_alias")
	d := NewDialect(name).Build()
	Register(d, alias)

	got, ok := Get(strings.ToLower(name))
	require.True(t, ok)
	assert.Same(t, d, got)

	got, ok = Get(strings.ToUpper(alias))
	require.True(t, ok)
	assert.Same(t, d, got)

	assert.Contains(t, List(), strings.ToLower(name))
	assert.NotContains(t, List(), alias, "aliases are not listed")

	_, ok = Get("nope")
	assert.False(t, ok)
}

func TestRegistry_Reregister(t *testing.T) {
	d := NewDialect(uniq("reregister")).Build()
	Register(d)
	assert.NotPanics(t, func() { Register(d) }, "same dialect again is harmless")

	other := NewDialect(d.Name).Build()
	assert.Panics(t, func() { Register(other) })
}

func TestLookup(t *testing.T) {
	name := uniq("lookup_test")
	Register(NewDialect(name).Build())

	d, err := Lookup(strings.ToUpper(name))
	require.NoError(t, err)
	assert.Equal(t, name, d.Name)

	_, err = Lookup("")
	assert.ErrorIs(t, err, ErrDialectRequired)

	_, err = Lookup("oracle")
	var unknown *UnknownDialectError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "oracle", unknown.Name)
	assert.Contains(t, unknown.Available, name)
	assert.Contains(t, err.Error(), "unknown dialect")
}
