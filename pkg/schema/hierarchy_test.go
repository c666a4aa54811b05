package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/anyset/pkg/core"
)

func cat(table, column string) core.ColumnRef {
	return core.ColumnRef{Table: table, Column: column, Kind: core.KindCategory}
}

func TestArena_Link(t *testing.T) {
	a := newArena()
	require.NoError(t, a.link(cat("t", "city"), cat("t", "state")))
	require.NoError(t, a.link(cat("t", "city"), cat("t", "state")), "relinking the same parent is a no-op")

	err := a.link(cat("t", "city"), cat("t", "country"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicting parents")

	err = a.link(cat("t", "x"), cat("t", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "its own parent")

	p, ok := a.parentOf(refKey("t", "city"))
	require.True(t, ok)
	assert.Equal(t, "state", p.Column)

	_, ok = a.parentOf(refKey("t", "state"))
	assert.False(t, ok)
}

func TestArena_Cycles(t *testing.T) {
	a := newArena()
	require.NoError(t, a.link(cat("t", "a"), cat("t", "b")))
	require.NoError(t, a.link(cat("t", "b"), cat("t", "c")))
	require.NoError(t, a.link(cat("t", "c"), cat("t", "a")))
	require.NoError(t, a.link(cat("t", "d"), cat("t", "a")))

	cycles := a.cycles()
	require.Len(t, cycles, 1)
	assert.Len(t, cycles[0], 3)
	assert.Equal(t, "t.a -> t.b -> t.c -> t.a", formatCycle(cycles[0]))
}

func TestArena_Chains(t *testing.T) {
	a := newArena()
	require.NoError(t, a.link(cat("t", "state"), cat("t", "region")))
	require.NoError(t, a.link(cat("t", "city"), cat("t", "state")))
	require.NoError(t, a.link(cat("t", "county"), cat("t", "state")))
	a.add(cat("t", "lonely"))

	chains := a.chains()
	require.Len(t, chains, 2)
	for _, c := range chains {
		assert.Equal(t, "region", c[0].Column)
		assert.Len(t, c, 3)
	}
}

func TestSplitRef(t *testing.T) {
	table, column := splitRef("state", "cc")
	assert.Equal(t, "cc", table)
	assert.Equal(t, "state", column)

	table, column = splitRef("public.cc.state", "")
	assert.Equal(t, "public.cc", table)
	assert.Equal(t, "state", column)
}

func TestParseColumnType(t *testing.T) {
	tests := []struct {
		in   string
		kind core.ColumnKind
		dt   core.DataType
		ok   bool
	}{
		{"Category", core.KindCategory, "", true},
		{"DateTime", core.KindDate, core.TypeDateTime, true},
		{"numeric_fact", core.KindFact, core.TypeNumber, true},
		{"boolean", core.KindCategory, core.TypeBoolean, true},
		{"text_other", core.KindOther, "", true},
		{"blob", "", "", false},
	}
	for _, tt := range tests {
		kind, dt, ok := parseColumnType(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.kind, kind, tt.in)
		assert.Equal(t, tt.dt, dt, tt.in)
	}
}
