package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLegalAggregations(t *testing.T) {
	tests := []struct {
		kind    ColumnKind
		allowed []AggregationFunction
		denied  []AggregationFunction
	}{
		{
			kind:    KindFact,
			allowed: []AggregationFunction{AggCount, AggCountDistinct, AggSum, AggAvg, AggMedian, AggMin, AggMax},
		},
		{
			kind:    KindCategory,
			allowed: []AggregationFunction{AggCount, AggCountDistinct},
			denied:  []AggregationFunction{AggSum, AggAvg, AggMedian, AggMin, AggMax},
		},
		{
			kind:    KindDate,
			allowed: []AggregationFunction{AggCount, AggCountDistinct},
			denied:  []AggregationFunction{AggSum, AggAvg},
		},
		{
			kind:    KindOther,
			allowed: []AggregationFunction{AggCount, AggCountDistinct},
			denied:  []AggregationFunction{AggMax},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.ElementsMatch(t, tt.allowed, LegalAggregations(tt.kind))
			for _, fn := range tt.allowed {
				assert.True(t, IsLegalAggregation(fn, tt.kind), "%s should be legal on %s", fn, tt.kind)
			}
			for _, fn := range tt.denied {
				assert.False(t, IsLegalAggregation(fn, tt.kind), "%s should be illegal on %s", fn, tt.kind)
			}
		})
	}
}

func TestLegalAggregations_ReturnsCopy(t *testing.T) {
	got := LegalAggregations(KindCategory)
	got[0] = AggSum
	assert.Equal(t, AggCount, LegalAggregations(KindCategory)[0])
}

func TestParseAggregationFunction(t *testing.T) {
	tests := []struct {
		in   string
		want AggregationFunction
		ok   bool
	}{
		{"sum", AggSum, true},
		{" AVG ", AggAvg, true},
		{"count_distinct", AggCountDistinct, true},
		{"COUNT DISTINCT", AggCountDistinct, true},
		{"median", AggMedian, true},
		{"stddev", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseAggregationFunction(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFilterKindFor(t *testing.T) {
	fk, ok := FilterKindFor(KindCategory)
	assert.True(t, ok)
	assert.Equal(t, FilterCategory, fk)

	fk, ok = FilterKindFor(KindDate)
	assert.True(t, ok)
	assert.Equal(t, FilterDate, fk)

	_, ok = FilterKindFor(KindOther)
	assert.False(t, ok, "other columns are not filterable")
}

func TestParseDirection(t *testing.T) {
	d, ok := ParseDirection("")
	assert.True(t, ok)
	assert.Equal(t, Asc, d)

	d, ok = ParseDirection("desc")
	assert.True(t, ok)
	assert.Equal(t, Desc, d)

	_, ok = ParseDirection("sideways")
	assert.False(t, ok)
}

func TestDefaultDataType(t *testing.T) {
	assert.Equal(t, TypeNumber, DefaultDataType(KindFact))
	assert.Equal(t, TypeDateTime, DefaultDataType(KindDate))
	assert.Equal(t, TypeString, DefaultDataType(KindCategory))
	assert.Equal(t, TypeString, DefaultDataType(KindOther))
}
