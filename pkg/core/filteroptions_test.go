package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryOptions(t *testing.T) {
	got := CategoryOptions([]any{"travel", nil, "food", []byte("gas")})
	assert.Equal(t, []OptionValue{
		{Label: "food", Value: "food"},
		{Label: "gas", Value: []byte("gas")},
		{Label: "travel", Value: "travel"},
	}, got)
}

func TestBuildHierarchyOptions(t *testing.T) {
	// region -> state -> city
	edges := [][]ValuePair{
		{
			{Parent: "west", Child: "CA"},
			{Parent: "west", Child: "OR"},
			{Parent: "east", Child: "NY"},
		},
		{
			{Parent: "CA", Child: "Oakland"},
			{Parent: "CA", Child: "Fresno"},
			{Parent: "CA", Child: "Fresno"},
			{Parent: "NY", Child: "Albany"},
			{Parent: nil, Child: "Nowhere"},
		},
	}

	tree := BuildHierarchyOptions(edges)
	require.Len(t, tree, 2)
	assert.Equal(t, "east", tree[0].Label)
	assert.Equal(t, "west", tree[1].Label)

	west := tree[1]
	require.Len(t, west.Children, 2)
	assert.Equal(t, "CA", west.Children[0].Label)
	assert.Equal(t, "OR", west.Children[1].Label)
	assert.Empty(t, west.Children[1].Children, "leaf without data has no children")

	ca := west.Children[0]
	require.Len(t, ca.Children, 2, "duplicates collapse")
	assert.Equal(t, "Fresno", ca.Children[0].Label)
	assert.Equal(t, "Oakland", ca.Children[1].Label)
}

func TestBuildHierarchyOptions_Empty(t *testing.T) {
	assert.Empty(t, BuildHierarchyOptions(nil))
}

func TestMinMaxOptions(t *testing.T) {
	got := MinMaxOptions(1.5, 99.0)
	require.Len(t, got, 2)
	assert.Equal(t, "min", got[0].Label)
	assert.Equal(t, 99.0, got[1].Value)
}
