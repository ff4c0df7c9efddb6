package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diamond() *Graph {
	// 1 -> 2 -> 4, 1 -> 3 -> 4
	return New(
		[]string{"1", "2", "3", "4"},
		[]Edge{
			{"1", "2"}, {"1", "3"}, {"2", "4"}, {"3", "4"},
		},
		map[string]Entity{
			"1": {ClassType: "Loader"},
			"4": {ClassType: "Save", Title: "Final"},
		},
	)
}

func TestNewDropsForeignAndDuplicateEdges(t *testing.T) {
	g := New(
		[]string{"1", "2"},
		[]Edge{{"1", "2"}, {"1", "2"}, {"1", "99"}, {"99", "2"}},
		map[string]Entity{"99": {ClassType: "ghost"}},
	)
	assert.Equal(t, []Edge{{"1", "2"}}, g.Edges())
	_, ok := g.Entity("99")
	assert.False(t, ok)
}

func TestDepsAndRDeps(t *testing.T) {
	g := diamond()
	assert.Equal(t, []string{"2", "3"}, g.Deps("4"))
	assert.Empty(t, g.Deps("1"))
	assert.Equal(t, []string{"2", "3"}, g.RDeps("1"))
	assert.Empty(t, g.RDeps("4"))
}

func TestAncestorsAndDescendants(t *testing.T) {
	g := diamond()
	assert.Equal(t, []string{"1", "2", "3"}, g.Ancestors("4"))
	assert.Equal(t, []string{"2", "3", "4"}, g.Descendants("1"))
	assert.Empty(t, g.Ancestors("1"))
	assert.Empty(t, g.Descendants("4"))
}

func TestToposort(t *testing.T) {
	// Declared sink-first to prove the sort reorders.
	g := New(
		[]string{"4", "3", "2", "1"},
		[]Edge{{"1", "2"}, {"1", "3"}, {"2", "4"}, {"3", "4"}},
		nil,
	)
	order := g.Toposort()

	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	for _, e := range g.Edges() {
		assert.Less(t, pos[e.Src], pos[e.Dst], "%s must come before %s", e.Src, e.Dst)
	}
}

func TestToposortCycleFallsBackToDeclarationOrder(t *testing.T) {
	g := New(
		[]string{"A", "B"},
		[]Edge{{"A", "B"}, {"B", "A"}},
		nil,
	)
	assert.Equal(t, []string{"A", "B"}, g.Toposort())
}

func TestToposortedReordersGraph(t *testing.T) {
	g := New(
		[]string{"4", "3", "2", "1"},
		[]Edge{{"1", "2"}, {"1", "3"}, {"2", "4"}, {"3", "4"}},
		map[string]Entity{"1": {ClassType: "Loader"}},
	)
	sorted := g.Toposorted()

	assert.Equal(t, g.Toposort(), sorted.Nodes())
	assert.ElementsMatch(t, g.Edges(), sorted.Edges())
	ent, ok := sorted.Entity("1")
	require.True(t, ok, "entities survive the reorder")
	assert.Equal(t, "Loader", ent.ClassType)
	assert.Equal(t, []string{"4", "3", "2", "1"}, g.Nodes(), "the receiver is untouched")
}
