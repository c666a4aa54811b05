package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/anyset/pkg/core"
)

// arena stores hierarchy nodes in a flat slice. Parent and child links are
// slice indices.
type arena struct {
	nodes []arenaNode
	index map[string]int
}

type arenaNode struct {
	ref      core.ColumnRef
	parent   int
	children []int
}

func newArena() *arena {
	return &arena{index: make(map[string]int)}
}

func (a *arena) add(ref core.ColumnRef) int {
	key := refKey(ref.Table, ref.Column)
	if i, ok := a.index[key]; ok {
		return i
	}
	a.nodes = append(a.nodes, arenaNode{ref: ref, parent: -1})
	a.index[key] = len(a.nodes) - 1
	return len(a.nodes) - 1
}

// link records parent as the parent of child. A node has at most one parent.
func (a *arena) link(child, parent core.ColumnRef) error {
	c, p := a.add(child), a.add(parent)
	if c == p {
		return fmt.Errorf("%s cannot be its own parent", child)
	}
	switch existing := a.nodes[c].parent; {
	case existing == p:
		return nil
	case existing >= 0:
		return fmt.Errorf("%s has conflicting parents %s and %s", child, a.nodes[existing].ref, parent)
	}
	a.nodes[c].parent = p
	a.nodes[p].children = append(a.nodes[p].children, c)
	return nil
}

func (a *arena) parentOf(key string) (core.ColumnRef, bool) {
	i, ok := a.index[key]
	if !ok || a.nodes[i].parent < 0 {
		return core.ColumnRef{}, false
	}
	return a.nodes[a.nodes[i].parent].ref, true
}

// cycles returns every parent cycle, each listed once in child-to-parent order.
func (a *arena) cycles() [][]core.ColumnRef {
	const (
		unvisited = iota
		walking
		done
	)
	state := make([]int, len(a.nodes))
	var out [][]core.ColumnRef
	for start := range a.nodes {
		if state[start] != unvisited {
			continue
		}
		var path []int
		i := start
		for i >= 0 && state[i] == unvisited {
			state[i] = walking
			path = append(path, i)
			i = a.nodes[i].parent
		}
		if i >= 0 && state[i] == walking {
			k := slices.Index(path, i)
			cycle := make([]core.ColumnRef, 0, len(path)-k)
			for _, j := range path[k:] {
				cycle = append(cycle, a.nodes[j].ref)
			}
			out = append(out, cycle)
		}
		for _, j := range path {
			state[j] = done
		}
	}
	return out
}

// chains returns every root-to-leaf chain with at least two levels. It must
// only be called on an acyclic arena.
func (a *arena) chains() [][]core.ColumnRef {
	var out [][]core.ColumnRef
	var walk func(i int, prefix []core.ColumnRef)
	walk = func(i int, prefix []core.ColumnRef) {
		prefix = append(prefix, a.nodes[i].ref)
		if len(a.nodes[i].children) == 0 {
			if len(prefix) > 1 {
				out = append(out, append([]core.ColumnRef(nil), prefix...))
			}
			return
		}
		for _, c := range a.nodes[i].children {
			walk(c, prefix)
		}
	}
	for i, n := range a.nodes {
		if n.parent < 0 {
			walk(i, nil)
		}
	}
	return out
}

func formatCycle(cycle []core.ColumnRef) string {
	parts := make([]string, 0, len(cycle)+1)
	for _, r := range cycle {
		parts = append(parts, r.String())
	}
	parts = append(parts, cycle[0].String())
	return strings.Join(parts, " -> ")
}
