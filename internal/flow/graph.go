// Package flow builds a directed graph of recorded data flows between
// tables or columns and walks it upstream and downstream.
//
// Unlike a model DAG the graph may contain cycles: a table rewritten from
// itself, or two tables feeding each other over time. Walks visit every
// node at most once.
package flow

import (
	"slices"
	"sort"
)

// Graph is a directed graph. An edge from a to b means data flowed from a
// into b.
type Graph struct {
	nodes    map[string]struct{}
	children map[string][]string
	parents  map[string][]string
}

// Hop is a node reached by a walk and its distance from the start.
type Hop struct {
	Node  string `json:"node" yaml:"node"`
	Depth int    `json:"depth" yaml:"depth"`
}

// Edge is a directed edge of the graph.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]struct{}),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// AddNode adds a node with no edges.
func (g *Graph) AddNode(id string) {
	g.nodes[id] = struct{}{}
}

// AddEdge adds an edge from one node to another, creating both nodes.
// Self-loops and duplicates are ignored; the result reports whether the
// edge is new.
func (g *Graph) AddEdge(from, to string) bool {
	g.AddNode(from)
	g.AddNode(to)
	if from == to || slices.Contains(g.children[from], to) {
		return false
	}
	g.children[from] = append(g.children[from], to)
	g.parents[to] = append(g.parents[to], from)
	return true
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Parents returns the nodes that flow directly into id.
func (g *Graph) Parents(id string) []string {
	return g.parents[id]
}

// Children returns the nodes id flows directly into.
func (g *Graph) Children(id string) []string {
	return g.children[id]
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, c := range g.children {
		count += len(c)
	}
	return count
}

// Upstream returns every node that flows into id, nearest first. A
// maxDepth of zero means unlimited.
func (g *Graph) Upstream(id string, maxDepth int) []Hop {
	return g.walk(id, maxDepth, g.parents)
}

// Downstream returns every node id flows into, nearest first. A maxDepth
// of zero means unlimited.
func (g *Graph) Downstream(id string, maxDepth int) []Hop {
	return g.walk(id, maxDepth, g.children)
}

// walk is a breadth-first search along next. Nodes of equal depth are
// sorted by name.
func (g *Graph) walk(start string, maxDepth int, next map[string][]string) []Hop {
	visited := map[string]bool{start: true}
	result := []Hop{}
	frontier := []string{start}

	for depth := 1; len(frontier) > 0; depth++ {
		if maxDepth > 0 && depth > maxDepth {
			break
		}
		var level []string
		for _, id := range frontier {
			for _, n := range next[id] {
				if !visited[n] {
					visited[n] = true
					level = append(level, n)
				}
			}
		}
		sort.Strings(level)
		for _, n := range level {
			result = append(result, Hop{Node: n, Depth: depth})
		}
		frontier = level
	}
	return result
}

// Roots returns nodes nothing flows into.
func (g *Graph) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns nodes that flow nowhere.
func (g *Graph) Leaves() []string {
	var leaves []string
	for id := range g.nodes {
		if len(g.children[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// EdgesWithin returns the edges whose ends are both in ids, sorted.
func (g *Graph) EdgesWithin(ids []string) []Edge {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	edges := []Edge{}
	for _, from := range ids {
		for _, to := range g.children[from] {
			if set[to] {
				edges = append(edges, Edge{From: from, To: to})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}
