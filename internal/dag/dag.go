// SPDX-License-Identifier: MPL-2.0

// Package dag provides directed graph operations for module import ordering
// and cycle detection. The module cache uses it as a waits-for graph between
// in-flight loads, and the loader uses it to order recorded imports.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle contains the nodes that form the cycle (not necessarily all of them,
		// but enough to identify the problem).
		Cycle []string
	}

	// Graph is a directed graph keyed by string node names.
	// An edge from A to B means "A depends on B": B must be available before A
	// can finish loading. Edges may be added more than once; each AddEdge is
	// matched by one RemoveEdge.
	Graph struct {
		// adjacency maps each node to its outgoing neighbors.
		adjacency map[string][]string
		// nodes tracks all nodes in insertion order for deterministic output.
		nodes []string
		// nodeSet provides O(1) lookup for node existence.
		nodeSet map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("import cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge adds a directed edge from -> to.
// Both nodes are implicitly added if they don't exist.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.adjacency[from] = append(g.adjacency[from], to)
}

// HasEdge reports whether at least one from -> to edge exists.
func (g *Graph) HasEdge(from, to string) bool {
	return slices.Contains(g.adjacency[from], to)
}

// EdgeCount returns how many times the from -> to edge was added and not
// yet removed.
func (g *Graph) EdgeCount(from, to string) int {
	n := 0
	for _, next := range g.adjacency[from] {
		if next == to {
			n++
		}
	}
	return n
}

// RemoveEdge removes one occurrence of the edge from -> to. Nodes left without
// any edge are dropped so long-lived graphs do not grow without bound.
func (g *Graph) RemoveEdge(from, to string) {
	neighbors := g.adjacency[from]
	idx := slices.Index(neighbors, to)
	if idx < 0 {
		return
	}
	neighbors = slices.Delete(neighbors, idx, idx+1)
	if len(neighbors) == 0 {
		delete(g.adjacency, from)
	} else {
		g.adjacency[from] = neighbors
	}
	g.pruneIsolated(from)
	g.pruneIsolated(to)
}

// RemoveNode drops name together with every edge touching it. Neighbors
// left without edges are dropped as well.
func (g *Graph) RemoveNode(name string) {
	if !g.nodeSet[name] {
		return
	}
	touched := g.adjacency[name]
	delete(g.adjacency, name)
	for from, neighbors := range g.adjacency {
		kept := slices.DeleteFunc(neighbors, func(n string) bool { return n == name })
		if len(kept) != len(neighbors) {
			touched = append(touched, from)
		}
		if len(kept) == 0 {
			delete(g.adjacency, from)
		} else {
			g.adjacency[from] = kept
		}
	}
	delete(g.nodeSet, name)
	if idx := slices.Index(g.nodes, name); idx >= 0 {
		g.nodes = slices.Delete(g.nodes, idx, idx+1)
	}
	for _, n := range touched {
		g.pruneIsolated(n)
	}
}

// Dependents returns every node that reaches name through one or more edges,
// nearest first. name itself is excluded unless it sits on a cycle.
func (g *Graph) Dependents(name string) []string {
	reverse := make(map[string][]string, len(g.nodes))
	for _, from := range g.nodes {
		for _, to := range g.adjacency[from] {
			if !slices.Contains(reverse[to], from) {
				reverse[to] = append(reverse[to], from)
			}
		}
	}

	var out []string
	seen := map[string]bool{}
	queue := []string{name}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, dep := range reverse[node] {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			out = append(out, dep)
			queue = append(queue, dep)
		}
	}
	return out
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Path returns a path of nodes leading from -> to, inclusive of both ends,
// or nil when to is unreachable. A node always reaches itself.
func (g *Graph) Path(from, to string) []string {
	if from == to {
		return []string{from}
	}
	if !g.nodeSet[from] || !g.nodeSet[to] {
		return nil
	}

	prev := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range g.adjacency[node] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = node
			if next == to {
				path := []string{to}
				for at := node; at != ""; at = prev[at] {
					path = append(path, at)
				}
				slices.Reverse(path)
				return path
			}
			queue = append(queue, next)
		}
	}
	return nil
}

// TopologicalSort returns an order in which every node appears after the
// nodes it depends on, using Kahn's algorithm on the reversed edges.
// Returns CycleError if the graph contains a cycle.
// The returned order is deterministic: nodes at the same level appear in the
// order they were first added to the graph.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	// Out-degree counts the dependencies each node still waits for.
	pending := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for _, node := range g.nodes {
		pending[node] = 0
	}
	for _, node := range g.nodes {
		for _, dep := range g.adjacency[node] {
			pending[node]++
			dependents[dep] = append(dependents[dep], node)
		}
	}

	queue := make([]string, 0)
	for _, node := range g.nodes {
		if pending[node] == 0 {
			queue = append(queue, node)
		}
	}

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, dependent := range dependents[node] {
			pending[dependent]--
			if pending[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		// Remaining nodes still waiting on something form the cycle.
		var cycleNodes []string
		for _, node := range g.nodes {
			if pending[node] > 0 {
				cycleNodes = append(cycleNodes, node)
			}
		}
		return nil, &CycleError{Cycle: cycleNodes}
	}

	return result, nil
}

func (g *Graph) pruneIsolated(name string) {
	if len(g.adjacency[name]) > 0 {
		return
	}
	for _, neighbors := range g.adjacency {
		if slices.Contains(neighbors, name) {
			return
		}
	}
	delete(g.nodeSet, name)
	if idx := slices.Index(g.nodes, name); idx >= 0 {
		g.nodes = slices.Delete(g.nodes, idx, idx+1)
	}
}
