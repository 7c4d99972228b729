// Package dag provides the table-level dependency graph over manifest nodes.
// It supports cycle detection and topological ordering so models are
// synchronized after their upstreams.
package dag

import (
	"fmt"
	"sort"

	"github.com/lineforge/lineforge/pkg/core"
)

// Node is one vertex of the graph: a manifest model or external source.
type Node struct {
	ID    string
	Model *core.Model
}

// Graph is a directed acyclic graph of manifest nodes. Edges point from
// upstream (parent) to downstream (child).
type Graph struct {
	nodes   map[string]*Node
	edges   map[string][]string // parent -> children
	parents map[string][]string // child -> parents
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// FromManifest builds the dependency graph for every node in the manifest.
func FromManifest(m map[string]*core.Model) (*Graph, error) {
	g := New()
	for id, model := range m {
		g.AddNode(id, model)
	}
	for id, model := range m {
		for _, dep := range model.DependsOn {
			if err := g.AddEdge(dep, id); err != nil {
				return nil, err
			}
		}
	}
	if ok, cycle := g.HasCycle(); ok {
		return nil, fmt.Errorf("dependency cycle: %v", cycle)
	}
	return g, nil
}

// AddNode adds a node, updating the model if the id already exists.
func (g *Graph) AddNode(id string, model *core.Model) {
	if existing, ok := g.nodes[id]; ok {
		existing.Model = model
		return
	}
	g.nodes[id] = &Node{ID: id, Model: model}
	g.edges[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, ok := g.nodes[parentID]; !ok {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, ok := g.nodes[childID]; !ok {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	if !contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Parents returns the upstream dependencies of a node.
func (g *Graph) Parents(id string) []string {
	return g.parents[id]
}

// HasCycle reports whether the graph contains a cycle, with the cycle path.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		recStack[id] = true

		for _, childID := range g.edges[id] {
			if !visited[childID] {
				path[childID] = id
				if dfs(childID) {
					return true
				}
			} else if recStack[childID] {
				cyclePath = []string{childID}
				for curr := id; curr != childID; curr = path[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{childID}, cyclePath...)
				return true
			}
		}

		recStack[id] = false
		return false
	}

	for id := range g.nodes {
		if !visited[id] {
			if dfs(id) {
				return true, cyclePath
			}
		}
	}
	return false, nil
}

// TopologicalSort returns nodes dependencies-first. Node ids are visited in
// sorted order so the result is deterministic.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	if ok, cycle := g.HasCycle(); ok {
		return nil, fmt.Errorf("cycle detected: %v", cycle)
	}

	visited := make(map[string]bool)
	var result []*Node

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, parentID := range g.parents[id] {
			visit(parentID)
		}
		result = append(result, g.nodes[id])
	}

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		visit(id)
	}

	return result, nil
}

func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
