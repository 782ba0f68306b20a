// Package dag builds the two-level job graph of a run and renders it for a
// DAGMan-style scheduler.
//
// Every work unit is a parent of one terminal node and nothing else; the
// terminal node runs the finishing commands once all units are done. The
// graph is acyclic by construction.
package dag

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultTerminal is the name of the finishing node.
const DefaultTerminal = "finish"

// Edge is one parent -> child dependency.
type Edge struct {
	Parent string
	Child  string
}

// Graph accumulates work unit nodes in insertion order.
type Graph struct {
	terminal string
	nodes    []string
	index    map[string]struct{}
}

// NewGraph creates an empty graph. An empty terminal name selects
// DefaultTerminal.
func NewGraph(terminal string) *Graph {
	if terminal == "" {
		terminal = DefaultTerminal
	}
	return &Graph{
		terminal: terminal,
		index:    make(map[string]struct{}),
	}
}

// Add appends a work unit node.
func (g *Graph) Add(name string) error {
	if err := checkNodeName(name); err != nil {
		return err
	}
	if name == g.terminal {
		return fmt.Errorf("node name %q is reserved for the terminal node", name)
	}
	if _, ok := g.index[name]; ok {
		return fmt.Errorf("duplicate node %q", name)
	}
	g.index[name] = struct{}{}
	g.nodes = append(g.nodes, name)
	return nil
}

// Nodes returns the work unit nodes in insertion order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

func (g *Graph) Terminal() string {
	return g.terminal
}

// Len is the number of work unit nodes, excluding the terminal.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Parents returns the parents of the terminal node: every work unit node.
func (g *Graph) Parents() []string {
	return g.Nodes()
}

// Edges returns one edge per work unit node, each pointing at the terminal.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, len(g.nodes))
	for i, n := range g.nodes {
		edges[i] = Edge{Parent: n, Child: g.terminal}
	}
	return edges
}

func checkNodeName(name string) error {
	if name == "" {
		return errors.New("node name is empty")
	}
	if strings.ContainsAny(name, " \t\r\n\"'\\") {
		return fmt.Errorf("invalid node name %q", name)
	}
	return nil
}
