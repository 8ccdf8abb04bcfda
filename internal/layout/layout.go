// Package layout defines the contract for layout collaborators: pure
// functions that assign positions to a graph's nodes and edges. The core
// supplies the input shape; layout algorithms live outside this module.
package layout

import (
	"github.com/tardisdcr/tardis/internal/model"
)

// Default node dimensions, applied when a node carries no explicit size.
const (
	DefaultWidth  = 100
	DefaultHeight = 100
)

// Point is a node position assigned by a layout function.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one layout input node: an event or a scope with its size.
type Node struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Parent string `json:"parent,omitempty"`
}

// Edge is one layout input edge.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Input is what a layout function consumes.
type Input struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Func computes a position for every input node. Implementations must be
// pure: same input, same positions, no side effects.
type Func func(in Input) (map[string]Point, error)

// InputFrom builds the layout input for a graph. Every event and scope
// becomes a node with default dimensions; every relation becomes an edge.
func InputFrom(g *model.Graph) Input {
	var in Input
	for i := range g.Events {
		ev := &g.Events[i]
		in.Nodes = append(in.Nodes, Node{
			ID:     ev.ID,
			Width:  DefaultWidth,
			Height: DefaultHeight,
			Parent: ev.Scope,
		})
	}
	for i := range g.Scopes {
		sc := &g.Scopes[i]
		in.Nodes = append(in.Nodes, Node{
			ID:     sc.ID,
			Width:  DefaultWidth,
			Height: DefaultHeight,
			Parent: sc.Parent,
		})
	}
	for i := range g.Relations {
		r := &g.Relations[i]
		in.Edges = append(in.Edges, Edge{ID: r.ID, Source: r.Source, Target: r.Target})
	}
	return in
}
