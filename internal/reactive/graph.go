// Package reactive is a small explicit dependency graph. Source cells are
// written by callers; derived cells declare the cells they read and are
// recomputed synchronously after every write, so no stale derived value is
// ever observable between calls.
//
// A Graph is not safe for concurrent use.
package reactive

import "errors"

var (
	// ErrReentrantWrite is returned when a compute function writes to a cell.
	ErrReentrantWrite = errors.New("reactive: write during recompute")
	// ErrForeignCell is returned when a dependency belongs to another graph.
	ErrForeignCell = errors.New("reactive: dependency belongs to another graph")
)

// Node is any cell of a graph.
type Node interface {
	node() (*Graph, int)
}

type vertex struct {
	dependents []int
	recompute  func()
}

// Graph owns a set of cells and their dependency edges.
type Graph struct {
	vertices    []vertex
	recomputing bool
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Cell holds a value of type T. Derived cells cannot be written.
type Cell[T any] struct {
	g       *Graph
	id      int
	value   T
	derived bool
}

func (c *Cell[T]) node() (*Graph, int) { return c.g, c.id }

// Get returns the current value.
func (c *Cell[T]) Get() T {
	return c.value
}

// Set stores v and recomputes every cell that depends on c before returning.
func (c *Cell[T]) Set(v T) error {
	if c.derived {
		return errors.New("reactive: derived cells are read-only")
	}
	if c.g.recomputing {
		return ErrReentrantWrite
	}
	c.value = v
	c.g.propagate(c.id)
	return nil
}

// Source adds a writable cell.
func Source[T any](g *Graph, initial T) *Cell[T] {
	c := &Cell[T]{g: g, id: len(g.vertices), value: initial}
	g.vertices = append(g.vertices, vertex{})
	return c
}

// Derive adds a cell whose value is compute() over deps. Dependencies must
// already exist, so creation order is a valid evaluation order.
func Derive[T any](g *Graph, compute func() T, deps ...Node) (*Cell[T], error) {
	for _, dep := range deps {
		if owner, _ := dep.node(); owner != g {
			return nil, ErrForeignCell
		}
	}
	c := &Cell[T]{g: g, id: len(g.vertices), derived: true}
	g.vertices = append(g.vertices, vertex{recompute: func() { c.value = compute() }})
	for _, dep := range deps {
		_, id := dep.node()
		g.vertices[id].dependents = append(g.vertices[id].dependents, c.id)
	}
	g.recomputing = true
	c.value = compute()
	g.recomputing = false
	return c, nil
}

// propagate walks dependents of id breadth first, then recomputes each reached
// cell once, in creation order, so every cell sees fresh inputs.
func (g *Graph) propagate(id int) {
	reached := make([]bool, len(g.vertices))
	queue := append([]int(nil), g.vertices[id].dependents...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if reached[next] {
			continue
		}
		reached[next] = true
		queue = append(queue, g.vertices[next].dependents...)
	}

	g.recomputing = true
	defer func() { g.recomputing = false }()
	for i, ok := range reached {
		if ok {
			g.vertices[i].recompute()
		}
	}
}
