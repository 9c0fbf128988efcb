package dag

import (
	"fmt"
	"sort"
	"sync"
)

// Graph is the layer dependency graph of a recipe. Node IDs are the layers
// steps produce; an edge runs from a layer to every step layer that reads it.
// It is safe for concurrent use, which the executor relies on while workers
// unlock dependents.
type Graph struct {
	mu sync.RWMutex
	// reads maps a layer to the layers its step reads.
	reads map[string]map[string]struct{}
	// readBy maps a layer to the layers whose steps read it.
	readBy map[string]map[string]struct{}
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		reads:  make(map[string]map[string]struct{}),
		readBy: make(map[string]map[string]struct{}),
	}
}

// AddNode adds a layer. Adding it again is a no-op.
func (g *Graph) AddNode(layer string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.reads[layer]; ok {
		return
	}
	g.reads[layer] = make(map[string]struct{})
	g.readBy[layer] = make(map[string]struct{})
}

// AddEdge records that the step producing to reads from. Both layers must
// already be nodes, and a step cannot read its own output.
func (g *Graph) AddEdge(from, to string) error {
	if from == to {
		return fmt.Errorf("layer %s cannot read itself", from)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.reads[from]; !ok {
		return fmt.Errorf("unknown source layer: %s", from)
	}
	if _, ok := g.reads[to]; !ok {
		return fmt.Errorf("unknown destination layer: %s", to)
	}
	g.reads[to][from] = struct{}{}
	g.readBy[from][to] = struct{}{}
	return nil
}

// Dependencies returns the sorted layers read by the step producing layer.
func (g *Graph) Dependencies(layer string) ([]string, error) {
	return g.neighbours(g.reads, layer)
}

// Dependents returns the sorted layers whose steps read layer.
func (g *Graph) Dependents(layer string) ([]string, error) {
	return g.neighbours(g.readBy, layer)
}

func (g *Graph) neighbours(edges map[string]map[string]struct{}, layer string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set, ok := edges[layer]
	if !ok {
		return nil, fmt.Errorf("unknown layer: %s", layer)
	}
	return sortedKeys(set), nil
}

// Nodes returns every layer in sorted order.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.reads)
}

// Len returns the number of layers.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.reads)
}

// Cycle returns one dependency loop as a path that starts and ends on the
// same layer, or nil when the graph is acyclic. Layers are visited in sorted
// order so the reported loop is stable.
func (g *Graph) Cycle() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(g.reads))
	var path []string

	var visit func(layer string) []string
	visit = func(layer string) []string {
		switch state[layer] {
		case done:
			return nil
		case onPath:
			for i, l := range path {
				if l == layer {
					loop := append([]string{}, path[i:]...)
					return append(loop, layer)
				}
			}
		}

		state[layer] = onPath
		path = append(path, layer)
		for _, next := range sortedKeys(g.readBy[layer]) {
			if loop := visit(next); loop != nil {
				return loop
			}
		}
		path = path[:len(path)-1]
		state[layer] = done
		return nil
	}

	for _, layer := range sortedKeys(g.reads) {
		if loop := visit(layer); loop != nil {
			return loop
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
