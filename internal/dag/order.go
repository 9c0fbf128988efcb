package dag

import (
	"context"
	"errors"
	"fmt"

	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dfs"
)

// ErrCycle is returned when the steps cannot be ordered.
var ErrCycle = errors.New("dependency cycle")

// Order returns the nodes of g listed in declared in a topological order.
//
// The order is deterministic for a given recipe. Vertices are keyed by
// reversed declaration index, which makes the reverse post-order walk keep
// independent steps in declaration order.
func Order(ctx context.Context, g *Graph, declared []string) ([]string, error) {
	lg := core.NewGraph(core.WithDirected(true))

	n := len(declared)
	keys := make(map[string]string, n)
	layers := make(map[string]string, n)
	for i, layer := range declared {
		key := fmt.Sprintf("%06d", n-1-i)
		keys[layer] = key
		layers[key] = layer
		if err := lg.AddVertex(key); err != nil {
			return nil, fmt.Errorf("adding %s to order graph: %w", layer, err)
		}
	}

	for _, layer := range declared {
		deps, err := g.Dependencies(layer)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			from, ok := keys[dep]
			if !ok {
				return nil, fmt.Errorf("%s depends on undeclared %s", layer, dep)
			}
			if _, err := lg.AddEdge(from, keys[layer], 0); err != nil {
				return nil, fmt.Errorf("linking %s -> %s: %w", dep, layer, err)
			}
		}
	}

	sorted, err := dfs.TopologicalSort(lg, dfs.WithCancelContext(ctx))
	if err != nil {
		if errors.Is(err, dfs.ErrCycleDetected) {
			return nil, fmt.Errorf("%w: %v", ErrCycle, err)
		}
		return nil, err
	}

	order := make([]string, 0, len(sorted))
	for _, key := range sorted {
		order = append(order, layers[key])
	}
	return order, nil
}
