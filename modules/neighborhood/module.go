// Package neighborhood registers the moving-window filter operation.
package neighborhood

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// FilterInput selects a filter and its window. Size sets a square window;
// X and Y set each side separately.
type FilterInput struct {
	In   string `hcl:"in"`
	Kind string `hcl:"kind"`
	Size int    `hcl:"size,optional"`
	X    int    `hcl:"x,optional"`
	Y    int    `hcl:"y,optional"`
}

// Window resolves the kernel size.
func (in *FilterInput) Window() engine.Window {
	if in.Size > 0 {
		return engine.Window{X: in.Size, Y: in.Size}
	}
	return engine.Window{X: in.X, Y: in.Y}
}

// Validate checks the filter kind and the window.
func (in *FilterInput) Validate() error {
	switch engine.FilterKind(in.Kind) {
	case engine.FilterMaximum, engine.FilterMinimum, engine.FilterMajority:
	default:
		return fmt.Errorf("unknown filter kind %q: must be 'maximum', 'minimum' or 'majority'", in.Kind)
	}
	if in.Size > 0 && (in.X > 0 || in.Y > 0) {
		return errors.New("set either 'size' or 'x' and 'y', not both")
	}
	return in.Window().Validate()
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(registry.Typed("filter", "Maximum, minimum or majority moving-window filter",
		func(ctx context.Context, env *registry.Env, layer string, in *FilterInput) error {
			return env.Engine.Filter(ctx, engine.FilterKind(in.Kind), in.In, layer, in.Window())
		}))
}
