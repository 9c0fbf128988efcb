// Package vector registers polygon rasterization.
package vector

import (
	"context"

	"github.com/specialistvlad/habitatgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// RasterizeInput burns the Field attribute of a polygon input onto the grid
// of Base.
type RasterizeInput struct {
	Vector string `hcl:"vector"`
	Field  string `hcl:"field"`
	Base   string `hcl:"base"`
	// NoDataBackground leaves cells outside every polygon as no-data
	// instead of 0.
	NoDataBackground bool `hcl:"nodata_background,optional"`
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(registry.Typed("rasterize", "Rasterize polygons onto a base grid",
		func(ctx context.Context, env *registry.Env, layer string, in *RasterizeInput) error {
			return env.Engine.RasterizePolygons(ctx, in.Vector, in.Field, in.Base, layer, in.NoDataBackground)
		}))
}
