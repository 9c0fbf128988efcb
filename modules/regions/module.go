// Package regions registers the region operations: clumping, per-region
// area and zonal statistics.
package regions

import (
	"context"

	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/raster"
	"github.com/specialistvlad/habitatgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// ClumpInput labels connected regions of equal value.
type ClumpInput struct {
	In       string `hcl:"in"`
	Diag     bool   `hcl:"diag,optional"`
	ZeroBack bool   `hcl:"zero_back,optional"`
}

// AreaInput assigns each cell the area of its value class.
type AreaInput struct {
	In       string `hcl:"in"`
	ZeroBack bool   `hcl:"zero_back,optional"`
}

// ZonalInput reduces Values over the regions of Zones.
type ZonalInput struct {
	Values string `hcl:"values"`
	Zones  string `hcl:"zones"`
	Stat   string `hcl:"stat"`
}

// Validate checks the statistic.
func (in *ZonalInput) Validate() error {
	_, err := raster.ParseStat(in.Stat)
	return err
}

// Register registers the handlers with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(registry.Typed("clump", "Label connected regions", runClump))
	r.Register(registry.Typed("raster_area", "Area of each value class in map units", runArea))
	r.Register(registry.Typed("zonal_statistics", "Per-region min or max written back onto the regions", runZonal))
}

func runClump(ctx context.Context, env *registry.Env, layer string, in *ClumpInput) error {
	return env.Engine.Clump(ctx, in.In, layer, engine.ClumpOptions{Diag: in.Diag, ZeroBack: in.ZeroBack})
}

func runArea(ctx context.Context, env *registry.Env, layer string, in *AreaInput) error {
	return env.Engine.RasterArea(ctx, in.In, layer, engine.AreaOptions{ZeroBack: in.ZeroBack})
}

func runZonal(ctx context.Context, env *registry.Env, layer string, in *ZonalInput) error {
	table, err := env.Engine.ZonalStatistics(ctx, in.Values, in.Zones, raster.Stat(in.Stat), layer)
	if err != nil {
		return err
	}
	if table != nil {
		ctxlog.FromContext(ctx).Debug("Zonal statistics computed.", "zones", len(table.Rows), "stat", table.Stat)
	}
	return nil
}
