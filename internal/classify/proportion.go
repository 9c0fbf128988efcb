package classify

import (
	"context"
	"fmt"

	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/raster"
)

// DefaultThreshold is the share of a region's area the target must cover.
const DefaultThreshold = 0.5

// Proportion writes 1 to every cell of a region whose overlap with target is
// at least threshold of the region's area, and 0 to the cells of every other
// region. Regions is a label layer with 0 or no-data background; every nonzero
// target cell counts as covered and no-data counts as 0. Background is no-data in
// out.
func Proportion(ctx context.Context, eng engine.Engine, regions, target string, threshold float64, out string) error {
	if threshold <= 0 || threshold > 1 {
		return fmt.Errorf("proportion threshold %g outside (0, 1]", threshold)
	}
	c := newChain(ctx, eng, out)

	regions0 := c.noDataToZero(regions, "regions0")
	zones := c.setNoData(regions0, 0, "zones")
	target0 := c.noDataToZero(target, "target0")
	cover := c.compare(engine.OpNotEqual, target0, engine.Const(0), "target_flag")

	overlap := c.arith(engine.OpMultiply, zones, engine.LayerOperand(cover), "overlap")
	overlap = c.setNoData(overlap, 0, "overlap_labels")
	overlapArea := c.area(overlap, engine.AreaOptions{ZeroBack: true}, "overlap_area")
	regionArea := c.area(zones, engine.AreaOptions{ZeroBack: true}, "region_area")
	ratio := c.arith(engine.OpDivide, overlapArea, engine.LayerOperand(regionArea), "ratio")

	flag := c.reclass(ratio, engine.ReclassTable{Entries: []engine.ReclassEntry{
		{New: 0, From: 0, To: threshold},
		{New: 1, From: threshold, To: ceiling},
	}}, "qualifies")
	flag = c.noDataToZero(flag, "qualifies0")

	c.zonal(flag, zones, raster.StatMax, out, nil)
	return c.err
}
