package classify

import (
	"context"

	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/raster"
)

// Patch size tiers added to the base cover type.
const (
	TierSmall  = 0
	TierMedium = 100
	TierLarge  = 1000
)

// Tier boundaries in acres. Ranges are closed below and open above.
const (
	SmallPatchAcres = 0.25
	LargePatchAcres = 10
)

// PatchTiers reclassifies patch acreage into size tiers.
var PatchTiers = engine.ReclassTable{Entries: []engine.ReclassEntry{
	{New: TierSmall, From: 0, To: SmallPatchAcres},
	{New: TierMedium, From: SmallPatchAcres, To: LargePatchAcres},
	{New: TierLarge, From: LargePatchAcres, To: ceiling},
}}

// Patches writes composite patch codes, base type plus size tier, for the
// cover-type layer in. Each same-type clump (8-connected with diag) is
// measured in acres and tiered. A small clump then takes the lowest composite
// code found one cell outside it among non-small patches; small clumps with no
// such neighbour keep their own code. Cover type 0 is never plugged.
func Patches(ctx context.Context, eng engine.Engine, in string, diag bool, out string) error {
	c := newChain(ctx, eng, out)

	clumps := c.clump(in, engine.ClumpOptions{Diag: diag}, "clumps")
	area := c.area(clumps, engine.AreaOptions{}, "area")
	acres := c.arith(engine.OpDivide, area, engine.Const(SquareMetresPerAcre), "acres")
	tier := c.reclass(acres, PatchTiers, "tier")
	composite := c.arith(engine.OpAdd, in, engine.LayerOperand(tier), "composite")

	small := c.compare(engine.OpLess, composite, engine.Const(TierMedium), "small")

	// Lowest non-small code adjacent to each cell; small cells are lifted
	// out of reach.
	lift := c.arith(engine.OpMultiply, small, engine.Const(sentinel), "small_lift")
	lifted := c.arith(engine.OpAdd, composite, engine.LayerOperand(lift), "lifted")
	nearest := c.filter(engine.FilterMinimum, lifted, "nearest")

	smallCodes := c.arith(engine.OpMultiply, composite, engine.LayerOperand(small), "small_codes")
	smallZones := c.setNoData(smallCodes, 0, "small_zones")
	smallClumps := c.clump(smallZones, engine.ClumpOptions{Diag: diag}, "small_clumps")
	inherited := c.zonal(nearest, smallClumps, raster.StatMin, c.name("inherited"), nil)
	inherited = c.noDataToZero(inherited, "inherited0")

	reachable := c.compare(engine.OpLess, inherited, engine.Const(sentinel), "reachable")
	plug := c.logical(engine.OpAnd, reachable, small, "plug")
	keep := c.not(plug, "keep")
	kept := c.arith(engine.OpMultiply, composite, engine.LayerOperand(keep), "kept")
	plugged := c.arith(engine.OpMultiply, inherited, engine.LayerOperand(plug), "plugged")

	c.do(out, func(out string) error {
		return eng.Arithmetic(ctx, engine.OpAdd, kept, engine.LayerOperand(plugged), out)
	})
	return c.err
}
