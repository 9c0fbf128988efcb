package classify

import (
	"context"

	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/raster"
)

// Connector codes.
const (
	Island = 1
	Spur   = 2
	Link   = 3
	// Hole is a spur no background cell touches. It keeps the spur base so
	// code-10 recovers the topological type.
	Hole = Spur + holeTag

	holeTag = 10
)

// ConnectorInput names the layers Connectors reads.
type ConnectorInput struct {
	// Blocks holds tree-block labels; 0 or no-data is not a block.
	Blocks string
	// Connectors holds connector region labels, disjoint from blocks; 0 or
	// no-data is not a connector.
	Connectors string
}

// Connectors writes the connector code of every connector region to out.
// Cells outside connector regions are no-data.
//
// A region's perimeter is the ring of cells one step away from it in any of
// eight directions. The region touches a block when the highest block label
// on its perimeter is positive, and it links two blocks when the lowest label
// on its perimeter differs from the highest. The code is 1+touches+links.
// A spur with no background cell on its perimeter is a hole. Cells beyond
// the raster edge are not background.
func Connectors(ctx context.Context, eng engine.Engine, in ConnectorInput, out string) error {
	c := newChain(ctx, eng, out)

	blocks := c.noDataToZero(in.Blocks, "blocks0")
	conn := c.noDataToZero(in.Connectors, "connectors0")
	zones := c.setNoData(conn, 0, "zones")

	// Highest block label on each region's perimeter.
	high := c.filter(engine.FilterMaximum, blocks, "perimeter_high")
	first := c.zonal(high, zones, raster.StatMax, c.name("first"), nil)
	touches := c.compare(engine.OpGreater, first, engine.Const(0), "touches")

	// Lowest block label on the perimeter; non-block cells are lifted to the
	// sentinel so they never win.
	open := c.compare(engine.OpEqual, blocks, engine.Const(0), "blocks_open")
	lift := c.arith(engine.OpMultiply, open, engine.Const(sentinel), "blocks_lift")
	lifted := c.arith(engine.OpAdd, blocks, engine.LayerOperand(lift), "blocks_lifted")
	low := c.filter(engine.FilterMinimum, lifted, "perimeter_low")
	second := c.zonal(low, zones, raster.StatMin, c.name("second"), nil)
	distinct := c.compare(engine.OpNotEqual, second, engine.LayerOperand(first), "distinct")
	links := c.logical(engine.OpAnd, touches, distinct, "links")

	sum := c.arith(engine.OpAdd, touches, engine.LayerOperand(links), "contacts")
	code := c.arith(engine.OpAdd, sum, engine.Const(Island), "code")

	// Holes: spurs whose perimeter holds no background.
	occupied := c.logical(engine.OpOr, blocks, conn, "occupied")
	background := c.not(occupied, "background")
	exposure := c.filter(engine.FilterMaximum, background, "background_near")
	exposed := c.zonal(exposure, zones, raster.StatMax, c.name("exposed"), nil)
	enclosed := c.compare(engine.OpEqual, exposed, engine.Const(0), "enclosed")
	spur := c.compare(engine.OpEqual, code, engine.Const(Spur), "spur")
	hole := c.logical(engine.OpAnd, spur, enclosed, "hole")
	tag := c.arith(engine.OpMultiply, hole, engine.Const(holeTag), "hole_tag")

	c.do(out, func(out string) error {
		return eng.Arithmetic(ctx, engine.OpAdd, code, engine.LayerOperand(tag), out)
	})
	return c.err
}
