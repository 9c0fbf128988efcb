package memengine

import (
	"context"
	"fmt"
	"sort"

	"github.com/katalvlaran/lvlath/gridgraph"
	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/raster"
)

// Clump implements engine.Engine. Regions are maximal groups of connected
// cells sharing one value. Labels run from 1 in row-major order of each
// region's first cell; no-data stays no-data and, with ZeroBack, zero
// cells stay 0.
func (e *Engine) Clump(ctx context.Context, in, out string, opts engine.ClumpOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := e.Layer(in)
	if err != nil {
		return err
	}

	conn := gridgraph.Conn4
	if opts.Diag {
		conn = gridgraph.Conn8
	}

	type region struct {
		first int
		cells []int
	}
	var regions []region

	for _, value := range src.Values() {
		if opts.ZeroBack && value == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		comps, err := componentsOf(src, value, conn)
		if err != nil {
			return fmt.Errorf("clump %q value %g: %w", in, value, err)
		}
		for _, cells := range comps {
			first := cells[0]
			for _, c := range cells[1:] {
				if c < first {
					first = c
				}
			}
			regions = append(regions, region{first: first, cells: cells})
		}
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].first < regions[j].first })

	dst := src.Like()
	for i, v := range src.Cells {
		if opts.ZeroBack && v == 0 {
			dst.Cells[i] = 0
		}
	}
	for label, r := range regions {
		for _, c := range r.cells {
			dst.Cells[c] = float64(label + 1)
		}
	}
	return e.store(ctx, out, dst)
}

// componentsOf labels the connected cells equal to value. The search runs
// on the bounding box of those cells only; the returned indices address
// the full layer.
func componentsOf(l *raster.Layer, value float64, conn gridgraph.Connectivity) ([][]int, error) {
	x0, y0, x1, y1 := l.Width, l.Height, -1, -1
	for i, v := range l.Cells {
		if v != value {
			continue
		}
		x, y := i%l.Width, i/l.Width
		x0, y0 = min(x0, x), min(y0, y)
		x1, y1 = max(x1, x), max(y1, y)
	}
	if x1 < 0 {
		return nil, nil
	}

	grid := make([][]int, y1-y0+1)
	for y := range grid {
		grid[y] = make([]int, x1-x0+1)
		for x := range grid[y] {
			if l.At(x+x0, y+y0) == value {
				grid[y][x] = 1
			}
		}
	}

	gg, err := gridgraph.NewGridGraph(grid, gridgraph.GridOptions{LandThreshold: 1, Conn: conn})
	if err != nil {
		return nil, err
	}
	comps := gg.ConnectedComponents()
	for _, comp := range comps {
		for i, idx := range comp {
			x, y := gg.Coordinate(idx)
			comp[i] = l.Index(x+x0, y+y0)
		}
	}
	return comps, nil
}

// RasterArea implements engine.Engine. Each cell receives the total area, in
// square map units, of all cells sharing its value.
func (e *Engine) RasterArea(ctx context.Context, in, out string, opts engine.AreaOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := e.Layer(in)
	if err != nil {
		return err
	}

	counts := make(map[float64]int)
	for _, v := range src.Cells {
		if src.IsNoData(v) || (opts.ZeroBack && v == 0) {
			continue
		}
		counts[v]++
	}

	dst := src.Like()
	cellArea := src.CellArea()
	for i, v := range src.Cells {
		switch {
		case src.IsNoData(v):
		case opts.ZeroBack && v == 0:
			dst.Cells[i] = 0
		default:
			dst.Cells[i] = float64(counts[v]) * cellArea
		}
	}
	return e.store(ctx, out, dst)
}

// ZonalStatistics implements engine.Engine. Every data value of zones is a
// zone, zero included; background must be no-data.
func (e *Engine) ZonalStatistics(ctx context.Context, values, zones string, stat raster.Stat, out string) (*raster.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ls, err := e.aligned(values, zones)
	if err != nil {
		return nil, err
	}
	val, zone := ls[0], ls[1]

	better := func(a, b float64) bool { return a > b }
	switch stat {
	case raster.StatMax:
	case raster.StatMin:
		better = func(a, b float64) bool { return a < b }
	default:
		return nil, fmt.Errorf("%w: zonal statistic %q", engine.ErrUnsupported, stat)
	}

	type agg struct {
		value float64
		seen  bool
	}
	aggs := make(map[float64]*agg)
	for i, z := range zone.Cells {
		if zone.IsNoData(z) {
			continue
		}
		a, ok := aggs[z]
		if !ok {
			a = &agg{}
			aggs[z] = a
		}
		v := val.Cells[i]
		if val.IsNoData(v) {
			continue
		}
		if !a.seen || better(v, a.value) {
			a.value, a.seen = v, true
		}
	}

	table := &raster.Table{Stat: stat, Rows: make([]raster.Row, 0, len(aggs))}
	for z, a := range aggs {
		table.Rows = append(table.Rows, raster.Row{Zone: z, Value: a.value, NoData: !a.seen})
	}
	table.Sort()

	if out == "" {
		return table, nil
	}
	dst := val.Like()
	for i, z := range zone.Cells {
		if zone.IsNoData(z) {
			continue
		}
		if a := aggs[z]; a.seen {
			dst.Cells[i] = a.value
		}
	}
	if err := e.store(ctx, out, dst); err != nil {
		return nil, err
	}
	return table, nil
}
