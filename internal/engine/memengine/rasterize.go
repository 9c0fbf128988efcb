package memengine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"
	"github.com/specialistvlad/habitatgrid/internal/engine"
)

// Feature is a polygon with its attribute values.
type Feature struct {
	geom.Polygonal
	Fields map[string]string
}

// ReadShapefile decodes every polygon of a shapefile together with the
// named attribute columns.
func ReadShapefile(path string, columns ...string) ([]Feature, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("opening shapefile %s: %w", path, err)
	}
	defer dec.Close()

	var out []Feature
	for {
		g, fields, more := dec.DecodeRowFields(columns...)
		if !more {
			break
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("shapefile %s: feature %d is %T, not a polygon", path, len(out), g)
		}
		for k, v := range fields {
			fields[k] = strings.TrimSpace(strings.Trim(v, "\x00"))
		}
		out = append(out, Feature{Polygonal: poly, Fields: fields})
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("reading shapefile %s: %w", path, err)
	}
	return out, nil
}

// indexed is the rtree entry for one feature; order keeps the first feature
// in file order winning where polygons overlap.
type indexed struct {
	geom.Polygonal
	value float64
	order int
}

// RasterizePolygons implements engine.Engine. A cell takes the field value of
// the first polygon containing its centre.
func (e *Engine) RasterizePolygons(ctx context.Context, vector, field, base, out string, noDataBackground bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	features, err := e.vectorFeatures(vector, field)
	if err != nil {
		return err
	}
	grid, err := e.Layer(base)
	if err != nil {
		return err
	}

	tree := rtree.NewTree(25, 50)
	for i, f := range features {
		raw, ok := f.Fields[field]
		if !ok {
			return fmt.Errorf("vector %q: feature %d has no field %q", vector, i, field)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("vector %q: feature %d field %q: %w", vector, i, field, err)
		}
		tree.Insert(&indexed{Polygonal: f.Polygonal, value: v, order: i})
	}

	dst := grid.Like()
	for y := 0; y < grid.Height; y++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for x := 0; x < grid.Width; x++ {
			cx, cy := grid.CellCenter(x, y)
			pt := geom.Point{X: cx, Y: cy}

			var hit *indexed
			for _, g := range tree.SearchIntersect(pt.Bounds()) {
				cand := g.(*indexed)
				if hit != nil && cand.order > hit.order {
					continue
				}
				if pt.Within(cand.Polygonal) != geom.Outside {
					hit = cand
				}
			}
			switch {
			case hit != nil:
				dst.Set(x, y, hit.value)
			case !noDataBackground:
				dst.Set(x, y, 0)
			}
		}
	}
	return e.store(ctx, out, dst)
}

// vectorFeatures returns preloaded features or decodes the bound shapefile.
func (e *Engine) vectorFeatures(name, field string) ([]Feature, error) {
	e.mu.RLock()
	features, loaded := e.features[name]
	path, bound := e.vectors[name]
	e.mu.RUnlock()

	switch {
	case loaded:
		return features, nil
	case bound:
		return ReadShapefile(path, field)
	}
	return nil, fmt.Errorf("%w: vector %q", engine.ErrUnknownLayer, name)
}
