package raster

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// DefaultNoData is the sentinel used for layers created without an explicit
// no-data value. It matches the value WhiteboxTools writes for new rasters.
const DefaultNoData = -32768.0

var (
	// ErrEmptyGrid is returned when a layer would have no cells.
	ErrEmptyGrid = errors.New("raster: empty grid")
	// ErrNonRectangular is returned when row lengths differ.
	ErrNonRectangular = errors.New("raster: non-rectangular grid")
)

// Layer is a 2-D grid of cells over a fixed extent. Cells are stored
// row-major, row 0 being the northern edge.
type Layer struct {
	Width    int
	Height   int
	CellSize float64
	// OriginX is the western edge, OriginY the northern edge, in map units.
	OriginX float64
	OriginY float64
	NoData  float64
	Cells   []float64
}

// New creates a layer of the given size with every cell set to zero, a unit
// cell size and the default no-data sentinel.
func New(width, height int) *Layer {
	return &Layer{
		Width:    width,
		Height:   height,
		CellSize: 1,
		OriginY:  float64(height),
		NoData:   DefaultNoData,
		Cells:    make([]float64, width*height),
	}
}

// FromRows builds a layer from row-major values. Cells equal to noData are
// no-data cells.
func FromRows(rows [][]float64, noData float64) (*Layer, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyGrid
	}
	l := New(len(rows[0]), len(rows))
	l.NoData = noData
	for y, row := range rows {
		if len(row) != l.Width {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrNonRectangular, y, len(row), l.Width)
		}
		copy(l.Cells[y*l.Width:], row)
	}
	return l, nil
}

// Like returns a layer with the same geometry whose cells are all no-data.
func (l *Layer) Like() *Layer {
	out := &Layer{
		Width:    l.Width,
		Height:   l.Height,
		CellSize: l.CellSize,
		OriginX:  l.OriginX,
		OriginY:  l.OriginY,
		NoData:   l.NoData,
		Cells:    make([]float64, len(l.Cells)),
	}
	for i := range out.Cells {
		out.Cells[i] = l.NoData
	}
	return out
}

// Clone returns a deep copy of the layer.
func (l *Layer) Clone() *Layer {
	out := *l
	out.Cells = append([]float64(nil), l.Cells...)
	return &out
}

// IsNoData reports whether v is the no-data sentinel of this layer. A NaN
// sentinel matches any NaN.
func (l *Layer) IsNoData(v float64) bool {
	if math.IsNaN(l.NoData) {
		return math.IsNaN(v)
	}
	return v == l.NoData
}

// Index returns the row-major offset of (x, y).
func (l *Layer) Index(x, y int) int { return y*l.Width + x }

// InBounds reports whether (x, y) lies inside the grid.
func (l *Layer) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < l.Width && y < l.Height
}

func (l *Layer) At(x, y int) float64 { return l.Cells[l.Index(x, y)] }

func (l *Layer) Set(x, y int, v float64) { l.Cells[l.Index(x, y)] = v }

// CellArea is the area of one cell in square map units.
func (l *Layer) CellArea() float64 { return l.CellSize * l.CellSize }

// CellCenter returns the map coordinates of the centre of cell (x, y).
func (l *Layer) CellCenter(x, y int) (float64, float64) {
	return l.OriginX + (float64(x)+0.5)*l.CellSize, l.OriginY - (float64(y)+0.5)*l.CellSize
}

// Aligned reports whether two layers share size and georeference.
func (l *Layer) Aligned(o *Layer) bool {
	return l.Width == o.Width &&
		l.Height == o.Height &&
		l.CellSize == o.CellSize &&
		l.OriginX == o.OriginX &&
		l.OriginY == o.OriginY
}

// Rows returns the cells as a row-major 2-D slice copy.
func (l *Layer) Rows() [][]float64 {
	rows := make([][]float64, l.Height)
	for y := range rows {
		rows[y] = append([]float64(nil), l.Cells[y*l.Width:(y+1)*l.Width]...)
	}
	return rows
}

// Values returns the distinct data values of the layer in ascending order.
func (l *Layer) Values() []float64 {
	seen := make(map[float64]struct{})
	for _, v := range l.Cells {
		if l.IsNoData(v) {
			continue
		}
		seen[v] = struct{}{}
	}
	out := make([]float64, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
