package memengine

import (
	"context"
	"fmt"

	"github.com/specialistvlad/habitatgrid/internal/engine"
)

// Filter implements engine.Engine. No-data centres stay no-data and no-data
// neighbours are ignored. Majority ties resolve to the smallest value.
func (e *Engine) Filter(ctx context.Context, kind engine.FilterKind, in, out string, window engine.Window) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := window.Validate(); err != nil {
		return err
	}
	var reduce func(vals []float64) float64
	switch kind {
	case engine.FilterMaximum:
		reduce = maxOf
	case engine.FilterMinimum:
		reduce = minOf
	case engine.FilterMajority:
		reduce = majorityOf
	default:
		return fmt.Errorf("%w: filter %q", engine.ErrUnsupported, kind)
	}

	src, err := e.Layer(in)
	if err != nil {
		return err
	}
	dst := src.Like()
	rx, ry := window.X/2, window.Y/2
	vals := make([]float64, 0, window.X*window.Y)

	for y := 0; y < src.Height; y++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for x := 0; x < src.Width; x++ {
			if src.IsNoData(src.At(x, y)) {
				continue
			}
			vals = vals[:0]
			for dy := -ry; dy <= ry; dy++ {
				for dx := -rx; dx <= rx; dx++ {
					nx, ny := x+dx, y+dy
					if !src.InBounds(nx, ny) {
						continue
					}
					if v := src.At(nx, ny); !src.IsNoData(v) {
						vals = append(vals, v)
					}
				}
			}
			dst.Set(x, y, reduce(vals))
		}
	}
	return e.store(ctx, out, dst)
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func majorityOf(vals []float64) float64 {
	counts := make(map[float64]int, len(vals))
	best, bestN := vals[0], 0
	for _, v := range vals {
		counts[v]++
	}
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}
