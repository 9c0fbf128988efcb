package classify

import (
	"context"
	"fmt"

	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/raster"
)

const (
	// SquareMetresPerAcre converts square map units (metres) to acres.
	SquareMetresPerAcre = 4046.86

	// sentinel is larger than any class code or region label. It stands in
	// for background where a minimum filter must not see it.
	sentinel = 1e9

	// ceiling closes the top reclass range.
	ceiling = 1e18
)

// chain issues engine calls in sequence. After the first failure every
// further call is skipped and err holds the failure.
type chain struct {
	ctx    context.Context
	eng    engine.Engine
	prefix string
	err    error
}

func newChain(ctx context.Context, eng engine.Engine, out string) *chain {
	return &chain{ctx: ctx, eng: eng, prefix: out}
}

// name returns the intermediate layer name for suffix.
func (c *chain) name(suffix string) string {
	return c.prefix + "_" + suffix
}

// do runs fn writing to out and returns out for use by later calls.
func (c *chain) do(out string, fn func(out string) error) string {
	if c.err != nil {
		return out
	}
	if err := fn(out); err != nil {
		c.err = fmt.Errorf("%s: %w", out, err)
		return out
	}
	ctxlog.FromContext(c.ctx).Debug("Intermediate layer produced.", "layer", out)
	return out
}

func (c *chain) noDataToZero(in, suffix string) string {
	return c.do(c.name(suffix), func(out string) error { return c.eng.NoDataToZero(c.ctx, in, out) })
}

func (c *chain) setNoData(in string, back float64, suffix string) string {
	return c.do(c.name(suffix), func(out string) error { return c.eng.SetNoData(c.ctx, in, out, back) })
}

func (c *chain) compare(op engine.CompareOp, in string, rhs engine.Operand, suffix string) string {
	return c.do(c.name(suffix), func(out string) error { return c.eng.Compare(c.ctx, op, in, rhs, out) })
}

func (c *chain) logical(op engine.LogicalOp, in1, in2, suffix string) string {
	return c.do(c.name(suffix), func(out string) error { return c.eng.Logical(c.ctx, op, in1, in2, out) })
}

func (c *chain) not(in, suffix string) string {
	return c.do(c.name(suffix), func(out string) error { return c.eng.Not(c.ctx, in, out) })
}

func (c *chain) arith(op engine.ArithOp, in string, rhs engine.Operand, suffix string) string {
	return c.do(c.name(suffix), func(out string) error { return c.eng.Arithmetic(c.ctx, op, in, rhs, out) })
}

func (c *chain) filter(kind engine.FilterKind, in, suffix string) string {
	return c.do(c.name(suffix), func(out string) error {
		return c.eng.Filter(c.ctx, kind, in, out, engine.Window{X: 3, Y: 3})
	})
}

func (c *chain) clump(in string, opts engine.ClumpOptions, suffix string) string {
	return c.do(c.name(suffix), func(out string) error { return c.eng.Clump(c.ctx, in, out, opts) })
}

func (c *chain) area(in string, opts engine.AreaOptions, suffix string) string {
	return c.do(c.name(suffix), func(out string) error { return c.eng.RasterArea(c.ctx, in, out, opts) })
}

func (c *chain) reclass(in string, table engine.ReclassTable, suffix string) string {
	return c.do(c.name(suffix), func(out string) error { return c.eng.Reclass(c.ctx, in, out, table) })
}

// zonal reduces values over zones into the named layer; the table is kept
// when the caller passes a destination for it.
func (c *chain) zonal(values, zones string, stat raster.Stat, out string, table **raster.Table) string {
	return c.do(out, func(out string) error {
		t, err := c.eng.ZonalStatistics(c.ctx, values, zones, stat, out)
		if err == nil && table != nil {
			*table = t
		}
		return err
	})
}
