package memengine

import (
	"context"

	"github.com/specialistvlad/habitatgrid/internal/engine"
)

func boolCell(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Reclass implements engine.Engine. Values matched by no entry pass through.
func (e *Engine) Reclass(ctx context.Context, in, out string, table engine.ReclassTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := e.Layer(in)
	if err != nil {
		return err
	}
	dst := src.Like()
	for i, v := range src.Cells {
		if src.IsNoData(v) {
			continue
		}
		if nv, ok := table.Lookup(v); ok {
			dst.Cells[i] = nv
		} else {
			dst.Cells[i] = v
		}
	}
	return e.store(ctx, out, dst)
}

// Compare implements engine.Engine.
func (e *Engine) Compare(ctx context.Context, op engine.CompareOp, in string, rhs engine.Operand, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := e.Layer(in)
	if err != nil {
		return err
	}
	right, err := e.operand(src, rhs)
	if err != nil {
		return err
	}
	dst := src.Like()
	for i, v := range src.Cells {
		r, ok := right(i)
		if src.IsNoData(v) || !ok {
			continue
		}
		b, err := op.Eval(v, r)
		if err != nil {
			return err
		}
		dst.Cells[i] = boolCell(b)
	}
	return e.store(ctx, out, dst)
}

// Logical implements engine.Engine.
func (e *Engine) Logical(ctx context.Context, op engine.LogicalOp, in1, in2, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ls, err := e.aligned(in1, in2)
	if err != nil {
		return err
	}
	a, b := ls[0], ls[1]
	dst := a.Like()
	for i := range a.Cells {
		va, vb := a.Cells[i], b.Cells[i]
		if a.IsNoData(va) || b.IsNoData(vb) {
			continue
		}
		r, err := op.Eval(va != 0, vb != 0)
		if err != nil {
			return err
		}
		dst.Cells[i] = boolCell(r)
	}
	return e.store(ctx, out, dst)
}

// Not implements engine.Engine.
func (e *Engine) Not(ctx context.Context, in, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := e.Layer(in)
	if err != nil {
		return err
	}
	dst := src.Like()
	for i, v := range src.Cells {
		if src.IsNoData(v) {
			continue
		}
		dst.Cells[i] = boolCell(v == 0)
	}
	return e.store(ctx, out, dst)
}

// Arithmetic implements engine.Engine. Division by zero yields no-data.
func (e *Engine) Arithmetic(ctx context.Context, op engine.ArithOp, in string, rhs engine.Operand, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := e.Layer(in)
	if err != nil {
		return err
	}
	right, err := e.operand(src, rhs)
	if err != nil {
		return err
	}
	dst := src.Like()
	for i, v := range src.Cells {
		r, ok := right(i)
		if src.IsNoData(v) || !ok {
			continue
		}
		res, valid, err := op.Eval(v, r)
		if err != nil {
			return err
		}
		if valid {
			dst.Cells[i] = res
		}
	}
	return e.store(ctx, out, dst)
}

// NoDataToZero implements engine.Engine.
func (e *Engine) NoDataToZero(ctx context.Context, in, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := e.Layer(in)
	if err != nil {
		return err
	}
	dst := src.Clone()
	for i, v := range dst.Cells {
		if dst.IsNoData(v) {
			dst.Cells[i] = 0
		}
	}
	return e.store(ctx, out, dst)
}

// SetNoData implements engine.Engine: cells equal to back become no-data.
func (e *Engine) SetNoData(ctx context.Context, in, out string, back float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := e.Layer(in)
	if err != nil {
		return err
	}
	dst := src.Clone()
	for i, v := range dst.Cells {
		if v == back {
			dst.Cells[i] = dst.NoData
		}
	}
	return e.store(ctx, out, dst)
}
