package memengine

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"
	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/raster"
)

// Calculate implements engine.Engine with a CEL expression evaluated once
// per cell. Every variable is a double, so literals must be written as
// doubles too ("lc * 99.0"). A cell where any variable is no-data is
// no-data; boolean results become 1 or 0.
func (e *Engine) Calculate(ctx context.Context, expr string, vars map[string]string, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(vars) == 0 {
		return fmt.Errorf("calculate %q: at least one layer variable is required", expr)
	}

	idents := make([]string, 0, len(vars))
	for ident := range vars {
		idents = append(idents, ident)
	}
	sort.Strings(idents)

	names := make([]string, len(idents))
	opts := make([]cel.EnvOption, len(idents))
	for i, ident := range idents {
		names[i] = vars[ident]
		opts[i] = cel.Variable(ident, cel.DoubleType)
	}
	layers, err := e.aligned(names...)
	if err != nil {
		return err
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return fmt.Errorf("calculate: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return fmt.Errorf("calculate %q: %w", expr, iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return fmt.Errorf("calculate %q: %w", expr, err)
	}

	dst := layers[0].Like()
	activation := make(map[string]any, len(idents))
cells:
	for i := range dst.Cells {
		for k, ident := range idents {
			v := layers[k].Cells[i]
			if layers[k].IsNoData(v) {
				continue cells
			}
			activation[ident] = v
		}
		res, _, err := prg.Eval(activation)
		if err != nil {
			return fmt.Errorf("calculate %q at cell %d: %w", expr, i, err)
		}
		v, err := cellValue(res.Value())
		if err != nil {
			return fmt.Errorf("calculate %q: %w", expr, err)
		}
		dst.Cells[i] = v
	}
	return e.store(ctx, out, dst)
}

func cellValue(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case bool:
		return boolCell(t), nil
	}
	return raster.DefaultNoData, fmt.Errorf("%w: expression result of type %T", engine.ErrUnsupported, v)
}
