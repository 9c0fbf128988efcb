// Package algebra registers the cell-wise raster operations: reclass,
// comparisons, boolean logic, arithmetic, no-data handling and the
// expression calculator.
package algebra

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// ReclassInput maps values through a table. In assign mode each row is
// [new, old]; otherwise each row is [new, from, to] covering [from, to).
type ReclassInput struct {
	In         string      `hcl:"in"`
	Table      [][]float64 `hcl:"table"`
	AssignMode bool        `hcl:"assign_mode,optional"`
}

// Validate checks the row widths.
func (in *ReclassInput) Validate() error {
	if len(in.Table) == 0 {
		return errors.New("table must have at least one row")
	}
	want := 3
	if in.AssignMode {
		want = 2
	}
	for i, row := range in.Table {
		if len(row) != want {
			return fmt.Errorf("table row %d has %d values, want %d", i, len(row), want)
		}
	}
	return nil
}

// ReclassTable converts the rows into an engine table.
func (in *ReclassInput) ReclassTable() engine.ReclassTable {
	t := engine.ReclassTable{AssignMode: in.AssignMode}
	for _, row := range in.Table {
		e := engine.ReclassEntry{New: row[0], From: row[1]}
		if !in.AssignMode {
			e.To = row[2]
		}
		t.Entries = append(t.Entries, e)
	}
	return t
}

// CompareInput compares In against either a constant value or another
// layer.
type CompareInput struct {
	Op    string   `hcl:"op"`
	In    string   `hcl:"in"`
	Value *float64 `hcl:"value,optional"`
	Other string   `hcl:"other,optional"`
}

// Validate checks the operator and the right-hand side.
func (in *CompareInput) Validate() error {
	if _, err := engine.CompareOp(in.Op).Eval(0, 0); err != nil {
		return err
	}
	return checkOperand(in.Value, in.Other)
}

// ArithmeticInput combines In with either a constant value or another layer.
type ArithmeticInput struct {
	Op    string   `hcl:"op"`
	In    string   `hcl:"in"`
	Value *float64 `hcl:"value,optional"`
	Other string   `hcl:"other,optional"`
}

// Validate checks the operator and the right-hand side.
func (in *ArithmeticInput) Validate() error {
	if _, _, err := engine.ArithOp(in.Op).Eval(0, 1); err != nil {
		return err
	}
	return checkOperand(in.Value, in.Other)
}

func checkOperand(value *float64, other string) error {
	if (value == nil) == (other == "") {
		return errors.New("exactly one of 'value' or 'other' must be set")
	}
	return nil
}

func operand(value *float64, other string) engine.Operand {
	if other != "" {
		return engine.LayerOperand(other)
	}
	return engine.Const(*value)
}

// LogicalInput combines two layers.
type LogicalInput struct {
	Op  string `hcl:"op"`
	In1 string `hcl:"in1"`
	In2 string `hcl:"in2"`
}

// Validate checks the operator.
func (in *LogicalInput) Validate() error {
	_, err := engine.LogicalOp(in.Op).Eval(false, false)
	return err
}

// UnaryInput names a single input layer.
type UnaryInput struct {
	In string `hcl:"in"`
}

// SetNoDataInput marks Back as no-data.
type SetNoDataInput struct {
	In   string  `hcl:"in"`
	Back float64 `hcl:"back,optional"`
}

// CalculateInput evaluates Expr cell by cell. Vars maps expression
// identifiers to layers.
type CalculateInput struct {
	Expr string            `hcl:"expr"`
	Vars map[string]string `hcl:"vars"`
}

// Validate requires an expression and at least one layer.
func (in *CalculateInput) Validate() error {
	if in.Expr == "" {
		return errors.New("expr must not be empty")
	}
	if len(in.Vars) == 0 {
		return errors.New("vars must name at least one layer")
	}
	return nil
}

// Register registers the handlers with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(registry.Typed("reclass", "Reclassify values by table", runReclass))
	r.Register(registry.Typed("compare", "Cell-wise comparison producing 1 or 0", runCompare))
	r.Register(registry.Typed("logical", "Boolean and/or/xor of two layers", runLogical))
	r.Register(registry.Typed("not", "Boolean negation", runNot))
	r.Register(registry.Typed("arithmetic", "Cell-wise add/subtract/multiply/divide", runArithmetic))
	r.Register(registry.Typed("nodata_to_zero", "Replace no-data with 0", runNoDataToZero))
	r.Register(registry.Typed("set_nodata", "Treat a value as no-data", runSetNoData))
	r.Register(registry.Typed("calculate", "Evaluate a cell-wise expression", runCalculate))
}

func runReclass(ctx context.Context, env *registry.Env, layer string, in *ReclassInput) error {
	return env.Engine.Reclass(ctx, in.In, layer, in.ReclassTable())
}

func runCompare(ctx context.Context, env *registry.Env, layer string, in *CompareInput) error {
	return env.Engine.Compare(ctx, engine.CompareOp(in.Op), in.In, operand(in.Value, in.Other), layer)
}

func runLogical(ctx context.Context, env *registry.Env, layer string, in *LogicalInput) error {
	return env.Engine.Logical(ctx, engine.LogicalOp(in.Op), in.In1, in.In2, layer)
}

func runNot(ctx context.Context, env *registry.Env, layer string, in *UnaryInput) error {
	return env.Engine.Not(ctx, in.In, layer)
}

func runArithmetic(ctx context.Context, env *registry.Env, layer string, in *ArithmeticInput) error {
	return env.Engine.Arithmetic(ctx, engine.ArithOp(in.Op), in.In, operand(in.Value, in.Other), layer)
}

func runNoDataToZero(ctx context.Context, env *registry.Env, layer string, in *UnaryInput) error {
	return env.Engine.NoDataToZero(ctx, in.In, layer)
}

func runSetNoData(ctx context.Context, env *registry.Env, layer string, in *SetNoDataInput) error {
	return env.Engine.SetNoData(ctx, in.In, layer, in.Back)
}

func runCalculate(ctx context.Context, env *registry.Env, layer string, in *CalculateInput) error {
	return env.Engine.Calculate(ctx, in.Expr, in.Vars, layer)
}
