package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/habitatgrid/internal/raster"
)

var (
	// ErrUnknownLayer is returned when an operation names a layer that was
	// never bound or produced.
	ErrUnknownLayer = errors.New("unknown layer")
	// ErrMisaligned is returned when two rasters do not share a grid.
	ErrMisaligned = errors.New("rasters are not aligned")
	// ErrUnsupported is returned for an option an engine cannot honour.
	ErrUnsupported = errors.New("unsupported by engine")
)

// Engine is the set of whole-raster primitives a pipeline can call.
type Engine interface {
	// Bind registers an input binding under name.
	Bind(ctx context.Context, name string, kind Kind, path string) error

	Reclass(ctx context.Context, in, out string, table ReclassTable) error
	Compare(ctx context.Context, op CompareOp, in string, rhs Operand, out string) error
	Logical(ctx context.Context, op LogicalOp, in1, in2, out string) error
	Not(ctx context.Context, in, out string) error
	Arithmetic(ctx context.Context, op ArithOp, in string, rhs Operand, out string) error
	Filter(ctx context.Context, kind FilterKind, in, out string, window Window) error
	Clump(ctx context.Context, in, out string, opts ClumpOptions) error
	NoDataToZero(ctx context.Context, in, out string) error
	SetNoData(ctx context.Context, in, out string, back float64) error
	RasterArea(ctx context.Context, in, out string, opts AreaOptions) error

	// ZonalStatistics reduces values over each region of zones. When out is
	// non-empty the per-zone result is also written back as a raster.
	ZonalStatistics(ctx context.Context, values, zones string, stat raster.Stat, out string) (*raster.Table, error)

	RasterizePolygons(ctx context.Context, vector, field, base, out string, noDataBackground bool) error

	// Calculate evaluates a cell-wise expression. vars maps the identifiers
	// used in expr onto layer names.
	Calculate(ctx context.Context, expr string, vars map[string]string, out string) error
}

// Kind is the type of an input binding.
type Kind string

const (
	KindRaster Kind = "raster"
	KindVector Kind = "vector"
)

// ParseKind validates a binding kind; the empty string means raster.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindRaster:
		return KindRaster, nil
	case KindVector:
		return KindVector, nil
	}
	return "", fmt.Errorf("invalid input kind %q: must be 'raster' or 'vector'", s)
}

// CompareOp is a cell-wise comparison producing 1 or 0.
type CompareOp string

const (
	OpEqual        CompareOp = "eq"
	OpNotEqual     CompareOp = "ne"
	OpGreater      CompareOp = "gt"
	OpGreaterEqual CompareOp = "ge"
	OpLess         CompareOp = "lt"
	OpLessEqual    CompareOp = "le"
)

// Eval applies the comparison.
func (op CompareOp) Eval(a, b float64) (bool, error) {
	switch op {
	case OpEqual:
		return a == b, nil
	case OpNotEqual:
		return a != b, nil
	case OpGreater:
		return a > b, nil
	case OpGreaterEqual:
		return a >= b, nil
	case OpLess:
		return a < b, nil
	case OpLessEqual:
		return a <= b, nil
	}
	return false, fmt.Errorf("%w: comparison %q", ErrUnsupported, op)
}

// LogicalOp combines two layers treating any nonzero cell as true.
type LogicalOp string

const (
	OpAnd LogicalOp = "and"
	OpOr  LogicalOp = "or"
	OpXor LogicalOp = "xor"
)

func (op LogicalOp) Eval(a, b bool) (bool, error) {
	switch op {
	case OpAnd:
		return a && b, nil
	case OpOr:
		return a || b, nil
	case OpXor:
		return a != b, nil
	}
	return false, fmt.Errorf("%w: logical operator %q", ErrUnsupported, op)
}

// ArithOp is a cell-wise arithmetic operator.
type ArithOp string

const (
	OpAdd      ArithOp = "add"
	OpSubtract ArithOp = "subtract"
	OpMultiply ArithOp = "multiply"
	OpDivide   ArithOp = "divide"
)

// Eval applies the operator. ok is false for a division by zero.
func (op ArithOp) Eval(a, b float64) (v float64, ok bool, err error) {
	switch op {
	case OpAdd:
		return a + b, true, nil
	case OpSubtract:
		return a - b, true, nil
	case OpMultiply:
		return a * b, true, nil
	case OpDivide:
		if b == 0 {
			return 0, false, nil
		}
		return a / b, true, nil
	}
	return 0, false, fmt.Errorf("%w: arithmetic operator %q", ErrUnsupported, op)
}

// Operand is the right-hand side of a comparison or arithmetic call: either
// another layer or a constant.
type Operand struct {
	Layer string
	Value float64
}

// LayerOperand refers to a layer by name.
func LayerOperand(name string) Operand { return Operand{Layer: name} }

// Const is a constant operand.
func Const(v float64) Operand { return Operand{Value: v} }

// IsLayer reports whether the operand names a layer.
func (o Operand) IsLayer() bool { return o.Layer != "" }

func (o Operand) String() string {
	if o.IsLayer() {
		return o.Layer
	}
	return fmt.Sprintf("%g", o.Value)
}

// FilterKind selects a neighbourhood filter.
type FilterKind string

const (
	FilterMaximum  FilterKind = "maximum"
	FilterMinimum  FilterKind = "minimum"
	FilterMajority FilterKind = "majority"
)

// Window is a filter kernel size in cells. Both sides must be odd.
type Window struct {
	X int
	Y int
}

// Validate checks the kernel dimensions.
func (w Window) Validate() error {
	if w.X < 1 || w.Y < 1 || w.X%2 == 0 || w.Y%2 == 0 {
		return fmt.Errorf("filter window %dx%d: sides must be odd and positive", w.X, w.Y)
	}
	return nil
}

// ClumpOptions controls connected-component labelling.
type ClumpOptions struct {
	// Diag joins cells across diagonals (8-connectivity).
	Diag bool
	// ZeroBack treats zero cells as background.
	ZeroBack bool
}

// AreaOptions controls RasterArea.
type AreaOptions struct {
	ZeroBack bool
}

// ReclassTable maps input values onto new values. In assign mode each entry
// is (New, From); otherwise each entry covers the half-open range
// [From, To).
type ReclassTable struct {
	AssignMode bool
	Entries    []ReclassEntry
}

type ReclassEntry struct {
	New  float64
	From float64
	To   float64
}

// Lookup returns the new value for v, reporting false when no entry matches.
func (t ReclassTable) Lookup(v float64) (float64, bool) {
	for _, e := range t.Entries {
		if t.AssignMode {
			if v == e.From {
				return e.New, true
			}
			continue
		}
		if v >= e.From && v < e.To {
			return e.New, true
		}
	}
	return 0, false
}
