// Package whitebox implements engine.Engine on top of the WhiteboxTools
// command line. Every primitive becomes one tool invocation reading and
// writing files in a numbered working directory.
package whitebox

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/raster"
)

// Engine drives whitebox_tools through a Runner.
type Engine struct {
	runner  Runner
	ws      *engine.Workspace
	verbose bool
}

var _ engine.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithVerbose passes -v to every tool invocation.
func WithVerbose(v bool) Option {
	return func(e *Engine) { e.verbose = v }
}

// New returns an engine writing into ws.
func New(runner Runner, ws *engine.Workspace, opts ...Option) *Engine {
	e := &Engine{runner: runner, ws: ws}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// run invokes one tool. Inputs are resolved to paths, the output is
// allocated in the workspace, and the tool arguments are built by args.
func (e *Engine) run(ctx context.Context, tool string, inputs []string, out string, args func(in []string, outPath string) []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	paths := make([]string, len(inputs))
	for i, name := range inputs {
		p, err := e.ws.Path(name)
		if err != nil {
			return err
		}
		paths[i] = p
	}
	var outPath string
	if out != "" {
		p, err := e.ws.Allocate(out)
		if err != nil {
			return err
		}
		outPath = p
	}
	return e.exec(ctx, tool, args(paths, outPath))
}

func (e *Engine) exec(ctx context.Context, tool string, toolArgs []string) error {
	argv := []string{"--run=" + tool, "--wd=" + e.ws.Dir()}
	argv = append(argv, toolArgs...)
	if e.verbose {
		argv = append(argv, "-v")
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Invoking whitebox tool.", "tool", tool, "args", argv)

	output, err := e.runner.Run(ctx, argv)
	if err != nil {
		return fmt.Errorf("whitebox %s: %w: %s", tool, err, strings.TrimSpace(string(output)))
	}
	if e.verbose && len(output) > 0 {
		logger.Debug("Whitebox tool output.", "tool", tool, "output", string(output))
	}
	return nil
}

// operandArg renders a layer path or a constant for --input2.
func (e *Engine) operandArg(rhs engine.Operand) (string, error) {
	if !rhs.IsLayer() {
		return num(rhs.Value), nil
	}
	return e.ws.Path(rhs.Layer)
}

// Bind implements engine.Engine.
func (e *Engine) Bind(ctx context.Context, name string, kind engine.Kind, path string) error {
	if path == "" {
		return fmt.Errorf("%s input %q: %w: a path is required", kind, name, engine.ErrUnknownLayer)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%s input %q: %w", kind, name, err)
	}
	ctxlog.FromContext(ctx).Debug("Input bound.", "input", name, "kind", kind, "path", path)
	return e.ws.Bind(name, path)
}

// Reclass implements engine.Engine.
func (e *Engine) Reclass(ctx context.Context, in, out string, table engine.ReclassTable) error {
	vals := make([]string, 0, len(table.Entries)*3)
	for _, en := range table.Entries {
		if table.AssignMode {
			vals = append(vals, num(en.New), num(en.From))
		} else {
			vals = append(vals, num(en.New), num(en.From), num(en.To))
		}
	}
	return e.run(ctx, "Reclass", []string{in}, out, func(p []string, o string) []string {
		args := []string{"--input=" + p[0], "--output=" + o, "--reclass_vals=" + strings.Join(vals, ";")}
		if table.AssignMode {
			args = append(args, "--assign_mode")
		}
		return args
	})
}

var compareTools = map[engine.CompareOp]struct {
	tool string
	incl bool
}{
	engine.OpEqual:        {"EqualTo", false},
	engine.OpNotEqual:     {"NotEqualTo", false},
	engine.OpGreater:      {"GreaterThan", false},
	engine.OpGreaterEqual: {"GreaterThan", true},
	engine.OpLess:         {"LessThan", false},
	engine.OpLessEqual:    {"LessThan", true},
}

// Compare implements engine.Engine.
func (e *Engine) Compare(ctx context.Context, op engine.CompareOp, in string, rhs engine.Operand, out string) error {
	t, ok := compareTools[op]
	if !ok {
		return fmt.Errorf("%w: comparison %q", engine.ErrUnsupported, op)
	}
	in2, err := e.operandArg(rhs)
	if err != nil {
		return err
	}
	return e.run(ctx, t.tool, []string{in}, out, func(p []string, o string) []string {
		args := []string{"--input1=" + p[0], "--input2=" + in2, "--output=" + o}
		if t.incl {
			args = append(args, "--incl_equals")
		}
		return args
	})
}

var logicalTools = map[engine.LogicalOp]string{
	engine.OpAnd: "And",
	engine.OpOr:  "Or",
	engine.OpXor: "Xor",
}

// Logical implements engine.Engine.
func (e *Engine) Logical(ctx context.Context, op engine.LogicalOp, in1, in2, out string) error {
	tool, ok := logicalTools[op]
	if !ok {
		return fmt.Errorf("%w: logical operator %q", engine.ErrUnsupported, op)
	}
	return e.run(ctx, tool, []string{in1, in2}, out, func(p []string, o string) []string {
		return []string{"--input1=" + p[0], "--input2=" + p[1], "--output=" + o}
	})
}

// Not implements engine.Engine. The WhiteboxTools Not tool is binary
// (input1 AND NOT input2), so a unary negation is an equality test with 0.
func (e *Engine) Not(ctx context.Context, in, out string) error {
	return e.run(ctx, "EqualTo", []string{in}, out, func(p []string, o string) []string {
		return []string{"--input1=" + p[0], "--input2=0", "--output=" + o}
	})
}

var arithTools = map[engine.ArithOp]string{
	engine.OpAdd:      "Add",
	engine.OpSubtract: "Subtract",
	engine.OpMultiply: "Multiply",
	engine.OpDivide:   "Divide",
}

// Arithmetic implements engine.Engine.
func (e *Engine) Arithmetic(ctx context.Context, op engine.ArithOp, in string, rhs engine.Operand, out string) error {
	tool, ok := arithTools[op]
	if !ok {
		return fmt.Errorf("%w: arithmetic operator %q", engine.ErrUnsupported, op)
	}
	in2, err := e.operandArg(rhs)
	if err != nil {
		return err
	}
	return e.run(ctx, tool, []string{in}, out, func(p []string, o string) []string {
		return []string{"--input1=" + p[0], "--input2=" + in2, "--output=" + o}
	})
}

var filterTools = map[engine.FilterKind]string{
	engine.FilterMaximum:  "MaximumFilter",
	engine.FilterMinimum:  "MinimumFilter",
	engine.FilterMajority: "MajorityFilter",
}

// Filter implements engine.Engine.
func (e *Engine) Filter(ctx context.Context, kind engine.FilterKind, in, out string, window engine.Window) error {
	tool, ok := filterTools[kind]
	if !ok {
		return fmt.Errorf("%w: filter %q", engine.ErrUnsupported, kind)
	}
	if err := window.Validate(); err != nil {
		return err
	}
	return e.run(ctx, tool, []string{in}, out, func(p []string, o string) []string {
		return []string{
			"--input=" + p[0],
			"--output=" + o,
			"--filterx=" + strconv.Itoa(window.X),
			"--filtery=" + strconv.Itoa(window.Y),
		}
	})
}

// Clump implements engine.Engine.
func (e *Engine) Clump(ctx context.Context, in, out string, opts engine.ClumpOptions) error {
	return e.run(ctx, "Clump", []string{in}, out, func(p []string, o string) []string {
		args := []string{"--input=" + p[0], "--output=" + o}
		if opts.Diag {
			args = append(args, "--diag")
		}
		if opts.ZeroBack {
			args = append(args, "--zero_back")
		}
		return args
	})
}

// NoDataToZero implements engine.Engine.
func (e *Engine) NoDataToZero(ctx context.Context, in, out string) error {
	return e.run(ctx, "ConvertNodataToZero", []string{in}, out, func(p []string, o string) []string {
		return []string{"--input=" + p[0], "--output=" + o}
	})
}

// SetNoData implements engine.Engine.
func (e *Engine) SetNoData(ctx context.Context, in, out string, back float64) error {
	return e.run(ctx, "SetNodataValue", []string{in}, out, func(p []string, o string) []string {
		return []string{"--input=" + p[0], "--output=" + o, "--back_value=" + num(back)}
	})
}

// RasterArea implements engine.Engine.
func (e *Engine) RasterArea(ctx context.Context, in, out string, opts engine.AreaOptions) error {
	return e.run(ctx, "RasterArea", []string{in}, out, func(p []string, o string) []string {
		args := []string{"--input=" + p[0], "--output=" + o, "--units=map units"}
		if opts.ZeroBack {
			args = append(args, "--zero_back")
		}
		return args
	})
}

// ZonalStatistics implements engine.Engine. The table is always requested
// and parsed back from the HTML document the tool writes.
func (e *Engine) ZonalStatistics(ctx context.Context, values, zones string, stat raster.Stat, out string) (*raster.Table, error) {
	if stat != raster.StatMin && stat != raster.StatMax {
		return nil, fmt.Errorf("%w: zonal statistic %q", engine.ErrUnsupported, stat)
	}
	tableName := out
	if tableName == "" {
		tableName = values + "_by_" + zones
	}
	tablePath, err := e.ws.AllocateTable(tableName)
	if err != nil {
		return nil, err
	}
	err = e.run(ctx, "ZonalStatistics", []string{values, zones}, out, func(p []string, o string) []string {
		args := []string{"--input=" + p[0], "--features=" + p[1], "--stat=" + string(stat), "--out_table=" + tablePath}
		if o != "" {
			args = append(args, "--output="+o)
		}
		return args
	})
	if err != nil {
		return nil, err
	}
	return readTableFile(tablePath, stat)
}

// RasterizePolygons implements engine.Engine.
func (e *Engine) RasterizePolygons(ctx context.Context, vector, field, base, out string, noDataBackground bool) error {
	return e.run(ctx, "VectorPolygonsToRaster", []string{vector, base}, out, func(p []string, o string) []string {
		args := []string{"--input=" + p[0], "--field=" + field, "--output=" + o, "--base=" + p[1]}
		if noDataBackground {
			args = append(args, "--nodata")
		}
		return args
	})
}

// Calculate implements engine.Engine using RasterCalculator. Identifiers in
// expr are replaced by the quoted file names of their layers; the
// expression itself must use the RasterCalculator syntax.
func (e *Engine) Calculate(ctx context.Context, expr string, vars map[string]string, out string) error {
	if len(vars) == 0 {
		return fmt.Errorf("calculate %q: at least one layer variable is required", expr)
	}
	idents := make([]string, 0, len(vars))
	for ident := range vars {
		idents = append(idents, ident)
	}
	sort.Strings(idents)
	names := make([]string, len(idents))
	for i, ident := range idents {
		names[i] = vars[ident]
	}

	quoted := make([]string, len(idents))
	for i, ident := range idents {
		quoted[i] = regexp.QuoteMeta(ident)
	}
	re, err := regexp.Compile(`\b(` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return fmt.Errorf("calculate %q: %w", expr, err)
	}

	return e.run(ctx, "RasterCalculator", names, out, func(p []string, o string) []string {
		paths := make(map[string]string, len(idents))
		for i, ident := range idents {
			paths[ident] = p[i]
		}
		statement := re.ReplaceAllStringFunc(expr, func(ident string) string {
			return "'" + paths[ident] + "'"
		})
		return []string{"--output=" + o, "--statement=" + statement}
	})
}
