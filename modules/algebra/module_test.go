package algebra

import (
	"context"
	"testing"

	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/engine/memengine"
	"github.com/specialistvlad/habitatgrid/internal/raster"
	"github.com/specialistvlad/habitatgrid/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input registry.Validator
		want  string
	}{
		{"reclass ok", &ReclassInput{In: "lc", Table: [][]float64{{1, 0}}, AssignMode: true}, ""},
		{"reclass empty", &ReclassInput{In: "lc"}, "at least one row"},
		{"reclass ranges need three", &ReclassInput{In: "lc", Table: [][]float64{{1, 0}}}, "table row 0 has 2 values, want 3"},
		{"compare ok", &CompareInput{Op: "ge", In: "acres", Value: ptr(10)}, ""},
		{"compare bad op", &CompareInput{Op: "gte", In: "acres", Value: ptr(10)}, `comparison "gte"`},
		{"compare both operands", &CompareInput{Op: "eq", In: "a", Value: ptr(1), Other: "b"}, "exactly one of"},
		{"compare no operand", &CompareInput{Op: "eq", In: "a"}, "exactly one of"},
		{"arithmetic ok", &ArithmeticInput{Op: "divide", In: "area", Value: ptr(4046.86)}, ""},
		{"arithmetic bad op", &ArithmeticInput{Op: "modulo", In: "a", Other: "b"}, "modulo"},
		{"logical bad op", &LogicalInput{Op: "nand", In1: "a", In2: "b"}, "nand"},
		{"calculate no vars", &CalculateInput{Expr: "a * 2.0"}, "vars must name"},
		{"calculate no expr", &CalculateInput{Vars: map[string]string{"a": "lc"}}, "expr must not be empty"},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.input.Validate()
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestReclassTable(t *testing.T) {
	t.Parallel()

	assign := (&ReclassInput{Table: [][]float64{{1, 0}, {5, 6}}, AssignMode: true}).ReclassTable()
	assert.Equal(t, engine.ReclassTable{AssignMode: true, Entries: []engine.ReclassEntry{
		{New: 1, From: 0}, {New: 5, From: 6},
	}}, assign)

	ranges := (&ReclassInput{Table: [][]float64{{100, 0.25, 10}}}).ReclassTable()
	assert.Equal(t, engine.ReclassTable{Entries: []engine.ReclassEntry{
		{New: 100, From: 0.25, To: 10},
	}}, ranges)
}

func TestHandlers(t *testing.T) {
	t.Parallel()
	ctx := ctxlog.Discard(context.Background())

	// --- Arrange ---
	eng := memengine.New()
	cover, err := raster.FromRows([][]float64{{1, 2}, {3, -1}}, -1)
	require.NoError(t, err)
	eng.Put("cover", cover)

	reg := registry.New()
	(&Module{}).Register(reg)
	env := &registry.Env{Engine: eng}

	run := func(op, layer string, in any) {
		t.Helper()
		h, ok := reg.Lookup(op)
		require.True(t, ok, op)
		require.NoError(t, h.Run(ctx, env, layer, in))
	}

	// --- Act ---
	run("compare", "big", &CompareInput{Op: "ge", In: "cover", Value: ptr(2)})
	run("arithmetic", "big_cover", &ArithmeticInput{Op: "multiply", In: "cover", Other: "big"})
	run("nodata_to_zero", "big_cover0", &UnaryInput{In: "big_cover"})
	run("not", "small", &UnaryInput{In: "big"})

	// --- Assert ---
	big, err := eng.Layer("big_cover0")
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 2}, {3, 0}}, big.Rows())

	small, err := eng.Layer("small")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, small.Cells[:3])
	assert.True(t, small.IsNoData(small.Cells[3]))
}
