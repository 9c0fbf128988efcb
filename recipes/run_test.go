package recipes_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ctessum/geom"
	"github.com/specialistvlad/habitatgrid/internal/classify"
	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/specialistvlad/habitatgrid/internal/dag"
	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/engine/memengine"
	"github.com/specialistvlad/habitatgrid/internal/engine/whitebox"
	"github.com/specialistvlad/habitatgrid/internal/executor"
	"github.com/specialistvlad/habitatgrid/internal/raster"
	"github.com/specialistvlad/habitatgrid/internal/registry"
	"github.com/specialistvlad/habitatgrid/recipes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const nd = -1.0

// grid builds a layer whose map extent starts at the origin, so polygon
// coordinates are cell indices times cellSize.
func grid(t *testing.T, cellSize float64, rows [][]float64) *raster.Layer {
	t.Helper()
	l, err := raster.FromRows(rows, nd)
	require.NoError(t, err)
	l.CellSize = cellSize
	l.OriginY = float64(l.Height) * cellSize
	return l
}

// fill returns a width x height grid of v.
func fill(width, height int, v float64) [][]float64 {
	rows := make([][]float64, height)
	for y := range rows {
		rows[y] = make([]float64, width)
		for x := range rows[y] {
			rows[y][x] = v
		}
	}
	return rows
}

// runBuiltin executes a built-in recipe on memengine with the layers and
// features load puts in place of its inputs.
func runBuiltin(t *testing.T, name string, load func(e *memengine.Engine)) (*memengine.Engine, string) {
	t.Helper()
	ctx := ctxlog.Discard(context.Background())

	rec, ok, err := recipes.Lookup(name)
	require.True(t, ok)
	require.NoError(t, err)
	plan, err := dag.Build(ctx, rec, fullRegistry())
	require.NoError(t, err)

	dir := t.TempDir()
	ws := engine.NewWorkspace(dir, ".asc")
	eng := memengine.New(memengine.WithExport(ws))
	load(eng)

	exec, err := executor.New(plan, &registry.Env{Engine: eng, Workspace: ws, WorkDir: dir, RunID: "run-" + name})
	require.NoError(t, err)
	require.NoError(t, exec.Execute(ctx))
	assert.FileExists(t, filepath.Join(dir, executor.ManifestFile))
	return eng, dir
}

func rowsOf(t *testing.T, e *memengine.Engine, name string) [][]float64 {
	t.Helper()
	l, err := e.Layer(name)
	require.NoError(t, err)
	return l.Rows()
}

// valid counts the data cells of a layer.
func valid(t *testing.T, e *memengine.Engine, name string) int {
	t.Helper()
	l, err := e.Layer(name)
	require.NoError(t, err)
	n := 0
	for _, v := range l.Cells {
		if !l.IsNoData(v) {
			n++
		}
	}
	return n
}

func TestConnectorsRecipe_SpurAndHole(t *testing.T) {
	t.Parallel()

	// 30 m cells: the 7x8 block is about 12.5 acres and the wet patch a
	// single 0.22 acre cell. Everything else is farmland.
	const cell = 30.0
	load := func(blocks, landcover [][]float64) func(e *memengine.Engine) {
		return func(e *memengine.Engine) {
			e.Put("blocks", grid(t, cell, blocks))
			e.Put("landcover", grid(t, cell, landcover))
			for _, name := range []string{"roads", "wetlands", "hydro", "flood"} {
				e.Put(name, grid(t, cell, fill(10, 8, 0)))
			}
		}
	}
	blockRows := func() (blocks, landcover [][]float64) {
		blocks, landcover = fill(10, 8, 0), fill(10, 8, 4)
		for y := 0; y < 7; y++ {
			for x := 0; x < 8; x++ {
				blocks[y][x] = 1
				landcover[y][x] = 0
			}
		}
		return blocks, landcover
	}

	t.Run("patch on the block edge is a spur", func(t *testing.T) {
		t.Parallel()
		blocks, landcover := blockRows()
		landcover[7][3] = 3

		e, _ := runBuiltin(t, "connectors", load(blocks, landcover))

		got := rowsOf(t, e, "connector_classes")
		assert.Equal(t, float64(classify.Spur), got[7][3])
		assert.Equal(t, 1, valid(t, e, "connector_classes"))
	})

	t.Run("patch ringed by the block is a hole", func(t *testing.T) {
		t.Parallel()
		blocks, landcover := blockRows()
		blocks[3][3] = 0
		landcover[3][3] = 3

		e, _ := runBuiltin(t, "connectors", load(blocks, landcover))

		got := rowsOf(t, e, "connector_classes")
		assert.Equal(t, float64(classify.Hole), got[3][3])
		assert.Equal(t, 1, valid(t, e, "connector_classes"))
	})
}

func TestTreeBlocksRecipe(t *testing.T) {
	t.Parallel()

	// A 12x12 canopy of 30 m cells is one 32 acre block: C1 but not C2.
	// The western half holds a rare, dry community, so C3 qualifies at
	// exactly one half and C4 does not.
	const cell = 30.0
	communities := fill(12, 12, 5)
	for y := range communities {
		for x := 0; x < 6; x++ {
			communities[y][x] = 4
		}
	}

	e, _ := runBuiltin(t, "tree_blocks", func(e *memengine.Engine) {
		e.Put("landcover", grid(t, cell, fill(12, 12, 0)))
		e.Put("roads", grid(t, cell, fill(12, 12, 0)))
		e.Put("wetlands", grid(t, cell, fill(12, 12, 0)))
		e.Put("natural_communities", grid(t, cell, communities))
	})

	assert.Equal(t, fill(12, 12, 1), rowsOf(t, e, "c1_block_labels"))
	assert.Equal(t, 0, valid(t, e, "c2_block_clumps"))
	assert.Equal(t, fill(12, 12, 1), rowsOf(t, e, "c3_block_clumps"))
	assert.Equal(t, 0, valid(t, e, "c4_block_clumps"))
}

func TestPatchesRecipe(t *testing.T) {
	t.Parallel()

	// 30 m cells, about 0.22 acres each. Rows 0-5 are canopy around a
	// two-cell building footprint on farmland and one stray farmland cell;
	// a fragmenting road runs along row 7; row 9 is farmland with a hydro
	// patch at its western end.
	const cell = 30.0
	landcover := fill(10, 10, 0)
	landcover[1][1], landcover[1][2] = 4, 4
	landcover[4][8] = 4
	for x := 0; x < 10; x++ {
		landcover[9][x] = 4
	}
	roads := fill(10, 10, 0)
	for x := 0; x < 10; x++ {
		roads[7][x] = 1
	}
	hydro := fill(10, 10, nd)
	hydro[9][0], hydro[9][1] = 5, 5
	hydro[7][5] = 5

	e, _ := runBuiltin(t, "patches", func(e *memengine.Engine) {
		e.Put("landcover", grid(t, cell, landcover))
		e.Put("roads", grid(t, cell, roads))
		e.Put("hydro_patches", grid(t, cell, hydro))
		e.PutFeatures("buildings", []memengine.Feature{{
			Polygonal: geom.Polygon{{
				{X: 30, Y: 240}, {X: 90, Y: 240}, {X: 90, Y: 270}, {X: 30, Y: 270}, {X: 30, Y: 240},
			}},
			Fields: map[string]string{"CODE": "6"},
		}})
	})

	codes := rowsOf(t, e, "patch_codes")
	assert.Equal(t, 105.0, codes[1][1], "building footprint is a medium built patch")
	assert.Equal(t, 1001.0, codes[4][8], "stray cell is plugged into the large canopy")
	assert.Equal(t, 199.0, codes[7][0])
	assert.Equal(t, 104.0, codes[9][5])

	want := fill(10, 10, 1)
	want[1][1], want[1][2] = 4, 4
	for y := 6; y <= 8; y++ {
		for x := 0; x < 10; x++ {
			want[y][x] = 99
		}
	}
	for x := 0; x < 10; x++ {
		want[9][x] = 3
	}
	want[9][0], want[9][1] = 2, 2
	assert.Equal(t, want, rowsOf(t, e, "patches"))
}

func TestRepresentativenessRecipe(t *testing.T) {
	t.Parallel()

	e, dir := runBuiltin(t, "representativeness", func(e *memengine.Engine) {
		e.Put("natural_communities", grid(t, 1, [][]float64{{1, 1, 2}, {2, 3, 3}}))
		e.Put("protected", grid(t, 1, [][]float64{{2, 0, 0}, {0, 2, 0}}))
		e.Put("blocks", grid(t, 1, [][]float64{{0, 1, 0}, {0, 0, 0}}))
		e.Put("connectors", grid(t, 1, [][]float64{{0, 0, classify.Spur}, {0, 0, classify.Island}}))
		e.PutFeatures("town", []memengine.Feature{{
			Polygonal: geom.Polygon{{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 2}, {X: 0, Y: 2}, {X: 0, Y: 0}}},
			Fields:    map[string]string{"FIPS6": "50001"},
		}})
	})

	assert.Equal(t, [][]float64{{50001, 50001, 50001}, {50001, 50001, 50001}}, rowsOf(t, e, "town_raster"))

	data, err := os.ReadFile(filepath.Join(dir, "represent.yaml"))
	require.NoError(t, err)
	var summary struct {
		RunID string `yaml:"run_id"`
		Sets  []struct {
			Name  string  `yaml:"name"`
			Total float64 `yaml:"total_acres"`
		} `yaml:"sets"`
	}
	require.NoError(t, yaml.Unmarshal(data, &summary))
	assert.Equal(t, "run-representativeness", summary.RunID)

	acre := 1 / classify.SquareMetresPerAcre
	cells := map[string]float64{"town": 6, "protected": 2, "blocks_protected": 3, "blocks_protected_connectors": 4}
	require.Len(t, summary.Sets, 4)
	for _, set := range summary.Sets {
		assert.InDelta(t, cells[set.Name]*acre, set.Total, 1e-12, set.Name)
	}
}

// zonalRunner stands in for whitebox_tools, writing one zonal table for
// every ZonalStatistics call.
type zonalRunner struct {
	mu    sync.Mutex
	tools []string
}

func (r *zonalRunner) Run(_ context.Context, args []string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = append(r.tools, strings.TrimPrefix(args[0], "--run="))
	for _, a := range args {
		if p, ok := strings.CutPrefix(a, "--out_table="); ok {
			doc := `<table>
<tr><th>Feature ID</th><th>Minimum</th><th>Maximum</th></tr>
<tr><td>1</td><td>0</td><td>3</td></tr>
</table>`
			if err := os.WriteFile(p, []byte(doc), 0o600); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

func TestRepresentativenessRecipe_WhiteboxEngine(t *testing.T) {
	t.Parallel()
	ctx := ctxlog.Discard(context.Background())

	// --- Arrange ---
	dir := t.TempDir()
	rec, ok, err := recipes.Lookup("representativeness")
	require.True(t, ok)
	require.NoError(t, err)
	for _, in := range rec.Inputs {
		in.Path = filepath.Join(dir, in.Name+".tif")
		require.NoError(t, os.WriteFile(in.Path, []byte("tif"), 0o600))
	}
	plan, err := dag.Build(ctx, rec, fullRegistry())
	require.NoError(t, err)

	ws := engine.NewWorkspace(dir, ".tif")
	runner := &zonalRunner{}
	env := &registry.Env{Engine: whitebox.New(runner, ws), Workspace: ws, WorkDir: dir, RunID: "run-wb"}
	exec, err := executor.New(plan, env)
	require.NoError(t, err)

	// --- Act ---
	err = exec.Execute(ctx)

	// --- Assert ---
	require.NoError(t, err)
	assert.Contains(t, runner.tools, "VectorPolygonsToRaster")
	assert.FileExists(t, filepath.Join(dir, "represent.yaml"))

	var tables []string
	for _, entry := range ws.Entries() {
		if entry.Table {
			tables = append(tables, entry.Layer)
		}
	}
	assert.Contains(t, tables, "table:represent")
	assert.Contains(t, tables, "table:represent_summary")
}
