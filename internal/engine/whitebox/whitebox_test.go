package whitebox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records invocations and, for ZonalStatistics, writes the table
// document the real tool would produce.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	fail  string
	table string
}

func (f *fakeRunner) Run(_ context.Context, args []string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, args)
	if f.fail != "" && args[0] == "--run="+f.fail {
		return []byte("Error: input file not found"), errors.New("exit status 1")
	}
	for _, a := range args {
		if p, ok := strings.CutPrefix(a, "--out_table="); ok {
			if err := os.WriteFile(p, []byte(f.table), 0o600); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

func (f *fakeRunner) last() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func setup(t *testing.T) (*Engine, *fakeRunner, string, context.Context) {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "lc.tif")
	require.NoError(t, os.WriteFile(input, []byte("tif"), 0o600))

	runner := &fakeRunner{}
	e := New(runner, engine.NewWorkspace(dir, ".tif"))
	ctx := ctxlog.Discard(context.Background())
	require.NoError(t, e.Bind(ctx, "lc", engine.KindRaster, input))
	return e, runner, dir, ctx
}

func TestEngine_BuildsToolArguments(t *testing.T) {
	e, runner, dir, ctx := setup(t)
	lc := filepath.Join(dir, "lc.tif")

	require.NoError(t, e.Filter(ctx, engine.FilterMaximum, "lc", "rds_buffered", engine.Window{X: 3, Y: 3}))
	assert.Equal(t, []string{
		"--run=MaximumFilter",
		"--wd=" + dir,
		"--input=" + lc,
		"--output=" + filepath.Join(dir, "001_rds_buffered.tif"),
		"--filterx=3",
		"--filtery=3",
	}, runner.last())

	require.NoError(t, e.Compare(ctx, engine.OpGreaterEqual, "rds_buffered", engine.Const(10), "big"))
	assert.Contains(t, runner.last(), "--run=GreaterThan")
	assert.Contains(t, runner.last(), "--incl_equals")
	assert.Contains(t, runner.last(), "--input2=10")

	require.NoError(t, e.Reclass(ctx, "lc", "canopy", engine.ReclassTable{
		AssignMode: true,
		Entries:    []engine.ReclassEntry{{New: 1, From: 0}, {New: 0, From: 2}},
	}))
	assert.Contains(t, runner.last(), "--reclass_vals=1;0;0;2")
	assert.Contains(t, runner.last(), "--assign_mode")

	require.NoError(t, e.Reclass(ctx, "lc", "tiers", engine.ReclassTable{
		Entries: []engine.ReclassEntry{{New: 0, From: 0, To: 0.25}, {New: 100, From: 0.25, To: 10}},
	}))
	assert.Contains(t, runner.last(), "--reclass_vals=0;0;0.25;100;0.25;10")

	require.NoError(t, e.Clump(ctx, "canopy", "clumps", engine.ClumpOptions{Diag: true, ZeroBack: true}))
	assert.Subset(t, runner.last(), []string{"--run=Clump", "--diag", "--zero_back"})

	require.NoError(t, e.Not(ctx, "canopy", "not_canopy"))
	assert.Subset(t, runner.last(), []string{"--run=EqualTo", "--input2=0"})

	require.NoError(t, e.RasterArea(ctx, "clumps", "area", engine.AreaOptions{}))
	assert.Contains(t, runner.last(), "--units=map units")
	assert.NotContains(t, runner.last(), "--zero_back")

	require.NoError(t, e.Calculate(ctx, "if(r > 0, 99, c)", map[string]string{"c": "canopy", "r": "clumps"}, "burned"))
	assert.Contains(t, runner.last(), "--statement=if('"+filepath.Join(dir, "005_clumps.tif")+"' > 0, 99, '"+filepath.Join(dir, "003_canopy.tif")+"')")
}

func TestEngine_ZonalStatisticsParsesTable(t *testing.T) {
	e, runner, _, ctx := setup(t)
	runner.table = `<html><body><table>
<tr><th>Feature ID</th><th>Mean</th><th>Median</th><th>Minimum</th><th>Maximum</th></tr>
<tr><td>2</td><td>0.5</td><td>0.5</td><td>0</td><td>1</td></tr>
<tr><td>1</td><td>4</td><td>4</td><td>3</td><td>7</td></tr>
</table></body></html>`

	table, err := e.ZonalStatistics(ctx, "lc", "lc", raster.StatMax, "zmax")
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, raster.Row{Zone: 1, Value: 7}, table.Rows[0])
	assert.Equal(t, raster.Row{Zone: 2, Value: 1}, table.Rows[1])
	assert.Contains(t, runner.last(), "--stat=max")

	table, err = e.ZonalStatistics(ctx, "lc", "lc", raster.StatMin, "")
	require.NoError(t, err)
	assert.Equal(t, 3.0, table.Rows[0].Value)
	for _, a := range runner.last() {
		assert.False(t, strings.HasPrefix(a, "--output="), "no raster output requested")
	}
}

func TestEngine_Errors(t *testing.T) {
	e, runner, _, ctx := setup(t)

	runner.fail = "Clump"
	err := e.Clump(ctx, "lc", "clumps", engine.ClumpOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whitebox Clump")
	assert.Contains(t, err.Error(), "input file not found")

	err = e.Filter(ctx, engine.FilterMaximum, "missing", "x", engine.Window{X: 3, Y: 3})
	assert.ErrorIs(t, err, engine.ErrUnknownLayer)

	assert.Error(t, e.Bind(ctx, "dem", engine.KindRaster, "/no/such/file.tif"))
	assert.ErrorIs(t, e.Bind(ctx, "dem", engine.KindRaster, ""), engine.ErrUnknownLayer)
}
