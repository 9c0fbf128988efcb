package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReclassTable_Lookup(t *testing.T) {
	t.Run("range mode is half-open", func(t *testing.T) {
		tiers := ReclassTable{Entries: []ReclassEntry{
			{New: 0, From: 0, To: 0.25},
			{New: 100, From: 0.25, To: 10},
			{New: 1000, From: 10, To: 1e18},
		}}

		for _, tc := range []struct {
			acres float64
			want  float64
		}{
			{0, 0}, {0.2499, 0}, {0.25, 100}, {9.99, 100}, {10, 1000}, {500, 1000},
		} {
			got, ok := tiers.Lookup(tc.acres)
			require.True(t, ok, "acres %v", tc.acres)
			assert.Equal(t, tc.want, got, "acres %v", tc.acres)
		}

		_, ok := tiers.Lookup(-1)
		assert.False(t, ok)
	})

	t.Run("assign mode matches exact values", func(t *testing.T) {
		tbl := ReclassTable{AssignMode: true, Entries: []ReclassEntry{{New: 1, From: 3}, {New: 0, From: 4}}}
		v, ok := tbl.Lookup(3)
		require.True(t, ok)
		assert.Equal(t, 1.0, v)
		_, ok = tbl.Lookup(3.5)
		assert.False(t, ok)
	})
}

func TestOps_Eval(t *testing.T) {
	ok, err := OpGreaterEqual.Eval(10, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = CompareOp("between").Eval(1, 2)
	assert.ErrorIs(t, err, ErrUnsupported)

	v, valid, err := OpDivide.Eval(1, 0)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Zero(t, v)

	b, err := OpXor.Eval(true, true)
	require.NoError(t, err)
	assert.False(t, b)

	assert.Error(t, Window{X: 2, Y: 3}.Validate())
	assert.NoError(t, Window{X: 9, Y: 9}.Validate())
	assert.Equal(t, "roads", LayerOperand("roads").String())
	assert.Equal(t, "4046.86", Const(4046.86).String())
}

func TestWorkspace_NumbersFilesInProductionOrder(t *testing.T) {
	ws := NewWorkspace("/work", ".tif")
	require.NoError(t, ws.Bind("lc", "/data/lc.tif"))

	p1, err := ws.Allocate("rds_buffered")
	require.NoError(t, err)
	p2, err := ws.AllocateTable("summary")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/work", "001_rds_buffered.tif"), p1)
	assert.Equal(t, filepath.Join("/work", "002_TABLE_summary.html"), p2)

	_, err = ws.Allocate("rds_buffered")
	assert.ErrorContains(t, err, "already has a producer")

	assert.Error(t, ws.Bind("rds_buffered", "/elsewhere.tif"))

	path, err := ws.Path("lc")
	require.NoError(t, err)
	assert.Equal(t, "/data/lc.tif", path)

	_, err = ws.Path("missing")
	assert.ErrorIs(t, err, ErrUnknownLayer)

	entries := ws.Entries()
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Input)
	assert.Equal(t, "rds_buffered", entries[1].Layer)
	assert.True(t, entries[2].Table)
}
