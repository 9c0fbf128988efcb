package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/specialistvlad/habitatgrid/internal/dag"
	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/engine/memengine"
	"github.com/specialistvlad/habitatgrid/internal/raster"
	"github.com/specialistvlad/habitatgrid/internal/recipe"
	"github.com/specialistvlad/habitatgrid/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type scaleInput struct {
	In string  `hcl:"in"`
	By float64 `hcl:"by"`
}

type layerInput struct {
	In string `hcl:"in"`
}

// harness wires a memengine and a registry whose ops record the order they
// were called in.
type harness struct {
	mu     sync.Mutex
	called []string

	eng *memengine.Engine
	ws  *engine.Workspace
	env *registry.Env
	reg *registry.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{ws: engine.NewWorkspace(dir, ".asc")}
	h.eng = memengine.New(memengine.WithExport(h.ws))

	cover, err := raster.FromRows([][]float64{{1, 2}, {3, 4}}, -1)
	require.NoError(t, err)
	h.eng.Put("cover", cover)

	h.env = &registry.Env{Engine: h.eng, Workspace: h.ws, WorkDir: dir, RunID: "run-1"}
	h.reg = registry.New()
	h.reg.Register(registry.Typed("scale", "multiplies a layer",
		func(ctx context.Context, env *registry.Env, layer string, in *scaleInput) error {
			h.record(layer)
			return env.Engine.Arithmetic(ctx, engine.OpMultiply, in.In, engine.Const(in.By), layer)
		}))
	h.reg.Register(registry.Typed("fail", "always fails",
		func(_ context.Context, _ *registry.Env, layer string, _ *layerInput) error {
			h.record(layer)
			return errors.New("boom")
		}))
	h.reg.Register(registry.Typed("slow", "waits for cancellation",
		func(ctx context.Context, _ *registry.Env, layer string, _ *layerInput) error {
			h.record(layer)
			<-ctx.Done()
			return ctx.Err()
		}))
	return h
}

func (h *harness) record(layer string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.called = append(h.called, layer)
}

func (h *harness) plan(t *testing.T, src string) *dag.Plan {
	t.Helper()
	rec, diags := recipe.Parse([]byte(src), "test.hcl")
	require.False(t, diags.HasErrors(), diags.Error())
	plan, err := dag.Build(ctxlog.Discard(context.Background()), rec, h.reg)
	require.NoError(t, err)
	return plan
}

func (h *harness) manifest(t *testing.T) Manifest {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.env.WorkDir, ManifestFile))
	require.NoError(t, err)
	var m Manifest
	require.NoError(t, yaml.Unmarshal(data, &m))
	return m
}

func statuses(m Manifest) map[string]string {
	out := make(map[string]string)
	for _, s := range m.Steps {
		out[s.Layer] = s.Status
	}
	return out
}

const chainRecipe = `
input "cover" {}

step "scale" "doubled" {
  arguments {
    in = input.cover
    by = 2
  }
}

step "scale" "sextupled" {
  arguments {
    in = layer.doubled
    by = 3
  }
}

output "result" {
  layer = layer.sextupled
}
`

func TestExecute_Sequential(t *testing.T) {
	t.Parallel()
	ctx := ctxlog.Discard(context.Background())

	// --- Arrange ---
	h := newHarness(t)
	ex, err := New(h.plan(t, chainRecipe), h.env)
	require.NoError(t, err)

	// --- Act ---
	err = ex.Execute(ctx)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"doubled", "sextupled"}, h.called)

	out, err := h.eng.Layer("sextupled")
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 12, 18, 24}, out.Cells)

	m := h.manifest(t)
	assert.Equal(t, "run-1", m.RunID)
	assert.Equal(t, "succeeded", m.Status)
	assert.Equal(t, []string{"test.hcl"}, m.Recipe)
	require.Len(t, m.Steps, 2)
	assert.Equal(t, "done", m.Steps[0].Status)
	assert.Equal(t, "001_doubled.asc", m.Steps[0].File)
	assert.Equal(t, "002_sextupled.asc", m.Steps[1].File)
	assert.Equal(t, []string{"cover"}, m.Steps[0].Inputs)
	assert.Equal(t, []string{"doubled"}, m.Steps[1].DependsOn)
	assert.FileExists(t, filepath.Join(h.env.WorkDir, "002_sextupled.asc"))

	st := ex.Status()
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 2, st.Counts["done"])
}

const failingRecipe = `
input "cover" {}

step "scale" "first" {
  arguments {
    in = input.cover
    by = 2
  }
}

step "fail" "broken" {
  arguments {
    in = layer.first
  }
}

step "scale" "downstream" {
  arguments {
    in = layer.broken
    by = 2
  }
}

step "scale" "unrelated" {
  arguments {
    in = input.cover
    by = 2
  }
}
`

func TestExecute_FailureSkipsDependents(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{1, 4} {
		workers := workers
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			t.Parallel()
			ctx := ctxlog.Discard(context.Background())

			// --- Arrange ---
			h := newHarness(t)
			ex, err := New(h.plan(t, failingRecipe), h.env, WithWorkers(workers))
			require.NoError(t, err)

			// --- Act ---
			err = ex.Execute(ctx)

			// --- Assert ---
			require.Error(t, err)
			assert.Equal(t, "execution failed for broken: boom", err.Error())
			assert.NotContains(t, h.called, "downstream")

			m := h.manifest(t)
			assert.Equal(t, "failed", m.Status)
			got := statuses(m)
			assert.Equal(t, "done", got["first"])
			assert.Equal(t, "failed", got["broken"])
			assert.Equal(t, "skipped", got["downstream"])
			for _, s := range m.Steps {
				if s.Layer == "downstream" {
					assert.Equal(t, "skipped due to upstream failure of 'broken'", s.Error)
				}
			}
		})
	}
}

func TestExecute_SequentialAbortsIndependentSteps(t *testing.T) {
	t.Parallel()
	ctx := ctxlog.Discard(context.Background())

	h := newHarness(t)
	ex, err := New(h.plan(t, failingRecipe), h.env)
	require.NoError(t, err)

	require.Error(t, ex.Execute(ctx))

	// Plan order is first, broken, downstream, unrelated.
	assert.Equal(t, []string{"first", "broken"}, h.called)
	assert.Equal(t, "skipped", statuses(h.manifest(t))["unrelated"])
}

func TestExecute_ConcurrentBranches(t *testing.T) {
	t.Parallel()
	ctx := ctxlog.Discard(context.Background())

	// --- Arrange ---
	src := `
input "cover" {}
step "scale" "a" {
  arguments {
    in = input.cover
    by = 1
  }
}
step "scale" "b" {
  arguments {
    in = input.cover
    by = 2
  }
}
step "scale" "c" {
  arguments {
    in = layer.a
    by = 3
  }
}
step "scale" "d" {
  arguments {
    in = layer.b
    by = 4
  }
}
`
	h := newHarness(t)
	ex, err := New(h.plan(t, src), h.env, WithWorkers(3))
	require.NoError(t, err)

	// --- Act ---
	require.NoError(t, ex.Execute(ctx))

	// --- Assert ---
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, h.called)
	d, err := h.eng.Layer("d")
	require.NoError(t, err)
	assert.Equal(t, []float64{8, 16, 24, 32}, d.Cells)
	assert.Equal(t, 4, ex.Status().Counts["done"])
}

func TestExecute_StepTimeout(t *testing.T) {
	t.Parallel()
	ctx := ctxlog.Discard(context.Background())

	src := `
input "cover" {}
step "slow" "stuck" {
  timeout = "20ms"
  arguments {
    in = input.cover
  }
}
`
	h := newHarness(t)
	ex, err := New(h.plan(t, src), h.env)
	require.NoError(t, err)

	err = ex.Execute(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "step timed out after 20ms")
}

func TestExecute_Interrupted(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(ctxlog.Discard(context.Background()))
	cancel()

	h := newHarness(t)
	ex, err := New(h.plan(t, chainRecipe), h.env)
	require.NoError(t, err)

	err = ex.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.called)
	assert.Equal(t, 2, ex.Status().Counts["skipped"])
}

func TestExecute_BindFailure(t *testing.T) {
	t.Parallel()
	ctx := ctxlog.Discard(context.Background())

	src := `
input "missing" {
  path = "nowhere.asc"
}
step "scale" "x" {
  arguments {
    in = input.missing
    by = 1
  }
}
`
	h := newHarness(t)
	ex, err := New(h.plan(t, src), h.env)
	require.NoError(t, err)

	err = ex.Execute(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `failed to bind input "missing"`)
	assert.Equal(t, "pending", statuses(h.manifest(t))["x"])
}

func TestPrintPlan(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	var buf bytes.Buffer
	require.NoError(t, PrintPlan(&buf, h.plan(t, chainRecipe)))

	want := "001  scale                  doubled <- input.cover\n" +
		"002  scale                  sextupled <- layer.doubled\n" +
		"output result = layer.sextupled\n"
	assert.Equal(t, want, buf.String())
}
