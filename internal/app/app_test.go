package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/habitatgrid/internal/dag"
	"github.com/specialistvlad/habitatgrid/internal/executor"
	"github.com/specialistvlad/habitatgrid/internal/profile"
	"github.com/specialistvlad/habitatgrid/internal/raster"
	"github.com/specialistvlad/habitatgrid/internal/recipe"
	"github.com/specialistvlad/habitatgrid/internal/registry"
	"github.com/specialistvlad/habitatgrid/recipes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const blocksRecipe = `
input "cover" {
  path = "missing.asc"
}

step "compare" "canopy" {
  arguments {
    op    = "eq"
    in    = input.cover
    value = 1
  }
}

step "arithmetic" "canopy_scaled" {
  arguments {
    op    = "multiply"
    in    = layer.canopy
    value = 5
  }
}

output "scaled" {
  layer = layer.canopy_scaled
}
`

// writeProject lays out a recipe, an ASCII grid and a profile binding the
// grid to the recipe's only input.
func writeProject(t *testing.T) (recipePath, profilePath, dir string) {
	t.Helper()
	dir = t.TempDir()

	recipePath = filepath.Join(dir, "blocks.hcl")
	require.NoError(t, os.WriteFile(recipePath, []byte(blocksRecipe), 0o644))

	cover, err := raster.FromRows([][]float64{{1, 2}, {1, -9999}}, -9999)
	require.NoError(t, err)
	require.NoError(t, raster.SaveASCII(filepath.Join(dir, "cover.asc"), cover))

	profilePath = filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(profilePath, []byte(`
engine: memory
work_dir: out
workers: 2
bindings:
  cover: cover.asc
`), 0o644))
	return recipePath, profilePath, dir
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	_, err := NewConfig(Config{})
	assert.ErrorContains(t, err, "RecipePath is a required")

	_, err = NewConfig(Config{RecipePath: "r.hcl", Engine: "grass"})
	assert.ErrorContains(t, err, `invalid engine "grass"`)

	_, err = NewConfig(Config{RecipePath: "r.hcl", Workers: -2})
	assert.ErrorContains(t, err, "workers must not be negative")

	cfg, err := NewConfig(Config{RecipePath: "tree_blocks", Engine: profile.EngineMemory})
	require.NoError(t, err)
	assert.Equal(t, "tree_blocks", cfg.RecipePath)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		s := resolve(&Config{}, &profile.Profile{})
		assert.Equal(t, settings{workDir: DefaultWorkDir, engine: DefaultEngine, workers: DefaultWorkers}, s)
	})

	t.Run("flags override profile", func(t *testing.T) {
		p := &profile.Profile{WorkDir: "/p/out", Engine: profile.EngineMemory, Workers: 3,
			Whitebox: profile.Whitebox{Binary: "/p/wbt", Verbose: true}}
		s := resolve(&Config{WorkDir: "/flag/out", Workers: 8}, p)
		assert.Equal(t, settings{
			workDir:        "/flag/out",
			engine:         profile.EngineMemory,
			whiteboxBinary: "/p/wbt",
			verbose:        true,
			workers:        8,
		}, s)
	})
}

func TestRun_MemoryEngine(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	recipePath, profilePath, dir := writeProject(t)
	cfg := &Config{RecipePath: recipePath, ProfilePath: profilePath}
	a, _ := SetupAppTest(t, cfg)

	// --- Act ---
	err := a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	out := filepath.Join(dir, "out")

	scaled, err := raster.LoadASCII(filepath.Join(out, "002_canopy_scaled.asc"))
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 0, 5}, scaled.Cells[:3])
	assert.True(t, scaled.IsNoData(scaled.Cells[3]))

	data, err := os.ReadFile(filepath.Join(out, executor.ManifestFile))
	require.NoError(t, err)
	var m executor.Manifest
	require.NoError(t, yaml.Unmarshal(data, &m))
	assert.Equal(t, "succeeded", m.Status)
	require.Len(t, m.Steps, 2)
	assert.Equal(t, "001_canopy.asc", m.Steps[0].File)

	status := a.currentExecutor().Status()
	assert.Equal(t, 2, status.Counts["done"])
}

func TestRun_DryRun(t *testing.T) {
	t.Parallel()

	recipePath, profilePath, dir := writeProject(t)
	cfg := &Config{RecipePath: recipePath, ProfilePath: profilePath, DryRun: true}
	out := &SafeBuffer{}
	a := NewApp(out, cfg)

	require.NoError(t, a.Run(context.Background()))

	assert.Contains(t, out.String(), "001  compare")
	assert.Contains(t, out.String(), "output scaled = layer.canopy_scaled")
	assert.NoDirExists(t, filepath.Join(dir, "out"))
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	recipePath, _, dir := writeProject(t)
	badProfile := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badProfile, []byte("bindings:\n  rivers: r.asc\n"), 0o644))

	testCases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"unknown recipe", Config{RecipePath: "no_such_recipe"}, "neither a file nor a built-in recipe"},
		{"undeclared binding", Config{RecipePath: recipePath, ProfilePath: badProfile}, "profile binds undeclared inputs: [rivers]"},
		{"missing input file", Config{RecipePath: recipePath, Engine: profile.EngineMemory, WorkDir: filepath.Join(dir, "unbound")}, `failed to bind input "cover"`},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := tc.cfg
			a, _ := SetupAppTest(t, &cfg)
			err := a.Run(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestBuiltinRecipeDryRun(t *testing.T) {
	t.Parallel()

	out := &SafeBuffer{}
	a := NewApp(out, &Config{RecipePath: "representativeness", DryRun: true})

	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, out.String(), "representativeness")
	assert.Contains(t, out.String(), "output summary = layer.represent")
}

func TestStatusHandler(t *testing.T) {
	t.Parallel()

	a, _ := SetupAppTest(t, &Config{RecipePath: "patches"})
	mux := a.healthMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())

	plan, err := dag.Build(a.ctx, mustBuiltin(t, "patches"), a.Registry())
	require.NoError(t, err)
	exec, err := executor.New(plan, &registry.Env{RunID: "run-42"})
	require.NoError(t, err)
	a.setExecutor(exec)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st executor.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "run-42", st.RunID)
	assert.Equal(t, 15, st.Total)
	assert.Equal(t, 15, st.Counts["pending"])
}

func mustBuiltin(t *testing.T, name string) *recipe.Recipe {
	t.Helper()
	rec, ok, err := recipes.Lookup(name)
	require.True(t, ok)
	require.NoError(t, err)
	return rec
}
