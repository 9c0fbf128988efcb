package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/specialistvlad/habitatgrid/internal/dag"
	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/engine/memengine"
	"github.com/specialistvlad/habitatgrid/internal/engine/whitebox"
	"github.com/specialistvlad/habitatgrid/internal/executor"
	"github.com/specialistvlad/habitatgrid/internal/profile"
	"github.com/specialistvlad/habitatgrid/internal/recipe"
	"github.com/specialistvlad/habitatgrid/internal/registry"
	"github.com/specialistvlad/habitatgrid/recipes"
)

// Run executes the main application logic based on the provided configuration.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer a.closeHealthCheckServer()

	rec, err := a.loadRecipe(ctx)
	if err != nil {
		return err
	}

	prof := &profile.Profile{}
	if a.config.ProfilePath != "" {
		if prof, err = profile.Load(a.config.ProfilePath); err != nil {
			return err
		}
		a.logger.Debug("Profile loaded.", "path", a.config.ProfilePath, "bindings", len(prof.Bindings))
	}
	if err := prof.Apply(rec); err != nil {
		return err
	}
	s := resolve(a.config, prof)

	plan, err := dag.Build(ctx, rec, a.registry)
	if err != nil {
		return fmt.Errorf("failed to build plan: %w", err)
	}
	if len(plan.Order) == 0 {
		a.logger.Warn("Recipe has no steps, execution not required.")
		return nil
	}

	if a.config.DryRun {
		return executor.PrintPlan(a.outW, plan)
	}

	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	env := &registry.Env{
		WorkDir: s.workDir,
		RunID:   uuid.NewString(),
	}
	env.Engine, env.Workspace = newEngine(s)
	a.logger.Info("Run configured.", "runID", env.RunID, "engine", s.engine, "workDir", s.workDir, "workers", s.workers)

	exec, err := executor.New(plan, env, executor.WithWorkers(s.workers))
	if err != nil {
		return err
	}
	a.setExecutor(exec)

	a.logger.Info("🚀 Starting execution...", "steps", len(plan.Order))
	if err := exec.Execute(ctx); err != nil {
		return err
	}
	a.logger.Info("🏁 Execution finished.")
	return nil
}

// loadRecipe reads the recipe from disk, or falls back to a built-in recipe
// of that name.
func (a *App) loadRecipe(ctx context.Context) (*recipe.Recipe, error) {
	path := a.config.RecipePath
	if _, err := os.Stat(path); err == nil {
		return recipe.Load(ctx, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read recipe: %w", err)
	}

	rec, ok, err := recipes.Lookup(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("recipe %q is neither a file nor a built-in recipe (built-in: %s)",
			path, strings.Join(recipes.Names(), ", "))
	}
	a.logger.Info("Using built-in recipe.", "name", path)
	return rec, nil
}

// newEngine builds the engine and workspace for the run settings.
func newEngine(s settings) (engine.Engine, *engine.Workspace) {
	if s.engine == profile.EngineMemory {
		ws := engine.NewWorkspace(s.workDir, ".asc")
		return memengine.New(memengine.WithExport(ws)), ws
	}
	ws := engine.NewWorkspace(s.workDir, ".tif")
	binary := s.whiteboxBinary
	if binary == "" {
		binary = whitebox.DefaultBinary
	}
	return whitebox.New(whitebox.ExecRunner{Binary: binary}, ws, whitebox.WithVerbose(s.verbose)), ws
}
