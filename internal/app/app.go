package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/specialistvlad/habitatgrid/internal/executor"
	"github.com/specialistvlad/habitatgrid/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	config   *Config

	ctx        context.Context
	httpServer *http.Server

	execMu sync.Mutex
	exec   *executor.Executor
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules), "ops", reg.Ops())

	if err := reg.ValidateRegistry(ctx); err != nil {
		// An input struct gohcl cannot decode is a programmer error.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		config:   cfg,
		ctx:      ctx,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

func (a *App) setExecutor(e *executor.Executor) {
	a.execMu.Lock()
	defer a.execMu.Unlock()
	a.exec = e
}

// currentExecutor returns the running executor, nil before the plan is built.
func (a *App) currentExecutor() *executor.Executor {
	a.execMu.Lock()
	defer a.execMu.Unlock()
	return a.exec
}
