// Package memengine is an in-memory implementation of engine.Engine.
//
// It follows the WhiteboxTools semantics habitatgrid relies on closely enough
// to run recipes end to end on small grids and in tests. Rasters are read
// from ESRI ASCII grids, vectors from shapefiles. It is a reference engine,
// not a replacement for a production raster library.
package memengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/raster"
)

// Engine keeps every layer in memory, keyed by logical name.
type Engine struct {
	mu       sync.RWMutex
	layers   map[string]*raster.Layer
	features map[string][]Feature
	vectors  map[string]string

	// export, when set, receives a numbered .asc copy of every produced layer.
	export *engine.Workspace
}

var _ engine.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithExport writes every produced layer into ws as an ASCII grid.
func WithExport(ws *engine.Workspace) Option {
	return func(e *Engine) { e.export = ws }
}

// New returns an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		layers:   make(map[string]*raster.Layer),
		features: make(map[string][]Feature),
		vectors:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Put preloads a raster under name. Recipes may then bind it without a path.
func (e *Engine) Put(name string, l *raster.Layer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layers[name] = l
}

// PutFeatures preloads polygon features under name.
func (e *Engine) PutFeatures(name string, fs []Feature) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.features[name] = fs
}

// Layer returns a stored raster.
func (e *Engine) Layer(name string) (*raster.Layer, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	l, ok := e.layers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownLayer, name)
	}
	return l, nil
}

// Bind implements engine.Engine.
func (e *Engine) Bind(ctx context.Context, name string, kind engine.Kind, path string) error {
	logger := ctxlog.FromContext(ctx)

	e.mu.RLock()
	_, haveRaster := e.layers[name]
	_, haveVector := e.features[name]
	e.mu.RUnlock()

	switch kind {
	case engine.KindVector:
		if haveVector {
			logger.Debug("Vector input already loaded.", "input", name)
			return nil
		}
		if path == "" {
			return fmt.Errorf("vector input %q: %w: no path and nothing preloaded", name, engine.ErrUnknownLayer)
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("vector input %q: %w", name, err)
		}
		e.mu.Lock()
		e.vectors[name] = path
		e.mu.Unlock()
		logger.Debug("Vector input bound.", "input", name, "path", path)
	default:
		if haveRaster {
			logger.Debug("Raster input already loaded.", "input", name)
			return nil
		}
		if path == "" {
			return fmt.Errorf("raster input %q: %w: no path and nothing preloaded", name, engine.ErrUnknownLayer)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".asc", ".txt":
		default:
			return fmt.Errorf("raster input %q (%s): %w: only ESRI ASCII grids can be read", name, path, engine.ErrUnsupported)
		}
		l, err := raster.LoadASCII(path)
		if err != nil {
			return fmt.Errorf("raster input %q: %w", name, err)
		}
		e.Put(name, l)
		logger.Debug("Raster input loaded.", "input", name, "path", path, "width", l.Width, "height", l.Height)
	}

	if e.export != nil {
		return e.export.Bind(name, path)
	}
	return nil
}

// store saves a produced layer. A name can be produced once.
func (e *Engine) store(ctx context.Context, name string, l *raster.Layer) error {
	e.mu.Lock()
	if _, exists := e.layers[name]; exists {
		e.mu.Unlock()
		return fmt.Errorf("layer %q already exists", name)
	}
	e.layers[name] = l
	e.mu.Unlock()

	if e.export == nil {
		return nil
	}
	path, err := e.export.Allocate(name)
	if err != nil {
		return err
	}
	if err := raster.SaveASCII(path, l); err != nil {
		return fmt.Errorf("exporting layer %q: %w", name, err)
	}
	ctxlog.FromContext(ctx).Debug("Layer exported.", "layer", name, "path", path)
	return nil
}

// aligned fetches layers that must share one grid.
func (e *Engine) aligned(names ...string) ([]*raster.Layer, error) {
	out := make([]*raster.Layer, len(names))
	for i, n := range names {
		l, err := e.Layer(n)
		if err != nil {
			return nil, err
		}
		if i > 0 && !l.Aligned(out[0]) {
			return nil, fmt.Errorf("%w: %q and %q", engine.ErrMisaligned, names[0], n)
		}
		out[i] = l
	}
	return out, nil
}

// operand resolves the right-hand side of a binary operation against base.
func (e *Engine) operand(base *raster.Layer, rhs engine.Operand) (func(i int) (float64, bool), error) {
	if !rhs.IsLayer() {
		return func(int) (float64, bool) { return rhs.Value, true }, nil
	}
	l, err := e.Layer(rhs.Layer)
	if err != nil {
		return nil, err
	}
	if !l.Aligned(base) {
		return nil, fmt.Errorf("%w: %q", engine.ErrMisaligned, rhs.Layer)
	}
	return func(i int) (float64, bool) {
		v := l.Cells[i]
		return v, !l.IsNoData(v)
	}, nil
}
