package registry

import (
	"sort"

	"github.com/specialistvlad/habitatgrid/internal/engine"
)

// Module is the interface that all operation modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Env is what a step handler is given besides its decoded input.
type Env struct {
	Engine engine.Engine
	// Workspace, when set, names the files produced layers are written to.
	Workspace *engine.Workspace
	// WorkDir receives reports and other non-layer artifacts.
	WorkDir string
	RunID   string
}

// Registry holds all the registered operation handlers for a single
// application instance.
type Registry struct {
	handlers map[string]*Handler
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		handlers: make(map[string]*Handler),
	}
}

// Lookup returns the handler for op.
func (r *Registry) Lookup(op string) (*Handler, bool) {
	h, ok := r.handlers[op]
	return h, ok
}

// Ops returns the registered operation names in sorted order.
func (r *Registry) Ops() []string {
	ops := make([]string, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}
