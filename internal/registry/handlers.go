package registry

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
)

// Handler holds the compiled Go parts of one operation.
type Handler struct {
	Op          string
	Description string
	// NewInput returns a pointer to a fresh input struct with gohcl tags.
	NewInput  func() any
	InputType reflect.Type
	// Run produces layer from the decoded input.
	Run func(ctx context.Context, env *Env, layer string, input any) error
}

// Validator is implemented by input structs that check their own fields
// after decoding.
type Validator interface {
	Validate() error
}

// Typed builds a Handler for an operation whose input struct is T.
func Typed[T any](op, description string, fn func(ctx context.Context, env *Env, layer string, in *T) error) *Handler {
	return &Handler{
		Op:          op,
		Description: description,
		NewInput:    func() any { return new(T) },
		InputType:   reflect.TypeOf((*T)(nil)).Elem(),
		Run: func(ctx context.Context, env *Env, layer string, input any) error {
			in, ok := input.(*T)
			if !ok {
				return fmt.Errorf("operation %s: input is %T, want *%s", op, input, reflect.TypeOf((*T)(nil)).Elem())
			}
			return fn(ctx, env, layer, in)
		},
	}
}

// Register adds a handler. Registering the same operation twice is a
// programmer error and panics.
func (r *Registry) Register(h *Handler) {
	if h == nil || h.Op == "" || h.Run == nil || h.NewInput == nil {
		panic(fmt.Sprintf("incomplete handler registration: %+v", h))
	}
	if _, exists := r.handlers[h.Op]; exists {
		panic(fmt.Sprintf("operation handler with name '%s' already registered", h.Op))
	}
	slog.Debug("Registering operation handler.", "op", h.Op)
	r.handlers[h.Op] = h
}
