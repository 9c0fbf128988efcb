package registry

import (
	"context"
	"testing"

	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type goodInput struct {
	In     string            `hcl:"in"`
	Value  *float64          `hcl:"value,optional"`
	Values [][]float64       `hcl:"values,optional"`
	Vars   map[string]string `hcl:"vars,optional"`
	Diag   bool              `hcl:"diag,optional"`
}

type untaggedInput struct {
	In string
}

type chanInput struct {
	Events chan int `hcl:"events"`
}

func noop[T any](context.Context, *Env, string, *T) error { return nil }

func TestRegister(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register(Typed("good", "a good op", noop[goodInput]))

	h, ok := r.Lookup("good")
	require.True(t, ok)
	assert.Equal(t, "a good op", h.Description)
	assert.IsType(t, &goodInput{}, h.NewInput())
	assert.Equal(t, []string{"good"}, r.Ops())

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	assert.PanicsWithValue(t, "operation handler with name 'good' already registered", func() {
		r.Register(Typed("good", "", noop[goodInput]))
	})
	assert.Panics(t, func() { r.Register(&Handler{Op: "half"}) })
}

func TestTyped_RejectsWrongInput(t *testing.T) {
	t.Parallel()

	var got string
	h := Typed("good", "", func(_ context.Context, _ *Env, layer string, in *goodInput) error {
		got = layer + ":" + in.In
		return nil
	})

	require.NoError(t, h.Run(context.Background(), &Env{}, "out", &goodInput{In: "src"}))
	assert.Equal(t, "out:src", got)
	assert.ErrorContains(t, h.Run(context.Background(), &Env{}, "out", &untaggedInput{}), "input is *registry.untaggedInput")
}

func TestValidateRegistry(t *testing.T) {
	t.Parallel()
	ctx := ctxlog.Discard(context.Background())

	r := New()
	r.Register(Typed("good", "", noop[goodInput]))
	require.NoError(t, r.ValidateRegistry(ctx))

	r.Register(Typed("untagged", "", noop[untaggedInput]))
	r.Register(Typed("chan", "", noop[chanInput]))
	err := r.ValidateRegistry(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation 'untagged': field 'In' has no hcl tag")
	assert.Contains(t, err.Error(), "operation 'chan', argument 'events'")
}
