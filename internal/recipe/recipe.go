// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Recipe structure, the format-agnostic model of one or
// more .hcl recipe files.
//
// A recipe has three kinds of blocks:
//
//	input "<name>" { kind = "raster", path = "..." }
//	step "<operation>" "<layer>" { arguments { ... } depends_on = [...] }
//	output "<name>" { layer = layer.<x> }
//
// Step arguments are kept as a raw hcl.Body. They are decoded into the
// operation's input struct only once the full set of names is known, because
// `input.<name>` and `layer.<name>` evaluate to the names themselves.
package recipe

import (
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// RefRoot is the namespace a reference points into.
type RefRoot string

const (
	RootInput RefRoot = "input"
	RootLayer RefRoot = "layer"
)

// Ref is a reference to an input binding or a produced layer.
type Ref struct {
	Root  RefRoot
	Name  string
	Range hcl.Range
}

// String renders the reference as written in HCL.
func (r Ref) String() string { return string(r.Root) + "." + r.Name }

// Input is a named source dataset.
type Input struct {
	Name        string
	Kind        string
	Path        string
	Description string
	DefRange    hcl.Range
}

// Step is one engine call or classification producing a single layer.
type Step struct {
	Op          string
	Layer       string
	Description string
	// Timeout is zero when the step has none.
	Timeout time.Duration

	// Arguments is the body of the arguments block; an empty body when the
	// step has none.
	Arguments hcl.Body
	// Refs are the references found in the arguments, sorted and unique.
	Refs []Ref
	// DependsOn are the explicit ordering references.
	DependsOn []Ref

	File     string
	DefRange hcl.Range
}

// Output names a final artifact.
type Output struct {
	Name     string
	Layer    Ref
	DefRange hcl.Range
}

// Recipe is the merged content of all loaded recipe files.
type Recipe struct {
	Files   []string
	Inputs  []*Input
	Steps   []*Step
	Outputs []*Output
}

// New returns an empty Recipe.
func New() *Recipe {
	return &Recipe{}
}

// Merge appends the content of other.
func (r *Recipe) Merge(other *Recipe) {
	r.Files = append(r.Files, other.Files...)
	r.Inputs = append(r.Inputs, other.Inputs...)
	r.Steps = append(r.Steps, other.Steps...)
	r.Outputs = append(r.Outputs, other.Outputs...)
}

// Input returns the input binding with the given name.
func (r *Recipe) Input(name string) (*Input, bool) {
	for _, in := range r.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return nil, false
}

// EvalContext resolves `input.<name>` and `layer.<name>` to the names
// themselves, so decoded arguments carry plain layer names.
func (r *Recipe) EvalContext() *hcl.EvalContext {
	inputs := make(map[string]cty.Value, len(r.Inputs))
	for _, in := range r.Inputs {
		inputs[in.Name] = cty.StringVal(in.Name)
	}
	layers := make(map[string]cty.Value, len(r.Steps))
	for _, s := range r.Steps {
		layers[s.Layer] = cty.StringVal(s.Layer)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			string(RootInput): objectOrEmpty(inputs),
			string(RootLayer): objectOrEmpty(layers),
		},
	}
}

func objectOrEmpty(m map[string]cty.Value) cty.Value {
	if len(m) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(m)
}
