package dag

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/recipe"
	"github.com/specialistvlad/habitatgrid/internal/registry"
)

// Step is a recipe step resolved against its operation.
type Step struct {
	*recipe.Step
	// Seq is the 1-based position in Plan.Order.
	Seq     int
	Handler *registry.Handler
	// Input is the decoded argument struct.
	Input any
	// Inputs are the input bindings the step reads.
	Inputs []string
	// Deps are the layers the step waits for.
	Deps []string
}

// Plan is a validated recipe with its execution order.
type Plan struct {
	Recipe *recipe.Recipe
	Graph  *Graph
	Order  []*Step
	steps  map[string]*Step
}

// Step returns the step producing layer.
func (p *Plan) Step(layer string) (*Step, bool) {
	s, ok := p.steps[layer]
	return s, ok
}

// Build constructs a complete, validated plan from a recipe. All problems
// found are returned together as hcl.Diagnostics.
func Build(ctx context.Context, rec *recipe.Recipe, reg *registry.Registry) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.", "steps", len(rec.Steps))

	var diags hcl.Diagnostics
	graph := New()
	steps := make(map[string]*Step, len(rec.Steps))

	// First pass: names.
	inputs := make(map[string]*recipe.Input, len(rec.Inputs))
	for _, in := range rec.Inputs {
		if prev, dup := inputs[in.Name]; dup {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate input",
				Detail:   fmt.Sprintf("Input %q is already declared at %s.", in.Name, prev.DefRange),
				Subject:  in.DefRange.Ptr(),
			})
			continue
		}
		if _, err := engine.ParseKind(in.Kind); err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid input kind",
				Detail:   fmt.Sprintf("Input %q: %v.", in.Name, err),
				Subject:  in.DefRange.Ptr(),
			})
		}
		inputs[in.Name] = in
	}

	var declared []string
	for _, s := range rec.Steps {
		if prev, dup := steps[s.Layer]; dup {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate producer",
				Detail:   fmt.Sprintf("Layer %q is already produced by the %q step at %s.", s.Layer, prev.Op, prev.DefRange),
				Subject:  s.DefRange.Ptr(),
			})
			continue
		}
		if _, clash := inputs[s.Layer]; clash {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Layer name collides with input",
				Detail:   fmt.Sprintf("Step layer %q has the same name as an input binding.", s.Layer),
				Subject:  s.DefRange.Ptr(),
			})
			continue
		}
		handler, ok := reg.Lookup(s.Op)
		if !ok {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unknown operation",
				Detail:   fmt.Sprintf("No operation named %q is registered. Known operations: %v.", s.Op, reg.Ops()),
				Subject:  s.DefRange.Ptr(),
			})
			continue
		}
		steps[s.Layer] = &Step{Step: s, Handler: handler}
		graph.AddNode(s.Layer)
		declared = append(declared, s.Layer)
	}
	logger.Debug("Build: Node creation complete.", "node_count", graph.Len())

	// Second pass: link dependencies and decode arguments.
	evalCtx := rec.EvalContext()
	for _, layer := range declared {
		step := steps[layer]
		refsOK := true

		link := func(ref recipe.Ref) {
			switch ref.Root {
			case recipe.RootInput:
				if _, ok := inputs[ref.Name]; !ok {
					diags = append(diags, unknownRef(ref, "input"))
					refsOK = false
					return
				}
				step.Inputs = appendUnique(step.Inputs, ref.Name)
			case recipe.RootLayer:
				if _, ok := steps[ref.Name]; !ok {
					diags = append(diags, unknownRef(ref, "layer"))
					refsOK = false
					return
				}
				if err := graph.AddEdge(ref.Name, layer); err != nil {
					diags = append(diags, &hcl.Diagnostic{
						Severity: hcl.DiagError,
						Summary:  "Dependency cycle",
						Detail:   fmt.Sprintf("Step %q cannot depend on itself.", layer),
						Subject:  ref.Range.Ptr(),
					})
					refsOK = false
					return
				}
				step.Deps = appendUnique(step.Deps, ref.Name)
			}
		}
		for _, ref := range step.Refs {
			link(ref)
		}
		for _, ref := range step.DependsOn {
			link(ref)
		}
		if !refsOK {
			continue
		}

		input := step.Handler.NewInput()
		if decodeDiags := gohcl.DecodeBody(step.Arguments, evalCtx, input); decodeDiags.HasErrors() {
			diags = append(diags, decodeDiags...)
			continue
		}
		if v, ok := input.(registry.Validator); ok {
			if err := v.Validate(); err != nil {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid arguments",
					Detail:   fmt.Sprintf("Step %s %q: %v.", step.Op, layer, err),
					Subject:  step.DefRange.Ptr(),
				})
				continue
			}
		}
		step.Input = input
	}

	for _, out := range rec.Outputs {
		if _, ok := steps[out.Layer.Name]; !ok {
			diags = append(diags, unknownRef(out.Layer, "layer"))
		}
	}

	if diags.HasErrors() {
		return nil, diags
	}
	logger.Debug("Build: Node linking complete.")

	if loop := graph.Cycle(); loop != nil {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Dependency cycle",
			Detail:   fmt.Sprintf("Layers depend on each other in a loop: %s.", strings.Join(loop, " -> ")),
			Subject:  steps[loop[0]].DefRange.Ptr(),
		}}
	}
	logger.Debug("Build: Cycle detection passed.")

	order, err := Order(ctx, graph, declared)
	if err != nil {
		return nil, fmt.Errorf("error ordering dependency graph: %w", err)
	}

	plan := &Plan{Recipe: rec, Graph: graph, steps: steps}
	for i, layer := range order {
		step := steps[layer]
		step.Seq = i + 1
		plan.Order = append(plan.Order, step)
	}
	logger.Debug("Build: Graph construction successful.", "order", order)
	return plan, nil
}

func unknownRef(ref recipe.Ref, what string) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "Reference to undeclared " + what,
		Detail:   fmt.Sprintf("%s is not declared in this recipe.", ref),
		Subject:  ref.Range.Ptr(),
	}
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
