// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file turns parsed HCL into the Recipe model. Each block kind has its
// own small parser; step attributes are handled by a table so that adding one
// only touches stepAttributeParsers and stepBodySchema.
package recipe

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "input", LabelNames: []string{"name"}},
		{Type: "step", LabelNames: []string{"operation", "layer"}},
		{Type: "output", LabelNames: []string{"name"}},
	},
}

var stepBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "description"},
		{Name: "depends_on"},
		{Name: "timeout"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "arguments"},
	},
}

// hclInput is the body of an input block.
type hclInput struct {
	Kind        string `hcl:"kind,optional"`
	Path        string `hcl:"path,optional"`
	Description string `hcl:"description,optional"`
}

// hclOutput is the body of an output block.
type hclOutput struct {
	Layer       hcl.Expression `hcl:"layer"`
	Description string         `hcl:"description,optional"`
}

// stepAttributeParser handles one simple step attribute.
type stepAttributeParser struct {
	Name   string
	Setter func(s *Step, attr *hcl.Attribute) hcl.Diagnostics
}

var stepAttributeParsers = []stepAttributeParser{
	{"description", func(s *Step, attr *hcl.Attribute) hcl.Diagnostics {
		return gohcl.DecodeExpression(attr.Expr, nil, &s.Description)
	}},
	{"timeout", func(s *Step, attr *hcl.Attribute) hcl.Diagnostics {
		var raw string
		if diags := gohcl.DecodeExpression(attr.Expr, nil, &raw); diags.HasErrors() {
			return diags
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  "Invalid timeout",
				Detail:   fmt.Sprintf("The timeout %q must be a positive duration such as \"10m\".", raw),
				Subject:  attr.Expr.Range().Ptr(),
			}}
		}
		s.Timeout = d
		return nil
	}},
	{"depends_on", func(s *Step, attr *hcl.Attribute) hcl.Diagnostics {
		refs, diags := parseDependsOn(attr.Expr)
		s.DependsOn = refs
		return diags
	}},
}

// Parse reads one recipe file from src.
func Parse(src []byte, filename string) (*Recipe, hcl.Diagnostics) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diags
	}
	return decodeFile(file, filename)
}

func decodeFile(file *hcl.File, filename string) (*Recipe, hcl.Diagnostics) {
	content, diags := file.Body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	r := New()
	r.Files = append(r.Files, filename)
	for _, block := range content.Blocks {
		switch block.Type {
		case "input":
			in, inDiags := parseInput(block)
			diags = append(diags, inDiags...)
			if in != nil {
				r.Inputs = append(r.Inputs, in)
			}
		case "step":
			step, stepDiags := parseStep(block, filename)
			diags = append(diags, stepDiags...)
			if step != nil {
				r.Steps = append(r.Steps, step)
			}
		case "output":
			out, outDiags := parseOutput(block)
			diags = append(diags, outDiags...)
			if out != nil {
				r.Outputs = append(r.Outputs, out)
			}
		}
	}
	if diags.HasErrors() {
		return nil, diags
	}
	return r, diags
}

func parseInput(block *hcl.Block) (*Input, hcl.Diagnostics) {
	var body hclInput
	if diags := gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
		return nil, diags
	}
	return &Input{
		Name:        block.Labels[0],
		Kind:        body.Kind,
		Path:        body.Path,
		Description: body.Description,
		DefRange:    block.DefRange,
	}, nil
}

func parseOutput(block *hcl.Block) (*Output, hcl.Diagnostics) {
	var body hclOutput
	if diags := gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
		return nil, diags
	}
	ref, diags := parseRef(body.Layer)
	if diags.HasErrors() {
		return nil, diags
	}
	if ref.Root != RootLayer {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid output",
			Detail:   fmt.Sprintf("An output must name a produced layer (layer.<name>), not %s.", ref),
			Subject:  body.Layer.Range().Ptr(),
		}}
	}
	return &Output{Name: block.Labels[0], Layer: ref, DefRange: block.DefRange}, nil
}

func parseStep(block *hcl.Block, filename string) (*Step, hcl.Diagnostics) {
	content, diags := block.Body.Content(stepBodySchema)
	if diags.HasErrors() {
		return nil, diags
	}

	step := &Step{
		Op:        block.Labels[0],
		Layer:     block.Labels[1],
		Arguments: hcl.EmptyBody(),
		File:      filename,
		DefRange:  block.DefRange,
	}

	for _, parser := range stepAttributeParsers {
		if attr, ok := content.Attributes[parser.Name]; ok {
			diags = append(diags, parser.Setter(step, attr)...)
		}
	}

	argBlock, argDiags := findUniqueBlock(content.Blocks, "arguments")
	diags = append(diags, argDiags...)
	if argBlock != nil {
		step.Arguments = argBlock.Body
		attrs, attrDiags := argBlock.Body.JustAttributes()
		diags = append(diags, attrDiags...)
		exprs := make([]hcl.Expression, 0, len(attrs))
		for _, attr := range attrs {
			exprs = append(exprs, attr.Expr)
		}
		refs, refDiags := extractRefs(exprs...)
		diags = append(diags, refDiags...)
		step.Refs = refs
	}

	if diags.HasErrors() {
		return nil, diags
	}
	return step, diags
}

// parseDependsOn requires a list literal of layer references.
func parseDependsOn(expr hcl.Expression) ([]Ref, hcl.Diagnostics) {
	tuple, ok := expr.(*hclsyntax.TupleConsExpr)
	if !ok {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid depends_on value",
			Detail:   "The 'depends_on' attribute must be a list of layer references.",
			Subject:  expr.Range().Ptr(),
		}}
	}

	var refs []Ref
	var diags hcl.Diagnostics
	for _, item := range tuple.Exprs {
		ref, refDiags := parseRef(item)
		diags = append(diags, refDiags...)
		if refDiags.HasErrors() {
			continue
		}
		if ref.Root != RootLayer {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid depends_on value",
				Detail:   fmt.Sprintf("Only layers can be depended on; %s is an input.", ref),
				Subject:  item.Range().Ptr(),
			})
			continue
		}
		refs = append(refs, ref)
	}
	return refs, diags
}
