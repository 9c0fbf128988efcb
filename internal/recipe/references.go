package recipe

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclwrite"
)

// TraversalKey returns a canonical string for a traversal, e.g. `layer.roads`.
func TraversalKey(t hcl.Traversal) string {
	return string(hclwrite.TokensForTraversal(t).Bytes())
}

// findUniqueBlock returns the single block named name, or nil. More than one
// is an error.
func findUniqueBlock(blocks hcl.Blocks, name string) (*hcl.Block, hcl.Diagnostics) {
	var found *hcl.Block
	var diags hcl.Diagnostics
	for _, block := range blocks {
		if block.Type != name {
			continue
		}
		if found != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate \"" + name + "\" block",
				Detail:   "Only one \"" + name + "\" block is allowed.",
				Subject:  &block.DefRange,
			})
		}
		found = block
	}
	return found, diags
}

// extractRefs collects the input and layer references of exprs. The result
// is sorted by traversal key with duplicates removed.
func extractRefs(exprs ...hcl.Expression) ([]Ref, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	byKey := make(map[string]Ref)
	for _, expr := range exprs {
		if expr == nil {
			continue
		}
		for _, traversal := range expr.Variables() {
			ref, refDiags := refFromTraversal(traversal)
			diags = append(diags, refDiags...)
			if refDiags.HasErrors() {
				continue
			}
			key := ref.String()
			if _, seen := byKey[key]; !seen {
				byKey[key] = ref
			}
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	refs := make([]Ref, 0, len(keys))
	for _, k := range keys {
		refs = append(refs, byKey[k])
	}
	return refs, diags
}

// parseRef requires expr to be exactly one reference.
func parseRef(expr hcl.Expression) (Ref, hcl.Diagnostics) {
	traversal, diags := hcl.AbsTraversalForExpr(expr)
	if diags.HasErrors() {
		return Ref{}, diags
	}
	return refFromTraversal(traversal)
}

func refFromTraversal(t hcl.Traversal) (Ref, hcl.Diagnostics) {
	root := RefRoot(t.RootName())
	if root != RootInput && root != RootLayer {
		return Ref{}, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Unsupported reference",
			Detail:   fmt.Sprintf("References must start with 'input' or 'layer', got %q.", TraversalKey(t)),
			Subject:  t.SourceRange().Ptr(),
		}}
	}
	if len(t) != 2 {
		return Ref{}, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid reference",
			Detail:   fmt.Sprintf("A reference has the form %s.<name>, got %q.", root, TraversalKey(t)),
			Subject:  t.SourceRange().Ptr(),
		}}
	}
	attr, ok := t[1].(hcl.TraverseAttr)
	if !ok {
		return Ref{}, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid reference",
			Detail:   fmt.Sprintf("A reference has the form %s.<name>, got %q.", root, TraversalKey(t)),
			Subject:  t.SourceRange().Ptr(),
		}}
	}
	return Ref{Root: root, Name: attr.Name, Range: t.SourceRange()}, nil
}
