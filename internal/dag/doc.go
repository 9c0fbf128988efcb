// Package dag compiles a recipe into an explicit dependency graph keyed by
// layer name and fixes the order in which its steps run.
//
// Build validates the recipe against the registered operations, decodes every
// step's arguments, links implicit (argument reference) and explicit
// (depends_on) edges, and rejects cycles. All problems are reported together
// as hcl.Diagnostics with source ranges.
package dag
