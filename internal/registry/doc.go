// Package registry provides the central "glue" for the operation system.
//
// The Registry maps the operation names used in recipe step blocks (e.g.
// "filter", "classify_connectors") to the compiled Go handlers that implement
// them, together with the input struct each handler decodes its arguments
// into.
//
// During application startup every module registers its handlers and the
// registry is validated, so a malformed input struct fails at startup rather
// than in the middle of a run.
package registry
