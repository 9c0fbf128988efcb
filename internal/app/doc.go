// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the run lifecycle: load a recipe, apply the
// run profile, build the plan, pick an engine and execute. It is decoupled
// from any specific entrypoint like a CLI.
package app
