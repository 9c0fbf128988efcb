// Package cli turns command-line flags into an app.Config and reports usage
// errors as an ExitError carrying exit code 2.
package cli
