package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/habitatgrid/internal/app"
	"github.com/specialistvlad/habitatgrid/recipes"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("habitatgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprintf(output, `
habitatgrid - Runs raster habitat-classification recipes.

Usage:
  habitatgrid [options] [RECIPE]

Arguments:
  RECIPE
    Path to a .hcl recipe file, a directory of .hcl files, or the name of a
    built-in recipe: %s.

Options:
`, strings.Join(recipes.Names(), ", "))
		flagSet.PrintDefaults()
	}

	recipeFlag := flagSet.String("recipe", "", "Recipe file, directory or built-in name.")
	rFlag := flagSet.String("r", "", "Recipe file, directory or built-in name (shorthand).")
	profileFlag := flagSet.String("profile", "", "YAML run profile with input bindings and engine settings.")
	workDirFlag := flagSet.String("work-dir", "", "Directory for numbered layers, tables and the run manifest.")
	engineFlag := flagSet.String("engine", "", "Engine: 'whitebox' or 'memory'. Defaults to the profile, then 'whitebox'.")
	whiteboxFlag := flagSet.String("whitebox", "", "Path to the whitebox_tools executable.")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent steps. 0 uses the profile, then 1.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Print the numbered plan without running it.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health and status server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	switch {
	case *recipeFlag != "":
		path = *recipeFlag
	case *rFlag != "":
		path = *rFlag
	case flagSet.NArg() > 0:
		path = flagSet.Arg(0)
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected at most one recipe argument, got %d", flagSet.NArg())}
	}

	if path == "" {
		slog.Debug("No recipe provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		RecipePath:      path,
		ProfilePath:     *profileFlag,
		WorkDir:         *workDirFlag,
		Engine:          strings.ToLower(*engineFlag),
		WhiteboxBinary:  *whiteboxFlag,
		Workers:         *workersFlag,
		DryRun:          *dryRunFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
