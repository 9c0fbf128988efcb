package app

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/habitatgrid/internal/profile"
)

// Defaults used when neither a flag nor the profile sets a value.
const (
	DefaultWorkDir = "habitatgrid-out"
	DefaultEngine  = profile.EngineWhitebox
	DefaultWorkers = 1
)

// Config holds all the necessary configuration for an App instance to run.
// Zero values mean "not set on the command line"; the run profile and then
// the defaults fill them in.
type Config struct {
	RecipePath  string // file, directory or built-in recipe name
	ProfilePath string // YAML run profile

	WorkDir        string
	Engine         string
	WhiteboxBinary string
	Workers        int
	DryRun         bool

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.RecipePath == "" {
		return nil, errors.New("RecipePath is a required configuration field and cannot be empty")
	}
	switch cfg.Engine {
	case "", profile.EngineWhitebox, profile.EngineMemory:
	default:
		return nil, fmt.Errorf("invalid engine %q: must be %q or %q", cfg.Engine, profile.EngineWhitebox, profile.EngineMemory)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	return &cfg, nil
}

// settings are the effective run settings after merging flags, profile and
// defaults.
type settings struct {
	workDir        string
	engine         string
	whiteboxBinary string
	verbose        bool
	workers        int
}

// resolve merges cfg over p. Flags win over the profile.
func resolve(cfg *Config, p *profile.Profile) settings {
	s := settings{
		workDir:        firstNonEmpty(cfg.WorkDir, p.Resolve(p.WorkDir), DefaultWorkDir),
		engine:         firstNonEmpty(cfg.Engine, p.Engine, DefaultEngine),
		whiteboxBinary: firstNonEmpty(cfg.WhiteboxBinary, p.Resolve(p.Whitebox.Binary)),
		verbose:        p.Whitebox.Verbose,
		workers:        DefaultWorkers,
	}
	switch {
	case cfg.Workers > 0:
		s.workers = cfg.Workers
	case p.Workers > 0:
		s.workers = p.Workers
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
