// Package profile loads the YAML run profile: where a run writes its files,
// which engine it uses, and where its inputs live.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/specialistvlad/habitatgrid/internal/recipe"
	"gopkg.in/yaml.v3"
)

// Engine names.
const (
	EngineWhitebox = "whitebox"
	EngineMemory   = "memory"
)

// Whitebox configures the WhiteboxTools engine.
type Whitebox struct {
	Binary  string `yaml:"binary"`
	Verbose bool   `yaml:"verbose"`
}

// Profile is a run profile. Zero values mean "not set" so that command-line
// flags and defaults can fill them in.
type Profile struct {
	WorkDir  string            `yaml:"work_dir"`
	Engine   string            `yaml:"engine"`
	Workers  int               `yaml:"workers"`
	Whitebox Whitebox          `yaml:"whitebox"`
	Bindings map[string]string `yaml:"bindings"`

	// dir is the directory relative paths are resolved against.
	dir string
}

// Load reads a profile file. Relative paths inside it are resolved against
// the file's directory.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	p, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	p.dir = filepath.Dir(path)
	return p, nil
}

// Decode parses a profile, rejecting unknown keys.
func Decode(r io.Reader) (*Profile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the values that are set.
func (p *Profile) Validate() error {
	switch p.Engine {
	case "", EngineWhitebox, EngineMemory:
	default:
		return fmt.Errorf("unknown engine %q: must be %q or %q", p.Engine, EngineWhitebox, EngineMemory)
	}
	if p.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", p.Workers)
	}
	return nil
}

// Resolve makes a path from the profile absolute with respect to the
// profile's directory.
func (p *Profile) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || p.dir == "" {
		return path
	}
	return filepath.Join(p.dir, path)
}

// Apply overrides input paths of rec with the profile bindings. A binding
// for an input the recipe does not declare is an error.
func (p *Profile) Apply(rec *recipe.Recipe) error {
	names := make([]string, 0, len(p.Bindings))
	for name := range p.Bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	var unknown []string
	for _, name := range names {
		in, ok := rec.Input(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		in.Path = p.Resolve(p.Bindings[name])
	}
	if len(unknown) > 0 {
		return fmt.Errorf("profile binds undeclared inputs: %v", unknown)
	}
	return nil
}
