// Package habitat registers the composite classification operations:
// connector classes, patch codes, threshold proportions and the
// representativeness summary.
package habitat

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/habitatgrid/internal/classify"
	"github.com/specialistvlad/habitatgrid/internal/registry"
	"github.com/specialistvlad/habitatgrid/internal/report"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Now stamps reports; nil means time.Now.
	Now func() time.Time
}

// ConnectorsInput names the block and connector region layers.
type ConnectorsInput struct {
	Blocks     string `hcl:"blocks"`
	Connectors string `hcl:"connectors"`
}

// PatchesInput names the cover layer of base type codes.
type PatchesInput struct {
	In   string `hcl:"in"`
	Diag bool   `hcl:"diag,optional"`
}

// ProportionInput tests the share of each region covered by Target.
type ProportionInput struct {
	Regions   string   `hcl:"regions"`
	Target    string   `hcl:"target"`
	Threshold *float64 `hcl:"threshold,optional"`
}

// threshold returns the configured threshold or the default.
func (in *ProportionInput) threshold() float64 {
	if in.Threshold == nil {
		return classify.DefaultThreshold
	}
	return *in.Threshold
}

// Validate checks the threshold range.
func (in *ProportionInput) Validate() error {
	if t := in.threshold(); t <= 0 || t > 1 {
		return fmt.Errorf("threshold %g must be in (0, 1]", t)
	}
	return nil
}

// RepresentativenessInput names the layers of the containment chain.
type RepresentativenessInput struct {
	Classes    string `hcl:"classes"`
	Town       string `hcl:"town"`
	Protected  string `hcl:"protected"`
	Blocks     string `hcl:"blocks"`
	Connectors string `hcl:"connectors"`
}

// Register registers the handlers with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(registry.Typed("classify_connectors", "Classify connectors as island, spur, link or hole", runConnectors))
	r.Register(registry.Typed("classify_patches", "Code patches by cover type and size tier", runPatches))
	r.Register(registry.Typed("proportion_threshold", "Flag regions whose target share meets a threshold", runProportion))
	r.Register(registry.Typed("representativeness", "Acreage of attribute classes across the containment chain", m.runRepresentativeness))
}

func runConnectors(ctx context.Context, env *registry.Env, layer string, in *ConnectorsInput) error {
	return classify.Connectors(ctx, env.Engine, classify.ConnectorInput{
		Blocks:     in.Blocks,
		Connectors: in.Connectors,
	}, layer)
}

func runPatches(ctx context.Context, env *registry.Env, layer string, in *PatchesInput) error {
	return classify.Patches(ctx, env.Engine, in.In, in.Diag, layer)
}

func runProportion(ctx context.Context, env *registry.Env, layer string, in *ProportionInput) error {
	return classify.Proportion(ctx, env.Engine, in.Regions, in.Target, in.threshold(), layer)
}

func (m *Module) runRepresentativeness(ctx context.Context, env *registry.Env, layer string, in *RepresentativenessInput) error {
	summary, err := classify.Representativeness(ctx, env.Engine, classify.RepresentativenessInput{
		Classes:    in.Classes,
		Town:       in.Town,
		Protected:  in.Protected,
		Blocks:     in.Blocks,
		Connectors: in.Connectors,
	}, layer)
	if err != nil {
		return err
	}
	if env.WorkDir == "" {
		return nil
	}

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	_, err = report.Write(ctx, env.WorkDir, env.Workspace, report.New(env.RunID, layer, summary, now()))
	return err
}
