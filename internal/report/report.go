// Package report renders the representativeness summary of a run as a YAML
// record and an HTML document.
package report

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/specialistvlad/habitatgrid/internal/classify"
	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/specialistvlad/habitatgrid/internal/engine"
	"gopkg.in/yaml.v3"
)

// Summary is the per-run representativeness record.
type Summary struct {
	RunID     string                    `yaml:"run_id"`
	Layer     string                    `yaml:"layer"`
	Generated time.Time                 `yaml:"generated"`
	Classes   []float64                 `yaml:"classes"`
	Sets      []classify.ContainmentSet `yaml:"sets"`
}

// New wraps a classifier summary.
func New(runID, layer string, s *classify.Summary, generated time.Time) *Summary {
	return &Summary{
		RunID:     runID,
		Layer:     layer,
		Generated: generated.UTC(),
		Classes:   s.Classes,
		Sets:      s.Sets,
	}
}

// Row is one class line of the HTML table.
type Row struct {
	Class float64
	Acres []float64
	// Percent is the share of the class's town acreage held by the widest
	// conserved set.
	Percent float64
}

// Rows lays the summary out by class, with acreage per set in set order.
func (s *Summary) Rows() []Row {
	rows := make([]Row, 0, len(s.Classes))
	for _, class := range s.Classes {
		r := Row{Class: class}
		for _, set := range s.Sets {
			r.Acres = append(r.Acres, set.AcresOf(class))
		}
		r.Percent = percent(r.Acres)
		rows = append(rows, r)
	}
	return rows
}

// Totals returns the total acreage per set with its percentage of town.
func (s *Summary) Totals() Row {
	r := Row{}
	for _, set := range s.Sets {
		r.Acres = append(r.Acres, set.Total)
	}
	r.Percent = percent(r.Acres)
	return r
}

// percent compares the last set against the first.
func percent(acres []float64) float64 {
	if len(acres) < 2 || acres[0] == 0 {
		return 0
	}
	return 100 * acres[len(acres)-1] / acres[0]
}

// WriteYAML encodes the record.
func (s *Summary) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return enc.Close()
}

//go:embed summary.html.tmpl
var summaryTemplate string

var page = template.Must(template.New("summary").Funcs(template.FuncMap{
	"acres": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"class": func(v float64) string { return fmt.Sprintf("%g", v) },
}).Parse(summaryTemplate))

// WriteHTML renders the summary table.
func (s *Summary) WriteHTML(w io.Writer) error {
	if err := page.Execute(w, s); err != nil {
		return fmt.Errorf("rendering summary: %w", err)
	}
	return nil
}

// TableName is the workspace table the HTML summary of layer is stored
// under. The classifier's own zonal table already holds layer.
func TableName(layer string) string {
	return layer + "_summary"
}

// Write stores both renderings. When ws is set the HTML document is the
// numbered table TableName(layer); the YAML record is always <layer>.yaml in
// dir. It returns the written paths.
func Write(ctx context.Context, dir string, ws *engine.Workspace, s *Summary) ([]string, error) {
	logger := ctxlog.FromContext(ctx)

	htmlPath := filepath.Join(dir, s.Layer+".html")
	if ws != nil {
		p, err := ws.AllocateTable(TableName(s.Layer))
		if err != nil {
			return nil, err
		}
		htmlPath = p
	}
	yamlPath := filepath.Join(dir, s.Layer+".yaml")

	var htmlBuf, yamlBuf bytes.Buffer
	if err := s.WriteHTML(&htmlBuf); err != nil {
		return nil, err
	}
	if err := s.WriteYAML(&yamlBuf); err != nil {
		return nil, err
	}
	for path, data := range map[string][]byte{htmlPath: htmlBuf.Bytes(), yamlPath: yamlBuf.Bytes()} {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write report: %w", err)
		}
	}
	logger.Info("Representativeness report written.", "html", htmlPath, "yaml", yamlPath)
	return []string{htmlPath, yamlPath}, nil
}
