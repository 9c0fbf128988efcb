package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/specialistvlad/habitatgrid/internal/engine"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the run manifest inside the work directory.
const ManifestFile = "manifest.yaml"

// StepRecord is the outcome of one step.
type StepRecord struct {
	Seq       int      `yaml:"seq" json:"seq"`
	Op        string   `yaml:"op" json:"op"`
	Layer     string   `yaml:"layer" json:"layer"`
	Inputs    []string `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	File      string   `yaml:"file,omitempty" json:"file,omitempty"`
	Status    string   `yaml:"status" json:"status"`
	Duration  string   `yaml:"duration,omitempty" json:"duration,omitempty"`
	Error     string   `yaml:"error,omitempty" json:"error,omitempty"`
}

// Manifest records what a run did.
type Manifest struct {
	RunID    string         `yaml:"run_id"`
	Recipe   []string       `yaml:"recipe"`
	Started  time.Time      `yaml:"started"`
	Finished time.Time      `yaml:"finished"`
	Status   string         `yaml:"status"`
	Error    string         `yaml:"error,omitempty"`
	Steps    []StepRecord   `yaml:"steps"`
	Files    []engine.Entry `yaml:"files,omitempty"`
}

// Steps returns a record per step in plan order.
func (e *Executor) Steps() []StepRecord {
	records := make([]StepRecord, 0, len(e.plan.Order))
	for _, s := range e.plan.Order {
		t := e.tasks[s.Layer]
		state := t.getState()
		rec := StepRecord{
			Seq:       s.Seq,
			Op:        s.Op,
			Layer:     s.Layer,
			Inputs:    s.Inputs,
			DependsOn: s.Deps,
			Status:    state.String(),
		}
		if state == Done || state == Failed {
			d, err := t.result()
			rec.Duration = d.Round(time.Millisecond).String()
			if err != nil {
				rec.Error = err.Error()
			}
		} else if state == Skipped {
			if _, err := t.result(); err != nil {
				rec.Error = err.Error()
			}
		}
		if state == Done && e.env.Workspace != nil {
			if p, err := e.env.Workspace.Path(s.Layer); err == nil {
				rec.File = filepath.Base(p)
			}
		}
		records = append(records, rec)
	}
	return records
}

// Manifest builds the manifest for the current state of the run.
func (e *Executor) Manifest(runErr error) *Manifest {
	e.startedMu.Lock()
	started, finished := e.started, e.finished
	e.startedMu.Unlock()

	m := &Manifest{
		RunID:    e.env.RunID,
		Recipe:   e.plan.Recipe.Files,
		Started:  started,
		Finished: finished,
		Status:   "succeeded",
		Steps:    e.Steps(),
	}
	if runErr != nil {
		m.Status = "failed"
		m.Error = runErr.Error()
	}
	if e.env.Workspace != nil {
		m.Files = e.env.Workspace.Entries()
	}
	return m
}

func (e *Executor) writeManifest(ctx context.Context, runErr error) error {
	if e.env.WorkDir == "" {
		return nil
	}
	data, err := yaml.Marshal(e.Manifest(runErr))
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	path := filepath.Join(e.env.WorkDir, ManifestFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	ctxlog.FromContext(ctx).Info("Run manifest written.", "path", path)
	return nil
}
