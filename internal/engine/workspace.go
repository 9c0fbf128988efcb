package engine

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
)

// Entry is one file known to a workspace.
type Entry struct {
	Seq   int    `yaml:"seq,omitempty"`
	Layer string `yaml:"layer"`
	Path  string `yaml:"path"`
	Input bool   `yaml:"input,omitempty"`
	Table bool   `yaml:"table,omitempty"`
}

// Workspace maps logical layer names onto files in a flat working directory.
// Every produced layer gets the next sequence number as a file prefix, so
// the directory listing follows pipeline order. A layer name can be
// produced only once.
type Workspace struct {
	dir string
	ext string

	mu      sync.Mutex
	next    int
	entries map[string]*Entry
}

// NewWorkspace returns a workspace rooted at dir whose raster files carry the
// given extension (".tif", ".asc").
func NewWorkspace(dir, ext string) *Workspace {
	return &Workspace{
		dir:     dir,
		ext:     ext,
		next:    1,
		entries: make(map[string]*Entry),
	}
}

// Dir is the working directory.
func (w *Workspace) Dir() string { return w.dir }

// Bind records an input binding. Inputs keep their own path.
func (w *Workspace) Bind(name, path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.entries[name]; ok && !e.Input {
		return fmt.Errorf("input %q collides with produced layer %s", name, e.Path)
	}
	w.entries[name] = &Entry{Layer: name, Path: path, Input: true}
	return nil
}

// Allocate reserves the file for a new layer.
func (w *Workspace) Allocate(name string) (string, error) {
	return w.allocate(name, fmt.Sprintf("%%03d_%s%s", name, w.ext), false)
}

// AllocateTable reserves the HTML document for a table output.
func (w *Workspace) AllocateTable(name string) (string, error) {
	return w.allocate("table:"+name, fmt.Sprintf("%%03d_TABLE_%s.html", name), true)
}

func (w *Workspace) allocate(key, pattern string, table bool) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.entries[key]; ok {
		return "", fmt.Errorf("layer %q already has a producer (%s)", key, e.Path)
	}
	e := &Entry{
		Seq:   w.next,
		Layer: key,
		Path:  filepath.Join(w.dir, fmt.Sprintf(pattern, w.next)),
		Table: table,
	}
	w.next++
	w.entries[key] = e
	return e.Path, nil
}

// Path resolves a bound or produced layer.
func (w *Workspace) Path(name string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLayer, name)
	}
	return e.Path, nil
}

// Entries lists inputs first, then produced files in sequence order.
func (w *Workspace) Entries() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Entry, 0, len(w.entries))
	for _, e := range w.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Layer < out[j].Layer
	})
	return out
}
