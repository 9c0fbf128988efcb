package recipe

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/specialistvlad/habitatgrid/internal/fsutil"
)

// Ext is the recipe file extension.
const Ext = ".hcl"

// Load reads the recipe at path. A directory is walked for every .hcl file
// beneath it and the files are merged in lexical order.
func Load(ctx context.Context, path string) (*Recipe, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading recipe from path.", "path", path)

	files, err := fsutil.Resolve(path, Ext)
	if err != nil {
		return nil, fmt.Errorf("failed to find recipe files in %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s recipe files found in %s", Ext, path)
	}

	r := New()
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		part, diags := Parse(src, file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse recipe file %s: %w", file, diags)
		}
		r.Merge(part)
		logger.Debug("Recipe file loaded.", "file", file, "steps", len(part.Steps))
	}

	logger.Info("Recipe loaded.", "files", len(r.Files), "inputs", len(r.Inputs), "steps", len(r.Steps))
	return r, nil
}

// LoadFS reads the named recipe files from fsys and merges them in order.
func LoadFS(fsys fs.FS, names ...string) (*Recipe, error) {
	r := New()
	for _, name := range names {
		src, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		part, diags := Parse(src, name)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse recipe file %s: %w", name, diags)
		}
		r.Merge(part)
	}
	return r, nil
}
