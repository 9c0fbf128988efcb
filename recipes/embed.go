// Package recipes embeds the built-in habitat recipes. A recipe can be run
// by name ("tree_blocks") instead of by path.
package recipes

import (
	"embed"
	"io/fs"
	"sort"
	"strings"

	"github.com/specialistvlad/habitatgrid/internal/recipe"
)

//go:embed *.hcl
var FS embed.FS

// Names lists the built-in recipes without their extension.
func Names() []string {
	entries, err := fs.Glob(FS, "*"+recipe.Ext)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e, recipe.Ext))
	}
	sort.Strings(names)
	return names
}

// Lookup returns the built-in recipe called name.
func Lookup(name string) (*recipe.Recipe, bool, error) {
	file := name + recipe.Ext
	if _, err := fs.Stat(FS, file); err != nil {
		return nil, false, nil
	}
	r, err := recipe.LoadFS(FS, file)
	return r, true, err
}
