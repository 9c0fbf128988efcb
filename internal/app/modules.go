package app

import (
	"github.com/specialistvlad/habitatgrid/internal/registry"
	"github.com/specialistvlad/habitatgrid/modules/algebra"
	"github.com/specialistvlad/habitatgrid/modules/habitat"
	"github.com/specialistvlad/habitatgrid/modules/neighborhood"
	"github.com/specialistvlad/habitatgrid/modules/regions"
	"github.com/specialistvlad/habitatgrid/modules/vector"
)

// coreModules is the definitive list of all modules that are compiled into
// the habitatgrid binary.
var coreModules = []registry.Module{
	&algebra.Module{},
	&neighborhood.Module{},
	&regions.Module{},
	&vector.Module{},
	&habitat.Module{},
}
