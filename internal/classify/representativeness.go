package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/raster"
)

// ErrNotMonotonic reports a containment chain whose acreage shrinks as sets
// grow. It means an upstream layer is wrong.
var ErrNotMonotonic = errors.New("containment acreage is not monotonic")

// monotonicTolerance absorbs float noise in acreage comparisons.
const monotonicTolerance = 1e-6

// RepresentativenessInput names the layers Representativeness reads. All are
// read with no-data as 0.
type RepresentativenessInput struct {
	// Classes holds attribute class codes; 0 is unclassified.
	Classes string
	// Town is the area of interest; nonzero cells are inside.
	Town string
	// Protected marks conserved land.
	Protected string
	// Blocks marks tree blocks.
	Blocks string
	// Connectors holds connector codes; codes above Island count as
	// attached connectors.
	Connectors string
}

// ContainmentSet is one member of the containment chain.
type ContainmentSet struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Acres       *raster.Table `yaml:"acres"`
	Total       float64       `yaml:"total_acres"`
}

// AcresOf returns the acreage of class in the set, 0 when absent.
func (s ContainmentSet) AcresOf(class float64) float64 {
	row, ok := s.Acres.Lookup(class)
	if !ok || row.NoData {
		return 0
	}
	return row.Value
}

// Summary is the representativeness result.
type Summary struct {
	Classes []float64        `yaml:"classes"`
	Sets    []ContainmentSet `yaml:"sets"`
}

var setDescriptions = []struct{ name, description string }{
	{"town", "all land in town"},
	{"protected", "protected land"},
	{"blocks_protected", "tree blocks or protected land"},
	{"blocks_protected_connectors", "tree blocks, protected land or attached connectors"},
}

// Representativeness measures the acreage of each attribute class within the
// chain town ⊇ town∩(blocks∪protected∪connectors) ⊇ town∩(blocks∪protected)
// ⊇ town∩protected. Out holds, per class cell, the class acreage within the
// blocks_protected_connectors set. Sets are returned in the order town, protected,
// blocks_protected, blocks_protected_connectors. A class whose acreage
// shrinks from a narrower set to a wider one yields ErrNotMonotonic.
func Representativeness(ctx context.Context, eng engine.Engine, in RepresentativenessInput, out string) (*Summary, error) {
	c := newChain(ctx, eng, out)

	classes := c.noDataToZero(in.Classes, "classes0")
	classZones := c.setNoData(classes, 0, "class_zones")
	town := c.noDataToZero(in.Town, "town0")
	protected := c.noDataToZero(in.Protected, "protected0")
	blocks := c.noDataToZero(in.Blocks, "blocks0")
	conn := c.noDataToZero(in.Connectors, "connectors0")
	attached := c.compare(engine.OpGreater, conn, engine.Const(Island), "attached")

	inTown := c.compare(engine.OpNotEqual, town, engine.Const(0), "s0")
	s1 := c.logical(engine.OpAnd, inTown, protected, "s1")
	bp := c.logical(engine.OpOr, blocks, protected, "blocks_or_protected")
	s2 := c.logical(engine.OpAnd, inTown, bp, "s2")
	bpc := c.logical(engine.OpOr, bp, attached, "blocks_protected_or_attached")
	s3 := c.logical(engine.OpAnd, inTown, bpc, "s3")

	masks := []string{inTown, s1, s2, s3}
	summary := &Summary{}
	for i, mask := range masks {
		id := fmt.Sprintf("s%d", i)
		member := c.arith(engine.OpMultiply, classes, engine.LayerOperand(mask), id+"_classes")
		member = c.setNoData(member, 0, id+"_class_cells")
		area := c.area(member, engine.AreaOptions{}, id+"_area")

		acresOut := c.name(id + "_acres")
		if i == len(masks)-1 {
			acresOut = out
		}
		acres := c.arith(engine.OpDivide, area, engine.Const(SquareMetresPerAcre), id+"_acres_raw")
		var table *raster.Table
		c.zonal(acres, classZones, raster.StatMax, acresOut, &table)
		if c.err != nil {
			return nil, c.err
		}

		set := ContainmentSet{
			Name:        setDescriptions[i].name,
			Description: setDescriptions[i].description,
			Acres:       table,
			Total:       table.Sum(),
		}
		summary.Sets = append(summary.Sets, set)
	}

	for _, row := range summary.Sets[0].Acres.Rows {
		summary.Classes = append(summary.Classes, row.Zone)
	}
	if err := summary.checkMonotonic(); err != nil {
		return nil, err
	}
	return summary, nil
}

// checkMonotonic verifies protected ⊆ blocks_protected ⊆
// blocks_protected_connectors ⊆ town for every class.
func (s *Summary) checkMonotonic() error {
	chain := []int{1, 2, 3, 0}
	for _, class := range s.Classes {
		for k := 1; k < len(chain); k++ {
			narrow, wide := s.Sets[chain[k-1]], s.Sets[chain[k]]
			if narrow.AcresOf(class) > wide.AcresOf(class)+monotonicTolerance {
				return fmt.Errorf("%w: class %g has %g acres in %s but %g in %s",
					ErrNotMonotonic, class, narrow.AcresOf(class), narrow.Name, wide.AcresOf(class), wide.Name)
			}
		}
	}
	return nil
}
