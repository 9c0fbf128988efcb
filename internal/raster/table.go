package raster

import (
	"fmt"
	"sort"
)

// Stat names a per-region reduction.
type Stat string

const (
	StatMin Stat = "min"
	StatMax Stat = "max"
)

// ParseStat validates a statistic name.
func ParseStat(s string) (Stat, error) {
	switch Stat(s) {
	case StatMin, StatMax:
		return Stat(s), nil
	}
	return "", fmt.Errorf("unsupported zonal statistic %q: must be 'min' or 'max'", s)
}

// Row is one zone's aggregate. NoData is set when the zone had no valid
// value cells.
type Row struct {
	Zone   float64 `yaml:"zone"`
	Value  float64 `yaml:"value"`
	NoData bool    `yaml:"nodata,omitempty"`
}

// Table maps region labels to an aggregate of a value layer. Rows are kept
// sorted by zone and every zone appears exactly once.
type Table struct {
	Stat Stat  `yaml:"stat"`
	Rows []Row `yaml:"rows"`
}

// Sort orders rows by zone.
func (t *Table) Sort() {
	sort.Slice(t.Rows, func(i, j int) bool { return t.Rows[i].Zone < t.Rows[j].Zone })
}

// Lookup returns the row for zone.
func (t *Table) Lookup(zone float64) (Row, bool) {
	i := sort.Search(len(t.Rows), func(i int) bool { return t.Rows[i].Zone >= zone })
	if i < len(t.Rows) && t.Rows[i].Zone == zone {
		return t.Rows[i], true
	}
	return Row{}, false
}

// Sum adds up the values of all rows that carry data.
func (t *Table) Sum() float64 {
	var total float64
	for _, r := range t.Rows {
		if !r.NoData {
			total += r.Value
		}
	}
	return total
}
