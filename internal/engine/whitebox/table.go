package whitebox

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/specialistvlad/habitatgrid/internal/raster"
	"golang.org/x/net/html"
)

// ReadTable parses the HTML table ZonalStatistics writes with --out_table.
// The first column is the zone id; the statistic column is located by its
// header.
func ReadTable(r io.Reader, stat raster.Stat) (*raster.Table, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing zonal table: %w", err)
	}

	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, strings.TrimSpace(textOf(c)))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(rows) < 1 {
		return nil, fmt.Errorf("zonal table has no rows")
	}
	col := -1
	for i, h := range rows[0] {
		h = strings.ToLower(h)
		if h == string(stat) || strings.HasPrefix(h, string(stat)+"imum") {
			col = i
			break
		}
	}
	if col < 1 {
		return nil, fmt.Errorf("zonal table has no %q column in header %v", stat, rows[0])
	}

	table := &raster.Table{Stat: stat}
	for _, cells := range rows[1:] {
		if len(cells) <= col {
			continue
		}
		zone, err := strconv.ParseFloat(cells[0], 64)
		if err != nil {
			continue
		}
		row := raster.Row{Zone: zone}
		if v, err := strconv.ParseFloat(cells[col], 64); err == nil {
			row.Value = v
		} else {
			row.NoData = true
		}
		table.Rows = append(table.Rows, row)
	}
	table.Sort()
	return table, nil
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textOf(c))
	}
	return sb.String()
}

func readTableFile(path string, stat raster.Stat) (*raster.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(f, stat)
}
