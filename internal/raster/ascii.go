package raster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadASCII decodes an ESRI ASCII grid. Both the corner and centre forms of
// the origin header are accepted.
func ReadASCII(r io.Reader) (*Layer, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	header := map[string]float64{}
	var pending string
	for len(header) < 6 && sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			// First data value; the optional NODATA header was absent.
			pending = sc.Text()
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("ascii grid: header %q has no value", key)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("ascii grid: header %q: %w", key, err)
		}
		header[key] = v
	}

	ncols, okc := header["ncols"]
	nrows, okr := header["nrows"]
	cellSize, oks := header["cellsize"]
	if !okc || !okr || !oks {
		return nil, fmt.Errorf("ascii grid: missing ncols, nrows or cellsize header")
	}
	if ncols < 1 || nrows < 1 {
		return nil, ErrEmptyGrid
	}

	l := New(int(ncols), int(nrows))
	l.CellSize = cellSize
	if nd, ok := header["nodata_value"]; ok {
		l.NoData = nd
	}
	switch {
	case hasKey(header, "xllcorner"):
		l.OriginX = header["xllcorner"]
	case hasKey(header, "xllcenter"):
		l.OriginX = header["xllcenter"] - cellSize/2
	}
	switch {
	case hasKey(header, "yllcorner"):
		l.OriginY = header["yllcorner"] + nrows*cellSize
	case hasKey(header, "yllcenter"):
		l.OriginY = header["yllcenter"] - cellSize/2 + nrows*cellSize
	}

	i := 0
	if pending != "" {
		v, _ := strconv.ParseFloat(pending, 64)
		l.Cells[i] = v
		i++
	}
	for ; i < len(l.Cells) && sc.Scan(); i++ {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("ascii grid: cell %d: %w", i, err)
		}
		l.Cells[i] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ascii grid: %w", err)
	}
	if i != len(l.Cells) {
		return nil, fmt.Errorf("ascii grid: expected %d cells, found %d", len(l.Cells), i)
	}
	return l, nil
}

func hasKey(m map[string]float64, k string) bool {
	_, ok := m[k]
	return ok
}

// WriteASCII encodes the layer as an ESRI ASCII grid.
func WriteASCII(w io.Writer, l *Layer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\nnrows %d\n", l.Width, l.Height)
	fmt.Fprintf(bw, "xllcorner %s\nyllcorner %s\n", fmtFloat(l.OriginX), fmtFloat(l.OriginY-float64(l.Height)*l.CellSize))
	fmt.Fprintf(bw, "cellsize %s\nNODATA_value %s\n", fmtFloat(l.CellSize), fmtFloat(l.NoData))
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			if x > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(fmtFloat(l.At(x, y)))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// LoadASCII reads an ASCII grid from path.
func LoadASCII(path string) (*Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	l, err := ReadASCII(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// SaveASCII writes l to path, replacing any existing file.
func SaveASCII(path string, l *Layer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteASCII(f, l); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
