package raster

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadASC parses an ESRI ASCII grid. Both the classic single CELLSIZE
// header and the DX/DY variant are accepted; the DX/DY form is how
// non-square masks arrive, which the tiler later rejects. Cell values
// follow the header row-major from the top row.
func ReadASC(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	hdr := map[string]float64{}
	var values []float64
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		key := strings.ToLower(fields[0])
		if len(fields) == 2 && isHeaderKey(key) && len(values) == 0 {
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("asc %s: header %s: %w", path, key, err)
			}
			hdr[key] = v
			continue
		}
		for _, fv := range fields {
			v, err := strconv.ParseFloat(fv, 64)
			if err != nil {
				return nil, fmt.Errorf("asc %s: bad cell value %q", path, fv)
			}
			values = append(values, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	cols, ok1 := hdr["ncols"]
	rows, ok2 := hdr["nrows"]
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("asc %s: missing ncols/nrows", path)
	}
	cellX, cellY, err := ascCellSize(hdr)
	if err != nil {
		return nil, fmt.Errorf("asc %s: %w", path, err)
	}
	minX, minY, err := ascOrigin(hdr, cellX, cellY, int(rows))
	if err != nil {
		return nil, fmt.Errorf("asc %s: %w", path, err)
	}
	nodata, ok := hdr["nodata_value"]
	if !ok {
		nodata = -9999
	}
	if want := int(cols) * int(rows); len(values) != want {
		return nil, fmt.Errorf("asc %s: %d cell values, header implies %d", path, len(values), want)
	}

	g := &Grid{
		MinX: minX, MinY: minY,
		CellX: cellX, CellY: cellY,
		Cols: int(cols), Rows: int(rows),
		NoData: nodata,
		Cells:  values,
	}
	return g, nil
}

func isHeaderKey(k string) bool {
	switch k {
	case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter",
		"cellsize", "dx", "dy", "nodata_value":
		return true
	}
	return false
}

func ascCellSize(hdr map[string]float64) (cellX, cellY float64, err error) {
	if cs, ok := hdr["cellsize"]; ok {
		return cs, cs, nil
	}
	dx, okx := hdr["dx"]
	dy, oky := hdr["dy"]
	if okx && oky {
		return dx, dy, nil
	}
	return 0, 0, fmt.Errorf("missing cellsize (or dx/dy)")
}

func ascOrigin(hdr map[string]float64, cellX, cellY float64, rows int) (minX, minY float64, err error) {
	if x, ok := hdr["xllcorner"]; ok {
		y, ok := hdr["yllcorner"]
		if !ok {
			return 0, 0, fmt.Errorf("xllcorner without yllcorner")
		}
		return x, y, nil
	}
	if x, ok := hdr["xllcenter"]; ok {
		y, ok := hdr["yllcenter"]
		if !ok {
			return 0, 0, fmt.Errorf("xllcenter without yllcenter")
		}
		return x - cellX/2, y - cellY/2, nil
	}
	return 0, 0, fmt.Errorf("missing corner/center origin")
}
